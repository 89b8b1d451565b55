// Package directive parses the payload of a Directive block into a
// structured (name, parameters) pair.
package directive

import (
	"strings"

	"github.com/cpcf/weftc/errs"
)

// Directive is the parsed payload of a Directive block.
type Directive struct {
	Name       string // lowercased
	Parameters map[string]string
}

// Get looks up a parameter case-insensitively.
func (d Directive) Get(key string) (string, bool) {
	v, ok := d.Parameters[strings.ToLower(key)]
	return v, ok
}

// Parse splits payload (the text between <#@ and #>) into a Directive.
// Grammar: NAME (KEY="VALUE")*. Values are double-quoted with \" as the
// only escape. owner/line identify the originating block for diagnostics.
func Parse(owner string, line int, payload string) (Directive, error) {
	toks := tokenize(payload)
	if len(toks) == 0 {
		return Directive{}, &errs.DirectiveError{Name: owner, Line: line, Message: "empty directive"}
	}

	name := strings.ToLower(toks[0])
	params := make(map[string]string)

	rest := toks[1:]
	for len(rest) > 0 {
		kv := rest[0]
		eq := strings.Index(kv, "=")
		if eq == -1 {
			return Directive{}, &errs.DirectiveError{Name: owner, Line: line, Message: "malformed parameter: " + kv}
		}
		key := strings.ToLower(strings.TrimSpace(kv[:eq]))
		val, err := unquote(kv[eq+1:])
		if err != nil {
			return Directive{}, &errs.DirectiveError{Name: owner, Line: line, Message: err.Error()}
		}
		params[key] = val
		rest = rest[1:]
	}

	d := Directive{Name: name, Parameters: params}
	if err := requireMandatory(owner, line, d); err != nil {
		return Directive{}, err
	}
	return d, nil
}

var mandatory = map[string][]string{
	"include":  {"name"},
	"assembly": {"name"},
	"import":   {"namespace"},
	"var":      {"name", "type"},
}

func requireMandatory(owner string, line int, d Directive) error {
	for _, key := range mandatory[d.Name] {
		if _, ok := d.Get(key); !ok {
			return &errs.DirectiveError{Name: owner, Line: line, Message: "missing required parameter " + key + " for directive " + d.Name}
		}
	}
	return nil
}

// tokenize splits payload into the leading bare name token followed by
// KEY="VALUE" tokens, tolerating whitespace between tokens and inside quoted
// values.
func tokenize(payload string) []string {
	var toks []string
	i := 0
	n := len(payload)

	skipSpace := func() {
		for i < n && isSpace(payload[i]) {
			i++
		}
	}

	skipSpace()
	start := i
	for i < n && !isSpace(payload[i]) {
		i++
	}
	if start != i {
		toks = append(toks, payload[start:i])
	}

	for {
		skipSpace()
		if i >= n {
			break
		}
		start = i
		for i < n && payload[i] != '=' {
			i++
		}
		if i >= n {
			toks = append(toks, payload[start:i])
			break
		}
		i++ // consume '='
		if i < n && payload[i] == '"' {
			i++
			for i < n {
				if payload[i] == '\\' && i+1 < n && payload[i+1] == '"' {
					i += 2
					continue
				}
				if payload[i] == '"' {
					i++
					break
				}
				i++
			}
			toks = append(toks, payload[start:i])
			continue
		}
		// unquoted value: read until next whitespace
		for i < n && !isSpace(payload[i]) {
			i++
		}
		toks = append(toks, payload[start:i])
	}

	return toks
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func unquote(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", &errs.ArgumentError{Op: "directive.unquote", Message: "value not double-quoted: " + raw}
	}
	inner := raw[1 : len(raw)-1]
	inner = strings.ReplaceAll(inner, `\"`, `"`)
	return inner, nil
}
