// Package block implements the lexer that turns one template's raw source
// into an ordered sequence of typed Blocks. It is the leaf of the pipeline:
// nothing below it, everything above it consumes its output.
package block

import (
	"strings"

	"github.com/cpcf/weftc/errs"
)

// Kind identifies what a Block represents in the source.
type Kind int

const (
	Text Kind = iota
	Statement
	Expression
	Member
	Directive
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "Text"
	case Statement:
		return "Statement"
	case Expression:
		return "Expression"
	case Member:
		return "Member"
	case Directive:
		return "Directive"
	default:
		return "Unknown"
	}
}

// Block is an immutable lexical fragment of template source. Name is the
// owning template's logical name, propagated across includes so diagnostics
// can point back to the file the text actually came from.
type Block struct {
	Kind      Kind
	Text      string
	Name      string
	StartLine int
}

const (
	openDirective  = "<#@"
	openMember     = "<#+"
	openExpression = "<#="
	openStatement  = "<#"
	closeTag       = "#>"
)

// Lex scans source into a slice of Blocks, tagging each with owner as its
// Name. Adjacent Text blocks are merged. An unterminated delimiter is a
// fatal *errs.ParseError carrying the opening line.
func Lex(owner, source string) ([]Block, error) {
	var blocks []Block
	line := 1
	i := 0
	n := len(source)

	flushText := func(text string, startLine int) {
		if text == "" {
			return
		}
		if len(blocks) > 0 && blocks[len(blocks)-1].Kind == Text {
			blocks[len(blocks)-1].Text += text
			return
		}
		blocks = append(blocks, Block{Kind: Text, Text: text, Name: owner, StartLine: startLine})
	}

	countLines := func(s string) int {
		count := 0
		for idx := 0; idx < len(s); idx++ {
			if s[idx] == '\n' {
				count++
			}
		}
		return count
	}

	for i < n {
		open, kind := matchOpen(source[i:])
		if open == "" {
			// scan to the next possible delimiter start
			next := strings.Index(source[i:], "<#")
			textStartLine := line
			if next == -1 {
				flushText(source[i:], textStartLine)
				line += countLines(source[i:])
				i = n
				break
			}
			flushText(source[i:i+next], textStartLine)
			line += countLines(source[i : i+next])
			i += next
			continue
		}

		openLine := line
		bodyStart := i + len(open)
		relClose := strings.Index(source[bodyStart:], closeTag)
		if relClose == -1 {
			return nil, &errs.ParseError{Name: owner, Line: openLine, Message: "unterminated delimiter " + open}
		}
		body := source[bodyStart : bodyStart+relClose]
		blocks = append(blocks, Block{Kind: kind, Text: body, Name: owner, StartLine: openLine})

		consumed := source[i : bodyStart+relClose+len(closeTag)]
		line += countLines(consumed)
		i = bodyStart + relClose + len(closeTag)
	}

	return blocks, nil
}

// matchOpen reports which delimiter (if any) opens at the start of s, and
// its Kind. Longer/more specific prefixes (<#@, <#+, <#=) are checked before
// the bare statement delimiter <#.
func matchOpen(s string) (string, Kind) {
	switch {
	case strings.HasPrefix(s, openDirective):
		return openDirective, Directive
	case strings.HasPrefix(s, openMember):
		return openMember, Member
	case strings.HasPrefix(s, openExpression):
		return openExpression, Expression
	case strings.HasPrefix(s, openStatement):
		return openStatement, Statement
	default:
		return "", Text
	}
}
