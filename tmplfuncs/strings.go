// Package tmplfuncs is a small helper library that compiled template
// classes may import and call directly from Statement/Expression blocks
// (e.g. `<#= tmplfuncs.Snake(name) #>`). Unlike the pipeline packages this
// is not wired into any required operation — it exists so hand-written
// templates have the same case-conversion, hashing and formatting
// conveniences the teacher exposed through its text/template FuncMap,
// reshaped as plain exported functions since generated Go code calls
// functions directly rather than through a template.FuncMap.
package tmplfuncs

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Snake converts s to snake_case.
func Snake(s string) string {
	if s == "" {
		return ""
	}
	var result strings.Builder
	var prevChar rune
	var prevWasUpper bool

	for i, char := range s {
		isUpper := unicode.IsUpper(char)
		isLetter := unicode.IsLetter(char)
		isDigit := unicode.IsDigit(char)

		if i > 0 && isUpper && !prevWasUpper && (unicode.IsLower(prevChar) || unicode.IsDigit(prevChar)) {
			result.WriteRune('_')
		}
		if i > 0 && isDigit && unicode.IsLetter(prevChar) {
			result.WriteRune('_')
		}
		if i > 0 && isLetter && unicode.IsDigit(prevChar) {
			result.WriteRune('_')
		}

		if isLetter || isDigit {
			result.WriteRune(unicode.ToLower(char))
		} else if char == ' ' || char == '-' {
			result.WriteRune('_')
		}

		prevChar = char
		prevWasUpper = isUpper
	}

	return strings.Trim(result.String(), "_")
}

// Camel converts s to camelCase.
func Camel(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	result := strings.ToLower(words[0])
	for _, word := range words[1:] {
		if len(word) > 0 {
			result += strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
		}
	}
	return result
}

// Pascal converts s to PascalCase.
func Pascal(s string) string {
	words := splitWords(s)
	var result strings.Builder
	for _, word := range words {
		if len(word) > 0 {
			result.WriteString(strings.ToUpper(string(word[0])) + strings.ToLower(word[1:]))
		}
	}
	return result.String()
}

// Kebab converts s to kebab-case.
func Kebab(s string) string {
	words := splitWords(s)
	var result []string
	for _, word := range words {
		if len(word) > 0 {
			result = append(result, strings.ToLower(word))
		}
	}
	return strings.Join(result, "-")
}

func splitWords(s string) []string {
	if s == "" {
		return nil
	}
	var words []string
	var current strings.Builder
	var prevChar rune
	var prevWasUpper bool

	for i, char := range s {
		isUpper := unicode.IsUpper(char)
		isLetter := unicode.IsLetter(char)
		isDigit := unicode.IsDigit(char)

		switch {
		case char == ' ' || char == '_' || char == '-':
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		case i > 0 && isUpper && !prevWasUpper && (unicode.IsLower(prevChar) || unicode.IsDigit(prevChar)):
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			current.WriteRune(char)
		case i > 0 && isLetter && unicode.IsDigit(prevChar):
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			current.WriteRune(char)
		case i > 0 && isDigit && unicode.IsLetter(prevChar):
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			current.WriteRune(char)
		case isLetter || isDigit:
			current.WriteRune(char)
		}

		prevChar = char
		prevWasUpper = isUpper
	}

	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

// Truncate shortens s to length runes, appending "..." if it was cut.
func Truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	if length <= 3 {
		return string(r[:length])
	}
	return string(r[:length-3]) + "..."
}

// PadLeft left-pads s with spaces to width.
func PadLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// PadRight right-pads s with spaces to width.
func PadRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Indent prefixes every non-empty line of text with n spaces; empty lines
// are left as they are.
func Indent(text string, n int) string {
	prefix := strings.Repeat(" ", n)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// UUID returns a fresh random UUID string. Distinct from runtime.Instance's
// identity UUID: this one is for template *content* (e.g. generating IDs
// inside a rendered document) rather than instance correlation.
func UUID() string {
	return uuid.New().String()
}

// MD5, SHA1 and SHA256 return the lowercase hex digest of text.
func MD5(text string) string    { s := md5.Sum([]byte(text)); return hex.EncodeToString(s[:]) }
func SHA1(text string) string   { s := sha1.Sum([]byte(text)); return hex.EncodeToString(s[:]) }
func SHA256(text string) string { s := sha256.Sum256([]byte(text)); return hex.EncodeToString(s[:]) }

// Base64 and Base64Decode round-trip through standard base64.
func Base64(text string) string { return base64.StdEncoding.EncodeToString([]byte(text)) }

func Base64Decode(text string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("tmplfuncs: base64 decode: %w", err)
	}
	return string(b), nil
}

// Quote returns s as a Go double-quoted string literal.
func Quote(s string) string { return strconv.Quote(s) }
