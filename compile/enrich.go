package compile

import (
	"strings"

	"github.com/cpcf/weftc/bundle"
	"github.com/cpcf/weftc/debug"
	"github.com/cpcf/weftc/errs"
)

// Enrich implements spec §4.6's error-context enrichment: given a
// diagnostic's (file, line) it finds the block whose owning source and
// start_line envelope the reported location, and returns a ±1 line excerpt
// of the *template* source (not the generated Go) around it. The search is
// best-effort and must never itself raise — any lookup failure just leaves
// Snippet empty.
func Enrich(items []*bundle.TemplateItem, d Diagnostic) (ce *errs.CompilationError) {
	ce = &errs.CompilationError{File: d.File, Line: d.Line, Message: d.Message}

	defer func() {
		// Enrichment is diagnostic-only; a panic here (malformed source,
		// unexpected block shape) must not surface to the caller. ce keeps
		// whatever was already set, snippet just stays empty.
		recover()
	}()

	item := findOwningItem(items, d.File)
	if item == nil {
		return ce
	}

	line := nearestTemplateLine(item, d.Line)
	if line == 0 {
		return ce
	}

	ce.Snippet = excerpt(item.Content, line, 1)
	return ce
}

// EnrichDetailed wraps Enrich's result in a debug.EnhancedError, for
// callers running in debug mode that want the originating template path,
// line and a structured log record rather than just the flat error.
func EnrichDetailed(items []*bundle.TemplateItem, d Diagnostic) *debug.EnhancedError {
	ce := Enrich(items, d)
	enhanced := debug.NewEnhancedError(ce, "compile")
	if item := findOwningItem(items, d.File); item != nil {
		enhanced = enhanced.WithTemplate(item.Name)
	}
	return enhanced.WithLine(ce.Line).WithContext("snippet", ce.Snippet)
}

// findOwningItem matches a compiler-reported file name against an item's
// Name, tolerating that the compiler reports the sanitized scratch file
// name rather than the original template name.
func findOwningItem(items []*bundle.TemplateItem, file string) *bundle.TemplateItem {
	for _, item := range items {
		if item.Name == file || strings.Contains(file, sanitizeFileName(item.Name)) {
			return item
		}
	}
	return nil
}

// nearestTemplateLine maps a generated-source line back to the closest
// block start_line owned by item, since generated line numbers don't align
// 1:1 with template source lines once codegen has run.
func nearestTemplateLine(item *bundle.TemplateItem, generatedLine int) int {
	best := 0
	for _, blk := range item.Blocks {
		if blk.Name != item.Name {
			continue
		}
		if blk.StartLine <= generatedLine || best == 0 {
			best = blk.StartLine
		}
	}
	return best
}

// excerpt returns ±context lines of source around line (1-based).
func excerpt(source string, line, context int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	start := line - context
	if start < 1 {
		start = 1
	}
	end := line + context
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}
