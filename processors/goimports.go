// Package processors holds postprocess.Processor implementations that run
// over the .go files a bundle's CodeGenerator emitted, before they are
// written to disk (compile.GoCompiler formats each source with GoImports
// before writing it to its scratch build directory).
package processors

import (
	"fmt"
	"go/format"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"
)

// GoImports resolves the bare package names emitted by codegen (t.Write,
// fmt.Sprintf, and whatever a Member block's Go snippet references) into a
// proper import block, then runs the result through gofmt. It's the
// processor that turns generated-but-unimported source into something that
// actually compiles.
//
// Example usage:
//
//	chain := postprocess.NewChain()
//	chain.Add(processors.NewGoImports())
type GoImports struct {
	// TabWidth sets the tab width for formatting (default: 8)
	TabWidth int
	// TabIndent determines whether to use tabs for indentation (default: true)
	TabIndent bool
	// AllErrors determines whether to report all errors or just the first (default: false)
	AllErrors bool
	// Comments determines whether to update comments (default: true)
	Comments bool
}

// NewGoImports creates a new Go imports processor with sensible defaults.
func NewGoImports() *GoImports {
	return &GoImports{
		TabWidth:  8,
		TabIndent: true,
		AllErrors: false,
		Comments:  true,
	}
}

// ProcessContent implements postprocess.Processor. Non-.go artifacts (a
// bundle can in principle emit any file extension) pass through untouched.
func (g *GoImports) ProcessContent(filePath string, content []byte) ([]byte, error) {
	if !g.isGoFile(filePath) {
		return content, nil
	}

	options := &imports.Options{
		Fragment:  false,
		AllErrors: g.AllErrors,
		Comments:  g.Comments,
		TabIndent: g.TabIndent,
		TabWidth:  g.TabWidth,
	}

	formatted, err := imports.Process(filePath, content, options)
	if err != nil {
		// codegen output that goimports can't resolve (e.g. a Member block
		// referencing a package the template author forgot to alias) still
		// gets a gofmt pass so the file isn't left mangled on disk.
		formatted, fmtErr := format.Source(content)
		if fmtErr != nil {
			return nil, fmt.Errorf("failed to format Go code with goimports (%w) and gofmt (%w)", err, fmtErr)
		}
		return formatted, nil
	}

	return formatted, nil
}

func (g *GoImports) isGoFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".go"
}
