// Package errs defines the flat error taxonomy shared by every stage of the
// compiled-template pipeline: lexer, directive resolver, code generator,
// compiler driver and engine façade all return one of these kinds so callers
// can distinguish failure modes with errors.As instead of string matching.
package errs

import "fmt"

// Kind identifies which stage of the pipeline produced an error.
type Kind string

const (
	KindArgument         Kind = "argument"
	KindState            Kind = "state"
	KindParse            Kind = "parse"
	KindDirective        Kind = "directive"
	KindCycle            Kind = "cycle"
	KindTypeResolution   Kind = "type_resolution"
	KindCompilation      Kind = "compilation"
	KindAmbiguity        Kind = "ambiguity"
	KindExecution        Kind = "execution"
)

// ArgumentError reports a malformed public call: nil/empty inputs where the
// caller was required to supply at least one of them.
type ArgumentError struct {
	Op      string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: argument error: %s", e.Op, e.Message)
}

// StateError reports an operation invoked outside the lifecycle phase it
// requires (e.g. add_template_item after status has advanced past Init).
type StateError struct {
	Op      string
	Status  string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: state error (status=%s): %s", e.Op, e.Status, e.Message)
}

// ParseError reports a lexer failure. Line is 1-based and refers to the
// owning template's source, not the bundle.
type ParseError struct {
	Name    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %q at line %d: %s", e.Name, e.Line, e.Message)
}

// DirectiveError reports an unknown directive, a duplicate template
// directive, or a missing required parameter.
type DirectiveError struct {
	Name    string // owning template name
	Line    int
	Message string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("directive error in %q at line %d: %s", e.Name, e.Line, e.Message)
}

// CycleError reports an include cycle. Cycle lists the participating
// template names, cycle-root first.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("include cycle detected: %v", e.Cycle)
}

// TypeResolutionError reports a var directive whose type could not be
// located against the item's imports/assembly references.
type TypeResolutionError struct {
	VarName  string
	TypeName string
	Message  string
}

func (e *TypeResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve type %q for var %q: %s", e.TypeName, e.VarName, e.Message)
}

// CompilationError reports the host compiler returning at least one error.
// Snippet is a best-effort ±1 line excerpt of the originating template
// source around the reported location; it is empty if enrichment failed.
type CompilationError struct {
	File    string
	Line    int
	Message string
	Snippet string
}

func (e *CompilationError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("compilation error at %s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("compilation error at %s:%d: %s\n%s", e.File, e.Line, e.Message, e.Snippet)
}

// AmbiguityError reports create_instance called with no class name and
// zero or more than one candidate class in the compiled artifact.
type AmbiguityError struct {
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	if len(e.Candidates) == 0 {
		return "ambiguity error: no template class in artifact"
	}
	return fmt.Sprintf("ambiguity error: %d candidate classes, name required: %v", len(e.Candidates), e.Candidates)
}

// ExecutionError wraps any failure raised by a compiled template at render
// time (Initialize or Render panicking or returning an error).
type ExecutionError struct {
	ClassName string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error in %q: %v", e.ClassName, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
