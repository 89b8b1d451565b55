// Package bundle holds the data model shared by the resolver, code
// generator, compiler driver and engine façade: TemplateItem and the
// ordered collections that make up one compilation unit.
package bundle

import "github.com/cpcf/weftc/block"

// Status is the engine's lifecycle phase. It only ever increases.
type Status int

const (
	Init Status = iota
	Processed
	Compiled
)

func (s Status) String() string {
	switch s {
	case Init:
		return "Init"
	case Processed:
		return "Processed"
	case Compiled:
		return "Compiled"
	default:
		return "Unknown"
	}
}

// Var is one declared <#@ var #> binding: a name paired with a resolved
// host-language type reference.
type Var struct {
	Name string
	Type string
}

// TemplateItem is one template within a bundle.
type TemplateItem struct {
	Name          string // logical identifier; may be a file path
	ClassName     string // target class identifier, derived from Name
	BaseClassName string // optional, overrides the engine default
	Content       string // original text

	Blocks  []block.Block
	Imports []string // insertion order preserved
	Vars    []Var    // insertion order preserved

	Included  bool // true: exists only as an include target
	Processed bool // true once a `template` directive has been applied
	Source    string // generated host-language source, set after codegen
}

// HasImport reports whether ns is already present, case-sensitively (host
// namespaces are case-sensitive identifiers).
func (t *TemplateItem) HasImport(ns string) bool {
	for _, existing := range t.Imports {
		if existing == ns {
			return true
		}
	}
	return false
}

// AddImport appends ns if not already present.
func (t *TemplateItem) AddImport(ns string) {
	if !t.HasImport(ns) {
		t.Imports = append(t.Imports, ns)
	}
}

// HasVar reports whether a var with this name is already declared.
func (t *TemplateItem) HasVar(name string) bool {
	for _, v := range t.Vars {
		if v.Name == name {
			return true
		}
	}
	return false
}
