// Package resolve implements the DirectiveResolver: it walks a template
// item's blocks, expands includes with cycle detection, and accumulates
// imports, assembly references and typed vars onto the bundle.
package resolve

import (
	"strings"

	"github.com/cpcf/weftc/block"
	"github.com/cpcf/weftc/bundle"
	"github.com/cpcf/weftc/directive"
	"github.com/cpcf/weftc/errs"
	"github.com/cpcf/weftc/source"
)

// Host is the subset of engine state the resolver needs. The engine façade
// implements this so resolve never has to import the engine package.
type Host interface {
	FindItem(name string) (*bundle.TemplateItem, bool) // case-insensitive
	AddItem(item *bundle.TemplateItem)
	AddAssemblyReference(name string)
	Loader() source.Loader
}

// TypeResolver maps a var directive's raw type string to a host type
// reference plus (optionally) an import path it implies. The default
// resolver treats the raw string as already being a valid Go type
// expression and infers no import — see DESIGN.md for why the
// reflection-based lookup from the original system is not reproduced.
type TypeResolver interface {
	Resolve(raw string) (goType string, importPath string, ok bool)
}

// IdentityTypeResolver is the default TypeResolver.
type IdentityTypeResolver struct{}

func (IdentityTypeResolver) Resolve(raw string) (string, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	return raw, "", true
}

// Resolver runs the directive-resolution pass over a bundle.
type Resolver struct {
	Types TypeResolver
}

// New returns a Resolver using the default identity TypeResolver.
func New() *Resolver {
	return &Resolver{Types: IdentityTypeResolver{}}
}

// Resolve processes item's blocks in place: expanding includes, applying
// template/assembly/import/var directives, and leaving item.Processed set
// if a template directive was seen. host supplies the item registry and
// SourceLoader used for include resolution.
func (r *Resolver) Resolve(host Host, item *bundle.TemplateItem) error {
	stack := []string{item.Name}

	i := 0
	for i < len(item.Blocks) {
		blk := item.Blocks[i]

		for len(stack) > 0 && !strings.EqualFold(blk.Name, stack[len(stack)-1]) {
			stack = stack[:len(stack)-1]
		}

		if blk.Kind != block.Directive {
			i++
			continue
		}

		d, err := directive.Parse(blk.Name, blk.StartLine, blk.Text)
		if err != nil {
			return err
		}

		switch d.Name {
		case "template":
			if item.Processed {
				return &errs.DirectiveError{Name: blk.Name, Line: blk.StartLine, Message: "duplicate template directive"}
			}
			if v, ok := d.Get("name"); ok {
				item.ClassName = bundle.SanitizeIdentifier(v)
			}
			if v, ok := d.Get("inherits"); ok {
				item.BaseClassName = v
			}
			item.Processed = true
			i++

		case "assembly":
			name, _ := d.Get("name")
			host.AddAssemblyReference(name)
			i++

		case "import":
			ns, _ := d.Get("namespace")
			item.AddImport(ns)
			i++

		case "var":
			name, _ := d.Get("name")
			typ, _ := d.Get("type")
			if item.HasVar(name) {
				return &errs.DirectiveError{Name: blk.Name, Line: blk.StartLine, Message: "duplicate var: " + name}
			}
			goType, importPath, ok := r.Types.Resolve(typ)
			if !ok {
				return &errs.TypeResolutionError{VarName: name, TypeName: typ, Message: "type could not be resolved"}
			}
			if importPath != "" {
				item.AddImport(importPath)
			}
			item.Vars = append(item.Vars, bundle.Var{Name: name, Type: goType})
			i++

		case "include":
			name, _ := d.Get("name")
			target, err := r.resolveInclude(host, item, name)
			if err != nil {
				return err
			}
			for _, existing := range stack {
				if strings.EqualFold(existing, target.Name) {
					cycle := append(append([]string{}, stack...), target.Name)
					return &errs.CycleError{Cycle: cycle}
				}
			}

			spliced := make([]block.Block, len(target.Blocks))
			copy(spliced, target.Blocks)

			tail := make([]block.Block, len(item.Blocks)-(i+1))
			copy(tail, item.Blocks[i+1:])

			item.Blocks = append(item.Blocks[:i+1:i+1], spliced...)
			item.Blocks = append(item.Blocks, tail...)

			stack = append(stack, target.Name)
			i++

		default:
			return &errs.DirectiveError{Name: blk.Name, Line: blk.StartLine, Message: "unknown directive: " + d.Name}
		}
	}

	return nil
}

// resolveInclude implements §4.3's include-resolution order: exact
// case-insensitive match against existing items, then path resolution via
// the SourceLoader, creating a new TemplateItem on success. The target's
// blocks are lexed lazily and cached on first use.
func (r *Resolver) resolveInclude(host Host, including *bundle.TemplateItem, name string) (*bundle.TemplateItem, error) {
	if existing, ok := host.FindItem(name); ok {
		if err := ensureLexed(existing); err != nil {
			return nil, err
		}
		existing.Included = true
		return existing, nil
	}

	loader := host.Loader()
	if loader == nil {
		return nil, &errs.DirectiveError{Name: including.Name, Message: "include " + name + ": no SourceLoader configured"}
	}

	resolved := loader.Resolve(including.Name, name)
	if !loader.Exists(resolved) {
		return nil, &errs.DirectiveError{Name: including.Name, Message: "include target not found: " + name}
	}
	content, err := loader.Read(resolved)
	if err != nil {
		return nil, &errs.DirectiveError{Name: including.Name, Message: "include " + name + ": " + err.Error()}
	}

	item := &bundle.TemplateItem{
		Name:      resolved,
		ClassName: bundle.DeriveClassName(resolved),
		Content:   content,
		Included:  true,
	}
	if err := ensureLexed(item); err != nil {
		return nil, err
	}
	host.AddItem(item)
	return item, nil
}

func ensureLexed(item *bundle.TemplateItem) error {
	if item.Blocks != nil || item.Content == "" {
		return nil
	}
	blocks, err := block.Lex(item.Name, item.Content)
	if err != nil {
		return err
	}
	item.Blocks = blocks
	return nil
}
