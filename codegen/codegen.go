// Package codegen builds the AST-free Go source for one compiled template
// class per bundle item. Per spec §9's design note, a reimplementation
// targeting a single host language may emit source strings directly instead
// of building an intermediate AST above a pluggable emitter; this package
// takes that route.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cpcf/weftc/block"
	"github.com/cpcf/weftc/bundle"
)

// Options configures generation for a whole bundle.
type Options struct {
	Namespace         string // Go package name for every generated class
	DefaultBaseClass  string // used when neither the item nor the engine names one
	DebugLineNumbers  bool
}

// Generate emits the Go source for item and stores it on item.Source. It
// also returns the source, since callers building the compile unit need to
// concatenate every item's source before fingerprinting.
func Generate(opts Options, item *bundle.TemplateItem) (string, error) {
	g := &generator{opts: opts, item: item}
	src := g.build()
	item.Source = src
	return src, nil
}

type generator struct {
	opts Options
	item *bundle.TemplateItem

	render strings.Builder
	member strings.Builder
}

func (g *generator) build() string {
	var out strings.Builder

	fmt.Fprintf(&out, "package %s\n\n", packageName(g.opts.Namespace))
	out.WriteString("import (\n")
	out.WriteString("\t\"github.com/cpcf/weftc/runtime\"\n")
	for _, imp := range g.item.Imports {
		fmt.Fprintf(&out, "\t%q\n", imp)
	}
	out.WriteString(")\n\n")

	base := g.item.BaseClassName
	if base == "" {
		base = g.opts.DefaultBaseClass
	}
	if base == "" {
		base = "runtime.Base"
	}

	fmt.Fprintf(&out, "type %s struct {\n\t%s\n}\n\n", g.item.ClassName, embedField(base))

	g.emitBody()

	// The constructor returns the runtime.Renderer interface, not the
	// concrete pointer type: plugin.Lookup matches symbols by their exact
	// static type, so the engine façade can only type-assert a loaded
	// constructor if every generated class declares the same signature.
	fmt.Fprintf(&out, "func New%s() runtime.Renderer {\n", g.item.ClassName)
	out.WriteString("\tt := &" + g.item.ClassName + "{}\n")
	out.WriteString("\tt.Base = runtime.NewBase()\n")
	if len(g.item.Vars) > 0 {
		out.WriteString("\tt.Vars = []runtime.VarSpec{\n")
		for _, v := range g.item.Vars {
			fmt.Fprintf(&out, "\t\t{Name: %q, Type: %q},\n", v.Name, v.Type)
		}
		out.WriteString("\t}\n")
	}
	out.WriteString("\treturn t\n}\n\n")

	fmt.Fprintf(&out, "func (t *%s) Render() string {\n", g.item.ClassName)
	out.WriteString(g.render.String())
	out.WriteString("\treturn t.String()\n}\n\n")

	for _, v := range g.item.Vars {
		g.emitAccessor(&out, v)
	}

	if g.member.Len() > 0 {
		out.WriteString(g.member.String())
	}

	return out.String()
}

// embedField renders the base-class embed. base may be a locally generated
// class name, or an imported qualified type like runtime.Base.
func embedField(base string) string {
	if idx := strings.LastIndex(base, "."); idx != -1 {
		return base
	}
	return base
}

func (g *generator) emitAccessor(out *strings.Builder, v bundle.Var) {
	getter := bundle.SanitizeIdentifier(v.Name)
	getter = strings.ToUpper(getter[:1]) + getter[1:]
	fmt.Fprintf(out, "func (t *%s) %s() %s {\n", g.item.ClassName, getter, v.Type)
	fmt.Fprintf(out, "\treturn runtime.GetData[%s](&t.Base, %q)\n}\n\n", v.Type, v.Name)
	fmt.Fprintf(out, "func (t *%s) Set%s(v %s) {\n", g.item.ClassName, getter, v.Type)
	fmt.Fprintf(out, "\tt.Data[%q] = v\n}\n\n", v.Name)
}

// emitBody walks item's blocks in order, routing each one to either Render
// or the class-member section. A Member block doesn't just carry its own
// text to class scope: per spec §4.5 it toggles an open/closed "member
// region" flag, and every block encountered while the region is open —
// whatever its own kind — is promoted to class scope instead of Render.
// Regions flip open/closed on each successive Member block; they never
// nest, so a single bool tracks the state.
func (g *generator) emitBody() {
	inMemberRegion := false
	for _, blk := range g.item.Blocks {
		switch blk.Kind {
		case block.Directive:
			continue

		case block.Member:
			// The Member block's own text is verbatim Go source (helper
			// methods, extra fields) dropped in at class scope, unwrapped.
			g.member.WriteString(blk.Text)
			g.member.WriteString("\n")
			inMemberRegion = !inMemberRegion

		case block.Text:
			text := strconv.Quote(blk.Text)
			g.emitContentLine(blk, fmt.Sprintf("t.Write(%s)\n", text), inMemberRegion)

		case block.Expression:
			expr := strings.TrimSpace(blk.Text)
			g.emitContentLine(blk, fmt.Sprintf("t.Write(%s)\n", expr), inMemberRegion)

		case block.Statement:
			stmt := strings.TrimSpace(blk.Text)
			g.emitContentLine(blk, stmt+"\n", inMemberRegion)
		}
	}
}

// emitContentLine appends code, with an optional //line pragma, to the
// member builder when a member region is open and to the render builder
// otherwise.
func (g *generator) emitContentLine(blk block.Block, code string, inMemberRegion bool) {
	dest := &g.render
	if inMemberRegion {
		dest = &g.member
	}
	if g.opts.DebugLineNumbers {
		fmt.Fprintf(dest, "\t//line %s:%d\n", blk.Name, blk.StartLine)
	}
	dest.WriteString("\t" + code)
}

func packageName(namespace string) string {
	name := bundle.SanitizeIdentifier(namespace)
	if name == "" {
		return "generated"
	}
	return strings.ToLower(name)
}
