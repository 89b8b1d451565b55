// Package runtime provides the TemplateRuntime contract (spec §6) that
// every generated template class implements, plus the Instance wrapper the
// engine façade hands back from create_instance.
package runtime

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// VarSpec describes one declared var binding, in declaration order.
type VarSpec struct {
	Name string
	Type string
}

// Renderer is the fixed contract compiled templates satisfy: Initialize is
// a user-extensible hook run before Render, Render performs the actual
// template body and returns the accumulated output.
type Renderer interface {
	Initialize()
	Render() string
}

// Base is embedded into every generated template class. It implements the
// Output/Data/Vars/Write/GetData surface of the TemplateRuntime contract;
// generated Render methods call Write and the typed property accessors
// call GetData.
type Base struct {
	Output *strings.Builder
	Data   map[string]any
	Vars   []VarSpec
}

// NewBase returns a Base ready for use by a freshly constructed instance.
func NewBase() Base {
	return Base{Output: &strings.Builder{}, Data: make(map[string]any)}
}

// Write formats v with fmt's default verb and appends it to Output. This is
// the identity behavior on strings that spec §8's round-trip laws rely on.
func (b *Base) Write(v any) {
	fmt.Fprint(b.Output, v)
}

// String returns the accumulated output.
func (b *Base) String() string {
	return b.Output.String()
}

// Initialize is the default no-op hook; generated classes may not override
// it, in which case this satisfies Renderer.
func (b *Base) Initialize() {}

// BindData assigns one caller-supplied parameter into Data. The engine
// façade calls this once per render invocation before Initialize/Render.
func (b *Base) BindData(key string, value any) {
	b.Data[key] = value
}

// GetData performs a typed lookup in Data, returning the zero value of T if
// the key is absent or holds a value of a different type.
func GetData[T any](b *Base, key string) T {
	var zero T
	v, ok := b.Data[key]
	if !ok {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		return zero
	}
	return typed
}

// Instance binds a Renderer to a caller-visible identity. create_instance
// stamps every instance with a UUID so debug logs for concurrent renders of
// the same class can be correlated.
type Instance struct {
	ID        string
	ClassName string
	Renderer  Renderer
}

// NewInstance wraps r with a fresh identity.
func NewInstance(className string, r Renderer) *Instance {
	return &Instance{ID: uuid.New().String(), ClassName: className, Renderer: r}
}
