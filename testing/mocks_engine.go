package testing

import (
	"fmt"
	"sync"

	"github.com/cpcf/weftc/compile"
)

// MockSourceLoader is an in-memory source.Loader for tests exercising
// include resolution without touching the filesystem.
type MockSourceLoader struct {
	mu      sync.RWMutex
	content map[string]string
}

func NewMockSourceLoader() *MockSourceLoader {
	return &MockSourceLoader{content: make(map[string]string)}
}

func (m *MockSourceLoader) Add(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[path] = content
}

func (m *MockSourceLoader) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.content[path]
	return ok
}

func (m *MockSourceLoader) Read(path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.content[path]
	if !ok {
		return "", fmt.Errorf("mock source loader: no such path %q", path)
	}
	return c, nil
}

func (m *MockSourceLoader) Resolve(base, relative string) string {
	if base == "" {
		return relative
	}
	return base + "/" + relative
}

// MockCodeCompiler is a compile.Compiler double: it returns whatever
// Artifact/Diagnostics/error were configured, and records every call so
// tests can assert on the sources it was given without invoking `go build`.
type MockCodeCompiler struct {
	mu    sync.Mutex
	calls []MockCompileCall

	Artifact    *compile.Artifact
	Diagnostics []compile.Diagnostic
	Err         error
}

type MockCompileCall struct {
	Sources    map[string]string
	References []string
	Output     string
	Debug      bool
}

func NewMockCodeCompiler() *MockCodeCompiler {
	return &MockCodeCompiler{}
}

func (m *MockCodeCompiler) Compile(sources map[string]string, references []string, output string, debug bool) (*compile.Artifact, []compile.Diagnostic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCompileCall{Sources: sources, References: references, Output: output, Debug: debug})
	if m.Err != nil {
		return nil, m.Diagnostics, m.Err
	}
	return m.Artifact, m.Diagnostics, nil
}

func (m *MockCodeCompiler) Calls() []MockCompileCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCompileCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockCodeEmitter records generated-source calls in tests that substitute
// the codegen package's Generate function with a scripted one, e.g. to test
// engine.Compile's fingerprinting/caching behavior in isolation from real
// Go source generation.
type MockCodeEmitter struct {
	mu    sync.Mutex
	calls []string

	GenerateFunc func(itemName string) (string, error)
}

func NewMockCodeEmitter() *MockCodeEmitter {
	return &MockCodeEmitter{
		GenerateFunc: func(itemName string) (string, error) {
			return fmt.Sprintf("// generated for %s\n", itemName), nil
		},
	}
}

func (m *MockCodeEmitter) Generate(itemName string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, itemName)
	m.mu.Unlock()
	return m.GenerateFunc(itemName)
}

func (m *MockCodeEmitter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
