package engine

import (
	"log/slog"

	"github.com/cpcf/weftc/compile"
	"github.com/cpcf/weftc/debug"
	"github.com/cpcf/weftc/source"
)

// Option configures an Engine at construction time, following the
// functional-options style used throughout this codebase.
type Option func(*Engine)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithNamespace sets the Go package name generated classes are emitted
// under. Defaults to "generated".
func WithNamespace(namespace string) Option {
	return func(e *Engine) { e.namespace = namespace }
}

// WithAssemblyName sets the persisted-artifact name (spec §6). When set,
// Compile searches for an existing artifact before invoking the compiler
// and persists a freshly compiled one under this name.
func WithAssemblyName(name string) Option {
	return func(e *Engine) { e.assemblyName = name }
}

// WithDefaultBaseClass overrides the base struct embedded by generated
// classes that don't specify `template inherits="..."`.
func WithDefaultBaseClass(name string) Option {
	return func(e *Engine) { e.defaultBaseClass = name }
}

// WithGlobalImports names imports applied to every item in the bundle in
// addition to whatever each item's own `import` directives add (spec §3's
// "optional set applied to every item").
func WithGlobalImports(imports ...string) Option {
	return func(e *Engine) { e.importsGlobal = append(e.importsGlobal, imports...) }
}

// WithSourceLoader supplies the SourceLoader used to resolve include
// directives that don't match an existing bundle item.
func WithSourceLoader(loader source.Loader) Option {
	return func(e *Engine) { e.loader = loader }
}

// WithCompiler overrides the default GoCompiler, mainly for tests that
// substitute a fake CodeCompiler.
func WithCompiler(compiler compile.Compiler) Option {
	return func(e *Engine) { e.compiler = compiler }
}

// WithArtifactCache overrides the process-wide artifact cache; tests use
// this to avoid cross-test pollution of the shared default.
func WithArtifactCache(cache *compile.ArtifactCache) Option {
	return func(e *Engine) { e.artifacts = cache }
}

// WithDebugLineNumbers enables //line pragma emission in generated Render
// bodies (spec §4.5).
func WithDebugLineNumbers(enabled bool) Option {
	return func(e *Engine) { e.debugLines = enabled }
}

// WithDebugMode enables scratch-file retention on compile failure and
// routes compiler diagnostics through debug.EnhancedError (spec §4.6,
// §5's "retained on failure to aid debugging").
func WithDebugMode(mode *debug.DebugMode) Option {
	return func(e *Engine) { e.debugMode = mode }
}
