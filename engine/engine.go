// Package engine provides the Engine façade: bundle lifecycle
// (add_template_item/process/compile), instance creation and render
// invocation, plus the two top-level convenience operations
// (ProcessFile/ProcessTemplate) backed by a process-wide, single-flight
// engine cache.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cpcf/weftc/block"
	"github.com/cpcf/weftc/bundle"
	"github.com/cpcf/weftc/codegen"
	"github.com/cpcf/weftc/compile"
	"github.com/cpcf/weftc/debug"
	"github.com/cpcf/weftc/errs"
	"github.com/cpcf/weftc/resolve"
	"github.com/cpcf/weftc/runtime"
	"github.com/cpcf/weftc/source"
	"github.com/cpcf/weftc/state"
)

// Engine is the top-level aggregate described in spec §3: an ordered set
// of TemplateItems compiled together as one artifact, plus the state that
// lifecycle operations mutate.
type Engine struct {
	mu sync.Mutex

	items      []*bundle.TemplateItem
	itemsByKey map[string]*bundle.TemplateItem // lowercased Name -> item

	assemblyReferences []string
	importsGlobal      []string
	assemblyName       string
	namespace          string
	defaultBaseClass   string

	status Status
	errors []error

	artifact *compile.Artifact

	logger     *slog.Logger
	loader     source.Loader
	compiler   compile.Compiler
	resolver   *resolve.Resolver
	debugLines bool
	debugMode  *debug.DebugMode
	artifacts  *compile.ArtifactCache
}

// Status re-exports bundle.Status so callers don't need to import bundle
// just to compare e.Status().
type Status = bundle.Status

const (
	Init      = bundle.Init
	Processed = bundle.Processed
	Compiled  = bundle.Compiled
)

// sharedArtifactCache backs every Engine that doesn't get an explicit one
// via WithArtifactCache; spec §5 requires this cache to be process-wide.
var sharedArtifactCache = compile.NewArtifactCache()

// New constructs an Engine in the Init state.
func New(opts ...Option) *Engine {
	e := &Engine{
		itemsByKey: make(map[string]*bundle.TemplateItem),
		logger:     slog.Default(),
		compiler:   compile.NewGoCompiler(),
		resolver:   resolve.New(),
		artifacts:  sharedArtifactCache,
		namespace:  "generated",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddTemplateItem implements spec §4.7's add_template_item. name and
// content may not both be empty. Fails with StateError once status has
// advanced past Init.
func (e *Engine) AddTemplateItem(name, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if name == "" && content == "" {
		return &errs.ArgumentError{Op: "add_template_item", Message: "name and content cannot both be empty"}
	}
	if e.status >= Processed {
		return &errs.StateError{Op: "add_template_item", Status: e.status.String(), Message: "cannot add items after processing has started"}
	}

	key := strings.ToLower(name)
	if existing, ok := e.itemsByKey[key]; ok {
		existing.Content = content
		existing.Blocks = nil
		return nil
	}

	item := &bundle.TemplateItem{
		Name:      name,
		ClassName: bundle.DeriveClassName(name),
		Content:   content,
	}
	e.addItemLocked(item)

	if e.assemblyName == "" {
		if dir := defaultAssemblyName(name); dir != "" {
			e.assemblyName = dir
		}
	}

	return nil
}

func defaultAssemblyName(name string) string {
	idx := strings.LastIndexAny(name, "/\\")
	if idx <= 0 {
		return ""
	}
	dir := name[:idx]
	if j := strings.LastIndexAny(dir, "/\\"); j != -1 {
		dir = dir[j+1:]
	}
	return dir
}

// Process implements spec §4.7's process(): runs the lexer and directive
// resolver over every item, then advances status to Processed. Idempotent
// after the first success.
func (e *Engine) Process() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processLocked()
}

func (e *Engine) processLocked() error {
	if e.status >= Processed {
		return nil
	}
	if len(e.items) == 0 {
		return &errs.ArgumentError{Op: "process", Message: "at least one template item is required"}
	}
	e.logger.Debug("processing bundle", "items", len(e.items))

	topLevel := make([]*bundle.TemplateItem, len(e.items))
	copy(topLevel, e.items)

	for _, item := range topLevel {
		if item.Blocks == nil && item.Content != "" {
			blocks, err := lexItem(item)
			if err != nil {
				return err
			}
			item.Blocks = blocks
		}
		for _, imp := range e.importsGlobal {
			item.AddImport(imp)
		}
	}

	for _, item := range topLevel {
		if item.Included {
			continue
		}
		if err := e.resolver.Resolve(e, item); err != nil {
			e.logger.Debug("resolve failed", "item", item.Name, "err", err)
			return err
		}
	}

	e.resolveClassNameCollisions()

	e.status = Processed
	return nil
}

// resolveClassNameCollisions implements spec §4.5's collision fallback:
// "the derived name is used unless... two items would collide, in which
// case the full name is used (never renamed silently)". DeriveClassName
// and an explicit `template name=` directive both only ever look at their
// own item, so two items can independently land on the same ClassName;
// this pass runs once every item's directives are resolved and re-derives
// a colliding item's class name from its full Name instead.
func (e *Engine) resolveClassNameCollisions() {
	byName := make(map[string][]*bundle.TemplateItem, len(e.items))
	for _, item := range e.items {
		key := strings.ToLower(item.ClassName)
		byName[key] = append(byName[key], item)
	}

	for _, group := range byName {
		if len(group) < 2 {
			continue
		}
		for _, item := range group {
			item.ClassName = bundle.SanitizeIdentifier(item.Name)
			e.logger.Warn("class name collision, falling back to full name", "name", item.Name, "class", item.ClassName)
		}
	}
}

// Compile implements spec §4.7's compile(): implicitly processes if needed,
// generates Go source for every item, fingerprints the bundle, and either
// reuses a cached artifact or invokes the CodeCompiler. Idempotent.
func (e *Engine) Compile() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileLocked()
}

func (e *Engine) compileLocked() error {
	if e.status >= Compiled {
		return nil
	}
	if e.status < Processed {
		if err := e.processLocked(); err != nil {
			return err
		}
	}

	if persisted, ok := compile.LocateArtifact(e.assemblyName); ok && e.assemblyName != "" {
		if artifact, err := loadPersisted(persisted, e.items); err == nil {
			e.logger.Debug("reusing persisted artifact", "path", persisted)
			e.artifact = artifact
			e.status = Compiled
			return nil
		}
	}

	opts := codegen.Options{
		Namespace:        e.namespace,
		DefaultBaseClass: e.defaultBaseClass,
		DebugLineNumbers: e.debugLines,
	}
	sources := make(map[string]string, len(e.items))
	for _, item := range e.items {
		src, err := codegen.Generate(opts, item)
		if err != nil {
			return err
		}
		// Keyed by the original template name, not ClassName: the compiler
		// driver's error-context enrichment matches a reported file name
		// back to the owning item via this key (see compile.Enrich).
		sources[item.Name] = src
	}

	fingerprint := compile.Fingerprint(e.items)

	output := ""
	if e.assemblyName != "" {
		output = e.assemblyName + ".so"
	}

	compiledFresh := false
	start := time.Now()
	artifact, err := e.artifacts.GetOrCompile(fingerprint, func() (*compile.Artifact, error) {
		compiledFresh = true
		e.logger.Debug("compiling bundle", "fingerprint", fingerprint, "items", len(sources))
		artifact, diags, err := e.compiler.Compile(sources, e.assemblyReferences, output, e.debugMode != nil)
		if err != nil {
			if e.debugMode != nil {
				return nil, e.enrichCompileError(err)
			}
			return nil, err
		}
		for _, d := range diags {
			if d.IsError {
				if e.debugMode != nil {
					return nil, e.enrichCompileError(compile.Enrich(e.items, d))
				}
				return nil, compile.Enrich(e.items, d)
			}
			e.errors = append(e.errors, compile.Enrich(e.items, d))
		}
		artifact.Fingerprint = fingerprint
		return artifact, nil
	})
	if e.debugMode != nil {
		e.debugMode.LogArtifactCacheEvent(fingerprint, !compiledFresh)
		e.debugMode.LogCompileAttempt(fingerprint, len(sources), time.Since(start))
	}
	if err != nil {
		return err
	}

	if output != "" {
		e.trackArtifact(output, fingerprint)
		if e.debugMode != nil {
			size := 0
			if info, statErr := os.Stat(output); statErr == nil {
				size = int(info.Size())
			}
			e.debugMode.LogArtifactWrite(output, size, time.Since(start))
		}
	}

	e.artifact = artifact
	e.status = Compiled
	return nil
}

// enrichCompileError wraps a compile-time diagnostic in a
// debug.EnhancedError carrying the template/line context and
// SuggestTemplateErrors' best-effort fix suggestions, logging it through
// the debug mode before returning it as the flat error the caller expects.
func (e *Engine) enrichCompileError(err error) error {
	d := compile.Diagnostic{Message: err.Error()}
	if ce, ok := err.(*errs.CompilationError); ok {
		d = compile.Diagnostic{File: ce.File, Line: ce.Line, Message: ce.Message, IsError: true}
	}
	enhanced := compile.EnrichDetailed(e.items, d).WithSuggestedFixes()
	e.debugMode.LogError("compile", err, map[string]any{"suggestions": enhanced.GetContext().Suggestions})
	return err
}

// trackArtifact records a persisted .so in the manifest kept alongside it,
// so a directory of assemblies built across many Engine runs can later be
// audited for orphans (an item renamed or dropped from the bundle leaves its
// old artifact untracked) via state.CleanupManager. Failure is logged, not
// propagated: manifest bookkeeping never blocks a successful compile.
func (e *Engine) trackArtifact(output, fingerprint string) {
	dir := filepath.Dir(output)
	tracker := state.NewStateTracker(dir, state.TrackingModeEnabled)
	metadata := map[string]string{"fingerprint": fingerprint}
	templatePath := ""
	if len(e.items) > 0 {
		templatePath = e.items[0].Name
	}
	if err := tracker.TrackFile(filepath.Base(output), templatePath, metadata); err != nil {
		e.logger.Warn("artifact manifest update failed", "path", output, "err", err)
	}
}

func loadPersisted(path string, items []*bundle.TemplateItem) (*compile.Artifact, error) {
	classNames := make([]string, 0, len(items))
	for _, item := range items {
		if !item.Included {
			classNames = append(classNames, item.ClassName)
		}
	}
	return compile.LoadArtifact(path, classNames)
}

// CreateInstance implements spec §4.7's create_instance. An empty className
// picks the sole compiled class if there is exactly one; otherwise it is an
// AmbiguityError.
func (e *Engine) CreateInstance(className string) (*runtime.Instance, error) {
	e.mu.Lock()
	if e.status < Compiled {
		if err := e.compileLocked(); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}
	artifact := e.artifact
	candidates := e.compiledClassNames()
	e.mu.Unlock()

	if className == "" {
		if len(candidates) != 1 {
			return nil, &errs.AmbiguityError{Candidates: candidates}
		}
		className = candidates[0]
	}

	sym, err := artifact.Lookup("New" + className)
	if err != nil {
		return nil, &errs.AmbiguityError{Candidates: candidates}
	}
	ctor, ok := sym.(func() runtime.Renderer)
	if !ok {
		return nil, fmt.Errorf("create_instance: constructor for %s has unexpected signature", className)
	}

	return runtime.NewInstance(className, ctor()), nil
}

func (e *Engine) compiledClassNames() []string {
	var names []string
	for _, item := range e.items {
		if !item.Included {
			names = append(names, item.ClassName)
		}
	}
	return names
}

// Render implements spec §4.7's render(): creates an instance, binds data,
// runs Initialize then Render, and wraps any failure as ExecutionError.
func (e *Engine) Render(className string, data map[string]any) (out string, err error) {
	inst, err := e.CreateInstance(className)
	if err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &errs.ExecutionError{ClassName: inst.ClassName, Err: fmt.Errorf("panic: %v", r)}
		}
		if e.debugMode != nil {
			if err != nil {
				e.debugMode.LogError("render", err, map[string]any{"class": inst.ClassName, "instance": inst.ID})
			} else {
				e.debugMode.LogRenderExecution(inst.ClassName, inst.ID, time.Since(start))
			}
		}
	}()

	if e.debugMode != nil {
		e.debugMode.LogRenderData(inst.ClassName, data)
	}

	if base, ok := inst.Renderer.(dataBinder); ok {
		for k, v := range data {
			base.BindData(k, v)
		}
	}

	inst.Renderer.Initialize()
	return inst.Renderer.Render(), nil
}

// dataBinder lets Render bind caller data without importing the concrete
// generated-class type; runtime.Base implements it.
type dataBinder interface {
	BindData(key string, value any)
}

// Errors returns diagnostics accumulated as warnings during compile; they
// do not by themselves indicate failure.
func (e *Engine) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.errors))
	copy(out, e.errors)
	return out
}

// StatusValue returns the engine's current lifecycle phase.
func (e *Engine) StatusValue() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// CleanupOrphanedArtifacts removes persisted .so files under dir that the
// manifest written by trackArtifact no longer references — leftovers from a
// bundle whose assembly name or item set changed across runs.
func CleanupOrphanedArtifacts(dir string, mode state.CleanupMode) (*state.CleanupSummary, error) {
	tracker := state.NewStateTracker(dir, state.TrackingModeEnabled)
	return state.NewCleanupManager(tracker, state.WithCleanupMode(mode)).CleanupOrphans()
}

// --- resolve.Host implementation ---

func (e *Engine) FindItem(name string) (*bundle.TemplateItem, bool) {
	item, ok := e.itemsByKey[strings.ToLower(name)]
	return item, ok
}

func (e *Engine) AddItem(item *bundle.TemplateItem) {
	e.addItemLocked(item)
}

func (e *Engine) addItemLocked(item *bundle.TemplateItem) {
	key := strings.ToLower(item.Name)
	if _, exists := e.itemsByKey[key]; exists {
		return
	}
	e.items = append(e.items, item)
	e.itemsByKey[key] = item
}

func (e *Engine) AddAssemblyReference(name string) {
	for _, existing := range e.assemblyReferences {
		if existing == name {
			return
		}
	}
	e.assemblyReferences = append(e.assemblyReferences, name)
}

func (e *Engine) Loader() source.Loader {
	return e.loader
}

func lexItem(item *bundle.TemplateItem) ([]block.Block, error) {
	return block.Lex(item.Name, item.Content)
}
