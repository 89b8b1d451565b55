// Package compile implements the compiler driver: bundle fingerprinting,
// the artifact cache, invocation of the external CodeCompiler, and
// error-context enrichment mapping a host-compiler diagnostic back to the
// originating template source.
package compile

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"plugin"
	"runtime"
	"strings"
	"sync"

	"github.com/cpcf/weftc/bundle"
	"github.com/cpcf/weftc/processors"
	"github.com/cpcf/weftc/write"
)

// Diagnostic is one message reported by the external compiler.
type Diagnostic struct {
	File     string
	Line     int
	Message  string
	IsError  bool
}

// Artifact is the loadable module produced from a bundle's generated
// source, identified by its content Fingerprint.
type Artifact struct {
	Fingerprint string
	ClassNames  []string
	Path        string // non-empty when persisted to disk
	plugin      *plugin.Plugin
}

// Lookup resolves an exported constructor symbol (New<ClassName>) from the
// loaded plugin. Returns an error if the artifact was never loaded through a
// real plugin (e.g. constructed by a test double).
func (a *Artifact) Lookup(symbol string) (plugin.Symbol, error) {
	if a.plugin == nil {
		return nil, fmt.Errorf("artifact %s: no loaded plugin backing this artifact", a.Fingerprint)
	}
	return a.plugin.Lookup(symbol)
}

// LoadArtifact opens a previously persisted plugin found by LocateArtifact
// and wraps it as an Artifact, without invoking the compiler. classNames is
// the set of classes the caller expects the bundle to contain; each must
// export a New<ClassName> constructor or loading fails, since a persisted
// artifact whose exports don't match the current bundle definition is
// unusable and callers should fall back to a fresh compile.
func LoadArtifact(path string, classNames []string) (*Artifact, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("compile: load persisted artifact %s: %w", path, err)
	}
	for _, name := range classNames {
		if _, err := p.Lookup("New" + name); err != nil {
			return nil, fmt.Errorf("compile: persisted artifact %s missing constructor for %s: %w", path, name, err)
		}
	}
	return &Artifact{ClassNames: classNames, Path: path, plugin: p}, nil
}

// Compiler is the external collaborator (spec §6, CodeCompiler) that turns
// generated sources into a loadable Artifact.
type Compiler interface {
	Compile(sources map[string]string, references []string, output string, debug bool) (*Artifact, []Diagnostic, error)
}

// Fingerprint computes the stable bundle-cache key: a BLAKE3 digest over
// the concatenation of every non-included item's generated source, in
// bundle order, separated by an ASCII record separator.
func Fingerprint(items []*bundle.TemplateItem) string {
	h := newHasher()
	sep := []byte{0x1e}
	first := true
	for _, item := range items {
		if item.Included {
			continue
		}
		if !first {
			h.Write(sep)
		}
		first = false
		h.Write([]byte(item.Source))
	}
	return h.SumHex()
}

// ArtifactCache is a process-wide fingerprint-keyed cache of compiled
// artifacts. It mirrors the teacher's TemplateCache double-checked-locking
// shape (spec §5.2 asks for exactly one mutex, not per-key locking): a miss
// holds the write lock for the full compile so two callers racing on the
// same fingerprint never compile twice, while callers with different
// fingerprints still only contend briefly on the map itself between misses.
type ArtifactCache struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	hits      int64
	misses    int64
}

// NewArtifactCache returns an empty cache.
func NewArtifactCache() *ArtifactCache {
	return &ArtifactCache{artifacts: make(map[string]*Artifact)}
}

// GetOrCompile returns the cached artifact for fingerprint, or calls
// compileFn to produce one and caches it. A failed compileFn is never
// cached (spec §9: "neither [cache] should leak on failure").
func (c *ArtifactCache) GetOrCompile(fingerprint string, compileFn func() (*Artifact, error)) (*Artifact, error) {
	c.mu.RLock()
	if a, ok := c.artifacts[fingerprint]; ok {
		c.mu.RUnlock()
		c.recordHit()
		return a, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.artifacts[fingerprint]; ok {
		c.recordHit()
		return a, nil
	}

	c.misses++
	a, err := compileFn()
	if err != nil {
		return nil, err
	}
	c.artifacts[fingerprint] = a
	return a, nil
}

func (c *ArtifactCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

// Stats reports cumulative hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
}

func (c *ArtifactCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}

// GoCompiler is the default Compiler: it formats every generated source
// with goimports, writes them to a build directory, invokes `go build
// -buildmode=plugin`, and loads the result with plugin.Open. Persisted
// artifacts (output != "") are left on disk under LocateArtifact's search
// path; in-memory ones are built into a temp directory that is removed
// after loading (the loaded *plugin.Plugin keeps the code mapped).
type GoCompiler struct {
	// BuildDir overrides where scratch sources are written; empty uses a
	// fresh os.MkdirTemp per compile.
	BuildDir string
	// ModulePath names the module the scratch build directory belongs to,
	// so generated sources' internal imports of this repo's own packages
	// resolve; defaults to the weftc module path.
	ModulePath string
}

// NewGoCompiler returns a GoCompiler with default settings.
func NewGoCompiler() *GoCompiler {
	return &GoCompiler{ModulePath: "github.com/cpcf/weftc"}
}

func (c *GoCompiler) Compile(sources map[string]string, references []string, output string, debug bool) (*Artifact, []Diagnostic, error) {
	if diags := preloadReferences(references); diags != nil {
		return nil, diags, nil
	}

	dir := c.BuildDir
	cleanup := func() {}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "weftc-build-*")
		if err != nil {
			return nil, nil, fmt.Errorf("compile: create build dir: %w", err)
		}
		dir = tmp
		if !debug {
			cleanup = func() { os.RemoveAll(dir) }
		}
	}
	defer cleanup()

	modulePath := c.ModulePath
	if modulePath == "" {
		modulePath = "github.com/cpcf/weftc"
	}
	if err := writeScratchGoMod(dir, modulePath); err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}

	goimports := processors.NewGoImports()
	scratch := write.NewBaseWriter()
	for _, name := range names {
		fname := filepath.Join(dir, sanitizeFileName(name)+"_src.go")
		formatted, err := goimports.ProcessContent(fname, []byte(sources[name]))
		if err != nil {
			return nil, []Diagnostic{{File: name, Line: 1, Message: err.Error(), IsError: true}}, nil
		}
		// Atomic write: a scratch file is either the full, formatted source
		// or absent, never a partial write a stale build could pick up.
		opts := write.WriteOptions{CreateDirs: true, Overwrite: true, Atomic: true}
		if err := scratch.Write(fname, formatted, opts); err != nil {
			return nil, nil, fmt.Errorf("compile: write %s: %w", fname, err)
		}
	}

	outPath := output
	if outPath == "" {
		outPath = filepath.Join(dir, "artifact.so")
	} else if !filepath.IsAbs(outPath) {
		abs, err := filepath.Abs(outPath)
		if err != nil {
			return nil, nil, fmt.Errorf("compile: resolve output path %q: %w", outPath, err)
		}
		outPath = abs
	}

	// cmd.Dir makes the scratch directory the working directory for the
	// build, and "." (rather than the scratch dir's absolute path) is the
	// package argument: passing an absolute path outside GOPATH/the main
	// module while relying on go.mod module resolution is what triggers
	// "directory outside main module or its selected dependencies" — a
	// relative "." package argument, run from inside the scratch module,
	// doesn't have that problem.
	cmd := exec.Command("go", "build", "-buildmode=plugin", "-o", outPath, ".")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, parseGoBuildOutput(string(out)), nil
	}

	p, err := plugin.Open(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("compile: load plugin: %w", err)
	}

	classNames := make([]string, 0, len(sources))
	for name := range sources {
		classNames = append(classNames, name)
	}

	return &Artifact{ClassNames: classNames, Path: outPath, plugin: p}, nil, nil
}

// writeScratchGoMod gives the scratch build directory its own module,
// replacing modulePath with this repo's own on-disk root so generated
// sources' "github.com/cpcf/weftc/runtime" import resolves without
// requiring the scratch directory to live inside this module's tree.
func writeScratchGoMod(dir, modulePath string) error {
	root, err := moduleRootDir()
	if err != nil {
		return fmt.Errorf("compile: locate module root for scratch build: %w", err)
	}

	content := fmt.Sprintf("module weftcgen\n\ngo 1.21\n\nrequire %s v0.0.0\n\nreplace %s => %s\n", modulePath, modulePath, root)

	goModPath := filepath.Join(dir, "go.mod")
	opts := write.WriteOptions{CreateDirs: true, Overwrite: true, Atomic: true}
	if err := write.NewBaseWriter().Write(goModPath, []byte(content), opts); err != nil {
		return fmt.Errorf("compile: write scratch go.mod: %w", err)
	}
	return nil
}

// moduleRootDir finds this module's own root directory (the one holding
// its go.mod) by walking up from this source file's location, so the
// scratch go.mod's replace directive can point back at it regardless of
// where the calling binary was built or installed from.
func moduleRootDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("could not determine caller location")
	}

	dir := filepath.Dir(file)
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod found above %s", file)
		}
		dir = parent
	}
}

// preloadReferences implements spec §4.6 step 2: an
// <#@ assembly name="..." #> directive names an external reference that
// must be resident before the bundle's own build runs. In this Go
// rewrite the only "assembly" shape that exists is a previously
// persisted plugin, so a reference is preloaded by resolving it through
// the same search order LocateArtifact uses for a persisted output and,
// if found on disk, opening it. References that don't resolve to
// anything on disk (a bare name meant for some other host) are silently
// skipped rather than failing the build.
func preloadReferences(references []string) []Diagnostic {
	for _, ref := range references {
		path, ok := LocateArtifact(ref)
		if !ok {
			continue
		}
		if _, err := plugin.Open(path); err != nil {
			return []Diagnostic{{File: ref, Line: 1, Message: fmt.Sprintf("preload assembly reference %q: %v", ref, err), IsError: true}}
		}
	}
	return nil
}

func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ".", "_", " ", "_")
	return replacer.Replace(name)
}

// parseGoBuildOutput turns `go build`'s "file:line: message" lines into
// Diagnostics on a best-effort basis.
func parseGoBuildOutput(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			diags = append(diags, Diagnostic{Message: line, IsError: true})
			continue
		}
		var lineNo int
		fmt.Sscanf(parts[1], "%d", &lineNo)
		diags = append(diags, Diagnostic{File: parts[0], Line: lineNo, Message: strings.TrimSpace(parts[2]), IsError: true})
	}
	return diags
}
