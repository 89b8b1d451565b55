package compile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cpcf/weftc/block"
	"github.com/cpcf/weftc/bundle"
)

func TestHashStringDeterministic(t *testing.T) {
	a := HashString("hello")
	b := HashString("hello")
	if a != b {
		t.Fatalf("expected the same input to hash identically, got %q vs %q", a, b)
	}
	if a == HashString("world") {
		t.Fatal("expected different input to hash differently")
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	items := []*bundle.TemplateItem{
		{Name: "a.tt", Source: "package a"},
		{Name: "b.tt", Source: "package b"},
	}
	fp1 := Fingerprint(items)
	fp2 := Fingerprint(items)
	if fp1 != fp2 {
		t.Fatalf("expected deterministic fingerprint, got %q vs %q", fp1, fp2)
	}
}

func TestFingerprintOrderSensitive(t *testing.T) {
	a := &bundle.TemplateItem{Name: "a.tt", Source: "package a"}
	b := &bundle.TemplateItem{Name: "b.tt", Source: "package b"}

	fp1 := Fingerprint([]*bundle.TemplateItem{a, b})
	fp2 := Fingerprint([]*bundle.TemplateItem{b, a})
	if fp1 == fp2 {
		t.Fatal("expected item order to affect the fingerprint")
	}
}

func TestFingerprintSkipsIncludedItems(t *testing.T) {
	main := &bundle.TemplateItem{Name: "main.tt", Source: "package main"}
	included := &bundle.TemplateItem{Name: "partial.tt", Source: "package partial", Included: true}

	withIncluded := Fingerprint([]*bundle.TemplateItem{main, included})
	withoutIncluded := Fingerprint([]*bundle.TemplateItem{main})
	if withIncluded != withoutIncluded {
		t.Fatal("expected included items to not affect the fingerprint")
	}
}

func TestArtifactCacheHitAvoidsRecompile(t *testing.T) {
	cache := NewArtifactCache()
	calls := 0
	compileFn := func() (*Artifact, error) {
		calls++
		return &Artifact{Fingerprint: "fp1"}, nil
	}

	a1, err := cache.GetOrCompile("fp1", compileFn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := cache.GetOrCompile("fp1", compileFn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1 != a2 {
		t.Fatal("expected the same cached artifact instance back")
	}
	if calls != 1 {
		t.Fatalf("expected compileFn called once, got %d", calls)
	}

	stats := cache.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Fatalf("expected 1 miss and 1 hit, got %+v", stats)
	}
}

func TestArtifactCacheDoesNotCacheFailure(t *testing.T) {
	cache := NewArtifactCache()
	wantErr := errors.New("compile failed")
	calls := 0
	compileFn := func() (*Artifact, error) {
		calls++
		if calls == 1 {
			return nil, wantErr
		}
		return &Artifact{Fingerprint: "fp1"}, nil
	}

	_, err := cache.GetOrCompile("fp1", compileFn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the compile error back, got %v", err)
	}

	a, err := cache.GetOrCompile("fp1", compileFn)
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if a == nil {
		t.Fatal("expected a successful artifact on the second attempt")
	}
	if calls != 2 {
		t.Fatalf("expected compileFn retried after a failure, got %d calls", calls)
	}
}

func TestLocateArtifactEmptyName(t *testing.T) {
	if _, ok := LocateArtifact(""); ok {
		t.Fatal("expected LocateArtifact to reject an empty name")
	}
}

func TestLocateArtifactAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.so")
	if err := os.WriteFile(path, []byte("fake"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	got, ok := LocateArtifact(path)
	if !ok || got != path {
		t.Fatalf("expected to locate the absolute path %q, got %q, %v", path, got, ok)
	}
}

func TestLocateArtifactMissingAbsolutePath(t *testing.T) {
	if _, ok := LocateArtifact("/nonexistent/path/widget.so"); ok {
		t.Fatal("expected LocateArtifact to report false for a missing absolute path")
	}
}

func TestEnrichFindsOwningItemAndSnippet(t *testing.T) {
	src := "line1\nline2\nline3\n"
	blocks, err := block.Lex("widget.tt", src)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	item := &bundle.TemplateItem{Name: "widget.tt", Content: src, Blocks: blocks}

	d := Diagnostic{File: "widget_tt_src.go", Line: 1, Message: "boom", IsError: true}
	ce := Enrich([]*bundle.TemplateItem{item}, d)
	if ce.Message != "boom" {
		t.Fatalf("expected message boom, got %q", ce.Message)
	}
	if ce.Snippet != "line1\nline2" {
		t.Fatalf("expected the ±1 line snippet around line 1, got %q", ce.Snippet)
	}
}

func TestEnrichUnknownFileNeverPanics(t *testing.T) {
	items := []*bundle.TemplateItem{{Name: "widget.tt", Content: "hi"}}
	d := Diagnostic{File: "does_not_match_anything.go", Line: 99, Message: "boom"}

	ce := Enrich(items, d)
	if ce == nil {
		t.Fatal("expected a non-nil CompilationError even when nothing matches")
	}
	if ce.Snippet != "" {
		t.Fatalf("expected an empty snippet when no owning item is found, got %q", ce.Snippet)
	}
}

func TestEnrichDetailedWrapsTemplateName(t *testing.T) {
	items := []*bundle.TemplateItem{{Name: "widget.tt", Content: "hi"}}
	d := Diagnostic{File: "widget.tt", Line: 1, Message: "boom"}

	enhanced := EnrichDetailed(items, d)
	if enhanced == nil {
		t.Fatal("expected a non-nil EnhancedError")
	}
}

func TestModuleRootDirFindsThisModulesGoMod(t *testing.T) {
	root, err := moduleRootDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("expected %s/go.mod to exist: %v", root, err)
	}
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("failed to read go.mod: %v", err)
	}
	if !strings.Contains(string(data), "module github.com/cpcf/weftc") {
		t.Fatalf("expected the located go.mod to declare this module, got:\n%s", data)
	}
}

func TestWriteScratchGoModPointsBackAtModuleRoot(t *testing.T) {
	dir := t.TempDir()
	if err := writeScratchGoMod(dir, "github.com/cpcf/weftc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		t.Fatalf("expected a go.mod to be written: %v", err)
	}

	root, err := moduleRootDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "replace github.com/cpcf/weftc => "+root) {
		t.Fatalf("expected the scratch go.mod to replace this module with its own root %q, got:\n%s", root, data)
	}
}

func TestPreloadReferencesReportsFailedOpenAsDiagnostic(t *testing.T) {
	dir := t.TempDir()
	fakeAssembly := filepath.Join(dir, "other.so")
	if err := os.WriteFile(fakeAssembly, []byte("not a real plugin"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	diags := preloadReferences([]string{fakeAssembly})
	if len(diags) != 1 || diags[0].File != fakeAssembly {
		t.Fatalf("expected a diagnostic reporting the failed preload of %q, got %+v", fakeAssembly, diags)
	}
}

func TestPreloadReferencesSkipsUnresolvableReference(t *testing.T) {
	if diags := preloadReferences([]string{"no-such-assembly"}); diags != nil {
		t.Fatalf("expected an unresolvable reference to be skipped without producing a diagnostic, got %+v", diags)
	}
}

func TestPreloadReferencesAcceptsEmptyList(t *testing.T) {
	if diags := preloadReferences(nil); diags != nil {
		t.Fatalf("expected no diagnostics for an empty reference list, got %+v", diags)
	}
}
