package engine

import (
	"log/slog"
	"testing"

	"github.com/cpcf/weftc/compile"
	"github.com/cpcf/weftc/errs"
	"github.com/cpcf/weftc/source"
	wtesting "github.com/cpcf/weftc/testing"
)

func newTestEngine(opts ...Option) *Engine {
	base := []Option{WithArtifactCache(compile.NewArtifactCache())}
	return New(append(base, opts...)...)
}

func TestAddTemplateItemRejectsEmpty(t *testing.T) {
	e := newTestEngine()
	err := e.AddTemplateItem("", "")
	var ae *errs.ArgumentError
	if !engineAsArgumentError(err, &ae) {
		t.Fatalf("expected *errs.ArgumentError, got %T: %v", err, err)
	}
}

func TestAddTemplateItemRejectedAfterProcessing(t *testing.T) {
	e := newTestEngine()
	if err := e.AddTemplateItem("widget.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := e.AddTemplateItem("late.tt", "too late")
	var se *errs.StateError
	if !engineAsStateError(err, &se) {
		t.Fatalf("expected *errs.StateError, got %T: %v", err, err)
	}
}

func TestAddTemplateItemUpdatesExisting(t *testing.T) {
	e := newTestEngine()
	if err := e.AddTemplateItem("widget.tt", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.AddTemplateItem("widget.tt", "v2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item, ok := e.FindItem("widget.tt")
	if !ok {
		t.Fatal("expected widget.tt to be tracked")
	}
	if item.Content != "v2" {
		t.Fatalf("expected content updated to v2, got %q", item.Content)
	}
}

func TestProcessRequiresAtLeastOneItem(t *testing.T) {
	e := newTestEngine()
	err := e.Process()
	var ae *errs.ArgumentError
	if !engineAsArgumentError(err, &ae) {
		t.Fatalf("expected *errs.ArgumentError, got %T: %v", err, err)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	e := newTestEngine()
	if err := e.AddTemplateItem("widget.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("expected the second Process call to be a no-op, got %v", err)
	}
	if e.StatusValue() != Processed {
		t.Fatalf("expected status Processed, got %v", e.StatusValue())
	}
}

func TestProcessUnknownDirectiveFails(t *testing.T) {
	e := newTestEngine()
	if err := e.AddTemplateItem("widget.tt", `<#@ bogus #>`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err == nil {
		t.Fatal("expected an error for an unrecognized directive")
	}
}

func TestProcessAppliesGlobalImports(t *testing.T) {
	e := newTestEngine(WithGlobalImports("strings"))
	if err := e.AddTemplateItem("widget.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item, _ := e.FindItem("widget.tt")
	if !item.HasImport("strings") {
		t.Fatal("expected the global import to be applied to the item")
	}
}

func TestProcessFallsBackToFullNameOnClassNameCollision(t *testing.T) {
	e := newTestEngine()
	if err := e.AddTemplateItem("a/x.tt", "from a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.AddTemplateItem("b/x.tt", "from b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	itemA, _ := e.FindItem("a/x.tt")
	itemB, _ := e.FindItem("b/x.tt")

	if itemA.ClassName == itemB.ClassName {
		t.Fatalf("expected colliding items to fall back to distinct full-name class names, both got %q", itemA.ClassName)
	}
	if itemA.ClassName == "x" || itemB.ClassName == "x" {
		t.Fatalf("expected fallback away from the derived name x, got %q and %q", itemA.ClassName, itemB.ClassName)
	}
}

func TestProcessLeavesNonCollidingClassNamesDerived(t *testing.T) {
	e := newTestEngine()
	if err := e.AddTemplateItem("a/x.tt", "from a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.AddTemplateItem("b/y.tt", "from b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	itemA, _ := e.FindItem("a/x.tt")
	itemB, _ := e.FindItem("b/y.tt")

	if itemA.ClassName != "x" || itemB.ClassName != "y" {
		t.Fatalf("expected derived names x and y preserved when there is no collision, got %q and %q", itemA.ClassName, itemB.ClassName)
	}
}

// TestProcessLogsClassNameCollisionThroughWithLogger exercises WithLogger
// end to end: a real *slog.Logger backed by wtesting.SlogRecorder is wired
// into Engine, and the collision fallback's Warn call is checked as an
// actual captured slog.Record rather than a string match against stdout.
func TestProcessLogsClassNameCollisionThroughWithLogger(t *testing.T) {
	recorder := wtesting.NewSlogRecorder()
	e := newTestEngine(WithLogger(slog.New(recorder)))

	if err := e.AddTemplateItem("a/x.tt", "from a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.AddTemplateItem("b/x.tt", "from b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !recorder.HasMessage("class name collision, falling back to full name") {
		t.Fatal("expected the collision fallback to log through the configured logger")
	}
	if recorder.CountByLevel(slog.LevelWarn) != 2 {
		t.Fatalf("expected one warning per colliding item, got %d", recorder.CountByLevel(slog.LevelWarn))
	}
}

func TestCompileUsesMockCompilerAndFingerprints(t *testing.T) {
	mock := wtesting.NewMockCodeCompiler()
	mock.Artifact = &compile.Artifact{ClassNames: []string{"Widget"}}

	e := newTestEngine(WithCompiler(mock))
	if err := e.AddTemplateItem("widget.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Compile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.StatusValue() != Compiled {
		t.Fatalf("expected status Compiled, got %v", e.StatusValue())
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one compile call, got %d", len(calls))
	}
	if _, ok := calls[0].Sources["widget.tt"]; !ok {
		t.Fatalf("expected sources keyed by item name widget.tt, got keys %v", keysOf(calls[0].Sources))
	}
}

func TestCompileIsIdempotentAndCachesByFingerprint(t *testing.T) {
	mock := wtesting.NewMockCodeCompiler()
	mock.Artifact = &compile.Artifact{ClassNames: []string{"Widget"}}
	cache := compile.NewArtifactCache()

	e := newTestEngine(WithCompiler(mock), WithArtifactCache(cache))
	if err := e.AddTemplateItem("widget.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Compile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Compile(); err != nil {
		t.Fatalf("expected the second Compile call to be a no-op, got %v", err)
	}
	if len(mock.Calls()) != 1 {
		t.Fatalf("expected the compiler invoked exactly once across two Compile() calls, got %d", len(mock.Calls()))
	}
}

func TestCompilePropagatesErrorDiagnostics(t *testing.T) {
	mock := wtesting.NewMockCodeCompiler()
	mock.Diagnostics = []compile.Diagnostic{
		{File: "widget.tt", Line: 1, Message: "syntax error", IsError: true},
	}

	e := newTestEngine(WithCompiler(mock))
	if err := e.AddTemplateItem("widget.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := e.Compile()
	if err == nil {
		t.Fatal("expected an error compiling with an error-level diagnostic")
	}
	if e.StatusValue() == Compiled {
		t.Fatal("expected status to not advance to Compiled on failure")
	}
}

func TestCompileAccumulatesWarningDiagnostics(t *testing.T) {
	mock := wtesting.NewMockCodeCompiler()
	mock.Artifact = &compile.Artifact{ClassNames: []string{"Widget"}}
	mock.Diagnostics = []compile.Diagnostic{
		{File: "widget.tt", Line: 1, Message: "deprecated call", IsError: false},
	}

	e := newTestEngine(WithCompiler(mock))
	if err := e.AddTemplateItem("widget.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Compile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Errors()) != 1 {
		t.Fatalf("expected one accumulated warning, got %d", len(e.Errors()))
	}
}

func TestCreateInstanceAmbiguousWithMultipleClasses(t *testing.T) {
	mock := wtesting.NewMockCodeCompiler()
	mock.Artifact = &compile.Artifact{ClassNames: []string{"A", "B"}}

	e := newTestEngine(WithCompiler(mock))
	if err := e.AddTemplateItem("a.tt", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.AddTemplateItem("b.tt", "world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := e.CreateInstance("")
	var amb *errs.AmbiguityError
	if !engineAsAmbiguityError(err, &amb) {
		t.Fatalf("expected *errs.AmbiguityError with more than one candidate, got %T: %v", err, err)
	}
}

func TestIncludeResolvesAgainstMockSourceLoader(t *testing.T) {
	loader := wtesting.NewMockSourceLoader()
	loader.Add("page.tt/partial.tt", "partial body")

	e := newTestEngine(WithSourceLoader(loader))
	if err := e.AddTemplateItem("page.tt", `before<#@ include name="partial.tt" #>after`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, ok := e.FindItem("page.tt")
	if !ok {
		t.Fatal("expected page.tt to be tracked")
	}
	var sawPartial bool
	for _, blk := range item.Blocks {
		if blk.Text == "partial body" {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Fatal("expected the included partial's text spliced into page.tt's blocks")
	}
}

// TestIncludeResolvesAgainstMemoryFSBackedLoader exercises FSLoader against
// wtesting.MemoryFS rather than testing/fstest.MapFS: MemoryFS is an fs.FS
// so it drops straight into source.NewFSLoader, giving the include path a
// mutable in-memory filesystem test double instead of a static map literal.
func TestIncludeResolvesAgainstMemoryFSBackedLoader(t *testing.T) {
	memFS := wtesting.NewMemoryFS()
	memFS.WriteFile("partial.tt", []byte("partial body"))

	e := newTestEngine(WithSourceLoader(source.NewFSLoader(memFS)))
	if err := e.AddTemplateItem("page.tt", `before<#@ include name="partial.tt" #>after`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Process(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, ok := e.FindItem("page.tt")
	if !ok {
		t.Fatal("expected page.tt to be tracked")
	}
	var sawPartial bool
	for _, blk := range item.Blocks {
		if blk.Text == "partial body" {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Fatal("expected the included partial's text spliced into page.tt's blocks")
	}
}

func engineAsArgumentError(err error, target **errs.ArgumentError) bool {
	ae, ok := err.(*errs.ArgumentError)
	if !ok {
		return false
	}
	*target = ae
	return true
}

func engineAsStateError(err error, target **errs.StateError) bool {
	se, ok := err.(*errs.StateError)
	if !ok {
		return false
	}
	*target = se
	return true
}

func engineAsAmbiguityError(err error, target **errs.AmbiguityError) bool {
	amb, ok := err.(*errs.AmbiguityError)
	if !ok {
		return false
	}
	*target = amb
	return true
}

func keysOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
