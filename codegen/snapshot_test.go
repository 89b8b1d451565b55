package codegen

import (
	"testing"

	wtesting "github.com/cpcf/weftc/testing"
)

// TestGenerateSnapshotStaysStableAcrossRuns pins Generate's output to a
// golden file via wtesting.SnapshotManager. compile.Fingerprint hashes the
// concatenation of every item's generated source (§4.6), so a
// non-deterministic Generate would thrash the artifact cache on every
// Compile() call; this test catches that by comparing two independent
// generations of the same item against one stored snapshot.
func TestGenerateSnapshotStaysStableAcrossRuns(t *testing.T) {
	src := "hello <#= 1+1 #><#+ func (t *Widget) Helper() string { return \"h\" } #>"

	item1 := lexItem(t, "widget.tt", src)
	first, err := Generate(Options{Namespace: "generated"}, item1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sm := wtesting.NewSnapshotManager(t.TempDir(), true)
	if err := sm.AssertSnapshot("widget_basic", first); err != nil {
		t.Fatalf("unexpected error establishing the snapshot: %v", err)
	}

	item2 := lexItem(t, "widget.tt", src)
	second, err := Generate(Options{Namespace: "generated"}, item2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sm.SetUpdateMode(false)
	if err := sm.AssertSnapshot("widget_basic", second); err != nil {
		t.Fatalf("expected regenerated source to match the recorded snapshot: %v", err)
	}

	summary := sm.GetSummary()
	if summary.TotalTests != 1 {
		t.Fatalf("expected 1 recorded snapshot result, got %d", summary.TotalTests)
	}
	if summary.FailedTests != 0 {
		t.Fatalf("expected no failed snapshot comparisons, got %d", summary.FailedTests)
	}
}
