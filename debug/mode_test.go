package debug

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDebugLevel_String(t *testing.T) {
	tests := []struct {
		level    DebugLevel
		expected string
	}{
		{LevelOff, "OFF"},
		{LevelError, "ERROR"},
		{LevelWarn, "WARN"},
		{LevelInfo, "INFO"},
		{LevelDebug, "DEBUG"},
		{LevelTrace, "TRACE"},
		{DebugLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if result := test.level.String(); result != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestWithLevel(t *testing.T) {
	dm := &DebugMode{}
	opt := WithLevel(LevelDebug)
	opt(dm)

	if dm.level != LevelDebug {
		t.Errorf("Expected level %v, got %v", LevelDebug, dm.level)
	}
}

func TestWithOutput(t *testing.T) {
	var buf bytes.Buffer
	dm := &DebugMode{}
	opt := WithOutput(&buf)
	opt(dm)

	if dm.output != &buf {
		t.Error("Expected output to be set to buffer")
	}
}

func TestNewDebugMode(t *testing.T) {
	dm := NewDebugMode()

	if dm.level != LevelInfo {
		t.Errorf("Expected default level %v, got %v", LevelInfo, dm.level)
	}
	if dm.logger == nil {
		t.Error("Expected logger to be initialized")
	}
	if dm.startTime.IsZero() {
		t.Error("Expected start time to be set")
	}
}

func TestDebugMode_IsEnabled(t *testing.T) {
	tests := []struct {
		modeLevel  DebugLevel
		checkLevel DebugLevel
		expected   bool
	}{
		{LevelOff, LevelError, false},
		{LevelError, LevelError, true},
		{LevelWarn, LevelInfo, false},
		{LevelInfo, LevelInfo, true},
		{LevelDebug, LevelDebug, true},
		{LevelTrace, LevelDebug, true},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%s_vs_%s", test.modeLevel, test.checkLevel), func(t *testing.T) {
			dm := NewDebugMode(WithLevel(test.modeLevel))
			if result := dm.IsEnabled(test.checkLevel); result != test.expected {
				t.Errorf("Expected IsEnabled(%v) = %v for mode level %v, got %v",
					test.checkLevel, test.expected, test.modeLevel, result)
			}
		})
	}
}

func TestDebugMode_SetLevel(t *testing.T) {
	dm := NewDebugMode(WithLevel(LevelInfo))

	if err := dm.SetLevel(LevelDebug); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dm.level != LevelDebug {
		t.Errorf("Expected level to be %v after SetLevel, got %v", LevelDebug, dm.level)
	}
	if !dm.IsEnabled(LevelDebug) {
		t.Error("Expected debug level to be enabled after SetLevel")
	}

	if err := dm.SetLevel(DebugLevel(999)); err == nil {
		t.Error("Expected an error for an invalid debug level")
	}
}

func TestDebugMode_LoggingMethods(t *testing.T) {
	tests := []struct {
		name         string
		level        DebugLevel
		logFunc      func(*DebugMode)
		expectOutput bool
	}{
		{"Error at Error level", LevelError, func(dm *DebugMode) { dm.Error("test error") }, true},
		{"Error at Off level", LevelOff, func(dm *DebugMode) { dm.Error("test error") }, false},
		{"Warn at Warn level", LevelWarn, func(dm *DebugMode) { dm.Warn("test warning") }, true},
		{"Info at Info level", LevelInfo, func(dm *DebugMode) { dm.Info("test info") }, true},
		{"Debug at Info level", LevelInfo, func(dm *DebugMode) { dm.Debug("test debug") }, false},
		{"Trace at Trace level", LevelTrace, func(dm *DebugMode) { dm.Trace("test trace") }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			dm := NewDebugMode(WithLevel(test.level), WithOutput(&buf))
			test.logFunc(dm)

			hasOutput := buf.Len() > 0
			if hasOutput != test.expectOutput {
				t.Errorf("Expected output=%v, got output=%v", test.expectOutput, hasOutput)
			}
			if test.expectOutput && strings.Contains(test.name, "Trace") && !strings.Contains(buf.String(), "[TRACE]") {
				t.Error("Expected trace output to contain [TRACE] prefix")
			}
		})
	}
}

func TestDebugMode_LogCompileAttempt(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelDebug), WithOutput(&buf))

	dm.LogCompileAttempt("abc123", 3, 250*time.Millisecond)

	output := buf.String()
	if !strings.Contains(output, "compile attempt") {
		t.Error("Expected output to contain 'compile attempt'")
	}
	if !strings.Contains(output, "abc123") {
		t.Error("Expected output to contain the fingerprint")
	}
	if !strings.Contains(output, "250ms") {
		t.Error("Expected output to contain the duration")
	}
}

func TestDebugMode_LogArtifactCacheEvent(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelDebug), WithOutput(&buf))

	dm.LogArtifactCacheEvent("fp1", true)
	if !strings.Contains(buf.String(), "artifact cache hit") {
		t.Error("Expected output to record a cache hit")
	}

	buf.Reset()
	dm.LogArtifactCacheEvent("fp2", false)
	if !strings.Contains(buf.String(), "artifact cache miss") {
		t.Error("Expected output to record a cache miss")
	}
}

func TestDebugMode_LogRenderExecution(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelDebug), WithOutput(&buf))

	dm.LogRenderExecution("Widget", "inst-1", 10*time.Millisecond)

	output := buf.String()
	if !strings.Contains(output, "render executed") {
		t.Error("Expected output to contain 'render executed'")
	}
	if !strings.Contains(output, "Widget") || !strings.Contains(output, "inst-1") {
		t.Error("Expected output to contain class and instance identifiers")
	}
}

func TestDebugMode_LogRenderDataRedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelTrace), WithOutput(&buf))

	dm.LogRenderData("Widget", map[string]any{"name": "Ada", "apiKey": "shh"})

	output := buf.String()
	if !strings.Contains(output, "[TRACE]") {
		t.Error("Expected output to contain [TRACE] prefix")
	}
	if !strings.Contains(output, "Ada") {
		t.Error("Expected non-sensitive fields to be logged as-is")
	}
	if strings.Contains(output, "shh") {
		t.Error("Expected the apiKey value to be redacted")
	}
	if !strings.Contains(output, "REDACTED") {
		t.Error("Expected a redaction marker in place of the apiKey value")
	}
}

func TestIsSensitiveFieldName(t *testing.T) {
	cases := map[string]bool{
		"password":     true,
		"apiKey":       true,
		"api_key":      true,
		"userPassword": true,
		"name":         false,
		"count":        false,
	}
	for name, want := range cases {
		if got := isSensitiveFieldName(name); got != want {
			t.Errorf("isSensitiveFieldName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDebugMode_LogArtifactWrite(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelDebug), WithOutput(&buf))

	dm.LogArtifactWrite("widgets.so", 4096, 5*time.Millisecond)

	output := buf.String()
	if !strings.Contains(output, "artifact written") {
		t.Error("Expected output to contain 'artifact written'")
	}
	if !strings.Contains(output, "widgets.so") || !strings.Contains(output, "4096") {
		t.Error("Expected output to contain the path and size")
	}
}

func TestDebugMode_LogError(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelError), WithOutput(&buf))

	dm.LogError("compile", fmt.Errorf("permission denied"), map[string]any{"file": "/protected/file.so"})

	output := buf.String()
	if !strings.Contains(output, "operation failed") {
		t.Error("Expected output to contain 'operation failed'")
	}
	if !strings.Contains(output, "compile") {
		t.Error("Expected output to contain the operation name")
	}
	if !strings.Contains(output, "permission denied") {
		t.Error("Expected output to contain the error message")
	}
}

func TestDebugMode_GetStats(t *testing.T) {
	start := time.Now()
	dm := NewDebugMode(WithLevel(LevelDebug), WithProfiling(true), WithMetrics(true))

	time.Sleep(1 * time.Millisecond)
	stats := dm.GetStats()

	if stats.Level != LevelDebug {
		t.Errorf("Expected level %v, got %v", LevelDebug, stats.Level)
	}
	if stats.StartTime.Before(start) {
		t.Error("Expected start time to be after test start")
	}
	if stats.Uptime <= 0 {
		t.Error("Expected positive uptime")
	}
	if !stats.ProfilingEnabled || !stats.MetricsEnabled {
		t.Error("Expected profiling and metrics to be reported as enabled")
	}
}

func TestDebugStats_String(t *testing.T) {
	stats := DebugStats{Level: LevelInfo, Uptime: 5 * time.Minute, ProfilingEnabled: true, MetricsEnabled: true}
	result := stats.String()

	for _, part := range []string{"Debug Stats:", "Level=INFO", "Uptime=5m0s", "Profiling=true", "Metrics=true"} {
		if !strings.Contains(result, part) {
			t.Errorf("Expected stats string to contain %q, got: %s", part, result)
		}
	}
}

func TestDebugMode_NewContext(t *testing.T) {
	dm := NewDebugMode()
	ctx := dm.NewContext("compile")

	if ctx == nil {
		t.Fatal("Expected non-nil debug context")
	}
	if ctx.mode != dm {
		t.Error("Expected context to reference the debug mode")
	}
	if ctx.operation != "compile" {
		t.Errorf("Expected operation compile, got %s", ctx.operation)
	}
	if ctx.attributes == nil {
		t.Error("Expected attributes map to be initialized")
	}
}

func TestDebugContext_SetAndGetAttribute(t *testing.T) {
	dm := NewDebugMode()
	ctx := dm.NewContext("compile")

	ctx.SetAttribute("fingerprint", "abc")
	value, exists := ctx.GetAttribute("fingerprint")
	if !exists || value != "abc" {
		t.Errorf("expected fingerprint=abc, got %v, %v", value, exists)
	}

	if _, exists := ctx.GetAttribute("missing"); exists {
		t.Error("Expected nonexistent attribute to not exist")
	}
}

func TestDebugContext_Complete(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelDebug), WithOutput(&buf))
	ctx := dm.NewContext("compile")

	time.Sleep(1 * time.Millisecond)
	ctx.Complete()

	output := buf.String()
	if !strings.Contains(output, "operation completed") || !strings.Contains(output, "compile") {
		t.Error("Expected completion log with operation name")
	}
}

func TestDebugContext_CompleteWithError(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelError), WithOutput(&buf))
	ctx := dm.NewContext("compile")

	ctx.CompleteWithError(fmt.Errorf("build failed"))

	output := buf.String()
	if !strings.Contains(output, "operation failed") || !strings.Contains(output, "build failed") {
		t.Error("Expected failure log with the wrapped error")
	}
}

func TestDebugMode_ConcurrentAccess(t *testing.T) {
	var buf bytes.Buffer
	dm := NewDebugMode(WithLevel(LevelDebug), WithOutput(&buf))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				dm.Info("concurrent test", "goroutine", id, "operation", j)
				_ = dm.IsEnabled(LevelInfo)
				_ = dm.GetStats()
			}
		}(i)
	}
	wg.Wait()

	if buf.Len() == 0 {
		t.Error("Expected some output from concurrent operations")
	}
}

func TestDebugStats_JSONSerialization(t *testing.T) {
	stats := DebugStats{Level: LevelDebug, StartTime: time.Now(), Uptime: 5 * time.Minute, ProfilingEnabled: true}

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("Failed to marshal stats: %v", err)
	}
	var unmarshaled DebugStats
	if err := json.Unmarshal(data, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if unmarshaled.Level != stats.Level || unmarshaled.ProfilingEnabled != stats.ProfilingEnabled {
		t.Error("Expected stats fields to round-trip through JSON")
	}
}
