package testing

import (
	"context"
	"log/slog"
	"sync"
)

// SlogRecorder is a slog.Handler that keeps every record it receives in
// memory instead of writing it anywhere, so a test can assert on exactly
// what a component logged through its *slog.Logger without parsing text
// output. Wire it in with slog.New(recorder) and pass that logger to
// engine.WithLogger.
type SlogRecorder struct {
	mu      sync.RWMutex
	records []SlogRecordEntry
	attrs   []slog.Attr
	group   string
}

// SlogRecordEntry is one captured log call.
type SlogRecordEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// NewSlogRecorder returns a recorder that accepts records at every level.
func NewSlogRecorder() *SlogRecorder {
	return &SlogRecorder{}
}

func (r *SlogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

func (r *SlogRecorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(r.attrs))
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if r.group != "" {
			key = r.group + "." + key
		}
		attrs[key] = a.Value.Any()
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, SlogRecordEntry{
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   attrs,
	})
	return nil
}

func (r *SlogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SlogRecorder{records: r.records, attrs: append(append([]slog.Attr{}, r.attrs...), attrs...), group: r.group}
}

func (r *SlogRecorder) WithGroup(name string) slog.Handler {
	return &SlogRecorder{records: r.records, attrs: r.attrs, group: name}
}

// Records returns a snapshot of every record captured so far.
func (r *SlogRecorder) Records() []SlogRecordEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SlogRecordEntry, len(r.records))
	copy(out, r.records)
	return out
}

// HasMessage reports whether any captured record's message matches msg.
func (r *SlogRecorder) HasMessage(msg string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Message == msg {
			return true
		}
	}
	return false
}

// CountByLevel returns how many captured records were logged at level.
func (r *SlogRecorder) CountByLevel(level slog.Level) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, rec := range r.records {
		if rec.Level == level {
			count++
		}
	}
	return count
}

// Clear discards every captured record.
func (r *SlogRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
