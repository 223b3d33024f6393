package logging

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that records every entry, down to Trace, for
// assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a recording logger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns every recorded entry.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// Entries returns the entries at level whose message contains msg.
func (t *TestLogger) Entries(level zapcore.Level, msg string) []observer.LoggedEntry {
	return t.observed.FilterLevelExact(level).FilterMessageSnippet(msg).All()
}

// FilterMessage returns entries with exactly this message.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if len(t.Entries(level, msg)) == 0 {
		tb.Errorf("no %v entry containing %q; recorded: %v", level, msg, t.messages())
	}
}

// AssertNotLogged fails tb if any entry at level contains msg.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if n := len(t.Entries(level, msg)); n > 0 {
		tb.Errorf("%d unexpected %v entries containing %q", n, level, msg)
	}
}

// AssertField fails tb unless an entry with message msg carries key=want.
// Values compare as ContextMap renders them, so integers arrive as int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		if got, ok := entry.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, want)
}

// AssertCorrelated fails tb unless an entry with message msg carries both
// correlation fields added by ContextFields.
func (t *TestLogger) AssertCorrelated(tb testing.TB, msg, requestID, cartKey string) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		fields := entry.ContextMap()
		if fields["request.id"] == requestID && fields["cart.key"] == cartKey {
			return
		}
	}
	tb.Errorf("no %q entry with request.id=%s cart.key=%s", msg, requestID, cartKey)
}

func (t *TestLogger) messages() []string {
	all := t.observed.All()
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.Message
	}
	return out
}
