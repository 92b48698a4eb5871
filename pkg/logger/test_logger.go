package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures log entries in memory so tests can assert on them.
type TestLogger struct {
	mu      sync.Mutex
	entries []Entry
	zl      *zerolog.Logger
}

// Entry is one captured log call.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Err     error
}

// NewTestLogger creates a logger that records every entry instead of
// writing it anywhere.
func NewTestLogger() *TestLogger {
	nop := zerolog.Nop()
	return &TestLogger{zl: &nop}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Message: msg, Fields: fields, Err: err})
}

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil, nil) }
func (l *TestLogger) Fatal(msg string) { l.record("FATAL", msg, nil, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("DEBUG", msg, fields, nil)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("INFO", msg, fields, nil)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("WARN", msg, fields, nil)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("ERROR", msg, fields, nil)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.record("FATAL", msg, fields, nil)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return &testContext{parent: l, fields: map[string]interface{}{key: value}}
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return &testContext{parent: l, fields: fields}
}

func (l *TestLogger) WithError(err error) Logger {
	return &testContext{parent: l, err: err}
}

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}

func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return l.zl
}

// Entries returns a copy of every captured entry.
func (l *TestLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesAt returns the captured entries for one level.
func (l *TestLogger) EntriesAt(level string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether an entry with exactly this message was logged.
func (l *TestLogger) HasMessage(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Message == text {
			return true
		}
	}
	return false
}

// HasMessageContaining reports whether any entry's message contains the
// given substring.
func (l *TestLogger) HasMessageContaining(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// HasError reports whether anything was logged at ERROR level.
func (l *TestLogger) HasError() bool {
	return len(l.EntriesAt("ERROR")) > 0
}

// Clear drops all captured entries.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// String renders the captured entries, one per line.
func (l *TestLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	for _, e := range l.entries {
		fmt.Fprintf(&b, "[%s] %s", e.Level, e.Message)
		if len(e.Fields) > 0 {
			fmt.Fprintf(&b, " fields=%v", e.Fields)
		}
		if e.Err != nil {
			fmt.Fprintf(&b, " error=%v", e.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// testContext carries fields and an error attached via the With* methods.
// All writes still land in the parent TestLogger.
type testContext struct {
	parent *TestLogger
	fields map[string]interface{}
	err    error
}

func (c *testContext) Debug(msg string) { c.parent.record("DEBUG", msg, c.fields, c.err) }
func (c *testContext) Info(msg string)  { c.parent.record("INFO", msg, c.fields, c.err) }
func (c *testContext) Warn(msg string)  { c.parent.record("WARN", msg, c.fields, c.err) }
func (c *testContext) Error(msg string) { c.parent.record("ERROR", msg, c.fields, c.err) }
func (c *testContext) Fatal(msg string) { c.parent.record("FATAL", msg, c.fields, c.err) }

func (c *testContext) DebugWithFields(msg string, fields map[string]interface{}) {
	c.parent.record("DEBUG", msg, c.merged(fields), c.err)
}

func (c *testContext) InfoWithFields(msg string, fields map[string]interface{}) {
	c.parent.record("INFO", msg, c.merged(fields), c.err)
}

func (c *testContext) WarnWithFields(msg string, fields map[string]interface{}) {
	c.parent.record("WARN", msg, c.merged(fields), c.err)
}

func (c *testContext) ErrorWithFields(msg string, fields map[string]interface{}) {
	c.parent.record("ERROR", msg, c.merged(fields), c.err)
}

func (c *testContext) FatalWithFields(msg string, fields map[string]interface{}) {
	c.parent.record("FATAL", msg, c.merged(fields), c.err)
}

func (c *testContext) WithField(key string, value interface{}) Logger {
	return &testContext{parent: c.parent, fields: c.merged(map[string]interface{}{key: value}), err: c.err}
}

func (c *testContext) WithFields(fields map[string]interface{}) Logger {
	return &testContext{parent: c.parent, fields: c.merged(fields), err: c.err}
}

func (c *testContext) WithError(err error) Logger {
	return &testContext{parent: c.parent, fields: c.fields, err: err}
}

func (c *testContext) WithContext(ctx context.Context) Logger {
	return c
}

func (c *testContext) GetZerolog() *zerolog.Logger {
	return c.parent.zl
}

func (c *testContext) merged(additional map[string]interface{}) map[string]interface{} {
	if len(c.fields) == 0 {
		return additional
	}
	out := make(map[string]interface{}, len(c.fields)+len(additional))
	for k, v := range c.fields {
		out[k] = v
	}
	for k, v := range additional {
		out[k] = v
	}
	return out
}
