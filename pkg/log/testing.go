package log

import (
	"bytes"
	"encoding/json"
	"strings"
)

// TestLogger is a zerolog JSON logger writing into memory, for assertions on
// emitted messages and fields.
type TestLogger struct {
	*ZerologLogger
	buffer *bytes.Buffer
}

// NewTestLogger returns a TestLogger capturing messages at or above level, and
// the buffer holding the JSON lines.
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	return &TestLogger{ZerologLogger: NewZerologLogger(buffer, level), buffer: buffer}, buffer
}

func (t *TestLogger) entries() []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(t.buffer.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil {
			out = append(out, entry)
		}
	}
	return out
}

// ContainsMessage reports whether any captured entry has message msg.
func (t *TestLogger) ContainsMessage(msg string) bool {
	for _, e := range t.entries() {
		if e["message"] == msg {
			return true
		}
	}
	return false
}

// ContainsField reports whether any captured entry has key set to value.
// JSON numbers compare as float64.
func (t *TestLogger) ContainsField(key string, value any) bool {
	for _, e := range t.entries() {
		if v, ok := e[key]; ok && v == value {
			return true
		}
	}
	return false
}
