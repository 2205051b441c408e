package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// LogCapture records JSON log output so tests can assert on individual
// records. It is safe for concurrent writers.
type LogCapture struct {
	mu  sync.Mutex
	out bytes.Buffer
}

// NewCapture returns a capture and a JSON logger at level that writes to it.
func NewCapture(level slog.Level) (*LogCapture, *slog.Logger) {
	c := &LogCapture{}
	return c, New(c, level, false)
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// String returns everything written so far.
func (c *LogCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

// Records decodes one JSON object per written line.
func (c *LogCapture) Records() ([]map[string]any, error) {
	var records []map[string]any
	for _, line := range strings.Split(c.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Last returns the most recent record whose message is msg.
func (c *LogCapture) Last(msg string) (map[string]any, bool) {
	records, err := c.Records()
	if err != nil {
		return nil, false
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i][slog.MessageKey] == msg {
			return records[i], true
		}
	}
	return nil, false
}
