package internal

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

const errorLevel = "ERROR"

var ErrMissingField = errors.New("missing required field")

// Record is a structured log line as emitted by the logback/logstash
// encoders used by the workloads we watch.
type Record struct {
	Level      string `json:"level"`
	Timestamp  string `json:"@timestamp,omitempty"`
	LoggerName string `json:"logger_name,omitempty"`
	Message    string `json:"message"`
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	Hostname   string `json:"HOSTNAME,omitempty"`
}

func (r Record) IsError() bool {
	return r.Level == errorLevel
}

type rawRecord struct {
	Level      *string `json:"level"`
	Timestamp  string  `json:"@timestamp"`
	LoggerName string  `json:"logger_name"`
	Message    *string `json:"message"`
	TraceID    string  `json:"trace_id"`
	SpanID     string  `json:"span_id"`
	Hostname   string  `json:"HOSTNAME"`
}

// ExtractJSON returns the line from its first '{' on, or false when the line
// carries no structured payload.
func ExtractJSON(line string) (string, bool) {
	idx := strings.IndexByte(line, '{')
	if idx < 0 {
		return "", false
	}
	return strings.TrimRight(line[idx:], "\r\n"), true
}

func ParseRecord(data string) (Record, error) {
	var raw rawRecord
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return Record{}, fmt.Errorf("json.Unmarshal() failed: %w", err)
	}
	if raw.Level == nil {
		return Record{}, fmt.Errorf("%w: level", ErrMissingField)
	}
	if raw.Message == nil {
		return Record{}, fmt.Errorf("%w: message", ErrMissingField)
	}
	return Record{
		Level:      *raw.Level,
		Timestamp:  raw.Timestamp,
		LoggerName: raw.LoggerName,
		Message:    *raw.Message,
		TraceID:    raw.TraceID,
		SpanID:     raw.SpanID,
		Hostname:   raw.Hostname,
	}, nil
}
