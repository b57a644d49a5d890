package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := &Logger{
		output:     buf,
		level:      level,
		component:  "test",
		fields:     make(map[string]interface{}),
		jsonFormat: true,
	}
	return l, buf
}

func TestLogWritesStructuredJSON(t *testing.T) {
	logger, buf := newBufferLogger(INFO)

	logger.Info("transcript served", "license_id", "lic-1", "cached", true)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "transcript served" {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if entry.Component != "test" {
		t.Errorf("Unexpected component %q", entry.Component)
	}
	if entry.Fields["license_id"] != "lic-1" || entry.Fields["cached"] != true {
		t.Errorf("Unexpected fields %v", entry.Fields)
	}
}

func TestLogFlattensErrorValues(t *testing.T) {
	logger, buf := newBufferLogger(INFO)

	logger.Error("lookup failed", "error", errors.New("connection refused"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if entry.Fields["error"] != "connection refused" {
		t.Errorf("Expected error flattened to its message, got %v", entry.Fields["error"])
	}
}

func TestLogFiltersBelowLevel(t *testing.T) {
	logger, buf := newBufferLogger(WARN)

	logger.Info("should be dropped")
	logger.Debug("also dropped")

	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("Expected warning to be written")
	}
}

func TestWithComponentDoesNotMutateParent(t *testing.T) {
	logger, _ := newBufferLogger(INFO)

	child := logger.WithComponent("gateway").WithField("provider", "supadata")
	if logger.component != "test" {
		t.Errorf("Parent component changed to %q", logger.component)
	}
	if child.component != "gateway" {
		t.Errorf("Unexpected child component %q", child.component)
	}
	if _, ok := logger.fields["provider"]; ok {
		t.Error("Child field leaked into parent")
	}
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input string
		want  Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warning", WARN},
		{"error", ERROR},
		{"garbage", INFO},
	}
	for _, tc := range testCases {
		if got := ParseLevel(tc.input); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestMaskLicenseKey(t *testing.T) {
	if got := MaskLicenseKey("ABCD-EFGH-JKLM-NPQR"); got != "****-****-****-NPQR" {
		t.Errorf("Unexpected mask %q", got)
	}
	if got := MaskLicenseKey("abc"); got != "****" {
		t.Errorf("Short keys must be fully masked, got %q", got)
	}
}
