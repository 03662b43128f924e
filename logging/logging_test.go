package logging

import (
	"strings"
	"testing"
)

func TestNewWithDest(t *testing.T) {
	SetLogLevel("info")
	var sb strings.Builder
	l := NewWithDest(&sb, "test")
	l.Info("hello")
	out := sb.String()
	if !strings.Contains(out, "test") || !strings.Contains(out, "hello") {
		t.Errorf("log output %q is missing the logger name or message", out)
	}
}

func TestLogLevelFilters(t *testing.T) {
	SetLogLevel("error")
	defer SetLogLevel("info")
	var sb strings.Builder
	l := NewWithDest(&sb, "test")
	l.Debug("quiet")
	l.Info("quiet")
	if sb.Len() != 0 {
		t.Errorf("messages below the log level were written: %q", sb.String())
	}
	l.Error("loud")
	if !strings.Contains(sb.String(), "loud") {
		t.Error("an error message was filtered out")
	}
}
