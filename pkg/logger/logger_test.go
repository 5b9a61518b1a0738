package logger

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{Level: level, Output: &buf})
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(WARN)

	l.Infof("quiet %d", 1)
	l.Debugf("quieter")
	if buf.Len() != 0 {
		t.Errorf("Expected no output below WARN, got %q", buf.String())
	}

	l.Warnf("window %s", "stalled")
	if !strings.Contains(buf.String(), "window stalled") {
		t.Errorf("Expected formatted warning, got %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newTestLogger(INFO)

	l.Debugf("hidden")
	l.SetLevel(DEBUG)
	l.Debugf("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Debug message logged before level change")
	}
	if !strings.Contains(out, "visible") {
		t.Error("Debug message missing after level change")
	}
}

func TestSetOutput(t *testing.T) {
	l, first := newTestLogger(INFO)
	var second bytes.Buffer

	l.SetOutput(&second)
	l.Infof("moved")

	if first.Len() != 0 {
		t.Errorf("Old output still written: %q", first.String())
	}
	if !strings.Contains(second.String(), "moved") {
		t.Errorf("Expected message in new output, got %q", second.String())
	}
}

func TestPrefixAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: INFO, Output: &buf, Prefix: "processor"})

	l.Infof("started")
	if !strings.Contains(buf.String(), "processor") {
		t.Errorf("Expected component in output, got %q", buf.String())
	}
}

func TestFatalExits(t *testing.T) {
	l, buf := newTestLogger(INFO)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatalf("sensor %s", "gone")
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(buf.String(), "sensor gone") {
		t.Errorf("Expected fatal message, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level LogLevel
		ok    bool
	}{
		{"debug", DEBUG, true},
		{"INFO", INFO, true},
		{" warning ", WARN, true},
		{"error", ERROR, true},
		{"fatal", FATAL, true},
		{"", INFO, false},
		{"verbose", INFO, false},
	}

	for _, tt := range tests {
		level, ok := ParseLevel(tt.in)
		if level != tt.level || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), expected (%v, %v)", tt.in, level, ok, tt.level, tt.ok)
		}
	}
}
