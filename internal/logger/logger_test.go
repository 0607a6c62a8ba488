package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestPrettyFormatter(t *testing.T) {
	f := &PrettyFormatter{DisableColors: true}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 1, 12, 30, 45, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "transport failed",
		Data:    logrus.Fields{"sid": "abc", "peer": "p1"},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	want := "12:30:45 WARN  transport failed peer=p1 sid=abc\n"
	if string(out) != want {
		t.Errorf("expected %q, got %q", want, string(out))
	}
}

func TestPrettyFormatterColors(t *testing.T) {
	f := &PrettyFormatter{}
	out, _ := f.Format(&logrus.Entry{Level: logrus.ErrorLevel, Message: "boom", Data: logrus.Fields{}})

	if !strings.Contains(string(out), colorRed+"ERROR") {
		t.Errorf("expected red error level, got %q", string(out))
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, logrus.InfoLevel)

	log.Debug("hidden")
	log.Info("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("expected debug entry to be filtered")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected info entry in output")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != logrus.DebugLevel {
		t.Error("expected debug level")
	}
	if ParseLevel("nonsense") != logrus.InfoLevel {
		t.Error("expected fallback to info")
	}
}

func TestPionFactory(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, logrus.DebugLevel)
	log.SetFormatter(&PrettyFormatter{DisableColors: true})

	l := NewPionFactory(log).NewLogger("ice")
	l.Warnf("candidate %d dropped", 3)
	l.Trace("not shown")

	out := buf.String()
	if !strings.Contains(out, "candidate 3 dropped scope=ice") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "not shown") {
		t.Error("expected trace entry to be filtered at debug level")
	}
}
