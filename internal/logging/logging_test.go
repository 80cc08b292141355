package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		opts  Options
		debug bool
	}{
		{Options{}, false},
		{Options{Verbose: true}, true},
		{Options{Development: true}, false},
		{Options{Development: true, Verbose: true}, true},
	}
	for _, c := range cases {
		logger, err := New(c.opts)
		if err != nil {
			t.Fatalf("New(%+v): %v", c.opts, err)
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != c.debug {
			t.Fatalf("New(%+v) debug enabled=%v want %v", c.opts, got, c.debug)
		}
		if !logger.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("info should always be enabled")
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("expected no-op logger")
	}
	logger, _ := New(Options{})
	if OrNop(logger) != logger {
		t.Fatalf("expected logger passed through")
	}
}
