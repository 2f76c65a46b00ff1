package main

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	if got := logLevel(false); got != slog.LevelWarn {
		t.Errorf("logLevel(false) = %v, want %v", got, slog.LevelWarn)
	}
	if got := logLevel(true); got != slog.LevelDebug {
		t.Errorf("logLevel(true) = %v, want %v", got, slog.LevelDebug)
	}
}
