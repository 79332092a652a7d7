package main

import "testing"

func TestNewLogger_AcceptsHumanAndJSONFormats(t *testing.T) {
	for _, format := range []string{"human", "json", "unknown-defaults-to-human"} {
		t.Run(format, func(t *testing.T) {
			logger := newLogger(format)
			if logger == nil {
				t.Fatalf("newLogger(%q) returned nil", format)
			}
			// Must not panic regardless of format.
			logger.Info("test message", map[string]interface{}{"format": format})
		})
	}
}
