package utils

import (
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if !logger.Core().Enabled(-1) {
			t.Error("debug logger should enable debug level")
		}
	})

	t.Run("production mode starts at info", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger.Core().Enabled(-1) {
			t.Error("production logger should not enable debug level")
		}
	})

	t.Run("quiet logger only warns", func(t *testing.T) {
		logger, err := NewQuietLogger()
		if err != nil {
			t.Fatalf("NewQuietLogger error: %v", err)
		}
		if logger.Core().Enabled(0) {
			t.Error("quiet logger should not enable info level")
		}
	})
}
