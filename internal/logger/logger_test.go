package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "  INFO  "} {
		assert.True(t, ValidLevel(level), level)
	}
	for _, level := range []string{"", "trace", "verbose"} {
		assert.False(t, ValidLevel(level), level)
	}
}
