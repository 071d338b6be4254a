package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := Logf
	SetLogger(func(format string, v ...any) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() {
		Logf = orig
		SetDebug(false)
	})
	return &lines
}

func TestSetLoggerRedirects(t *testing.T) {
	lines := captureLogs(t)
	Logf("bridge: %s", "hello")
	assert.Equal(t, []string{"bridge: hello"}, *lines)
}

func TestSetLoggerNilMutes(t *testing.T) {
	orig := Logf
	t.Cleanup(func() { Logf = orig })

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped %d", 1) })
}

func TestDebugfGatedBySetDebug(t *testing.T) {
	lines := captureLogs(t)

	Debugf("hidden")
	assert.Empty(t, *lines)

	SetDebug(true)
	Debugf("tick %d", 7)
	assert.Equal(t, []string{"tick 7"}, *lines)
}
