package logger

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(&buf, level)
	l.sink.now = func() time.Time { return time.Date(2026, 10, 16, 10, 30, 45, 0, time.UTC) }
	return l, &buf
}

func TestInit(t *testing.T) {
	Init(false)
	assert.Equal(t, LevelWarn, GetLevel())

	Init(true)
	assert.Equal(t, LevelDebug, GetLevel())

	Init(false)
}

func TestSetLevel(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		t.Run(level.String(), func(t *testing.T) {
			SetLevel(level)
			assert.Equal(t, level, GetLevel())
		})
	}
	SetLevel(LevelWarn)
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}

func TestLogger_Format(t *testing.T) {
	l, buf := fixedLogger(LevelDebug)

	l.Info("phase entered", "phase", "BootstrapConfigLive", "attempt", 1)

	assert.Equal(t, "[INFO] 2026-10-16 10:30:45 phase entered attempt=1 phase=BootstrapConfigLive\n", buf.String())
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := fixedLogger(LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[WARN]"))
	assert.True(t, strings.HasPrefix(lines[1], "[ERROR]"))
}

func TestLogger_With(t *testing.T) {
	l, buf := fixedLogger(LevelDebug)

	child := l.With("domain", "example.com")
	grandchild := child.With("run", "abc")

	grandchild.Debug("installing", "component", "nginx")
	child.Debug("detected")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "installing component=nginx domain=example.com run=abc"))
	assert.True(t, strings.HasSuffix(lines[1], "detected domain=example.com"), "child must not see grandchild fields")
}

func TestLogger_OddKeyValues(t *testing.T) {
	l, buf := fixedLogger(LevelDebug)
	l.Info("msg", "dangling")
	assert.True(t, strings.HasSuffix(buf.String(), " msg\n"))
}

func TestGlobalHelpers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelDebug)
	defer func() {
		SetLevel(LevelWarn)
	}()

	Debug("loading %s", "config.yaml")
	Info("state %d", 3)
	Warn("careful")
	Error("failed: %v", errors.New("boom"))
	LogError(nil, "ignored")
	LogError(errors.New("nginx -t failed"), "final config")
	With("domain", "example.com").Info("scoped")

	out := buf.String()
	for _, s := range []string{
		"[DEBUG]", "loading config.yaml",
		"[INFO]", "state 3",
		"[WARN]", "careful",
		"failed: boom",
		"final config: nginx -t failed",
		"scoped domain=example.com",
	} {
		assert.Contains(t, out, s)
	}
	assert.NotContains(t, out, "ignored")
	assert.Same(t, std, Default())
}

func TestConcurrentWrites(t *testing.T) {
	l, buf := fixedLogger(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.With("worker", n).Info("tick")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(buf.String(), "\n"))
}
