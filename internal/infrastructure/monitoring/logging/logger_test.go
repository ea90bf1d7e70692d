package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/x/y.log"}})
	assert.Error(t, err)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("msg")
		l.Info("msg")
		l.Warn("msg")
		l.Error("msg", Err(errors.New("x")))
		l.With(String("k", "v")).Named("child").Info("msg")
	})
	assert.NoError(t, l.Sync())
}

func TestZapLogger_WritesTypedFields(t *testing.T) {
	l, logs := newObservedLogger()

	l.Info("profile built",
		String("document_type", "Legal Summary"),
		Int("span_count", 3),
		Float64("coverage", 0.25),
		Bool("cached", false),
		Duration("elapsed", 2*time.Millisecond),
		Strings("label_set", []string{"Obligations"}),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "Legal Summary", ctx["document_type"])
	assert.EqualValues(t, 3, ctx["span_count"])
	assert.Equal(t, 0.25, ctx["coverage"])
	assert.Equal(t, false, ctx["cached"])
	assert.Equal(t, 2*time.Millisecond, ctx["elapsed"])
}

func TestZapLogger_LevelsAndChildren(t *testing.T) {
	l, logs := newObservedLogger()
	child := l.Named("worker").With(String("job_id", "j-1"))

	child.Debug("d")
	child.Warn("w")
	child.Error("e", Err(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "worker", entries[2].LoggerName)
	assert.Equal(t, "j-1", entries[2].ContextMap()["job_id"])
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestIsValidLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warn", "error"} {
		assert.True(t, IsValidLevel(lvl), lvl)
	}
	assert.False(t, IsValidLevel("verbose"))
}

func TestSetLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info"})
	require.NoError(t, err)
	assert.True(t, SetLevel(l, "debug"))
	assert.False(t, SetLevel(NewNopLogger(), "debug"))
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, _ := newObservedLogger()
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())
}
