package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func selectQuery() (string, int64) {
	return "SELECT * FROM transactions WHERE company_id = ?", 3
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, 200*time.Millisecond, gl.slowThreshold)
	assert.True(t, gl.skipNotFound)
}

func TestNewGormLogger_Options(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false))

	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.skipNotFound)
}

func TestGormLogger_LogModeClones(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	changed := gl.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gl.level)
	clone, ok := changed.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, clone.level)
}

func TestGormLogger_MessageLevels(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)

	gl.Info(context.Background(), "migrated %d tables", 4)
	gl.Warn(context.Background(), "connection pool at %d", 90)
	gl.Error(context.Background(), "dial failed")

	logs := recorded.All()
	require.Len(t, logs, 3)
	assert.Equal(t, "migrated 4 tables", logs[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs[2].Level)
}

func TestGormLogger_LevelSuppresses(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Error)

	gl.Info(context.Background(), "not wanted")
	gl.Warn(context.Background(), "not wanted either")

	assert.Empty(t, recorded.All())
}

func TestGormLogger_TraceFailedQuery(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), selectQuery, errors.New("connection reset"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "query failed", logs[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)

	fields := logs[0].ContextMap()
	assert.Equal(t, "SELECT * FROM transactions WHERE company_id = ?", fields["query"])
	assert.Equal(t, int64(3), fields["rows_affected"])
}

func TestGormLogger_TraceMissedLookupIsNotAnError(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), selectQuery, gormlogger.ErrRecordNotFound)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_TraceSlowQuery(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn,
		WithSlowThreshold(time.Nanosecond))

	gl.Trace(context.Background(), time.Now().Add(-time.Second), selectQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "slow query", logs[0].Message)
	assert.Equal(t, time.Nanosecond, logs[0].ContextMap()["threshold"])
}

func TestGormLogger_TraceNormalQueryAtDebug(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)

	gl.Trace(context.Background(), time.Now(), selectQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "query executed", logs[0].Message)
	assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
}

func TestGormLogger_TraceSilent(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), selectQuery, nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_TraceCarriesRequestID(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")

	gl.Trace(ctx, time.Now(), selectQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "req-42", logs[0].ContextMap()["request_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}

func TestGormLoggerImplementsInterface(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)
	var _ gormlogger.Interface = gl
}
