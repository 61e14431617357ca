package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		want  map[string]zapcore.FieldType
	}{
		{"empty input", []any{}, map[string]zapcore.FieldType{}},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, map[string]zapcore.FieldType{
			"a": zapcore.StringType, "b": zapcore.Int64Type, "c": zapcore.BoolType,
		}},
		{"time type", []any{"t", now}, map[string]zapcore.FieldType{"t": zapcore.TimeType}},
		{"duration", []any{"d", time.Second}, map[string]zapcore.FieldType{"d": zapcore.DurationType}},
		{"error only", []any{err}, map[string]zapcore.FieldType{"error": zapcore.ErrorType}},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, map[string]zapcore.FieldType{
			"msg": zapcore.StringType, "x": zapcore.StringType, "num": zapcore.Int64Type,
		}},
		{"odd number of args", []any{"key1", "val1", "key2"}, map[string]zapcore.FieldType{
			"key1": zapcore.StringType, "arg#2": zapcore.StringType,
		}},
		{"module lease", []any{"module", "CLIMATE", "holders", []string{"app-1"}}, map[string]zapcore.FieldType{
			"module": zapcore.StringType, "holders": zapcore.ArrayMarshalerType,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)

			got := make(map[string]zapcore.FieldType, len(fields))
			for _, f := range fields {
				require.NotEmpty(t, f.Key)
				got[f.Key] = f.Type
			}
			for key, typ := range tt.want {
				assert.Equal(t, typ, got[key], "field %s", key)
			}
		})
	}
}

func TestToFieldsNonStringKey(t *testing.T) {
	fields := toFields(123, "value")
	require.Len(t, fields, 1)
	assert.Contains(t, fields[0].Key, "invalid_key")
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	opts.Level = "loud"
	opts.Format = "xml"
	opts.Rotate.MaxAge = -1
	assert.Len(t, opts.Validate(), 3)
}

func TestRotateSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.log")

	opts := NewOptions()
	opts.Format = "json"
	opts.OutputPaths = []string{RotateScheme + "://" + path}

	logger := NewLogger(opts)
	logger.Info("lease granted", "module", "RADIO", "app", "app-1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"module":"RADIO"`)
}

func TestNewLoggerFallsBackToStderr(t *testing.T) {
	opts := NewOptions()
	opts.OutputPaths = []string{filepath.Join(t.TempDir(), "missing", "dir", "broker.log")}

	logger := NewLogger(opts)
	require.NotNil(t, logger)
	logger.Info("still logging")
	assert.NoError(t, logger.WithName("test").Sync())
}

func TestSyncConsoleOutputs(t *testing.T) {
	for _, out := range []string{"stdout", "stderr"} {
		opts := NewOptions()
		opts.OutputPaths = []string{out}

		logger := NewLogger(opts)
		assert.NoError(t, logger.Sync(), out)
	}
}
