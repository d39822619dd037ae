// SPDX-License-Identifier: LGPL-3.0-or-later

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{FatalLevel, "FATAL"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	t.Run("LevelFiltering", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, WarnLevel)

		log.Debug("debug message")
		assert.Empty(t, buf.String(), "debug should be filtered at warn level")

		log.Info("info message")
		assert.Empty(t, buf.String(), "info should be filtered at warn level")

		log.Warn("warn message")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		log.Error("error message")
		assert.NotEmpty(t, buf.String())
	})

	t.Run("FieldsAndCaller", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, InfoLevel)

		log.Info("job recorded",
			String("job_id", "job-1"),
			Int("attempt", 2),
			Bool("retry", true),
			Error(errors.New("timeout")),
			Duration("elapsed", 1_000_000_000), // 1 second
		)

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "job recorded", record["message"])
		assert.Equal(t, "job-1", record["job_id"])
		assert.Equal(t, float64(2), record["attempt"])
		assert.Equal(t, true, record["retry"])
		assert.Equal(t, "timeout", record["error"])
		assert.Equal(t, "1s", record["elapsed"])
		assert.NotNil(t, record["timestamp"])
		assert.NotNil(t, record["caller"])
	})

	t.Run("WithFields", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&buf, InfoLevel)

		scoped := base.WithFields(
			String("service", "vap-server"),
			String("version", "1.0.0"),
		)
		scoped.Info("startup")

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "vap-server", record["service"])
		assert.Equal(t, "1.0.0", record["version"])
	})

	t.Run("WithContext", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, InfoLevel)

		ctx := context.WithValue(context.Background(), requestIDKey, "req-123")
		ctx = context.WithValue(ctx, traceIDKey, "trace-456")

		scoped := log.WithContext(ctx)
		scoped.Info("handled request")

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "req-123", record["request_id"])
		assert.Equal(t, "trace-456", record["trace_id"])
	})

	t.Run("SetLevel", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, InfoLevel)

		log.Debug("debug 1")
		assert.Empty(t, buf.String())

		log.SetLevel(DebugLevel)
		log.Debug("debug 2")
		assert.NotEmpty(t, buf.String())
	})

	t.Run("GetLevel", func(t *testing.T) {
		log := NewLogger(&bytes.Buffer{}, InfoLevel)
		assert.Equal(t, InfoLevel, log.GetLevel())

		log.SetLevel(ErrorLevel)
		assert.Equal(t, ErrorLevel, log.GetLevel())
	})

	t.Run("PrettyPrint", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, InfoLevel)
		log.SetPrettyPrint(true)

		log.Info("test message", String("key", "value"))

		output := buf.String()
		assert.Contains(t, output, "{\n")
		assert.Contains(t, output, "  \"")
		assert.Contains(t, output, "\n}")
	})
}

func TestDefaultLogger(t *testing.T) {
	t.Run("Exists", func(t *testing.T) {
		assert.NotNil(t, GetDefaultLogger())
	})

	t.Run("SetDefaultLogger", func(t *testing.T) {
		var buf bytes.Buffer
		SetDefaultLogger(NewLogger(&buf, DebugLevel))

		Debug("debug via package func")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		Info("info via package func")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		Warn("warn via package func")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		ErrorMsg("error via package func")
		assert.NotEmpty(t, buf.String())
	})
}

func TestFieldConstructors(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		f := String("key", "value")
		assert.Equal(t, "key", f.Key)
		assert.Equal(t, "value", f.Value)
	})

	t.Run("Int", func(t *testing.T) {
		f := Int("count", 42)
		assert.Equal(t, "count", f.Key)
		assert.Equal(t, 42, f.Value)
	})

	t.Run("Bool", func(t *testing.T) {
		f := Bool("enabled", true)
		assert.Equal(t, "enabled", f.Key)
		assert.Equal(t, true, f.Value)
	})

	t.Run("Error", func(t *testing.T) {
		f := Error(errors.New("boom"))
		assert.Equal(t, "error", f.Key)
		assert.Equal(t, "boom", f.Value)

		f = Error(nil)
		assert.Equal(t, "error", f.Key)
		assert.Nil(t, f.Value)
	})

	t.Run("Any", func(t *testing.T) {
		type payload struct{ Name string }
		v := payload{Name: "job-1"}
		f := Any("data", v)
		assert.Equal(t, "data", f.Key)
		assert.Equal(t, v, f.Value)
	})
}

func BenchmarkStructuredLogger(b *testing.B) {
	log := NewLogger(&bytes.Buffer{}, InfoLevel)

	b.Run("SimpleLog", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			log.Info("benchmark message")
		}
	})

	b.Run("LogWithFields", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			log.Info("benchmark message",
				String("key1", "value1"),
				Int("key2", 42),
				Bool("key3", true),
			)
		}
	})

	b.Run("FilteredLog", func(b *testing.B) {
		log.SetLevel(ErrorLevel)
		for i := 0; i < b.N; i++ {
			log.Debug("filtered message")
		}
	})
}
