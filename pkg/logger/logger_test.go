package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forumscraper/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := ParseLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("ParseLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	for name, logFn := range map[string]func(string){
		"debug": l.Debug,
		"info":  l.Info,
		"warn":  l.Warn,
		"error": l.Error,
	} {
		buf.Reset()
		logFn(name + " message")
		assert.Contains(t, buf.String(), name+" message")
		assert.Contains(t, buf.String(), `"level":"`+name+`"`)
	}
}

func TestFieldChaining(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithField("thread", "https://forum.example.com/t/1").
		WithFields(map[string]interface{}{"page": 3, "saved": true}).
		InfoWithFields("page done", map[string]interface{}{"took": 2 * time.Second})

	out := buf.String()
	assert.Contains(t, out, `"thread":"https://forum.example.com/t/1"`)
	assert.Contains(t, out, `"page":3`)
	assert.Contains(t, out, `"saved":true`)
	assert.Contains(t, out, "page done")
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	parent := bufferLogger(&buf)

	_ = parent.WithField("child", "yes")
	parent.Info("parent only")

	assert.NotContains(t, buf.String(), "child")
}

func TestWithError(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("disk full")).Error("save failed")
	assert.Contains(t, buf.String(), "disk full")
	assert.Contains(t, buf.String(), "save failed")
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())

	Debug("debug message")
	Info("info message")
	WithField("key", "value").Warn("with field")
	WithError(errors.New("x")).Error("with error")
}

func TestTestLoggerCapturesChildren(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("page", 2).WithError(errors.New("404")).Warn("page failed")
	tl.Info("done")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, 2, msgs[0].Fields["page"])
	assert.EqualError(t, msgs[0].Error, "404")
	assert.True(t, tl.HasMessage("done"))
	assert.False(t, tl.HasError())
	assert.True(t, strings.Contains(tl.String(), "[WARN] page failed"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()
	LogRequest(tl, "GET", "https://example.com/a.jpg", 503, time.Second)
	LogItem(tl, 1, "https://example.com/a.jpg", "failed", errors.New("timeout"))
	LogItem(tl, 1, "https://example.com/b.jpg", "saved", nil)

	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
	assert.True(t, tl.HasMessage("Image processed"))
}
