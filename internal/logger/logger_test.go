package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env       string
		level     string
		wantLevel zapcore.Level
	}{
		{"prod", "", zapcore.InfoLevel},
		{"dev", "", zapcore.DebugLevel},
		{"local", "warn", zapcore.WarnLevel},
		{"prod", "debug", zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.level)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.wantLevel))
			assert.False(t, l.Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestNewLogger_Errors(t *testing.T) {
	_, err := NewLogger("staging")
	assert.ErrorContains(t, err, "unknown environment")

	_, err = NewLogger("prod", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
