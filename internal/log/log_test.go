package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLevels(t *testing.T) {
	require.NoError(t, Init(true))
	assert.True(t, GetZapLogger().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(false))
	assert.False(t, GetZapLogger().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, GetZapLogger().Core().Enabled(zapcore.InfoLevel))
}

func TestNamed(t *testing.T) {
	require.NoError(t, Init(false))
	assert.Equal(t, "pipeline", Named("pipeline").Desugar().Name())
	assert.Same(t, GetSugaredLogger(), GetSugaredLogger())
}
