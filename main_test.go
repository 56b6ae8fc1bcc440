package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idol-vr/internal/config"
)

func TestApplyFlags(t *testing.T) {
	require.NoError(t, flag.Set("model", "https://cdn.example.com/idol.glb"))
	require.NoError(t, flag.Set("audio", ""))

	cfg := config.Default()
	applyFlags(&cfg)

	def := config.Default()
	assert.Equal(t, "https://cdn.example.com/idol.glb", cfg.Model)
	assert.Empty(t, cfg.Audio)
	assert.Equal(t, def.Panorama, cfg.Panorama)
	assert.Equal(t, def.FallbackModel, cfg.FallbackModel)

	// A default value that was never set on the command line is ignored.
	*fallbackModel = "stale.glb"
	cfg = config.Default()
	applyFlags(&cfg)
	assert.Equal(t, def.FallbackModel, cfg.FallbackModel)
	*fallbackModel = ""
}
