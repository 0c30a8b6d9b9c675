package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cozy/engine/media"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cozy.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Cozy player", cfg.Window.Title)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, uint32(600), cfg.Window.Height)

	exp, err := cfg.Expectation()
	require.NoError(t, err)
	assert.Equal(t, media.Expectation{Timescale: 1000, Width: 640, Height: 360, Codec: media.CodecAVC}, exp)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
title = "other"

[renderer]
validation = false
clear_color = [0.1, 0.2, 0.3, 1.0]

[media.expect]
codec = "hevc"

[log]
level = "warn"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Window.Title)
	assert.Equal(t, uint32(800), cfg.Window.Width, "untouched keys keep defaults")
	assert.False(t, cfg.Renderer.Validation)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Renderer.ClearColor)
	assert.Equal(t, "warn", cfg.Log.Level)

	exp, err := cfg.Expectation()
	require.NoError(t, err)
	assert.Equal(t, media.CodecHEVC, exp.Codec)
	assert.Equal(t, uint32(1000), exp.Timescale)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":   "[window]\nfullscreen = true\n",
		"zero width":    "[window]\nwidth = 0\n",
		"bad level":     "[log]\nlevel = \"loud\"\n",
		"bad codec":     "[media.expect]\ncodec = \"theora\"\n",
		"broken syntax": "[window\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Window, cfg.Window)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Assets.OverrideDir = "/tmp/cozy-assets"

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	got, err := Load(writeConfig(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
