package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no stray .env or
// config file is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	for _, k := range []string{"CONFIG_ENV", "TG_TOKEN", "tg_token", "VOICEBOT_BOT_TOKEN", "VOICEBOT_LOGGING_LEVEL", "VOICEBOT_PATHS_TMP"} {
		t.Setenv(k, "")
	}
	return dir
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "audio_tmp", cfg.Paths.Tmp)
	assert.Equal(t, 2048, cfg.Spectral.FFTSize)
	assert.Equal(t, 256, cfg.Spectral.HopSize)
	assert.Equal(t, 128, cfg.Spectral.NumMels)
	assert.Equal(t, 8000.0, cfg.Spectral.FMax)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Bot.Token)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.Bot.Validate())
}

func TestLoadGuessedFileAndEnv(t *testing.T) {
	dir := inTempDir(t)
	write(t, filepath.Join(dir, "config", "prod", "config.yaml"), `
services:
  segmentation:
    url: http://seg:9000
spectral:
  num_mels: 64
logging:
  level: warn
  format: json
`)
	t.Setenv("CONFIG_ENV", "prod")
	t.Setenv("VOICEBOT_LOGGING_LEVEL", "debug")
	t.Setenv("TG_TOKEN", "123:abc")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://seg:9000", cfg.Services.Segmentation.URL)
	assert.Equal(t, "http://localhost:8002", cfg.Services.Features.URL)
	assert.Equal(t, 64, cfg.Spectral.NumMels)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.NoError(t, cfg.Bot.Validate())
}

func TestExplicitPathWins(t *testing.T) {
	dir := inTempDir(t)
	write(t, filepath.Join(dir, "config", "dev", "config.yaml"), "paths:\n  tmp: from-dev\n")
	explicit := filepath.Join(dir, "other.yaml")
	write(t, explicit, "paths:\n  tmp: from-flag\n")

	cfg, err := Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Paths.Tmp)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	inTempDir(t)
	_, err := Load("nope.yaml")
	assert.Error(t, err)
}

func TestTokenFile(t *testing.T) {
	dir := inTempDir(t)
	write(t, filepath.Join(dir, "voice-bot-token.txt"), "  42:secret\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "42:secret", cfg.Bot.Token)
}

func TestEnvTokenBeatsTokenFile(t *testing.T) {
	dir := inTempDir(t)
	write(t, filepath.Join(dir, "voice-bot-token.txt"), "from-file")
	t.Setenv("tg_token", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Bot.Token)
}

func TestDotEnv(t *testing.T) {
	dir := inTempDir(t)
	write(t, filepath.Join(dir, ".env"), "VOICEBOT_PATHS_TMP=dotenv_tmp\n")
	t.Cleanup(func() { os.Unsetenv("VOICEBOT_PATHS_TMP") })
	os.Unsetenv("VOICEBOT_PATHS_TMP")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv_tmp", cfg.Paths.Tmp)
}

func TestValidate(t *testing.T) {
	inTempDir(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Root)
	}{
		{"bad service url", func(c *Root) { c.Services.Features.URL = "localhost:8002" }},
		{"missing host", func(c *Root) { c.Services.Visualization.URL = "http://" }},
		{"zero timeout", func(c *Root) { c.HTTPTimeout = 0 }},
		{"zero hop", func(c *Root) { c.Spectral.HopSize = 0 }},
		{"inverted band", func(c *Root) { c.Spectral.FMin, c.Spectral.FMax = 9000, 8000 }},
		{"negative rate", func(c *Root) { c.Audio.SampleRate = -1 }},
		{"no ffmpeg", func(c *Root) { c.Audio.FFmpeg = "" }},
		{"no tmp", func(c *Root) { c.Paths.Tmp = "" }},
		{"bad level", func(c *Root) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Root) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDumpMasksToken(t *testing.T) {
	inTempDir(t)
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Bot.Token = "123:abc"

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))

	out := buf.String()
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "123:abc")
	assert.Contains(t, out, "fft_size: 2048")
	assert.Equal(t, "123:abc", cfg.Bot.Token)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 30*time.Second, DurSeconds(30))
	mel := Spectral{FFTSize: 1024, HopSize: 128, NumMels: 40, FMax: 4000}.MelConfig()
	assert.Equal(t, 1024, mel.FFTSize)
	assert.Equal(t, 4000.0, mel.FMax)
}
