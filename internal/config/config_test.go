package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Crop.Padding)
	assert.Equal(t, 3, cfg.Capture.Count)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pano.yaml")
	data := []byte(`
server:
  port: 9000
  framing: legacy
capture:
  count: 5
  interval: 250ms
crop:
  padding: 4
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, FramingLegacy, cfg.Server.Framing)
	assert.Equal(t, 5, cfg.Capture.Count)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.Interval)
	assert.Equal(t, 4, cfg.Crop.Padding)
	assert.Equal(t, 3, cfg.Crop.Kernel, "unset fields keep defaults")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PANO_HOST", "127.0.0.1")
	t.Setenv("PANO_PORT", "9100")
	t.Setenv("PANO_DEVICE", "/dev/video2")
	t.Setenv("PANO_FRAMING", "legacy")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "127.0.0.1:9100", cfg.Addr())
	assert.Equal(t, "/dev/video2", cfg.Camera.Device)
	assert.Equal(t, FramingLegacy, cfg.Server.Framing)
}

func TestApplyEnv_BadPort(t *testing.T) {
	t.Setenv("PANO_PORT", "eighty")
	cfg := Default()
	assert.Error(t, cfg.ApplyEnv())
}

func TestValidate_ReportsProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Server.Framing = "xml"
	cfg.Crop.Kernel = 4
	cfg.Output.Format = ".gif"

	errs := cfg.Validate()
	assert.Len(t, errs, 4)
}
