package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, cwd, cfg.RootDir)
	assert.Equal(t, filepath.Join(cwd, "disk-mount"), cfg.MountDir)
	assert.Equal(t, filepath.Join(cwd, "logs"), cfg.LogDir)
	assert.Equal(t, filepath.Join(cwd, "initramfsRoot"), cfg.InitramfsRoot)
	assert.Equal(t, "br", cfg.Distro)
	assert.Equal(t, runtime.NumCPU(), cfg.Jobs)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestUnderRoot(t *testing.T) {
	assert.Equal(t, "/work/images", underRoot("/work", "images"))
	assert.Equal(t, "/elsewhere/images", underRoot("/work", "/elsewhere/images"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Jobs:      2,
			LogLevel:  "info",
			LogFormat: "text",
			Distro:    "br",
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.Jobs = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.LogLevel = "trace"
	assert.Error(t, c.Validate())

	c = valid()
	c.LogFormat = "xml"
	assert.Error(t, c.Validate())

	c = valid()
	c.Distro = "debian"
	assert.Error(t, c.Validate())
}
