package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	// Root for the whole build workspace; every relative path below hangs
	// off it.
	RootDir string

	ImagesDir      string
	LinuxDir       string
	BusyboxDir     string
	BusyboxConfig  string
	BoardDir       string
	InitramfsRoot  string
	InitramfsCpio  string
	LogDir         string
	MountDir       string
	CommandScript  string
	CpioAppendsDir string

	RunScriptTemplate string

	Distro string
	Jobs   int

	LogLevel         string
	LogFormat        string
	TelemetryEnabled bool
}

func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot determine working directory: %w", err)
	}

	viper.SetDefault("root_dir", cwd)
	viper.SetDefault("images_dir", "images")
	viper.SetDefault("linux_dir", "riscv-linux")
	viper.SetDefault("busybox_dir", "busybox")
	viper.SetDefault("busybox_config", "busybox-config")
	viper.SetDefault("board_dir", "boards/firechip")
	viper.SetDefault("initramfs_root", "initramfsRoot")
	viper.SetDefault("initramfs_cpio", "initramfsRoot.cpio")
	viper.SetDefault("log_dir", "logs")
	viper.SetDefault("mount_dir", "disk-mount")
	viper.SetDefault("command_script", "_command.sh")
	viper.SetDefault("cpio_appends_dir", "cpio-appends")
	viper.SetDefault("run_script_template", "templates/run-command.sh.tpl")
	viper.SetDefault("distro", "br")
	viper.SetDefault("jobs", runtime.NumCPU())
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("telemetry_enabled", false)

	viper.SetEnvPrefix("golem")
	viper.AutomaticEnv()

	root := viper.GetString("root_dir")

	cfg := &Config{
		RootDir:           root,
		ImagesDir:         underRoot(root, viper.GetString("images_dir")),
		LinuxDir:          underRoot(root, viper.GetString("linux_dir")),
		BusyboxDir:        underRoot(root, viper.GetString("busybox_dir")),
		BusyboxConfig:     underRoot(root, viper.GetString("busybox_config")),
		BoardDir:          underRoot(root, viper.GetString("board_dir")),
		InitramfsRoot:     underRoot(root, viper.GetString("initramfs_root")),
		InitramfsCpio:     underRoot(root, viper.GetString("initramfs_cpio")),
		LogDir:            underRoot(root, viper.GetString("log_dir")),
		MountDir:          underRoot(root, viper.GetString("mount_dir")),
		CommandScript:     underRoot(root, viper.GetString("command_script")),
		CpioAppendsDir:    underRoot(root, viper.GetString("cpio_appends_dir")),
		RunScriptTemplate: underRoot(root, viper.GetString("run_script_template")),
		Distro:            viper.GetString("distro"),
		Jobs:              viper.GetInt("jobs"),
		LogLevel:          viper.GetString("log_level"),
		LogFormat:         viper.GetString("log_format"),
		TelemetryEnabled:  viper.GetBool("telemetry_enabled"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// underRoot anchors a relative path at root; absolute paths pass through.
func underRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.LogFormat)
	}

	validDistros := map[string]bool{"br": true, "fedora": true}
	if !validDistros[c.Distro] {
		return fmt.Errorf("invalid distro: %s (valid: br, fedora)", c.Distro)
	}

	return nil
}
