// Package config loads uf2flash's runtime configuration from a .env file
// in the project root, overridden by environment variables, following the
// teacher's lazy-singleton DeviceConfig pattern.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the settings uf2flash's CLI and daemon read at startup.
type Config struct {
	LogLevel     string
	USBTimeout   time.Duration
	DefaultBoard string
	MonitorAddr  string
}

var (
	loaded    *Config
	wasLoaded bool
)

// Load reads .env from the project root (if present) then applies
// environment variable overrides, caching the result for subsequent
// calls.
func Load() (*Config, error) {
	if loaded != nil && wasLoaded {
		return loaded, nil
	}

	cfg := &Config{
		LogLevel:    "info",
		USBTimeout:  10 * time.Second,
		MonitorAddr: "127.0.0.1:8787",
	}

	projectRoot := findProjectRoot()
	envPath := filepath.Join(projectRoot, ".env")

	data, err := os.ReadFile(envPath)
	if err == nil {
		parseEnvFile(string(data), cfg)
	}

	if v := os.Getenv("UF2FLASH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("UF2FLASH_USB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.USBTimeout = d
		}
	}
	if v := os.Getenv("UF2FLASH_DEFAULT_BOARD"); v != "" {
		cfg.DefaultBoard = v
	}
	if v := os.Getenv("UF2FLASH_MONITOR_ADDR"); v != "" {
		cfg.MonitorAddr = v
	}

	loaded = cfg
	wasLoaded = true
	return cfg, nil
}

func parseEnvFile(content string, cfg *Config) {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "UF2FLASH_LOG_LEVEL":
			cfg.LogLevel = value
		case "UF2FLASH_USB_TIMEOUT":
			if d, err := time.ParseDuration(value); err == nil {
				cfg.USBTimeout = d
			}
		case "UF2FLASH_DEFAULT_BOARD":
			cfg.DefaultBoard = value
		case "UF2FLASH_MONITOR_ADDR":
			cfg.MonitorAddr = value
		}
	}
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	// First check CWD for .env file
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	// Then walk up looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
