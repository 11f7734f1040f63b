package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvFile_AppliesKnownKeys(t *testing.T) {
	cfg := &Config{LogLevel: "info", USBTimeout: 10 * time.Second}
	content := strings.Join([]string{
		"# comment",
		"UF2FLASH_LOG_LEVEL=debug",
		"UF2FLASH_DEFAULT_BOARD=rp2040",
		"",
		"UF2FLASH_USB_TIMEOUT=5s",
	}, "\n")

	parseEnvFile(content, cfg)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "rp2040", cfg.DefaultBoard)
	assert.Equal(t, 5*time.Second, cfg.USBTimeout)
}

func TestParseEnvFile_IgnoresMalformedLines(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	parseEnvFile("not_a_valid_line\nUF2FLASH_LOG_LEVEL=warn", cfg)
	assert.Equal(t, "warn", cfg.LogLevel)
}
