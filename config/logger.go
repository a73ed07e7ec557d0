package config

import (
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
)

// NewLogger builds the console logger used by every component
func NewLogger(cfg *Config) arbor.ILogger {
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}

	return arbor.NewLogger().WithConsoleWriter(arbormodels.WriterConfiguration{
		Type:             arbormodels.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}
