package service

import (
	"github.com/phrazzld/scry-curriculum/internal/config"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
)

// SettingsFromConfig converts the curriculum config section into engine
// settings. Zero values fall back to the engine defaults.
func SettingsFromConfig(cfg config.CurriculumConfig) curriculum.Settings {
	settings := curriculum.DefaultSettings()
	if cfg.MaxAttempts > 0 {
		settings.Retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseBackoff > 0 {
		settings.Retry.BaseDelay = cfg.BaseBackoff
	}
	if cfg.MaxBackoff > 0 {
		settings.Retry.MaxDelay = cfg.MaxBackoff
	}
	if cfg.BreakerThreshold > 0 {
		settings.BreakerThreshold = cfg.BreakerThreshold
	}
	return settings
}
