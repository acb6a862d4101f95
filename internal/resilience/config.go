package resilience

import (
	"time"
)

// GovernorConfig tunes the Governor's pacing.
type GovernorConfig struct {
	BaseDelay time.Duration // pause before each call at low volume
	Window    time.Duration // trailing window used to count recent calls
	Cooldown  time.Duration // extra pause after the provider signals a rate limit
}

// DefaultGovernorConfig returns a one-second base delay over a one-minute
// window with a ten-second rate-limit cool-down.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		BaseDelay: time.Second,
		Window:    time.Minute,
		Cooldown:  10 * time.Second,
	}
}

// FromGovernorConfig converts config values to a GovernorConfig. Zero or
// negative values keep the defaults.
func FromGovernorConfig(baseDelayMs, windowSecs, cooldownSecs int) GovernorConfig {
	cfg := DefaultGovernorConfig()
	if baseDelayMs > 0 {
		cfg.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	}
	if windowSecs > 0 {
		cfg.Window = time.Duration(windowSecs) * time.Second
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}
