// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...Option) initializer style defaults via New().
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PixelID identifies the advertiser account on the platform.
	PixelID string `koanf:"pixel_id"`

	// AccessToken authenticates Conversions API calls.
	AccessToken string `koanf:"access_token"`

	// TestEventCode routes batches to the platform's test-events tool.
	TestEventCode string `koanf:"test_event_code"`

	// APIBase overrides the Conversions API base URL.
	APIBase string `koanf:"api_base"`

	// APITimeoutMS bounds each outbound request.
	APITimeoutMS int `koanf:"api_timeout_ms"`

	// MaxRetries caps delivery attempts on transport failure.
	MaxRetries int `koanf:"max_retries"`

	// RetryDelayMS is the linear backoff base delay.
	RetryDelayMS int `koanf:"retry_delay_ms"`

	// DedupeWindowHours sets the deduplication window.
	DedupeWindowHours int `koanf:"dedupe_window_hours"`

	// SessionTTLHours sets the session inactivity threshold.
	SessionTTLHours int `koanf:"session_ttl_hours"`

	// SweepIntervalMinutes sets how often the background sweeps run.
	SweepIntervalMinutes int `koanf:"sweep_interval_minutes"`

	// ShardCount configures the number of session store partitions.
	ShardCount int `koanf:"shard_count"`

	// Currency is the outbound custom_data currency code.
	Currency string `koanf:"currency"`

	// HashingEnabled toggles identity hashing; disable only for
	// platform test modes.
	HashingEnabled bool `koanf:"hashing_enabled"`

	// EventNameMap overlays custom-to-standard event name mappings.
	EventNameMap map[string]string `koanf:"event_name_map"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		APITimeoutMS:         5_000,
		MaxRetries:           3,
		RetryDelayMS:         1_000,
		DedupeWindowHours:    24,
		SessionTTLHours:      24,
		SweepIntervalMinutes: 10,
		ShardCount:           16,
		Currency:             "BRL",
		HashingEnabled:       true,
	}
}
