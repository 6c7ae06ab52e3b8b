// Package config loads service configuration for the tracker.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied when a field is omitted from the config file.
const (
	defaultOSRMBaseURL          = "https://router.project-osrm.org"
	defaultRoutingTimeout       = 5 * time.Second
	defaultUrgencySeconds       = 600.0
	defaultMinPlaybackRate      = 0.5
	defaultMaxPlaybackRate      = 8.0
	defaultSnapThreshold        = 4.0
	defaultHistoryWindowHours   = 24
	defaultDispatchBatchLimit   = 10
	defaultTickInterval         = 50 * time.Millisecond
	defaultLiveRetentionDays    = 30
	defaultMaxConfigFileSize    = 1 * 1024 * 1024
	defaultRoutingTimeoutString = "5s"
)

// Config holds tunable service parameters. All fields are pointers so a
// partial JSON file only overrides what it names; getters supply defaults.
type Config struct {
	// Routing params
	OSRMBaseURL    *string `json:"osrm_base_url,omitempty"`
	RoutingTimeout *string `json:"routing_timeout,omitempty"` // duration string like "5s"

	// Dispatch params
	UrgencySeconds     *float64 `json:"urgency_seconds,omitempty"`
	DispatchBatchLimit *int     `json:"dispatch_batch_limit,omitempty"`

	// Playback params
	MinPlaybackRate *float64 `json:"min_playback_rate,omitempty"`
	MaxPlaybackRate *float64 `json:"max_playback_rate,omitempty"`
	SnapThreshold   *float64 `json:"snap_threshold,omitempty"`
	TickInterval    *string  `json:"tick_interval,omitempty"` // duration string like "50ms"

	// History params
	HistoryWindowHours *int `json:"history_window_hours,omitempty"`
	LiveRetentionDays  *int `json:"live_retention_days,omitempty"`
}

// Default returns a Config with all fields unset, so every getter
// returns its built-in default.
func Default() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. Fields omitted from the file keep
// their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > defaultMaxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), defaultMaxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.RoutingTimeout != nil {
		if _, err := time.ParseDuration(*c.RoutingTimeout); err != nil {
			return fmt.Errorf("invalid routing_timeout %q: %w", *c.RoutingTimeout, err)
		}
	}
	if c.TickInterval != nil {
		if _, err := time.ParseDuration(*c.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval %q: %w", *c.TickInterval, err)
		}
	}
	if c.MinPlaybackRate != nil && *c.MinPlaybackRate <= 0 {
		return fmt.Errorf("min_playback_rate must be positive, got %v", *c.MinPlaybackRate)
	}
	if c.MaxPlaybackRate != nil && c.MinPlaybackRate != nil && *c.MaxPlaybackRate < *c.MinPlaybackRate {
		return fmt.Errorf("max_playback_rate %v below min_playback_rate %v", *c.MaxPlaybackRate, *c.MinPlaybackRate)
	}
	if c.UrgencySeconds != nil && *c.UrgencySeconds < 0 {
		return fmt.Errorf("urgency_seconds must be non-negative, got %v", *c.UrgencySeconds)
	}
	return nil
}

// GetOSRMBaseURL returns the routing service base URL.
func (c *Config) GetOSRMBaseURL() string {
	if c.OSRMBaseURL != nil {
		return *c.OSRMBaseURL
	}
	return defaultOSRMBaseURL
}

// GetRoutingTimeout returns the per-request routing timeout.
func (c *Config) GetRoutingTimeout() time.Duration {
	if c.RoutingTimeout != nil {
		if d, err := time.ParseDuration(*c.RoutingTimeout); err == nil {
			return d
		}
	}
	return defaultRoutingTimeout
}

// GetUrgencySeconds returns the duration threshold below which the fastest
// candidate is flagged as recommended.
func (c *Config) GetUrgencySeconds() float64 {
	if c.UrgencySeconds != nil {
		return *c.UrgencySeconds
	}
	return defaultUrgencySeconds
}

// GetDispatchBatchLimit returns the maximum number of candidates ranked per request.
func (c *Config) GetDispatchBatchLimit() int {
	if c.DispatchBatchLimit != nil {
		return *c.DispatchBatchLimit
	}
	return defaultDispatchBatchLimit
}

// GetMinPlaybackRate returns the lowest selectable playback rate multiplier.
func (c *Config) GetMinPlaybackRate() float64 {
	if c.MinPlaybackRate != nil {
		return *c.MinPlaybackRate
	}
	return defaultMinPlaybackRate
}

// GetMaxPlaybackRate returns the highest selectable playback rate multiplier.
func (c *Config) GetMaxPlaybackRate() float64 {
	if c.MaxPlaybackRate != nil {
		return *c.MaxPlaybackRate
	}
	return defaultMaxPlaybackRate
}

// GetSnapThreshold returns the control-position distance within which the
// rate control snaps to an anchor.
func (c *Config) GetSnapThreshold() float64 {
	if c.SnapThreshold != nil {
		return *c.SnapThreshold
	}
	return defaultSnapThreshold
}

// GetTickInterval returns the playback clock tick interval.
func (c *Config) GetTickInterval() time.Duration {
	if c.TickInterval != nil {
		if d, err := time.ParseDuration(*c.TickInterval); err == nil {
			return d
		}
	}
	return defaultTickInterval
}

// GetHistoryWindowHours returns the default history range width.
func (c *Config) GetHistoryWindowHours() int {
	if c.HistoryWindowHours != nil {
		return *c.HistoryWindowHours
	}
	return defaultHistoryWindowHours
}

// GetLiveRetentionDays returns how long location history is kept.
func (c *Config) GetLiveRetentionDays() int {
	if c.LiveRetentionDays != nil {
		return *c.LiveRetentionDays
	}
	return defaultLiveRetentionDays
}
