// Package config loads the daemon configuration from a YAML or JSON file.
// YAML is coerced to JSON so one strict decoder (DisallowUnknownFields)
// serves both formats. Duration fields are strings ("625us", "50ms")
// decoded by the Duration type.
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Log       LogConfig      `json:"log"`
	Board     BoardConfig    `json:"board"`
	Scheduler SchedConfig    `json:"scheduler"`
	History   HistoryConfig  `json:"history"`
	Sources   []SourceConfig `json:"sources"`
}

type LogConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	File    string `json:"file"`
}

type BoardConfig struct {
	// Order fixes the render order of the named cells.
	Order []string `json:"order"`
}

type SchedConfig struct {
	BatchWindow       Duration `json:"batch_window"`
	MinUpdateInterval Duration `json:"min_update_interval"`
	TickEvery         Duration `json:"tick_every"`
	QueueSize         int      `json:"queue_size"`
}

type HistoryConfig struct {
	Enabled     bool     `json:"enabled"`
	Path        string   `json:"path"`
	Retention   Duration `json:"retention"`
	BusyTimeout Duration `json:"busy_timeout"`
}

type SourceConfig struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"` // clock | uptime | counter
	Spec     string   `json:"spec"` // cron spec or @every duration
	Priority int      `json:"priority"`
	Lead     Duration `json:"lead"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Console: true},
		Board: BoardConfig{
			Order: []string{"clock", "uptime"},
		},
		Sources: []SourceConfig{
			{Name: "clock", Kind: "clock", Spec: "@every 1s", Priority: 1, Lead: Duration(time.Millisecond)},
			{Name: "uptime", Kind: "uptime", Spec: "@every 5s", Priority: 2, Lead: Duration(time.Millisecond)},
		},
	}
}

// applyDefaults fills absent per-source fields after decoding: priority
// defaults to 1, lead to 1ms. Runs before Validate, so anything still out
// of range there was set explicitly.
func (c *Config) applyDefaults() {
	for i := range c.Sources {
		if c.Sources[i].Priority == 0 {
			c.Sources[i].Priority = 1
		}
		if c.Sources[i].Lead == 0 {
			c.Sources[i].Lead = Duration(time.Millisecond)
		}
	}
}

// Validate rejects configs that would fail at wiring time, so reloads can
// be transactional.
func (c *Config) Validate() error {
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if strings.TrimSpace(s.Spec) == "" {
			return fmt.Errorf("sources[%d] (%s): spec is required", i, s.Name)
		}
		if s.Priority < 1 {
			return fmt.Errorf("sources[%d] (%s): priority must be >= 1", i, s.Name)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}
