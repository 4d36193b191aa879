// Package config loads the simtelem TOML configuration and applies
// SIMTELEM_* environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/AlephTX/simtelem/shm"
	"github.com/AlephTX/simtelem/telemetry"
)

type Config struct {
	Region  RegionConfig  `toml:"region"`
	Sampler SamplerConfig `toml:"sampler"`
	Log     LogConfig     `toml:"log"`
	Relay   RelayConfig   `toml:"relay"`
	Mock    MockConfig    `toml:"mock"`
}

type RegionConfig struct {
	Name string `toml:"name"`
	// File maps a captured region file instead of the named region.
	File string `toml:"file"`
}

type SamplerConfig struct {
	PollIntervalMs int `toml:"poll_interval_ms"`
	SelectAttempts int `toml:"select_attempts"`
	SelectBudgetMs int `toml:"select_budget_ms"`
	WaitTimeoutMs  int `toml:"wait_timeout_ms"`
}

type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type RelayConfig struct {
	UnixSocket string   `toml:"unix_socket"`
	WSURL      string   `toml:"ws_url"`
	Vars       []string `toml:"vars"`
	Queue      int      `toml:"queue"`
}

type MockConfig struct {
	TickRate int `toml:"tick_rate"`
	Buffers  int `toml:"buffers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Region:  RegionConfig{Name: shm.DefaultName},
		Sampler: SamplerConfig{SelectAttempts: telemetry.DefaultSelectAttempts, WaitTimeoutMs: 1000},
		Log:     LogConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7},
		Relay:   RelayConfig{Queue: 64},
		Mock:    MockConfig{TickRate: 60, Buffers: 3},
	}
}

// Load reads path on top of Default. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// FromEnv applies SIMTELEM_* overrides from the environment.
func (c *Config) FromEnv() error {
	return c.apply(os.LookupEnv)
}

func (c *Config) apply(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return
		}
		*dst = n
	}

	str("SIMTELEM_REGION", &c.Region.Name)
	str("SIMTELEM_REGION_FILE", &c.Region.File)
	num("SIMTELEM_POLL_INTERVAL_MS", &c.Sampler.PollIntervalMs)
	num("SIMTELEM_SELECT_ATTEMPTS", &c.Sampler.SelectAttempts)
	num("SIMTELEM_SELECT_BUDGET_MS", &c.Sampler.SelectBudgetMs)
	num("SIMTELEM_WAIT_TIMEOUT_MS", &c.Sampler.WaitTimeoutMs)
	str("SIMTELEM_LOG_FILE", &c.Log.File)
	str("SIMTELEM_RELAY_SOCKET", &c.Relay.UnixSocket)
	str("SIMTELEM_RELAY_WS_URL", &c.Relay.WSURL)
	if v, ok := lookup("SIMTELEM_RELAY_VARS"); ok && v != "" {
		c.Relay.Vars = splitList(v)
	}
	num("SIMTELEM_MOCK_TICK_RATE", &c.Mock.TickRate)
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Validate rejects values the sampler or mock producer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Region.Name == "" && c.Region.File == "" {
		errs = append(errs, errors.New("config: region.name or region.file is required"))
	}
	for key, v := range map[string]int{
		"sampler.poll_interval_ms": c.Sampler.PollIntervalMs,
		"sampler.select_attempts":  c.Sampler.SelectAttempts,
		"sampler.select_budget_ms": c.Sampler.SelectBudgetMs,
		"sampler.wait_timeout_ms":  c.Sampler.WaitTimeoutMs,
		"relay.queue":              c.Relay.Queue,
		"mock.tick_rate":           c.Mock.TickRate,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("config: %s must not be negative (got %d)", key, v))
		}
	}
	if c.Mock.Buffers < 1 || c.Mock.Buffers > telemetry.MaxBuffers {
		errs = append(errs, fmt.Errorf("config: mock.buffers must be 1..%d (got %d)", telemetry.MaxBuffers, c.Mock.Buffers))
	}
	return errors.Join(errs...)
}

// Options converts the sampler section into connection options.
func (c *Config) Options() telemetry.Options {
	return telemetry.Options{
		SelectAttempts: c.Sampler.SelectAttempts,
		SelectBudget:   ms(c.Sampler.SelectBudgetMs),
		PollInterval:   ms(c.Sampler.PollIntervalMs),
	}
}

// WaitTimeout is how long one WaitNext call may block.
func (c *Config) WaitTimeout() time.Duration { return ms(c.Sampler.WaitTimeoutMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
