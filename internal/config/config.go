// Package config loads and validates the driver/tool configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/eswifictl/internal/command"
	"github.com/danmuck/eswifictl/internal/transport"
	"github.com/danmuck/eswifictl/internal/wifi"
)

// Tool is the full eswifictl configuration.
type Tool struct {
	SSID        string   `toml:"ssid"`
	Passphrase  string   `toml:"passphrase"`
	DiagAddr    string   `toml:"diag_addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Driver      Driver   `toml:"driver"`
}

// Driver carries the protocol budgets. Zero values defer to the package
// defaults of the layer that owns each knob.
type Driver struct {
	ReadyPollIntervalMS int64 `toml:"ready_poll_interval_ms"`
	ReadyAttempts       int   `toml:"ready_attempts"`
	RecvWordBudget      int   `toml:"recv_word_budget"`
	MaxCommandBytes     int   `toml:"max_command_bytes"`
	MaxResponseBytes    int   `toml:"max_response_bytes"`
	PromptCapacity      int   `toml:"prompt_capacity"`
	PromptAttempts      int   `toml:"prompt_attempts"`
	ResetPulseMS        int64 `toml:"reset_pulse_ms"`
	WakeSettleMS        int64 `toml:"wake_settle_ms"`
	PollIntervalMS      int64 `toml:"poll_interval_ms"`
	PollAttempts        int   `toml:"poll_attempts"`
}

// Load reads the TOML file at path and validates it.
func Load(path string) (Tool, error) {
	var cfg Tool
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Tool{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Tool{}, err
	}
	return cfg, nil
}

func Validate(cfg Tool) error {
	if strings.TrimSpace(cfg.SSID) == "" {
		return fmt.Errorf("config missing ssid")
	}
	if strings.TrimSpace(cfg.Passphrase) == "" {
		return fmt.Errorf("config missing passphrase")
	}
	if cfg.Driver.ReadyPollIntervalMS < 0 ||
		cfg.Driver.ResetPulseMS < 0 ||
		cfg.Driver.WakeSettleMS < 0 ||
		cfg.Driver.PollIntervalMS < 0 {
		return fmt.Errorf("config intervals must not be negative")
	}
	if cfg.Driver.ReadyAttempts < 0 || cfg.Driver.PromptAttempts < 0 || cfg.Driver.PollAttempts < 0 {
		return fmt.Errorf("config attempt budgets must not be negative")
	}
	if cfg.Driver.RecvWordBudget < 0 ||
		cfg.Driver.MaxCommandBytes < 0 ||
		cfg.Driver.MaxResponseBytes < 0 ||
		cfg.Driver.PromptCapacity < 0 {
		return fmt.Errorf("config capacities must not be negative")
	}
	return nil
}

// TransportConfig maps the driver block onto the framing layer's knobs.
func (d Driver) TransportConfig() transport.Config {
	cfg := transport.DefaultConfig()
	if d.ReadyPollIntervalMS > 0 {
		cfg.ReadyPollInterval = time.Duration(d.ReadyPollIntervalMS) * time.Millisecond
	}
	if d.ReadyAttempts > 0 {
		cfg.ReadyAttempts = d.ReadyAttempts
	}
	if d.RecvWordBudget > 0 {
		cfg.RecvWordBudget = d.RecvWordBudget
	}
	return cfg
}

// CommandConfig maps the driver block onto the channel's knobs.
func (d Driver) CommandConfig() command.Config {
	cfg := command.DefaultConfig()
	if d.MaxCommandBytes > 0 {
		cfg.MaxCommandBytes = d.MaxCommandBytes
	}
	if d.MaxResponseBytes > 0 {
		cfg.MaxResponseBytes = d.MaxResponseBytes
	}
	if d.PromptCapacity > 0 {
		cfg.PromptCapacity = d.PromptCapacity
	}
	if d.ReadyPollIntervalMS > 0 {
		cfg.PromptPollInterval = time.Duration(d.ReadyPollIntervalMS) * time.Millisecond
	}
	if d.PromptAttempts > 0 {
		cfg.PromptAttempts = d.PromptAttempts
	}
	return cfg
}

// WifiConfig maps the driver block onto the connection manager's knobs.
func (d Driver) WifiConfig() wifi.Config {
	cfg := wifi.DefaultConfig()
	if d.ResetPulseMS > 0 {
		cfg.ResetPulse = time.Duration(d.ResetPulseMS) * time.Millisecond
	}
	if d.WakeSettleMS > 0 {
		cfg.WakeSettle = time.Duration(d.WakeSettleMS) * time.Millisecond
	}
	if d.PromptAttempts > 0 {
		cfg.PromptAttempts = d.PromptAttempts
	}
	if d.PollIntervalMS > 0 {
		cfg.PollInterval = time.Duration(d.PollIntervalMS) * time.Millisecond
	}
	if d.PollAttempts > 0 {
		cfg.PollAttempts = d.PollAttempts
	}
	return cfg
}
