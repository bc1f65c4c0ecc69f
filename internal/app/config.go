package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/config"
)

// Config holds the command-line level configuration of an App. Zero values
// leave the corresponding setting of the config file, or its default, alone.
type Config struct {
	ConfigPath string   // optional HCL file
	AppIDs     []string // apps to connect on start
	Local      bool     // whether AppIDs are locally installed apps

	BackendHost string
	BackendPort int
	RemoteURL   string
	StatusPort  int

	ResolveInterval  time.Duration
	ReconnectTimeout time.Duration
	MaxLogLines      int

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.AppIDs) == 0 && cfg.ConfigPath == "" {
		return nil, errors.New("at least one app ID or a config file is required")
	}
	for _, id := range cfg.AppIDs {
		if id == "" {
			return nil, errors.New("app IDs cannot be empty")
		}
	}
	if cfg.BackendPort < 0 || cfg.BackendPort > 65535 {
		return nil, fmt.Errorf("backend port %d is out of range", cfg.BackendPort)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("status port %d is out of range", cfg.StatusPort)
	}
	if cfg.ResolveInterval < 0 || cfg.ReconnectTimeout < 0 || cfg.MaxLogLines < 0 {
		return nil, errors.New("intervals, timeouts and limits cannot be negative")
	}
	return &cfg, nil
}

// settings merges the command line over the loaded file configuration.
func (c *Config) settings(file *config.Config) (*config.Config, error) {
	out := *file
	if c.BackendHost != "" {
		out.BackendHost = c.BackendHost
	}
	if c.BackendPort != 0 {
		out.BackendPort = c.BackendPort
	}
	if c.RemoteURL != "" {
		out.RemoteURL = c.RemoteURL
	}
	if c.StatusPort != 0 {
		out.StatusPort = c.StatusPort
	}
	if c.ResolveInterval != 0 {
		out.ResolveInterval = c.ResolveInterval
	}
	if c.ReconnectTimeout != 0 {
		out.ReconnectTimeout = c.ReconnectTimeout
	}
	if c.MaxLogLines != 0 {
		out.MaxLogLines = c.MaxLogLines
	}

	out.Apps = append([]config.App(nil), file.Apps...)
	declared := make(map[string]bool, len(out.Apps))
	for _, a := range out.Apps {
		declared[a.ID] = true
	}
	for _, id := range c.AppIDs {
		if !declared[id] {
			declared[id] = true
			out.Apps = append(out.Apps, config.App{ID: id, Local: c.Local})
		}
	}
	if len(out.Apps) == 0 {
		return nil, errors.New("no apps to connect: pass app IDs or declare app blocks")
	}
	return &out, out.Validate()
}
