package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/scriptdeck/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Load reads the HCL file at path and resolves it over Default. An empty
// path returns the defaults.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	logger.Debug("Loading config file.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := Parse(src, path, cfg); err != nil {
		return nil, err
	}
	logger.Info("Config loaded.", "path", path, "apps", len(cfg.Apps))
	return cfg, nil
}

// Parse decodes HCL source into cfg, overriding only the values it sets.
func Parse(src []byte, filename string, cfg *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(), &root)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return root.apply(cfg)
}

// evalContext exposes the process environment as the `env` object.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !hclsyntax.ValidIdentifier(name) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

func (r *fileRoot) apply(cfg *Config) error {
	if b := r.Backend; b != nil {
		setString(&cfg.BackendHost, b.Host)
		setInt(&cfg.BackendPort, b.Port)
		setString(&cfg.RemoteURL, b.RemoteURL)
		if b.Retries != nil {
			cfg.APIRetries = *b.Retries
		}
		if err := setDuration(&cfg.APITimeout, "backend.api_timeout", b.APITimeout); err != nil {
			return err
		}
	}

	if s := r.Session; s != nil {
		for _, d := range []struct {
			dst  *time.Duration
			name string
			raw  string
		}{
			{&cfg.ReconnectTimeout, "session.reconnect_timeout", s.ReconnectTimeout},
			{&cfg.HandshakeTimeout, "session.handshake_timeout", s.HandshakeTimeout},
			{&cfg.PollInterval, "session.poll_interval", s.PollInterval},
			{&cfg.ResolveInterval, "session.resolve_interval", s.ResolveInterval},
		} {
			if err := setDuration(d.dst, d.name, d.raw); err != nil {
				return err
			}
		}
		setInt(&cfg.MaxLogLines, s.MaxLogLines)
		setString(&cfg.ReservedAppID, s.ReservedAppID)
	}

	if h := r.Heuristics; h != nil {
		setPhrases(&cfg.Heuristics.SuccessPhrases, h.SuccessPhrases)
		setPhrases(&cfg.Heuristics.KillSuccessPhrases, h.KillSuccessPhrases)
		setPhrases(&cfg.Heuristics.FailurePhrases, h.FailurePhrases)
		setPhrases(&cfg.Heuristics.ServerReadyPhrases, h.ServerReady)
		setString(&cfg.Heuristics.ErrorMarker, h.ErrorMarker)
	}

	if r.Status != nil {
		setInt(&cfg.StatusPort, r.Status.Port)
	}

	seen := make(map[string]bool, len(r.Apps))
	for _, a := range r.Apps {
		if seen[a.ID] {
			return fmt.Errorf("app %q is declared more than once", a.ID)
		}
		seen[a.ID] = true
		cfg.Apps = append(cfg.Apps, App{ID: a.ID, Local: a.Local, Port: a.Port})
	}
	return cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.BackendPort <= 0 || c.BackendPort > 65535 {
		return fmt.Errorf("backend port %d is out of range", c.BackendPort)
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("status port %d is out of range", c.StatusPort)
	}
	if c.MaxLogLines <= 0 {
		return fmt.Errorf("max_log_lines must be positive, got %d", c.MaxLogLines)
	}
	for _, a := range c.Apps {
		if a.Port < 0 || a.Port > 65535 {
			return fmt.Errorf("app %q: port %d is out of range", a.ID, a.Port)
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setPhrases(dst *[]string, v []string) {
	if v != nil {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be positive", name, raw)
	}
	*dst = d
	return nil
}
