// Package resolver reconciles the live sessions against backend metadata to
// build the active-apps display list.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/state"
	"golang.org/x/sync/errgroup"
)

// DefaultReservedID is the internal app that never appears in the list.
const DefaultReservedID = "dione"

// Defaults of Config.
const (
	DefaultLookupTimeout = 5 * time.Second
	DefaultConcurrency   = 8
)

// Target is one live session to resolve.
type Target struct {
	AppID   string
	IsLocal bool
}

// MetadataSource looks up the display metadata of an app.
type MetadataSource interface {
	Lookup(ctx context.Context, appID string, isLocal bool) (map[string]any, error)
}

// Config configures a Resolver.
type Config struct {
	Source        MetadataSource
	ReservedID    string
	LookupTimeout time.Duration
	Concurrency   int
	Logger        *slog.Logger
}

// Resolver turns targets into ActiveApp entries.
type Resolver struct {
	cfg Config
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	if cfg.ReservedID == "" {
		cfg.ReservedID = DefaultReservedID
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("component", "resolver")
	return &Resolver{cfg: cfg}
}

// Resolve looks up every target except the reserved one. A failed lookup
// yields an entry with nil Data for that app only; the result always has one
// entry per resolvable target, in input order.
func (r *Resolver) Resolve(ctx context.Context, targets []Target) []state.ActiveApp {
	kept := make([]Target, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t.AppID == "" || t.AppID == r.cfg.ReservedID || seen[t.AppID] {
			continue
		}
		seen[t.AppID] = true
		kept = append(kept, t)
	}

	out := make([]state.ActiveApp, len(kept))
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i, t := range kept {
		i, t := i, t
		g.Go(func() error {
			out[i] = r.lookup(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) lookup(ctx context.Context, t Target) (app state.ActiveApp) {
	app = state.ActiveApp{AppID: t.AppID, IsLocal: t.IsLocal}
	if r.cfg.Source == nil {
		app.Err = "no metadata source"
		return app
	}

	defer func() {
		if p := recover(); p != nil {
			r.cfg.Logger.Error("Metadata lookup panicked.", "appId", t.AppID, "panic", p)
			app.Data = nil
			app.Err = "lookup panicked"
		}
	}()

	lctx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()
	data, err := r.cfg.Source.Lookup(lctx, t.AppID, t.IsLocal)
	if err != nil {
		r.cfg.Logger.Warn("Metadata lookup failed.", "appId", t.AppID, "local", t.IsLocal, "error", err)
		app.Err = err.Error()
		return app
	}
	app.Data = data
	return app
}

// Loop resolves the current targets right away and then every interval,
// handing each batch to sink, until ctx is done.
func (r *Resolver) Loop(ctx context.Context, interval time.Duration, targets func() []Target, sink func([]state.ActiveApp)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sink(r.Resolve(ctx, targets()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
