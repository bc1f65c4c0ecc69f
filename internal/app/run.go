package app

import (
	"context"
	"sync"

	"github.com/specialistvlad/scriptdeck/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Run connects the configured apps, keeps the active-apps list fresh and
// serves the status API until ctx is cancelled. Every session is
// disconnected before it returns.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.startStatusServer(ctx); err != nil {
		return err
	}
	defer a.closeStatusServer()
	defer a.shutdown()

	a.connectAll(ctx)
	if ctx.Err() != nil {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.resolver.Loop(ctx, a.settings.ResolveInterval, a.targets, a.publishActive)
	}()

	<-ctx.Done()
	a.logger.Info("🏁 Shutting down.")
	wg.Wait()
	a.logger.Debug("App.Run method finished.")
	return nil
}

// connectAll connects every configured app concurrently. A failing app is
// logged and left out; the others keep their sessions.
func (a *App) connectAll(ctx context.Context) {
	var g errgroup.Group
	for _, app := range a.settings.Apps {
		app := app
		g.Go(func() error {
			s, err := a.manager.Connect(ctx, app.ID, app.Local, a.portFor(app))
			if err != nil {
				a.logger.Error("❌ Failed to connect app.", "appId", app.ID, "error", err)
				return nil
			}
			a.logger.Info("🔌 Session ready.", "appId", s.AppID, "connected", s.Connected(), "instance", s.InstanceID)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *App) shutdown() {
	a.manager.Close()
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("Closing backend client failed.", "error", err)
		}
	}
}
