// Package handlers is the table mapping event names to their Go handlers.
// Every name can be registered exactly once.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/specialistvlad/scriptdeck/internal/events"
)

// Func handles one decoded event for one app.
type Func func(ctx context.Context, appID string, ev events.Event)

// Handlers holds all the registered handlers
type Handlers struct {
	all map[events.Name]Func
}

// New creates and initializes an empty handler table.
func New() *Handlers {
	return &Handlers{
		all: make(map[events.Name]Func),
	}
}

// RegisterHandler registers the Go function handling an event. Registering a
// name twice is a programming error and panics.
func (h *Handlers) RegisterHandler(name events.Name, fn Func) {
	if _, exists := h.all[name]; exists {
		panic(fmt.Sprintf("event handler with name '%s' already registered", name))
	}
	slog.Debug("Registering event handler.", "name", name)
	h.all[name] = fn
}

// Get returns the handler registered for name.
func (h *Handlers) Get(name events.Name) (Func, bool) {
	fn, ok := h.all[name]
	return fn, ok
}

// Names returns every registered event name, sorted.
func (h *Handlers) Names() []events.Name {
	names := make([]events.Name, 0, len(h.all))
	for name := range h.all {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
