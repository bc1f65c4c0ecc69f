package handlers

import (
	"context"
	"testing"

	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHandler(t *testing.T) {
	h := New()
	var got string
	h.RegisterHandler(events.ClientUpdate, func(_ context.Context, appID string, _ events.Event) { got = appID })

	fn, ok := h.Get(events.ClientUpdate)
	require.True(t, ok)
	fn(context.Background(), "foo", events.ClientUpdateEvent{})

	assert.Equal(t, "foo", got)
	_, ok = h.Get(events.DeleteUpdate)
	assert.False(t, ok)
}

func TestRegisterHandler_DuplicatePanics(t *testing.T) {
	h := New()
	noop := func(context.Context, string, events.Event) {}
	h.RegisterHandler(events.InstallUpdate, noop)

	assert.Panics(t, func() { h.RegisterHandler(events.InstallUpdate, noop) })
}

func TestNames_Sorted(t *testing.T) {
	h := New()
	noop := func(context.Context, string, events.Event) {}
	h.RegisterHandler(events.NotSupported, noop)
	h.RegisterHandler(events.ClientUpdate, noop)

	assert.Equal(t, []events.Name{events.ClientUpdate, events.NotSupported}, h.Names())
}
