package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/eclypse-bridge/internal/entry"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eclypse-bridge/internal/wizard"
)

// errAmbiguousEntry is returned when several entries are stored and the
// config does not say which one to run.
var errAmbiguousEntry = errors.New("several config entries stored, set controller.entry_id")

// entryFinder is the read side of the config entry store.
type entryFinder interface {
	Get(ctx context.Context, id string) (*entry.Entry, error)
	GetByHost(ctx context.Context, host string) (*entry.Entry, error)
	List(ctx context.Context) ([]entry.Entry, error)
}

// resolveEntry picks the config entry the bridge runs:
//
//  1. controller.entry_id, when set, must name a stored entry.
//  2. controller.host, when set, uses the stored entry for that host or
//     creates one tracking every discovered object.
//  3. Otherwise the only stored entry is used.
//
// It returns nil without error when nothing is configured yet, leaving the
// API to serve the setup wizard.
func resolveEntry(ctx context.Context, cfg *config.Config, store entryFinder, mgr *wizard.Manager) (*entry.Entry, error) {
	c := cfg.Controller

	if c.EntryID != "" {
		return store.Get(ctx, c.EntryID)
	}

	if c.Host != "" {
		e, err := store.GetByHost(ctx, c.Host)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, entry.ErrEntryNotFound) {
			return nil, err
		}
		return bootstrapEntry(ctx, mgr, wizard.Credentials{
			Host:       c.Host,
			Username:   c.Username,
			Password:   c.Password,
			DeviceName: cmp.Or(c.DeviceName, cfg.Bridge.ID),
		})
	}

	entries, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		return &entries[0], nil
	default:
		return nil, fmt.Errorf("%w (%d entries)", errAmbiguousEntry, len(entries))
	}
}

// bootstrapEntry drives a wizard session with default selections: every
// discovered object and every offered property.
func bootstrapEntry(ctx context.Context, mgr *wizard.Manager, creds wizard.Credentials) (*entry.Entry, error) {
	v := mgr.Begin()
	id := v.ID
	defer mgr.Cancel(id)

	steps := []wizard.Input{
		{Credentials: creds},
		{}, // all objects
		{}, // all offered properties
	}
	for _, in := range steps {
		var err error
		v, err = mgr.Submit(ctx, id, in)
		if err != nil {
			return nil, fmt.Errorf("creating entry for %s: %w", creds.Host, err)
		}
	}
	if v.Entry == nil {
		return nil, fmt.Errorf("creating entry for %s: session ended in state %s", creds.Host, v.State)
	}
	return v.Entry, nil
}
