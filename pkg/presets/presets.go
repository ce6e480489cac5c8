// Package presets manages the named model preset catalog and the single
// active-preset pointer consumed by outbound notifications.
package presets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/store"
)

// Registry exposes the preset catalog and the active selection.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
}

// New returns a registry backed by the store.
func New(st *store.Store) *Registry {
	return &Registry{
		store:  st,
		logger: slog.Default().With("component", "presets"),
	}
}

// Seed inserts the default presets and active pointer if absent. Existing
// rows are left untouched so operator edits survive restarts.
func (r *Registry) Seed(ctx context.Context, defaults map[string]string, active string) error {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	return r.store.Tx(ctx, func(tx *store.Tx) error {
		for _, name := range names {
			if err := tx.SeedPreset(name, defaults[name]); err != nil {
				return err
			}
		}
		return tx.SeedPresetState(active)
	})
}

// List returns the preset catalog and the current active selection.
func (r *Registry) List(ctx context.Context) ([]contracts.ModelPreset, *contracts.PresetState, error) {
	catalog, err := r.store.ListPresets(ctx)
	if err != nil {
		return nil, nil, err
	}
	active, err := r.store.ActivePreset(ctx)
	if err != nil {
		return nil, nil, err
	}
	state := &contracts.PresetState{Active: active, UpdatedAt: contracts.NowUTC()}
	return catalog, state, nil
}

// SetActive points the registry at a named preset. Unknown names are
// rejected rather than stored.
func (r *Registry) SetActive(ctx context.Context, name string) (*contracts.PresetState, error) {
	catalog, err := r.store.ListPresets(ctx)
	if err != nil {
		return nil, err
	}
	known := false
	for _, p := range catalog {
		if p.Name == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: unknown preset %q", contracts.ErrValidation, name)
	}

	err = r.store.Tx(ctx, func(tx *store.Tx) error {
		return tx.SetActivePreset(name)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("active preset changed", "preset", name)
	return &contracts.PresetState{Active: name, UpdatedAt: contracts.NowUTC()}, nil
}

// ActiveModel resolves the active preset to its model identifier, falling
// back to the quality preset when the pointer is unset or dangling.
func (r *Registry) ActiveModel(ctx context.Context) (string, error) {
	catalog, err := r.store.ListPresets(ctx)
	if err != nil {
		return "", err
	}
	active, err := r.store.ActivePreset(ctx)
	if err != nil {
		return "", err
	}
	byName := make(map[string]string, len(catalog))
	for _, p := range catalog {
		byName[p.Name] = p.Model
	}
	if model, ok := byName[active]; ok {
		return model, nil
	}
	return byName["quality"], nil
}
