package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/novadash/engine/internal/filter"
	"github.com/novadash/engine/internal/layout"
	"github.com/novadash/engine/internal/persist"
)

// Preset is a saved filter configuration of one channel.
type Preset struct {
	Filters   filter.FilterState `json:"filters"`
	Blacklist filter.Blacklist   `json:"blacklist"`
}

// presets maps channel -> preset name -> preset.
type presets map[string]map[string]Preset

// ErrUnknownPreset is returned when loading a preset that was never saved.
var ErrUnknownPreset = errors.New("unknown preset")

// restorePreferences loads geometry and wallet selection. Missing keys are
// first runs, not errors.
func (a *App) restorePreferences(ctx context.Context) {
	var saved map[string]layout.Geometry
	switch err := a.Persist.Load(ctx, persist.KeyPanelGeometry, &saved); {
	case err == nil:
		a.Layout.Restore(saved)
		slog.Info("layout_restored", "panels", len(saved))
	case !errors.Is(err, persist.ErrNotFound):
		slog.Warn("layout_restore_failed", "error", err)
	}

	var selected []string
	switch err := a.Persist.Load(ctx, persist.KeySelectedWallets, &selected); {
	case err == nil:
		a.mu.Lock()
		a.selected = selected
		a.mu.Unlock()
	case !errors.Is(err, persist.ErrNotFound):
		slog.Warn("selected_wallets_restore_failed", "error", err)
	}
}

// SelectedWallets returns the wallets whose holdings are shown.
func (a *App) SelectedWallets() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.selected...)
}

// SelectWallets replaces the wallet selection, persists it and refetches the
// holdings of the new selection.
func (a *App) SelectWallets(ctx context.Context, wallets []string) error {
	a.mu.Lock()
	a.selected = append([]string(nil), wallets...)
	a.mu.Unlock()

	if a.Persist != nil {
		if err := a.Persist.Save(ctx, persist.KeySelectedWallets, wallets); err != nil {
			return err
		}
	}

	holdings, err := a.Seed.FetchHoldings(ctx, wallets)
	if err != nil {
		return a.seedFailed("holdings", "Holdings unavailable", err)
	}
	a.Stores.Holdings.SetAll(holdings)
	return nil
}

// SavePreset stores the applied filters of a channel under name.
func (a *App) SavePreset(ctx context.Context, channel, name string) error {
	st, ok := a.Filters[channel]
	if !ok {
		return fmt.Errorf("channel %q has no filters", channel)
	}
	if a.Persist == nil {
		return fmt.Errorf("preferences are not persisted")
	}

	all, err := a.loadPresets(ctx)
	if err != nil {
		return err
	}
	if all[channel] == nil {
		all[channel] = make(map[string]Preset)
	}
	all[channel][name] = Preset{Filters: st.Genuine(), Blacklist: st.Blacklist()}
	return a.Persist.Save(ctx, persist.KeyPresets, all)
}

// LoadPreset applies a saved preset to a channel.
func (a *App) LoadPreset(ctx context.Context, channel, name string) error {
	st, ok := a.Filters[channel]
	if !ok {
		return fmt.Errorf("channel %q has no filters", channel)
	}
	if a.Persist == nil {
		return ErrUnknownPreset
	}

	all, err := a.loadPresets(ctx)
	if err != nil {
		return err
	}
	p, ok := all[channel][name]
	if !ok {
		return fmt.Errorf("%s/%s: %w", channel, name, ErrUnknownPreset)
	}
	st.SetBlacklist(p.Blacklist)
	st.SetGenuine(p.Filters)
	return nil
}

// PresetNames lists the presets of a channel.
func (a *App) PresetNames(ctx context.Context, channel string) ([]string, error) {
	if a.Persist == nil {
		return nil, nil
	}
	all, err := a.loadPresets(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all[channel]))
	for n := range all[channel] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (a *App) loadPresets(ctx context.Context) (presets, error) {
	all := presets{}
	err := a.Persist.Load(ctx, persist.KeyPresets, &all)
	if err != nil && !errors.Is(err, persist.ErrNotFound) {
		return nil, err
	}
	return all, nil
}

// SetTerminalSize converts a terminal size in cells into the pixel viewport
// of the layout manager.
func (a *App) SetTerminalSize(cols, rows int) layout.Viewport {
	vp := layout.Viewport{
		Width:  float64(cols) * a.cfg.CellWidth,
		Height: float64(rows) * a.cfg.CellHeight,
	}
	if vp.Known() && vp != a.Layout.Viewport() {
		a.Layout.Resize(vp)
	}
	return vp
}

// Cells converts a pixel width to terminal columns.
func (a *App) Cells(px float64) int {
	return int(px / a.cfg.CellWidth)
}
