// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	core "github.com/novadash/engine/internal/app"
	"github.com/novadash/engine/internal/layout"
	"github.com/novadash/engine/internal/store"
)

// Views that need a redraw, set from bus callbacks and drained by the update loop.
const (
	dirtyCosmo uint32 = 1 << iota
	dirtyWallets
	dirtyHoldings
	dirtySniper
	dirtyNotifications
	dirtyLayout

	dirtyAll = dirtyCosmo | dirtyWallets | dirtyHoldings | dirtySniper | dirtyNotifications | dirtyLayout
)

var domainDirty = map[store.Domain]uint32{
	store.DomainCosmo:         dirtyCosmo,
	store.DomainWalletTracker: dirtyWallets,
	store.DomainHoldings:      dirtyHoldings,
	store.DomainSniper:        dirtySniper,
	store.DomainNotifications: dirtyNotifications,
	store.DomainFooter:        dirtyLayout,
	store.DomainLayout:        dirtyLayout | dirtyCosmo,
}

// Panel ids rendered by the terminal UI.
const (
	PanelWallets  = "wallets"
	PanelHoldings = "holdings"
	PanelSniper   = "sniper"
)

// App is the main TUI application.
type App struct {
	app  *tview.Application
	core *core.App
	root *tview.Flex

	// Views
	cosmo         *CosmoView
	wallets       *WalletTrackerView
	holdings      *HoldingsView
	sniper        *SniperView
	notifications *NotificationsView
	stats         *StatsView
	footer        *tview.TextView

	refreshRate time.Duration
	dirty       atomic.Uint32
	unsubs      []func()

	// terminal size seen by the last draw, touched only on the UI goroutine
	cols, rows int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application over the application context.
func NewApp(c *core.App) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:           tview.NewApplication(),
		core:          c,
		cosmo:         NewCosmoView(),
		wallets:       NewWalletTrackerView(),
		holdings:      NewHoldingsView(),
		sniper:        NewSniperView(),
		notifications: NewNotificationsView(),
		stats:         NewStatsView(),
		footer:        tview.NewTextView().SetDynamicColors(true),
		refreshRate:   c.Config().UIRefreshRate,
		ctx:           ctx,
		cancel:        cancel,
	}
	if a.refreshRate <= 0 {
		a.refreshRate = 500 * time.Millisecond
	}

	for domain, bits := range domainDirty {
		a.unsubs = append(a.unsubs, c.Bus.Subscribe(domain, func(store.Event) {
			a.dirty.Or(bits)
		}))
	}
	a.dirty.Store(dirtyAll)

	a.setupLayout()
	a.setupKeyboard()

	a.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		w, h := screen.Size()
		if w != a.cols || h != a.rows {
			a.cols, a.rows = w, h
			c.SetTerminalSize(w, h)
		}
		return false
	})

	return a
}

func (a *App) panelWidget(id string) (tview.Primitive, bool) {
	switch id {
	case PanelWallets:
		return a.wallets.Widget(), true
	case PanelHoldings:
		return a.holdings.Widget(), true
	case PanelSniper:
		return a.sniper.Widget(), true
	default:
		return nil, false
	}
}

// setupLayout arranges the views from the committed panel geometry: snapped
// panels flank the cosmo feed at their snap width, floating panels share the
// bottom row and footer panels collapse into the footer bar.
func (a *App) setupLayout() {
	var left, right, floating []string
	var footer []string

	lm := a.core.Layout
	for _, id := range lm.Panels() {
		g, _ := lm.Geometry(id)
		if _, ok := a.panelWidget(id); !ok || !g.Visible() {
			continue
		}
		switch {
		case g.State == layout.StateFooter:
			footer = append(footer, id)
		case g.Mode == layout.ModeSnap && g.SnappedSide == layout.SideLeft:
			left = append(left, id)
		case g.Mode == layout.ModeSnap && g.SnappedSide == layout.SideRight:
			right = append(right, id)
		default:
			floating = append(floating, id)
		}
	}

	middle := tview.NewFlex()
	for _, id := range left {
		w, _ := a.panelWidget(id)
		g, _ := lm.Geometry(id)
		middle.AddItem(w, a.core.Cells(g.Size.Width), 0, false)
	}
	middle.AddItem(a.cosmo.Widget(), 0, 1, false)
	for _, id := range right {
		w, _ := a.panelWidget(id)
		g, _ := lm.Geometry(id)
		middle.AddItem(w, a.core.Cells(g.Size.Width), 0, false)
	}

	bottom := tview.NewFlex().
		AddItem(a.notifications.Widget(), 0, 2, false).
		AddItem(a.stats.Widget(), 0, 2, false)
	for _, id := range floating {
		w, _ := a.panelWidget(id)
		bottom.AddItem(w, 0, 2, false)
	}

	a.footer.Clear()
	fmt.Fprint(a.footer, renderFooter(footer, a.core.Stores.Footer.Counts()))

	a.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(middle, 0, 3, false).
		AddItem(bottom, 0, 2, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetRoot(a.root, true)
}

func renderFooter(panels []string, counts store.FooterCounts) string {
	var b strings.Builder
	for _, id := range panels {
		fmt.Fprintf(&b, "[black:white] %s [-:-] ", id)
	}
	fmt.Fprintf(&b, "[yellow]tracker %d  alerts %d  sniper %d  holdings %d[-]  q quit  w/h/s panels  W/H/S snap  x clear",
		counts.WalletTracker, counts.Alerts, counts.Sniper, counts.Holdings)
	return b.String()
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch r := event.Rune(); r {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r':
				a.dirty.Store(dirtyAll)
				return nil
			case 'w', 'h', 's':
				a.togglePanel(panelForKey(r))
				return nil
			case 'W', 'H', 'S':
				a.cycleSnap(panelForKey(r))
				return nil
			case 'x':
				a.core.Center.DismissAll()
				return nil
			case 'd':
				if id, ok := a.notifications.Selected(); ok {
					a.core.Center.Dismiss(id)
				}
				return nil
			}
		}
		return event
	})
}

func panelForKey(r rune) string {
	switch r {
	case 'w', 'W':
		return PanelWallets
	case 'h', 'H':
		return PanelHoldings
	default:
		return PanelSniper
	}
}

func (a *App) togglePanel(id string) {
	g, ok := a.core.Layout.Geometry(id)
	if !ok {
		return
	}
	var err error
	if g.Visible() {
		_, err = a.core.Layout.Close(id)
	} else {
		_, err = a.core.Layout.Open(id)
	}
	if err != nil {
		slog.Warn("panel_toggle_failed", "panel", id, "error", err)
	}
}

// cycleSnap moves a panel none -> left -> right -> none.
func (a *App) cycleSnap(id string) {
	lm := a.core.Layout
	g, ok := lm.Geometry(id)
	if !ok {
		return
	}
	if !g.Visible() {
		if g, _ = lm.Open(id); !g.Visible() {
			return
		}
	}
	next := layout.SideLeft
	switch g.SnappedSide {
	case layout.SideLeft:
		next = layout.SideRight
	case layout.SideRight:
		next = layout.SideNone
	}
	if _, err := lm.Dispatch(id, layout.SnapTo{Side: next}); err != nil {
		slog.Warn("panel_snap_failed", "panel", id, "error", err)
	}
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	a.app.Stop()
}

// updateLoop redraws dirty views and the stats at the refresh rate.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			bits := a.dirty.Swap(0)
			a.app.QueueUpdateDraw(func() {
				a.redraw(bits)
			})
		}
	}
}

// redraw runs on the UI goroutine.
func (a *App) redraw(bits uint32) {
	c := a.core
	s := c.Stores

	if bits&dirtyLayout != 0 {
		a.setupLayout()
	}
	if bits&dirtyCosmo != 0 {
		a.cosmo.Update(s.Cosmo.Lists(), s.Cosmo.Status(), c.Layout.Columns())
	}
	if bits&dirtyWallets != 0 {
		a.wallets.Update(s.WalletTracker.List())
	}
	if bits&dirtyHoldings != 0 {
		a.holdings.Update(s.Holdings, c.SelectedWallets())
	}
	if bits&dirtySniper != 0 {
		a.sniper.Update(s.Sniper.List())
	}
	if bits&dirtyNotifications != 0 {
		a.notifications.Update(c.Center.Active())
	}

	var sockets []SocketLine
	for _, st := range c.Sockets.Statuses() {
		sockets = append(sockets, SocketLine{
			Name:       st.Name,
			Status:     core.StatusText(st),
			LastPingAt: st.LastPingAt,
			Reconnects: st.Reconnects,
		})
	}
	a.stats.Update(c.Tracker.Snapshot(), sockets, s.Footer.Counts(), c.Session.Valid(), c.Layout.Columns())
}
