package layout

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Column thresholds of list views, in remaining screen width.
const (
	ThreeColumnWidth = 1200.0
	TwoColumnWidth   = 800.0
)

// ColumnCount returns how many columns a list view shows for the remaining width.
func ColumnCount(remaining float64) int {
	switch {
	case remaining >= ThreeColumnWidth:
		return 3
	case remaining >= TwoColumnWidth:
		return 2
	default:
		return 1
	}
}

type panel struct {
	cfg       PanelConfig
	current   Geometry
	committed Geometry
}

// Manager coordinates every panel of the dashboard.
type Manager struct {
	mu       sync.Mutex
	viewport Viewport
	panels   map[string]*panel
	active   string

	onCommit func(id string, g Geometry)
}

// NewManager creates a manager for the given viewport.
func NewManager(vp Viewport) *Manager {
	return &Manager{
		viewport: vp,
		panels:   make(map[string]*panel),
	}
}

// OnCommit sets the callback invoked when a panel's committed geometry changes.
func (m *Manager) OnCommit(fn func(id string, g Geometry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCommit = fn
}

// Register adds a panel. Registering an existing id replaces its config.
func (m *Manager) Register(cfg PanelConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.WithDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.panels[cfg.ID]; ok {
		p.cfg = cfg
		return nil
	}
	g := Default(cfg)
	m.panels[cfg.ID] = &panel{cfg: cfg, current: g, committed: g}
	return nil
}

// Panels returns the registered panel ids, sorted.
func (m *Manager) Panels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.panels))
	for id := range m.panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Viewport returns the current viewport.
func (m *Manager) Viewport() Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// Geometry returns the live geometry of a panel, including in-flight drags.
func (m *Manager) Geometry(id string) (Geometry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.panels[id]
	if !ok {
		return Geometry{}, false
	}
	return p.current, true
}

// Active returns the panel that owns the pointer session, if any.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Dispatch feeds one event to a panel. Pointer events of other panels are
// ignored while a session is in progress.
func (m *Manager) Dispatch(id string, ev Event) (Geometry, error) {
	m.mu.Lock()

	p, ok := m.panels[id]
	if !ok {
		m.mu.Unlock()
		return Geometry{}, fmt.Errorf("unknown panel %q", id)
	}

	switch e := ev.(type) {
	case DragStart, ResizeStart:
		if m.active != "" && m.active != id {
			g := p.current
			m.mu.Unlock()
			return g, nil
		}
	case DragMove, ResizeMove, ResizeEnd:
		if m.active != id {
			g := p.current
			m.mu.Unlock()
			return g, nil
		}
	case DragEnd:
		if m.active != id {
			g := p.current
			m.mu.Unlock()
			return g, nil
		}
		e.Occupied = m.occupiedLocked(id)
		ev = e
	case SnapTo:
		e.Occupied = m.occupiedLocked(id)
		ev = e
	case ViewportResize:
		m.mu.Unlock()
		return Geometry{}, fmt.Errorf("viewport changes go through Resize")
	}

	next := Reduce(p.current, p.cfg, m.viewport, ev)
	p.current = next

	if next.State.Transient() {
		m.active = id
	} else if m.active == id {
		m.active = ""
	}

	commit := m.commitLocked(id, p)
	m.mu.Unlock()

	if commit != nil {
		commit()
	}
	return next, nil
}

// Open is a shortcut for Dispatch(id, Open{}).
func (m *Manager) Open(id string) (Geometry, error) {
	return m.Dispatch(id, Open{})
}

// Close is a shortcut for Dispatch(id, Close{}).
func (m *Manager) Close(id string) (Geometry, error) {
	return m.Dispatch(id, Close{})
}

// Resize applies a viewport change to every panel.
func (m *Manager) Resize(vp Viewport) {
	m.mu.Lock()
	from := m.viewport
	m.viewport = vp
	if from == vp {
		m.mu.Unlock()
		return
	}

	var commits []func()
	for _, id := range m.sortedIDsLocked() {
		p := m.panels[id]
		p.current = Reduce(p.current, p.cfg, vp, ViewportResize{From: from, To: vp})
		if !p.current.State.Transient() {
			if m.active == id {
				m.active = ""
			}
			if c := m.commitLocked(id, p); c != nil {
				commits = append(commits, c)
			}
		}
	}
	m.mu.Unlock()

	slog.Debug("layout_viewport_resized", "from_width", from.Width, "to_width", vp.Width, "to_height", vp.Height)
	for _, c := range commits {
		c()
	}
}

// RemainingScreenWidth is the viewport width minus every committed snapped panel.
func (m *Manager) RemainingScreenWidth() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remainingLocked()
}

// Columns returns the column count for list views.
func (m *Manager) Columns() int {
	return ColumnCount(m.RemainingScreenWidth())
}

// Snapshot returns the committed geometry of every panel.
func (m *Manager) Snapshot() map[string]Geometry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Geometry, len(m.panels))
	for id, p := range m.panels {
		out[id] = p.committed
	}
	return out
}

// Restore loads persisted geometry. Unknown ids are skipped, pointer sessions
// are dropped and every panel is clamped to the current viewport. A panel
// restored into an occupied snap slot comes back floating.
func (m *Manager) Restore(saved map[string]Geometry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var taken Slots
	for _, id := range m.sortedIDsLocked() {
		g, ok := saved[id]
		if !ok {
			continue
		}
		p := m.panels[id]
		g = sanitize(g, p.cfg, m.viewport, taken)
		switch g.SnappedSide {
		case SideLeft:
			taken.Left = true
		case SideRight:
			taken.Right = true
		}
		p.current = g
		p.committed = g
	}
	m.active = ""
}

func sanitize(g Geometry, cfg PanelConfig, vp Viewport, taken Slots) Geometry {
	if g.State == StateClosed {
		return Default(cfg)
	}
	if g.SnapWidth <= 0 {
		g.SnapWidth = cfg.SnapWidth
	}
	switch g.State {
	case StateDragging, StateResizing:
		g.State = StateFloating
		if g.SnappedSide != SideNone {
			g.State = StateSnapped
		}
	}
	if g.SnappedSide != SideNone && taken.Taken(g.SnappedSide) {
		g = unsnap(g, cfg, vp)
		g.State = StateFloating
	}
	if vp.Known() {
		if vp.Width < cfg.FooterBreakpoint {
			g = enterFooter(g)
		} else if g.Mode == ModeFooter {
			g = leaveFooter(g)
		}
	}
	g.Size.Width = maxf(g.Size.Width, 0)
	g.Size.Height = maxf(g.Size.Height, 0)
	return Clamp(g, cfg, vp)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (m *Manager) occupiedLocked(except string) Slots {
	var s Slots
	for id, p := range m.panels {
		if id == except || p.committed.Mode != ModeSnap {
			continue
		}
		switch p.committed.SnappedSide {
		case SideLeft:
			s.Left = true
		case SideRight:
			s.Right = true
		}
	}
	return s
}

func (m *Manager) remainingLocked() float64 {
	remaining := m.viewport.Width
	for _, p := range m.panels {
		g := p.committed
		if g.State == StateClosed || g.Mode != ModeSnap || g.SnappedSide == SideNone {
			continue
		}
		remaining -= g.Size.Width
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// commitLocked stores the current geometry as committed when no pointer
// session is running and returns the notification to run after unlocking.
func (m *Manager) commitLocked(id string, p *panel) func() {
	if p.current.State.Transient() {
		return nil
	}
	if p.committed == p.current {
		return nil
	}
	p.committed = p.current
	fn := m.onCommit
	if fn == nil {
		return nil
	}
	g := p.committed
	return func() { fn(id, g) }
}

func (m *Manager) sortedIDsLocked() []string {
	ids := make([]string, 0, len(m.panels))
	for id := range m.panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
