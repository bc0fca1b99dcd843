package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ids ...string) *Manager {
	t.Helper()
	m := NewManager(desktop)
	for _, id := range ids {
		require.NoError(t, m.Register(PanelConfig{ID: id}))
	}
	return m
}

func dragPanel(t *testing.T, m *Manager, id string, target Point) Geometry {
	t.Helper()
	g, ok := m.Geometry(id)
	require.True(t, ok)
	grab := Point{X: g.Position.X + 10, Y: g.Position.Y + 10}
	_, err := m.Dispatch(id, DragStart{Pointer: grab})
	require.NoError(t, err)
	_, err = m.Dispatch(id, DragMove{Pointer: Point{X: target.X + 10, Y: target.Y + 10}})
	require.NoError(t, err)
	g, err = m.Dispatch(id, DragEnd{})
	require.NoError(t, err)
	return g
}

func TestRemainingScreenWidth(t *testing.T) {
	m := newTestManager(t, "wallets", "holdings")
	_, err := m.Open("wallets")
	require.NoError(t, err)
	_, err = m.Open("holdings")
	require.NoError(t, err)

	assert.Equal(t, 1600.0, m.RemainingScreenWidth())
	assert.Equal(t, 3, m.Columns())

	_, err = m.Dispatch("wallets", SnapTo{Side: SideLeft})
	require.NoError(t, err)
	_, err = m.Dispatch("holdings", SnapTo{Side: SideRight})
	require.NoError(t, err)

	assert.Equal(t, 800.0, m.RemainingScreenWidth())
	assert.Equal(t, 2, m.Columns())

	_, err = m.Close("holdings")
	require.NoError(t, err)
	assert.Equal(t, 1200.0, m.RemainingScreenWidth())
}

func TestSecondPanelCannotTakeOccupiedSlot(t *testing.T) {
	m := newTestManager(t, "wallets", "holdings")
	_, _ = m.Open("wallets")
	_, _ = m.Open("holdings")

	g := dragPanel(t, m, "wallets", Point{X: 5, Y: 100})
	require.Equal(t, SideLeft, g.SnappedSide)

	g = dragPanel(t, m, "holdings", Point{X: 5, Y: 100})
	assert.Equal(t, StateFloating, g.State)
	assert.Equal(t, SideNone, g.SnappedSide)

	g, err := m.Dispatch("holdings", SnapTo{Side: SideLeft})
	require.NoError(t, err)
	assert.Equal(t, SideNone, g.SnappedSide)
}

func TestExclusivePointerSession(t *testing.T) {
	m := newTestManager(t, "wallets", "holdings")
	_, _ = m.Open("wallets")
	_, _ = m.Open("holdings")

	_, err := m.Dispatch("wallets", DragStart{Pointer: Point{X: 600, Y: 200}})
	require.NoError(t, err)
	assert.Equal(t, "wallets", m.Active())

	g, err := m.Dispatch("holdings", DragStart{Pointer: Point{X: 600, Y: 200}})
	require.NoError(t, err)
	assert.Equal(t, StateFloating, g.State)

	_, err = m.Dispatch("wallets", DragEnd{})
	require.NoError(t, err)
	assert.Empty(t, m.Active())

	g, err = m.Dispatch("holdings", DragStart{Pointer: Point{X: 600, Y: 200}})
	require.NoError(t, err)
	assert.Equal(t, StateDragging, g.State)
}

func TestResizeToFooterEndsPointerSession(t *testing.T) {
	m := newTestManager(t, "wallets", "holdings")
	_, _ = m.Open("wallets")
	_, _ = m.Open("holdings")

	_, err := m.Dispatch("wallets", DragStart{Pointer: Point{X: 600, Y: 200}})
	require.NoError(t, err)
	require.Equal(t, "wallets", m.Active())

	m.Resize(Viewport{Width: 1024, Height: 768})
	g, _ := m.Geometry("wallets")
	assert.Equal(t, StateFooter, g.State)
	assert.Empty(t, m.Active())

	m.Resize(desktop)
	g, err = m.Dispatch("holdings", DragStart{Pointer: Point{X: 600, Y: 200}})
	require.NoError(t, err)
	assert.Equal(t, StateDragging, g.State)
	assert.Equal(t, "holdings", m.Active())
}

func TestRemainingWidthIgnoresInFlightDrag(t *testing.T) {
	m := newTestManager(t, "wallets")
	_, _ = m.Open("wallets")
	_, err := m.Dispatch("wallets", SnapTo{Side: SideLeft})
	require.NoError(t, err)
	require.Equal(t, 1200.0, m.RemainingScreenWidth())

	_, err = m.Dispatch("wallets", DragStart{Pointer: Point{X: 100, Y: 10}})
	require.NoError(t, err)
	_, err = m.Dispatch("wallets", DragMove{Pointer: Point{X: 800, Y: 300}})
	require.NoError(t, err)

	live, _ := m.Geometry("wallets")
	assert.Equal(t, SideNone, live.SnappedSide)
	assert.Equal(t, 1200.0, m.RemainingScreenWidth())

	_, err = m.Dispatch("wallets", DragEnd{})
	require.NoError(t, err)
	assert.Equal(t, 1600.0, m.RemainingScreenWidth())
}

func TestCommitCallback(t *testing.T) {
	m := newTestManager(t, "wallets")
	var commits []string
	m.OnCommit(func(id string, g Geometry) {
		commits = append(commits, id+":"+g.State.String())
	})

	_, _ = m.Open("wallets")
	dragPanel(t, m, "wallets", Point{X: 5, Y: 100})

	assert.Equal(t, []string{"wallets:floating", "wallets:snapped"}, commits)
}

func TestManagerResizeEntersFooter(t *testing.T) {
	m := newTestManager(t, "wallets")
	_, _ = m.Open("wallets")
	_, _ = m.Dispatch("wallets", SnapTo{Side: SideRight})

	m.Resize(Viewport{Width: 1024, Height: 768})
	g, _ := m.Geometry("wallets")
	assert.Equal(t, ModeFooter, g.Mode)
	assert.Equal(t, 1024.0, m.RemainingScreenWidth())

	m.Resize(desktop)
	g, _ = m.Geometry("wallets")
	assert.Equal(t, ModeSnap, g.Mode)
	assert.Equal(t, 1200.0, g.Position.X)
	assert.Equal(t, 1200.0, m.RemainingScreenWidth())
}

func TestRestoreSanitizes(t *testing.T) {
	m := newTestManager(t, "holdings", "wallets")

	saved := map[string]Geometry{
		"holdings": {
			Position: Point{X: 0}, Size: Size{Width: 400, Height: 900},
			SnappedSide: SideLeft, Mode: ModeSnap, State: StateSnapped,
			Initialized: true, SnapWidth: 400,
			PreSnapSize: Size{Width: 480, Height: 520}, PreSnapPos: Point{X: 100, Y: 100},
		},
		"wallets": {
			Position: Point{X: 0}, Size: Size{Width: 400, Height: 900},
			SnappedSide: SideLeft, Mode: ModeSnap, State: StateDragging,
			Initialized: true, SnapWidth: 400,
			PreSnapSize: Size{Width: 500, Height: 500}, PreSnapPos: Point{X: 3000, Y: 50},
		},
		"unknown": {State: StateFloating},
	}
	m.Restore(saved)

	h, _ := m.Geometry("holdings")
	assert.Equal(t, StateSnapped, h.State)
	assert.Equal(t, SideLeft, h.SnappedSide)

	w, _ := m.Geometry("wallets")
	assert.Equal(t, StateFloating, w.State)
	assert.Equal(t, SideNone, w.SnappedSide)
	assert.Equal(t, Size{Width: 500, Height: 500}, w.Size)
	assert.True(t, w.InBounds(desktop))

	assert.Empty(t, m.Active())
	assert.Len(t, m.Snapshot(), 2)
}

func TestDispatchUnknownPanel(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Dispatch("nope", Open{})
	assert.Error(t, err)

	m = newTestManager(t, "wallets")
	_, err = m.Dispatch("wallets", ViewportResize{From: desktop, To: desktop})
	assert.Error(t, err)
}
