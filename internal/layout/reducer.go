package layout

import "math"

// Event is an input of the geometry reducer.
type Event interface {
	event()
}

// Open shows a closed panel.
type Open struct{}

// Close hides a panel and resets it to its default geometry.
type Close struct{}

// DragStart is a pointer-down on the panel header.
type DragStart struct {
	Pointer Point
	// OnControl is set when the pointer is on an interactive child control.
	OnControl bool
}

// DragMove is a pointer move during a drag.
type DragMove struct {
	Pointer Point
}

// DragEnd is the pointer-up of a drag.
type DragEnd struct {
	Occupied Slots
}

// ResizeStart is a pointer-down on a resize handle.
type ResizeStart struct {
	Edge    Edge
	Pointer Point
}

// ResizeMove is a pointer move during a resize.
type ResizeMove struct {
	Pointer Point
}

// ResizeEnd is the pointer-up of a resize.
type ResizeEnd struct{}

// ViewportResize reports a change of the viewport size.
type ViewportResize struct {
	From Viewport
	To   Viewport
}

// SnapTo snaps (or with SideNone unsnaps) a panel without a drag.
type SnapTo struct {
	Side     Side
	Occupied Slots
}

func (Open) event()           {}
func (Close) event()          {}
func (DragStart) event()      {}
func (DragMove) event()       {}
func (DragEnd) event()        {}
func (ResizeStart) event()    {}
func (ResizeMove) event()     {}
func (ResizeEnd) event()      {}
func (ViewportResize) event() {}
func (SnapTo) event()         {}

// Reduce returns the geometry after ev. It never mutates its input and every
// result of an open panel lies inside the viewport.
func Reduce(g Geometry, cfg PanelConfig, vp Viewport, ev Event) Geometry {
	cfg = cfg.WithDefaults()
	if g.SnapWidth <= 0 {
		g.SnapWidth = cfg.SnapWidth
	}

	switch e := ev.(type) {
	case Open:
		g = open(g, cfg, vp)
	case Close:
		return Default(cfg)
	case DragStart:
		g = dragStart(g, e)
	case DragMove:
		g = dragMove(g, cfg, vp, e)
	case DragEnd:
		g = dragEnd(g, cfg, vp, e)
	case ResizeStart:
		g = resizeStart(g, e)
	case ResizeMove:
		g = resizeMove(g, cfg, vp, e)
	case ResizeEnd:
		g = resizeEnd(g)
	case ViewportResize:
		vp = e.To
		g = viewportResize(g, cfg, e)
	case SnapTo:
		g = snapTo(g, cfg, vp, e)
	}

	if g.State == StateClosed {
		return g
	}
	return Clamp(g, cfg, vp)
}

func open(g Geometry, cfg PanelConfig, vp Viewport) Geometry {
	if g.State != StateClosed {
		return g
	}
	if !g.Initialized {
		g = Default(cfg)
		g.Size = clampSize(cfg.DefaultSize, cfg, vp, false)
		if vp.Known() {
			g.Position = Point{
				X: (vp.Width - g.Size.Width) / 2,
				Y: (vp.Height - g.Size.Height) / 2,
			}
		}
		g.Initialized = true
	}

	g.State = StateFloating
	g.Mode = ModePopup
	if g.SnappedSide != SideNone {
		g.State = StateSnapped
		g.Mode = ModeSnap
	}
	if vp.Known() && vp.Width < cfg.FooterBreakpoint {
		g = enterFooter(g)
	}
	return g
}

func dragStart(g Geometry, e DragStart) Geometry {
	if e.OnControl {
		return g
	}
	if g.State != StateFloating && g.State != StateSnapped {
		return g
	}
	g.State = StateDragging
	g.dragOffset = Point{X: e.Pointer.X - g.Position.X, Y: e.Pointer.Y - g.Position.Y}
	return g
}

func dragMove(g Geometry, cfg PanelConfig, vp Viewport, e DragMove) Geometry {
	if g.State != StateDragging {
		return g
	}

	if g.SnappedSide != SideNone {
		// first move after grabbing a snapped panel un-snaps it
		oldWidth := g.Size.Width
		g = unsnap(g, cfg, vp)
		if oldWidth > 0 {
			g.dragOffset.X = g.dragOffset.X * g.Size.Width / oldWidth
		}
		g.dragOffset.Y = math.Min(g.dragOffset.Y, g.Size.Height)
	}

	g.Position = Point{X: e.Pointer.X - g.dragOffset.X, Y: e.Pointer.Y - g.dragOffset.Y}
	return clampPosition(g, vp)
}

func dragEnd(g Geometry, cfg PanelConfig, vp Viewport, e DragEnd) Geometry {
	if g.State != StateDragging {
		return g
	}
	g.dragOffset = Point{}

	// grabbed while snapped but never moved
	if g.SnappedSide != SideNone {
		g.State = StateSnapped
		return g
	}

	side := detectSnap(g, cfg, vp)
	if side != SideNone && !e.Occupied.Taken(side) {
		return snap(g, cfg, vp, side)
	}
	g.State = StateFloating
	return g
}

// detectSnap checks the panel's last tracked horizontal position against the
// viewport edges.
func detectSnap(g Geometry, cfg PanelConfig, vp Viewport) Side {
	if !vp.Known() {
		return SideNone
	}
	if g.Position.X <= cfg.SnapThreshold {
		return SideLeft
	}
	if g.Right() >= vp.Width-cfg.SnapThreshold {
		return SideRight
	}
	return SideNone
}

func snap(g Geometry, cfg PanelConfig, vp Viewport, side Side) Geometry {
	if g.SnappedSide == SideNone {
		g.PreSnapSize = g.Size
		g.PreSnapPos = g.Position
	}
	g.SnappedSide = side
	g.Mode = ModeSnap
	g.State = StateSnapped
	return pin(g, cfg, vp)
}

func unsnap(g Geometry, cfg PanelConfig, vp Viewport) Geometry {
	restore := g.PreSnapSize
	if restore.Width <= 0 || restore.Height <= 0 {
		restore = cfg.DefaultSize
	}
	g.Size = clampSize(restore, cfg, vp, false)
	g.Position = g.PreSnapPos
	g.SnappedSide = SideNone
	g.Mode = ModePopup
	return g
}

// pin places a snapped panel against its edge at full height.
func pin(g Geometry, cfg PanelConfig, vp Viewport) Geometry {
	if !vp.Known() {
		return g
	}
	width := math.Min(g.SnapWidth, vp.Width)
	g.Size = Size{Width: width, Height: vp.Height}
	g.Position.Y = 0
	if g.SnappedSide == SideRight {
		g.Position.X = vp.Width - width
	} else {
		g.Position.X = 0
	}
	return g
}

func resizeStart(g Geometry, e ResizeStart) Geometry {
	switch g.State {
	case StateFloating:
	case StateSnapped:
		// only the free edge of a snapped panel moves
		free := EdgeRight
		if g.SnappedSide == SideRight {
			free = EdgeLeft
		}
		if e.Edge != free {
			return g
		}
	default:
		return g
	}
	g.State = StateResizing
	g.resizeEdge = e.Edge
	g.resizeOrigin = e.Pointer
	g.startPos = g.Position
	g.startSize = g.Size
	return g
}

func resizeMove(g Geometry, cfg PanelConfig, vp Viewport, e ResizeMove) Geometry {
	if g.State != StateResizing {
		return g
	}
	dx := e.Pointer.X - g.resizeOrigin.X
	dy := e.Pointer.Y - g.resizeOrigin.Y

	if g.SnappedSide != SideNone {
		width := g.startSize.Width + dx
		if g.SnappedSide == SideRight {
			width = g.startSize.Width - dx
		}
		g.SnapWidth = clampSnapWidth(width, cfg, vp)
		return pin(g, cfg, vp)
	}

	x, y := g.startPos.X, g.startPos.Y
	w, h := g.startSize.Width, g.startSize.Height
	if g.resizeEdge.Has(EdgeRight) {
		w += dx
	}
	if g.resizeEdge.Has(EdgeLeft) {
		w -= dx
	}
	if g.resizeEdge.Has(EdgeBottom) {
		h += dy
	}
	if g.resizeEdge.Has(EdgeTop) {
		h -= dy
	}

	size := clampSize(Size{Width: w, Height: h}, cfg, vp, false)

	// left and top handles keep the opposite edge fixed
	if g.resizeEdge.Has(EdgeLeft) {
		x = g.startPos.X + g.startSize.Width - size.Width
	}
	if g.resizeEdge.Has(EdgeTop) {
		y = g.startPos.Y + g.startSize.Height - size.Height
	}

	// shrink instead of sliding past the viewport
	if vp.Known() {
		if x < 0 {
			size.Width += x
			x = 0
		}
		if y < 0 {
			size.Height += y
			y = 0
		}
		if x+size.Width > vp.Width {
			size.Width = vp.Width - x
		}
		if y+size.Height > vp.Height {
			size.Height = vp.Height - y
		}
	}

	g.Position = Point{X: x, Y: y}
	g.Size = size
	return g
}

func resizeEnd(g Geometry) Geometry {
	if g.State != StateResizing {
		return g
	}
	g.resizeEdge = 0
	if g.SnappedSide != SideNone {
		g.State = StateSnapped
	} else {
		g.State = StateFloating
	}
	return g
}

func viewportResize(g Geometry, cfg PanelConfig, e ViewportResize) Geometry {
	if g.State == StateClosed || !e.To.Known() {
		return g
	}

	if e.To.Width < cfg.FooterBreakpoint && g.Mode != ModeFooter {
		g = enterFooter(g)
	} else if e.To.Width >= cfg.FooterBreakpoint && g.Mode == ModeFooter {
		g = leaveFooter(g)
	}

	if g.SnappedSide != SideNone {
		return pin(g, cfg, e.To)
	}

	if !e.From.Known() {
		return g
	}

	rightGap := e.From.Width - g.Right()
	bottomGap := e.From.Height - g.Bottom()
	pinnedRight := math.Abs(rightGap) <= cfg.EdgeTolerance
	pinnedBottom := math.Abs(bottomGap) <= cfg.EdgeTolerance

	g.Size.Width = math.Min(g.Size.Width, e.To.Width)
	g.Size.Height = math.Min(g.Size.Height, e.To.Height)

	if pinnedRight {
		g.Position.X = e.To.Width - g.Size.Width - math.Max(rightGap, 0)
	}
	if pinnedBottom {
		g.Position.Y = e.To.Height - g.Size.Height - math.Max(bottomGap, 0)
	}
	return g
}

func enterFooter(g Geometry) Geometry {
	if g.Mode == ModeFooter {
		return g
	}
	g.PreFooterMode = g.Mode
	g.Mode = ModeFooter
	g.State = StateFooter
	g.dragOffset = Point{}
	g.resizeEdge = 0
	return g
}

func leaveFooter(g Geometry) Geometry {
	g.Mode = g.PreFooterMode
	if g.Mode == ModeSnap && g.SnappedSide != SideNone {
		g.State = StateSnapped
	} else {
		g.Mode = ModePopup
		g.State = StateFloating
	}
	return g
}

func snapTo(g Geometry, cfg PanelConfig, vp Viewport, e SnapTo) Geometry {
	if g.State != StateFloating && g.State != StateSnapped {
		return g
	}
	if e.Side == SideNone {
		if g.SnappedSide == SideNone {
			return g
		}
		g = unsnap(g, cfg, vp)
		g.State = StateFloating
		return g
	}
	if e.Side == g.SnappedSide || e.Occupied.Taken(e.Side) {
		return g
	}
	return snap(g, cfg, vp, e.Side)
}

// Clamp enforces the viewport invariant on an open panel.
func Clamp(g Geometry, cfg PanelConfig, vp Viewport) Geometry {
	if !vp.Known() {
		return g
	}
	cfg = cfg.WithDefaults()
	if g.SnappedSide != SideNone && g.Mode != ModeFooter {
		return pin(g, cfg, vp)
	}
	g.Size.Width = clamp(g.Size.Width, 0, vp.Width)
	g.Size.Height = clamp(g.Size.Height, 0, vp.Height)
	return clampPosition(g, vp)
}

func clampPosition(g Geometry, vp Viewport) Geometry {
	if !vp.Known() {
		return g
	}
	g.Position.X = clamp(g.Position.X, 0, vp.Width-g.Size.Width)
	g.Position.Y = clamp(g.Position.Y, 0, vp.Height-g.Size.Height)
	return g
}

// clampSize applies min sizes, the width fraction limit and the viewport.
func clampSize(s Size, cfg PanelConfig, vp Viewport, snapped bool) Size {
	s.Width = math.Max(s.Width, cfg.MinSize.Width)
	s.Height = math.Max(s.Height, cfg.MinSize.Height)
	if !vp.Known() {
		return s
	}
	fraction := cfg.MaxFloatingFraction
	if snapped {
		fraction = cfg.MaxSnappedFraction
	}
	maxWidth := math.Max(vp.Width*fraction, math.Min(cfg.MinSize.Width, vp.Width))
	s.Width = math.Min(s.Width, maxWidth)
	s.Height = math.Min(s.Height, vp.Height)
	return s
}

func clampSnapWidth(width float64, cfg PanelConfig, vp Viewport) float64 {
	return clampSize(Size{Width: width, Height: cfg.MinSize.Height}, cfg, vp, true).Width
}
