// Package layout manages the geometry of floating and snapped dashboard panels.
package layout

import (
	"fmt"
	"math"
)

// Defaults for panel configuration.
const (
	DefaultSnapThreshold       = 22.5
	DefaultFooterBreakpoint    = 1280.0
	DefaultEdgeTolerance       = 4.0
	DefaultMaxFloatingFraction = 0.6
	DefaultMaxSnappedFraction  = 0.45
	DefaultSnapWidth           = 400.0
	DefaultMinWidth            = 280.0
	DefaultMinHeight           = 200.0
)

// Point is a position in viewport pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a panel size in pixels.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Viewport is the visible area.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Known reports whether the viewport has been measured.
func (v Viewport) Known() bool {
	return v.Width > 0 && v.Height > 0
}

// Side is a snap slot.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// Mode is the display mode persisted with the geometry.
type Mode int

const (
	ModePopup Mode = iota
	ModeSnap
	ModeFooter
)

func (m Mode) String() string {
	switch m {
	case ModeSnap:
		return "snap"
	case ModeFooter:
		return "footer"
	default:
		return "popup"
	}
}

// State is the reducer state of a panel.
type State int

const (
	StateClosed State = iota
	StateFloating
	StateDragging
	StateResizing
	StateSnapped
	StateFooter
)

func (s State) String() string {
	switch s {
	case StateFloating:
		return "floating"
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	case StateSnapped:
		return "snapped"
	case StateFooter:
		return "footer"
	default:
		return "closed"
	}
}

// Transient reports whether a pointer session is in progress.
func (s State) Transient() bool {
	return s == StateDragging || s == StateResizing
}

// Edge is a bitmask of the panel edges grabbed by a resize.
type Edge int

const (
	EdgeLeft Edge = 1 << iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// Has reports whether e includes other.
func (e Edge) Has(other Edge) bool {
	return e&other != 0
}

// PanelConfig describes the sizing rules of one panel.
type PanelConfig struct {
	ID                  string  `yaml:"id"`
	DefaultSize         Size    `yaml:"defaultSize"`
	MinSize             Size    `yaml:"minSize"`
	SnapWidth           float64 `yaml:"snapWidth"`
	MaxFloatingFraction float64 `yaml:"maxFloatingFraction"`
	MaxSnappedFraction  float64 `yaml:"maxSnappedFraction"`
	SnapThreshold       float64 `yaml:"snapThreshold"`
	FooterBreakpoint    float64 `yaml:"footerBreakpoint"`
	EdgeTolerance       float64 `yaml:"edgeTolerance"`
}

// WithDefaults fills unset fields.
func (c PanelConfig) WithDefaults() PanelConfig {
	if c.MinSize.Width <= 0 {
		c.MinSize.Width = DefaultMinWidth
	}
	if c.MinSize.Height <= 0 {
		c.MinSize.Height = DefaultMinHeight
	}
	if c.DefaultSize.Width <= 0 {
		c.DefaultSize.Width = math.Max(c.MinSize.Width, 480)
	}
	if c.DefaultSize.Height <= 0 {
		c.DefaultSize.Height = math.Max(c.MinSize.Height, 520)
	}
	if c.SnapWidth <= 0 {
		c.SnapWidth = DefaultSnapWidth
	}
	if c.MaxFloatingFraction <= 0 || c.MaxFloatingFraction > 1 {
		c.MaxFloatingFraction = DefaultMaxFloatingFraction
	}
	if c.MaxSnappedFraction <= 0 || c.MaxSnappedFraction > 1 {
		c.MaxSnappedFraction = DefaultMaxSnappedFraction
	}
	if c.SnapThreshold <= 0 {
		c.SnapThreshold = DefaultSnapThreshold
	}
	if c.FooterBreakpoint <= 0 {
		c.FooterBreakpoint = DefaultFooterBreakpoint
	}
	if c.EdgeTolerance <= 0 {
		c.EdgeTolerance = DefaultEdgeTolerance
	}
	return c
}

// Validate checks a panel configuration.
func (c PanelConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("panel id is required")
	}
	if c.DefaultSize.Width > 0 && c.MinSize.Width > c.DefaultSize.Width {
		return fmt.Errorf("panel %s: min width above default width", c.ID)
	}
	if c.DefaultSize.Height > 0 && c.MinSize.Height > c.DefaultSize.Height {
		return fmt.Errorf("panel %s: min height above default height", c.ID)
	}
	return nil
}

// Geometry is the full state of one panel.
type Geometry struct {
	Position    Point `json:"position"`
	Size        Size  `json:"size"`
	SnappedSide Side  `json:"snappedSide"`
	Mode        Mode  `json:"mode"`
	State       State `json:"state"`

	Initialized   bool    `json:"initialized"`
	SnapWidth     float64 `json:"snapWidth"`
	PreSnapSize   Size    `json:"preSnapSize"`
	PreSnapPos    Point   `json:"preSnapPosition"`
	PreFooterMode Mode    `json:"preFooterMode"`

	// pointer session, never persisted
	dragOffset   Point
	resizeEdge   Edge
	resizeOrigin Point
	startPos     Point
	startSize    Size
}

// Default returns the geometry of a panel that was never opened.
func Default(cfg PanelConfig) Geometry {
	cfg = cfg.WithDefaults()
	return Geometry{
		Size:      cfg.DefaultSize,
		SnapWidth: cfg.SnapWidth,
		State:     StateClosed,
		Mode:      ModePopup,
	}
}

// Right returns the x coordinate of the right edge.
func (g Geometry) Right() float64 { return g.Position.X + g.Size.Width }

// Bottom returns the y coordinate of the bottom edge.
func (g Geometry) Bottom() float64 { return g.Position.Y + g.Size.Height }

// Visible reports whether the panel is open.
func (g Geometry) Visible() bool { return g.State != StateClosed }

// InBounds reports whether the panel lies inside the viewport.
func (g Geometry) InBounds(vp Viewport) bool {
	const eps = 1e-9
	return g.Position.X >= -eps && g.Position.Y >= -eps &&
		g.Right() <= vp.Width+eps && g.Bottom() <= vp.Height+eps
}

// Slots records which snap sides are taken by other panels.
type Slots struct {
	Left  bool
	Right bool
}

// Taken reports whether a side is occupied.
func (s Slots) Taken(side Side) bool {
	switch side {
	case SideLeft:
		return s.Left
	case SideRight:
		return s.Right
	default:
		return false
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
