package world

import (
	"fmt"
	"math"
)

// Board is the bounded space agents move on: [0,Width) × [0,Height) × [0,Depth).
// Depth ≤ 1 describes a flat 2D board.
type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth,omitempty"`
}

// NewBoard returns a 2D board, or an error if either side is not positive.
func NewBoard(width, height int) (Board, error) {
	b := Board{Width: width, Height: height, Depth: 1}
	return b, b.Validate()
}

// Validate checks that every dimension is positive.
func (b Board) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("board must have positive size, got %dx%d", b.Width, b.Height)
	}
	if b.Depth < 0 {
		return fmt.Errorf("board depth must not be negative, got %d", b.Depth)
	}
	return nil
}

// Is3D reports whether the board has more than one Z layer.
func (b Board) Is3D() bool {
	return b.Depth > 1
}

// Rect returns the half-open box covering the whole board.
func (b Board) Rect() Rect {
	depth := b.Depth
	if depth < 1 {
		depth = 1
	}
	return Rect{Max: Position{X: b.Width, Y: b.Height, Z: depth}}
}

// InBounds returns true if the position lies on the board.
func (b Board) InBounds(p Position) bool {
	return b.Rect().Contains(p)
}

// Diagonal returns the longest distance between two cells on the board.
func (b Board) Diagonal() float64 {
	r := b.Rect()
	d := Distance(r.Min, Position{X: r.Max.X - 1, Y: r.Max.Y - 1, Z: r.Max.Z - 1})
	return math.Max(d, 1)
}

// String returns a summary of the board.
func (b Board) String() string {
	if b.Is3D() {
		return fmt.Sprintf("Board{%dx%dx%d}", b.Width, b.Height, b.Depth)
	}
	return fmt.Sprintf("Board{%dx%d}", b.Width, b.Height)
}

// Rect is a half-open box [Min, Max) of cells. It describes an agent's
// movement limit, which is the board or a zone inside it.
type Rect struct {
	Min Position `json:"min"`
	Max Position `json:"max"`
}

// Contains returns true if p lies inside the box.
func (r Rect) Contains(p Position) bool {
	return p.X >= r.Min.X && p.X < r.Max.X &&
		p.Y >= r.Min.Y && p.Y < r.Max.Y &&
		p.Z >= r.Min.Z && p.Z < r.Max.Z
}

// Is3D reports whether the box spans more than one Z layer.
func (r Rect) Is3D() bool {
	return r.Max.Z-r.Min.Z > 1
}

// Empty reports whether the box holds no cells.
func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y || r.Max.Z <= r.Min.Z
}

// Intersect returns the overlap of two boxes. The result may be Empty.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		Min: Position{X: max(r.Min.X, o.Min.X), Y: max(r.Min.Y, o.Min.Y), Z: max(r.Min.Z, o.Min.Z)},
		Max: Position{X: min(r.Max.X, o.Max.X), Y: min(r.Max.Y, o.Max.Y), Z: min(r.Max.Z, o.Max.Z)},
	}
}

// Clamp moves p to the nearest cell inside the box.
func (r Rect) Clamp(p Position) Position {
	return Position{
		X: clampInt(p.X, r.Min.X, r.Max.X-1),
		Y: clampInt(p.Y, r.Min.Y, r.Max.Y-1),
		Z: clampInt(p.Z, r.Min.Z, r.Max.Z-1),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
