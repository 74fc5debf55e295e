// Package world provides the pursuit board, grid positions, and movement directions.
// Positions are integer cells; a 2D board keeps Z at 0.
package world

import (
	"fmt"
	"math"
)

// Position is a cell on the board.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z,omitempty"`
}

// Direction is one discrete move an agent can take in a tick.
type Direction uint8

const (
	Stay     Direction = iota // Remain on the current cell
	Up                        // +Y
	Down                      // -Y
	Left                      // -X
	Right                     // +X
	Forward                   // +Z, 3D worlds only
	Backward                  // -Z, 3D worlds only
)

// NumDirections2D and NumDirections3D are the action-space sizes per world mode.
const (
	NumDirections2D = 5
	NumDirections3D = 7
)

// directionOffsets maps each direction to its cell offset.
var directionOffsets = [NumDirections3D]Position{
	Stay:     {},
	Up:       {Y: 1},
	Down:     {Y: -1},
	Left:     {X: -1},
	Right:    {X: 1},
	Forward:  {Z: 1},
	Backward: {Z: -1},
}

var directionNames = [NumDirections3D]string{"stay", "up", "down", "left", "right", "forward", "backward"}

// String returns the lowercase direction name.
func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "unknown"
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return int(d) < NumDirections3D
}

// MarshalText encodes the direction by name so logs and JSON stay readable.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDirection maps a lowercase name back to its Direction.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return Stay, fmt.Errorf("unknown direction %q", s)
}

// Directions enumerates the action space for the given world mode.
func Directions(world3D bool) []Direction {
	n := NumDirections2D
	if world3D {
		n = NumDirections3D
	}
	dirs := make([]Direction, n)
	for i := range dirs {
		dirs[i] = Direction(i)
	}
	return dirs
}

// PositionFromDirection resolves the cell reached by moving from pos in dir.
// No bounds check is applied; callers decide what to do with off-board cells.
func PositionFromDirection(pos Position, dir Direction) Position {
	if !dir.Valid() {
		return pos
	}
	off := directionOffsets[dir]
	return Position{X: pos.X + off.X, Y: pos.Y + off.Y, Z: pos.Z + off.Z}
}

// PossibleDirections returns the directions from pos that stay inside limit.
// Stay is always included, even when pos itself lies outside limit.
// Z moves are only offered when limit spans more than one layer.
func PossibleDirections(limit Rect, pos Position) []Direction {
	n := NumDirections2D
	if limit.Is3D() {
		n = NumDirections3D
	}
	dirs := []Direction{Stay}
	for d := Direction(1); int(d) < n; d++ {
		if limit.Contains(PositionFromDirection(pos, d)) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// Distance returns the Euclidean distance between two cells.
func Distance(a, b Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// WithinDistance returns the indexes of candidates whose distance from origin
// is at most maxDistance.
func WithinDistance(origin Position, candidates []Position, maxDistance float64) []int {
	var idx []int
	for i, c := range candidates {
		if Distance(origin, c) <= maxDistance {
			idx = append(idx, i)
		}
	}
	return idx
}

// Nearest returns the index of the candidate closest to origin and its distance.
// Returns -1 when candidates is empty.
func Nearest(origin Position, candidates []Position) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, c := range candidates {
		if d := Distance(origin, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
