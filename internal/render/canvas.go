// Package render draws the board for a human watching an episode.
// Rendering is purely observational: nothing it does feeds back into a step.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/talgya/pursuit/internal/world"
)

// Glyph is what an agent looks like on the canvas.
type Glyph struct {
	Rune  rune
	Color Color
}

// Color is an ANSI foreground colour.
type Color uint8

const (
	ColorNone Color = iota
	ColorRed
	ColorBlue
	ColorYellow
)

var ansiCodes = map[Color]string{
	ColorRed:    "\x1b[31m",
	ColorBlue:   "\x1b[34m",
	ColorYellow: "\x1b[33m",
}

const ansiReset = "\x1b[0m"

// Canvas receives one frame of the board.
type Canvas interface {
	// Begin starts a new frame for the given board.
	Begin(board world.Board, tick int)
	// Plot marks every cell within radius of pos. Later plots win on overlap.
	Plot(pos world.Position, radius int, g Glyph)
	// Flush emits the frame.
	Flush() error
}

// ASCII renders frames as text rows, top row = highest Y.
// 3D boards are projected onto the XY plane.
type ASCII struct {
	w     io.Writer
	color bool

	board world.Board
	tick  int
	cells [][]Glyph
}

// NewASCII creates a text canvas. Colour is enabled when w is a terminal.
func NewASCII(w io.Writer) *ASCII {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ASCII{w: w, color: color}
}

// SetColor forces colour output on or off.
func (c *ASCII) SetColor(on bool) {
	c.color = on
}

// Begin clears the grid.
func (c *ASCII) Begin(board world.Board, tick int) {
	c.board = board
	c.tick = tick
	c.cells = make([][]Glyph, board.Height)
	for y := range c.cells {
		c.cells[y] = make([]Glyph, board.Width)
	}
}

// Plot marks a square of side 2*radius-1 centred on pos; radius ≤ 1 is a single cell.
func (c *ASCII) Plot(pos world.Position, radius int, g Glyph) {
	r := radius - 1
	if r < 0 {
		r = 0
	}
	for y := pos.Y - r; y <= pos.Y+r; y++ {
		for x := pos.X - r; x <= pos.X+r; x++ {
			if y < 0 || y >= len(c.cells) || x < 0 || x >= len(c.cells[y]) {
				continue
			}
			c.cells[y][x] = g
		}
	}
}

// Flush writes the frame with a border and tick header.
func (c *ASCII) Flush() error {
	bw := bufio.NewWriter(c.w)
	fmt.Fprintf(bw, "tick %d\n", c.tick)
	border := "+" + strings.Repeat("-", c.board.Width) + "+\n"
	bw.WriteString(border)
	for y := len(c.cells) - 1; y >= 0; y-- {
		bw.WriteByte('|')
		for _, g := range c.cells[y] {
			c.writeGlyph(bw, g)
		}
		bw.WriteString("|\n")
	}
	bw.WriteString(border)
	return bw.Flush()
}

func (c *ASCII) writeGlyph(bw *bufio.Writer, g Glyph) {
	if g.Rune == 0 {
		bw.WriteByte('.')
		return
	}
	code, ok := ansiCodes[g.Color]
	if !c.color || !ok {
		bw.WriteRune(g.Rune)
		return
	}
	bw.WriteString(code)
	bw.WriteRune(g.Rune)
	bw.WriteString(ansiReset)
}
