package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/pursuit/internal/world"
)

func TestASCIIFrame(t *testing.T) {
	var buf bytes.Buffer
	c := NewASCII(&buf)
	c.Begin(world.Board{Width: 3, Height: 2}, 4)
	c.Plot(world.Position{X: 0, Y: 0}, 1, Glyph{Rune: 'T', Color: ColorRed})
	c.Plot(world.Position{X: 2, Y: 1}, 1, Glyph{Rune: 'O', Color: ColorBlue})
	require.NoError(t, c.Flush())

	want := strings.Join([]string{
		"tick 4",
		"+---+",
		"|..O|",
		"|T..|",
		"+---+",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestASCIIColorAndRadius(t *testing.T) {
	var buf bytes.Buffer
	c := NewASCII(&buf)
	c.SetColor(true)
	c.Begin(world.Board{Width: 3, Height: 3}, 0)
	c.Plot(world.Position{X: 1, Y: 1}, 2, Glyph{Rune: 'O', Color: ColorBlue})
	require.NoError(t, c.Flush())

	assert.Equal(t, 9, strings.Count(buf.String(), "\x1b[34mO\x1b[0m"))
}

func TestASCIIIgnoresOffBoard(t *testing.T) {
	var buf bytes.Buffer
	c := NewASCII(&buf)
	c.Begin(world.Board{Width: 2, Height: 2}, 1)
	c.Plot(world.Position{X: -1, Y: 5}, 1, Glyph{Rune: 'X'})
	require.NoError(t, c.Flush())
	assert.NotContains(t, buf.String(), "X")
}
