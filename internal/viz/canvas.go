package viz

import (
	"math"
	"strings"

	"github.com/san-kum/densesolve/internal/problem"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
//
// offset from U+2800.
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a grid of braille cells addressed in dot coordinates, two dots
// wide and four tall per cell.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set marks the dot at (x, y). Out of range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// SpyPlot draws the nonzero pattern of the lower triangle of sys, mirrored,
// at no more than maxCols braille cells across. Larger matrices are
// downsampled so that a dot stands for any nonzero in its block.
func SpyPlot(sys *problem.System, maxCols int) string {
	n := sys.N
	if n == 0 {
		return Subtle.Render("empty matrix")
	}
	dots := min(n, 2*max(maxCols, 1))
	c := NewCanvas((dots+1)/2, (dots+3)/4)
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			if v := sys.At(i, j); v == 0 || math.IsNaN(v) {
				continue
			}
			x, y := j*dots/n, i*dots/n
			c.Set(x, y)
			c.Set(y, x)
		}
	}
	return c.String()
}
