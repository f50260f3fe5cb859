// Package render draws board positions onto an RGBA canvas.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"

	"github.com/srwiley/rasterx"

	"github.com/dmmcquay/sgfrender/internal/board"
	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
	"github.com/dmmcquay/sgfrender/internal/sgf"
	"github.com/dmmcquay/sgfrender/internal/theme"
)

// Cell size limits in pixels.
const (
	DefaultCellSize = 40
	MinCellSize     = 12
	MaxCellSize     = 200
)

const (
	margin       = 1.5  // cells between the canvas edge and the outer grid line
	stoneRadius  = 0.48 // cells
	labelSize    = 0.6  // cells
	labelFit     = 0.8  // share of the stone diameter a label may use
	coordSize    = 0.38 // cells
	minLabelSize = 4.0  // points
)

// Options controls a single render.
type Options struct {
	CellSize    int
	Kifu        bool
	Coordinates bool
}

// Label is a move number drawn on a stone.
type Label struct {
	Point  sgf.Point `json:"point"`
	Text   string    `json:"text"`
	Number int       `json:"number"`
}

// Canvas is the result of a render. Labels lists every move number drawn,
// in row-major order.
type Canvas struct {
	Image    *image.RGBA
	CellSize int
	Labels   []Label
}

// Size returns the canvas dimensions for a board and cell size.
func Size(width, height, cellSize int) (int, int) {
	return (width + 2) * cellSize, (height + 2) * cellSize
}

// Render draws state with th. state is not modified.
func Render(state *board.State, th theme.Theme, opts Options) (*Canvas, error) {
	if opts.CellSize == 0 {
		opts.CellSize = DefaultCellSize
	}
	if opts.CellSize < MinCellSize || opts.CellSize > MaxCellSize {
		return nil, &kerrors.ConfigError{
			Kind:  kerrors.BadOption,
			Field: "cellSize",
			Value: strconv.Itoa(opts.CellSize),
		}
	}
	if err := LoadFonts(); err != nil {
		return nil, err
	}

	w, h := Size(state.Width, state.Height, opts.CellSize)
	r := &renderer{
		state: state,
		theme: th,
		opts:  opts,
		cell:  float64(opts.CellSize),
		img:   image.NewRGBA(image.Rect(0, 0, w, h)),
	}
	r.paint = newPainter(r.img)

	r.drawBackground()
	r.drawGrid()
	r.drawStarPoints()
	if opts.Coordinates {
		r.drawCoordinates()
	}

	stones := state.Stones()
	r.drawStones(stones)
	r.drawLastMove()

	canvas := &Canvas{Image: r.img, CellSize: opts.CellSize}
	if opts.Kifu {
		canvas.Labels = r.drawLabels(stones)
	}
	return canvas, nil
}

type renderer struct {
	state *board.State
	theme theme.Theme
	opts  Options
	cell  float64
	img   *image.RGBA
	paint *painter
}

// center returns the pixel position of an intersection.
func (r *renderer) center(p sgf.Point) (float64, float64) {
	return (margin + float64(p.X)) * r.cell, (margin + float64(p.Y)) * r.cell
}

func (r *renderer) drawBackground() {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(r.theme.Background), image.Point{}, draw.Src)
}

func (r *renderer) drawGrid() {
	lw := math.Max(1, r.theme.LineWidth*r.cell)
	left, top := r.center(sgf.Point{})
	right, bottom := r.center(sgf.Point{X: r.state.Width - 1, Y: r.state.Height - 1})

	r.paint.fill(r.theme.Line, func(a rasterx.Adder) {
		for x := 0; x < r.state.Width; x++ {
			cx, _ := r.center(sgf.Point{X: x})
			rasterx.AddRect(cx-lw/2, top-lw/2, cx+lw/2, bottom+lw/2, 0, a)
		}
		for y := 0; y < r.state.Height; y++ {
			_, cy := r.center(sgf.Point{Y: y})
			rasterx.AddRect(left-lw/2, cy-lw/2, right+lw/2, cy+lw/2, 0, a)
		}
	})
}

// StarPoints returns the conventional star points for square 9, 13 and 19
// boards and nil for every other size. The smaller boards get five.
func StarPoints(width, height int) []sgf.Point {
	if width != height {
		return nil
	}
	var lines []int
	switch width {
	case 9:
		lines = []int{2, 4, 6}
	case 13:
		lines = []int{3, 6, 9}
	case 19:
		lines = []int{3, 9, 15}
	default:
		return nil
	}

	points := make([]sgf.Point, 0, 9)
	for _, y := range lines {
		for _, x := range lines {
			if width < 19 && (x == lines[1]) != (y == lines[1]) {
				continue
			}
			points = append(points, sgf.Point{X: x, Y: y})
		}
	}
	return points
}

func (r *renderer) drawStarPoints() {
	radius := math.Max(1.5, r.theme.StarRadius*r.cell)
	for _, p := range StarPoints(r.state.Width, r.state.Height) {
		cx, cy := r.center(p)
		r.paint.circle(r.theme.Star, cx, cy, radius)
	}
}

// ColumnLabel returns the coordinate label of column x. Letters skip I and
// are used up to 25 columns; wider boards use numbers.
func ColumnLabel(x, width int) string {
	const letters = "ABCDEFGHJKLMNOPQRSTUVWXYZ"
	if width <= len(letters) {
		return letters[x : x+1]
	}
	return strconv.Itoa(x + 1)
}

// RowLabel returns the coordinate label of row y, counted from the bottom.
func RowLabel(y, height int) string {
	return strconv.Itoa(height - y)
}

func (r *renderer) drawCoordinates() {
	face := newFace(regularFont, coordSize*r.cell)
	defer face.Close()

	c := r.theme.Coordinate
	near := 0.55 * r.cell
	farX := float64(r.img.Bounds().Dx()) - near
	farY := float64(r.img.Bounds().Dy()) - near

	for x := 0; x < r.state.Width; x++ {
		cx, _ := r.center(sgf.Point{X: x})
		text := ColumnLabel(x, r.state.Width)
		drawCentered(r.img, face, text, cx, near, c, nil, 0)
		drawCentered(r.img, face, text, cx, farY, c, nil, 0)
	}
	for y := 0; y < r.state.Height; y++ {
		_, cy := r.center(sgf.Point{Y: y})
		text := RowLabel(y, r.state.Height)
		drawCentered(r.img, face, text, near, cy, c, nil, 0)
		drawCentered(r.img, face, text, farX, cy, c, nil, 0)
	}
}

func (r *renderer) drawStones(stones []board.PlacedStone) {
	radius := stoneRadius * r.cell

	if r.theme.Style == theme.Glass && r.theme.Shadow.A > 0 {
		off := r.theme.ShadowOffset * r.cell
		for _, s := range stones {
			cx, cy := r.center(s.Point)
			r.paint.circle(r.theme.Shadow, cx+off, cy+off, radius)
		}
	}

	for _, s := range stones {
		cx, cy := r.center(s.Point)
		colors := r.theme.Stone(s.Color == sgf.Black)

		switch r.theme.Style {
		case theme.Glass:
			fx, fy := cx-0.35*radius, cy-0.35*radius
			r.paint.radial(colors.Highlight, colors.Base, cx, cy, radius, fx, fy)
		default:
			r.paint.circle(colors.Base, cx, cy, radius)
		}

		if colors.EdgeWidth > 0 {
			edge := math.Max(1, colors.EdgeWidth*r.cell)
			r.paint.ring(colors.Edge, cx, cy, radius, radius-edge)
		}
	}
}

// drawLastMove marks the most recent placement: a dot normally, a ring in
// kifu mode so the number stays readable.
func (r *renderer) drawLastMove() {
	last := r.state.LastMove
	if last == nil || r.state.At(*last) == sgf.Empty {
		return
	}

	cx, cy := r.center(*last)
	if r.opts.Kifu {
		outer := stoneRadius * r.cell
		r.paint.ring(r.theme.LastMove, cx, cy, outer, outer-math.Max(1.5, 0.07*r.cell))
		return
	}
	r.paint.circle(r.theme.LastMove, cx, cy, math.Max(2, 0.16*r.cell))
}

func (r *renderer) drawLabels(stones []board.PlacedStone) []Label {
	labels := make([]Label, 0, len(stones))
	widest := ""
	for _, s := range stones {
		if s.Number == 0 {
			continue
		}
		text := strconv.Itoa(s.Number)
		if len(text) > len(widest) {
			widest = text
		}
		labels = append(labels, Label{Point: s.Point, Text: text, Number: s.Number})
	}
	if len(labels) == 0 {
		return labels
	}

	diameter := 2 * stoneRadius * r.cell
	face, size := fitLabelFace(labelSize*r.cell, labelFit*diameter, widest)
	defer face.Close()
	spread := labelSpread(size)

	for _, l := range labels {
		cx, cy := r.center(l.Point)
		colors := r.theme.Stone(r.state.At(l.Point) == sgf.Black)
		drawCentered(r.img, face, l.Text, cx, cy, colors.Label, colors.Base, spread)
	}
	return labels
}

func (c *Canvas) String() string {
	b := c.Image.Bounds()
	return fmt.Sprintf("%dx%d canvas, %d labels", b.Dx(), b.Dy(), len(c.Labels))
}
