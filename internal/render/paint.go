package render

import (
	"image"
	"image/color"
	"math"

	"github.com/srwiley/rasterx"
)

// painter fills anti-aliased paths onto an RGBA image.
type painter struct {
	img    *image.RGBA
	filler *rasterx.Filler
}

func newPainter(img *image.RGBA) *painter {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	return &painter{
		img:    img,
		filler: rasterx.NewFiller(w, h, scanner),
	}
}

// fill builds a path with add and paints it with c, which is either a
// color.Color or a rasterx color function. The scanner only fills by
// nonzero winding, so holes need contours of opposite orientation.
func (p *painter) fill(c interface{}, add func(rasterx.Adder)) {
	p.filler.Clear()
	add(p.filler)
	p.filler.SetColor(c)
	p.filler.Draw()
}

func (p *painter) circle(c color.Color, cx, cy, r float64) {
	p.fill(c, func(a rasterx.Adder) {
		rasterx.AddCircle(cx, cy, r, a)
	})
}

// ring paints the band between inner and outer radius. The inner contour
// runs against the outer one so it cuts a hole.
func (p *painter) ring(c color.Color, cx, cy, outer, inner float64) {
	p.fill(c, func(a rasterx.Adder) {
		addPolygonCircle(a, cx, cy, outer, false)
		if inner > 0 {
			addPolygonCircle(a, cx, cy, inner, true)
		}
	})
}

// addPolygonCircle adds a closed circle approximated by short chords,
// traversed clockwise in image space when reverse is false.
func addPolygonCircle(a rasterx.Adder, cx, cy, r float64, reverse bool) {
	n := int(math.Max(64, math.Ceil(2*math.Pi*r/2)))
	step := 2 * math.Pi / float64(n)
	if reverse {
		step = -step
	}
	a.Start(rasterx.ToFixedP(cx+r, cy))
	for i := 1; i < n; i++ {
		angle := step * float64(i)
		a.Line(rasterx.ToFixedP(cx+r*math.Cos(angle), cy+r*math.Sin(angle)))
	}
	a.Stop(true)
}

// radial paints a disc shaded from highlight at the focus to base at the rim.
func (p *painter) radial(highlight, base color.Color, cx, cy, r, fx, fy float64) {
	grad := rasterx.Gradient{
		Points: [5]float64{fx, fy, fx, fy, r * 1.35},
		Stops: []rasterx.GradStop{
			{StopColor: highlight, Offset: 0, Opacity: 1},
			{StopColor: base, Offset: 0.55, Opacity: 1},
			{StopColor: base, Offset: 1, Opacity: 1},
		},
		Matrix:   rasterx.Identity,
		Units:    rasterx.UserSpaceOnUse,
		IsRadial: true,
	}
	p.fill(grad.GetColorFunction(1), func(a rasterx.Adder) {
		rasterx.AddCircle(cx, cy, r, a)
	})
}
