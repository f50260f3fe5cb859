package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

var (
	fontsOnce   sync.Once
	regularFont *truetype.Font
	boldFont    *truetype.Font
	fontsErr    error
)

// LoadFonts parses the embedded fonts once. Parsed fonts are read-only and
// shared; faces are created per render because they cache glyphs.
func LoadFonts() error {
	fontsOnce.Do(func() {
		regularFont, fontsErr = truetype.Parse(goregular.TTF)
		if fontsErr != nil {
			fontsErr = fmt.Errorf("failed to parse regular font: %w", fontsErr)
			return
		}
		boldFont, fontsErr = truetype.Parse(gobold.TTF)
		if fontsErr != nil {
			fontsErr = fmt.Errorf("failed to parse bold font: %w", fontsErr)
		}
	})
	return fontsErr
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// drawCentered draws text centered on (cx, cy). With outline set the text
// is first stamped around the center in the outline color.
func drawCentered(dst *image.RGBA, face font.Face, text string, cx, cy float64, fill color.Color, outline color.Color, spread int) {
	bounds, _ := font.BoundString(face, text)
	dot := fixed.Point26_6{
		X: fixed.Int26_6(cx*64) - (bounds.Min.X+bounds.Max.X)/2,
		Y: fixed.Int26_6(cy*64) - (bounds.Min.Y+bounds.Max.Y)/2,
	}

	d := &font.Drawer{Dst: dst, Face: face}
	if outline != nil && spread > 0 {
		d.Src = image.NewUniform(outline)
		for dy := -spread; dy <= spread; dy++ {
			for dx := -spread; dx <= spread; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				d.Dot = dot.Add(fixed.P(dx, dy))
				d.DrawString(text)
			}
		}
	}

	d.Src = image.NewUniform(fill)
	d.Dot = dot
	d.DrawString(text)
}

// labelSpread is the outline thickness in pixels for a label of size points.
func labelSpread(size float64) int {
	return int(math.Max(1, math.Round(size/14)))
}

// fitLabelFace returns a bold face no larger than size whose outlined
// rendering of widest fits within maxWidth pixels.
func fitLabelFace(size, maxWidth float64, widest string) (font.Face, float64) {
	for {
		face := newFace(boldFont, size)
		width := float64(font.MeasureString(face, widest))/64 + float64(2*labelSpread(size))
		if width <= maxWidth || size <= minLabelSize {
			return face, size
		}
		face.Close()
		size *= 0.9
	}
}
