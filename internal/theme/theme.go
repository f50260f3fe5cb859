// Package theme holds the fixed catalog of board looks.
package theme

import (
	"image/color"
	"sort"

	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
)

// Default is the theme used when the caller names none.
const Default = "dark"

// StoneStyle selects how stones are painted.
type StoneStyle int

const (
	// Flat stones are a solid disc with an optional outline.
	Flat StoneStyle = iota
	// Glass stones use a radial highlight and a drop shadow.
	Glass
)

func (s StoneStyle) String() string {
	if s == Glass {
		return "glass"
	}
	return "flat"
}

// StoneColors describes one stone color.
type StoneColors struct {
	Base      color.NRGBA
	Highlight color.NRGBA // glass only
	Edge      color.NRGBA
	EdgeWidth float64 // fraction of the cell size, 0 for none
	// Label is the fill color of move numbers drawn on the stone. The
	// outline uses Base.
	Label color.NRGBA
}

// Theme is a read-only board look. Sizes are fractions of the cell size.
type Theme struct {
	Name         string
	Background   color.NRGBA
	Line         color.NRGBA
	LineWidth    float64
	Star         color.NRGBA
	StarRadius   float64
	Style        StoneStyle
	Black        StoneColors
	White        StoneColors
	Shadow       color.NRGBA
	ShadowOffset float64
	Coordinate   color.NRGBA
	LastMove     color.NRGBA
}

var catalog = map[string]Theme{
	"dark": {
		Name:         "dark",
		Background:   color.NRGBA{R: 0x5c, G: 0x40, B: 0x28, A: 0xff},
		Line:         color.NRGBA{R: 0xe6, G: 0xd2, B: 0xb0, A: 0xff},
		LineWidth:    0.03,
		Star:         color.NRGBA{R: 0xe6, G: 0xd2, B: 0xb0, A: 0xff},
		StarRadius:   0.1,
		Style:        Glass,
		Black: StoneColors{
			Base:      color.NRGBA{R: 0x10, G: 0x10, B: 0x12, A: 0xff},
			Highlight: color.NRGBA{R: 0x6a, G: 0x6a, B: 0x70, A: 0xff},
			Label:     color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		},
		White: StoneColors{
			Base:      color.NRGBA{R: 0xd8, G: 0xd8, B: 0xd4, A: 0xff},
			Highlight: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
			Label:     color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff},
		},
		Shadow:       color.NRGBA{A: 0x70},
		ShadowOffset: 0.05,
		Coordinate:   color.NRGBA{R: 0xe6, G: 0xd2, B: 0xb0, A: 0xff},
		LastMove:     color.NRGBA{R: 0xe0, G: 0x3c, B: 0x31, A: 0xff},
	},
	"light": {
		Name:         "light",
		Background:   color.NRGBA{R: 0xe3, G: 0xb8, B: 0x6b, A: 0xff},
		Line:         color.NRGBA{R: 0x1e, G: 0x14, B: 0x0a, A: 0xff},
		LineWidth:    0.03,
		Star:         color.NRGBA{R: 0x1e, G: 0x14, B: 0x0a, A: 0xff},
		StarRadius:   0.1,
		Style:        Glass,
		Black: StoneColors{
			Base:      color.NRGBA{R: 0x14, G: 0x14, B: 0x14, A: 0xff},
			Highlight: color.NRGBA{R: 0x70, G: 0x70, B: 0x70, A: 0xff},
			Label:     color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		},
		White: StoneColors{
			Base:      color.NRGBA{R: 0xe0, G: 0xe0, B: 0xdc, A: 0xff},
			Highlight: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
			Label:     color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff},
		},
		Shadow:       color.NRGBA{A: 0x50},
		ShadowOffset: 0.05,
		Coordinate:   color.NRGBA{R: 0x3c, G: 0x28, B: 0x14, A: 0xff},
		LastMove:     color.NRGBA{R: 0xc0, G: 0x20, B: 0x20, A: 0xff},
	},
	"paper": {
		Name:       "paper",
		Background: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Line:       color.NRGBA{A: 0xff},
		LineWidth:  0.025,
		Star:       color.NRGBA{A: 0xff},
		StarRadius: 0.1,
		Style:      Flat,
		Black: StoneColors{
			Base:  color.NRGBA{A: 0xff},
			Label: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		},
		White: StoneColors{
			Base:      color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
			Edge:      color.NRGBA{A: 0xff},
			EdgeWidth: 0.04,
			Label:     color.NRGBA{A: 0xff},
		},
		Coordinate: color.NRGBA{A: 0xff},
		LastMove:   color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	},
}

// Resolve returns the theme called name. The empty name selects Default.
func Resolve(name string) (Theme, error) {
	if name == "" {
		name = Default
	}
	t, ok := catalog[name]
	if !ok {
		return Theme{}, &kerrors.ConfigError{Kind: kerrors.UnknownTheme, Field: "theme", Value: name}
	}
	return t, nil
}

// Names lists the catalog in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stone returns the colors for a stone of the given player, true for black.
func (t Theme) Stone(black bool) StoneColors {
	if black {
		return t.Black
	}
	return t.White
}
