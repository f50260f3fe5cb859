package sgf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
)

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

type parseOptions struct {
	width  int
	height int
}

// WithDefaultSize sets the board size used when the record has no SZ
// property. The values are not validated here.
func WithDefaultSize(width, height int) ParseOption {
	return func(o *parseOptions) {
		o.width = width
		o.height = height
	}
}

// Parse parses the main line of the first game in text.
func Parse(text string, opts ...ParseOption) (*GameRecord, error) {
	o := parseOptions{width: DefaultBoardSize, height: DefaultBoardSize}
	for _, opt := range opts {
		opt(&o)
	}

	tree, err := newParser(text).parseCollection()
	if err != nil {
		return nil, err
	}

	rec := &GameRecord{
		Width:  o.width,
		Height: o.height,
		Moves:  []Move{},
		Tree:   tree,
	}

	root := tree.Nodes[0]
	if err := rec.readRoot(root); err != nil {
		return nil, err
	}

	for _, node := range tree.Nodes {
		for _, prop := range node.Properties {
			var color Color
			switch prop.Ident {
			case "B":
				color = Black
			case "W":
				color = White
			default:
				continue
			}
			move, err := rec.parseMove(color, prop)
			if err != nil {
				return nil, err
			}
			rec.Moves = append(rec.Moves, move)
		}
	}

	return rec, nil
}

// readRoot reads board size, game info and setup stones from the root node.
func (r *GameRecord) readRoot(root *Node) error {
	for _, prop := range root.Properties {
		if prop.Ident != "SZ" {
			continue
		}
		w, h, err := parseBoardSize(prop.Values[0])
		if err != nil {
			return err
		}
		r.Width, r.Height = w, h
		r.SizeDeclared = true
		break
	}

	r.Info = readGameInfo(root)

	return r.readSetup(root)
}

// parseBoardSize accepts "n" or "w:h" with each side in 1..52.
func parseBoardSize(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	wPart, hPart, rect := strings.Cut(value, ":")
	if !rect {
		hPart = wPart
	}

	w, errW := strconv.Atoi(strings.TrimSpace(wPart))
	h, errH := strconv.Atoi(strings.TrimSpace(hPart))
	if errW != nil || errH != nil {
		return 0, 0, &kerrors.ParseError{
			Kind: kerrors.InvalidBoardSize,
			Msg:  fmt.Sprintf("board size %q is not a number", value),
		}
	}
	if w < MinBoardSize || w > MaxBoardSize || h < MinBoardSize || h > MaxBoardSize {
		return 0, 0, &kerrors.ParseError{
			Kind: kerrors.InvalidBoardSize,
			Msg:  fmt.Sprintf("board size %dx%d outside %d..%d", w, h, MinBoardSize, MaxBoardSize),
		}
	}
	return w, h, nil
}

// parseMove converts a B or W property into a Move. The move index used in
// errors is the 1-based number the move would get.
func (r *GameRecord) parseMove(color Color, prop Property) (Move, error) {
	value := prop.Values[0]
	if value == "" || (value == "tt" && r.Width <= 19 && r.Height <= 19) {
		return Move{Color: color, Pass: true}, nil
	}

	point, err := r.decodePoint(value, prop.Pos, len(r.Moves)+1)
	if err != nil {
		return Move{}, err
	}
	return Move{Color: color, Point: point}, nil
}

func (r *GameRecord) decodePoint(value string, pos, moveIndex int) (Point, error) {
	if len(value) != 2 {
		return Point{}, malformed(pos, "invalid point %q", value)
	}
	x, okX := decodeCoord(value[0])
	y, okY := decodeCoord(value[1])
	if !okX || !okY {
		return Point{}, malformed(pos, "invalid point %q", value)
	}

	p := Point{X: x, Y: y}
	if !r.InBounds(p) {
		return Point{}, &kerrors.ParseError{
			Kind:      kerrors.CoordinateOutOfBounds,
			Position:  pos,
			MoveIndex: moveIndex,
			Msg:       fmt.Sprintf("point %q outside %dx%d board", value, r.Width, r.Height),
		}
	}
	return p, nil
}

// readSetup applies the root AB, AW and AE properties in record order.
// Values may be single points or "aa:cc" rectangles.
func (r *GameRecord) readSetup(root *Node) error {
	stones := make(map[Point]Color)
	for _, prop := range root.Properties {
		var color Color
		switch prop.Ident {
		case "AB":
			color = Black
		case "AW":
			color = White
		case "AE":
			color = Empty
		default:
			continue
		}

		for _, value := range prop.Values {
			points, err := r.expandPoints(value, prop.Pos)
			if err != nil {
				return err
			}
			for _, p := range points {
				if color == Empty {
					delete(stones, p)
				} else {
					stones[p] = color
				}
			}
		}
	}

	r.Setup = make([]Stone, 0, len(stones))
	for p, c := range stones {
		r.Setup = append(r.Setup, Stone{Color: c, Point: p})
	}
	sort.Slice(r.Setup, func(i, j int) bool {
		a, b := r.Setup[i].Point, r.Setup[j].Point
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return nil
}

func (r *GameRecord) expandPoints(value string, pos int) ([]Point, error) {
	from, to, rect := strings.Cut(value, ":")
	first, err := r.decodePoint(from, pos, 0)
	if err != nil {
		return nil, err
	}
	if !rect {
		return []Point{first}, nil
	}

	last, err := r.decodePoint(to, pos, 0)
	if err != nil {
		return nil, err
	}

	minX, maxX := order(first.X, last.X)
	minY, maxY := order(first.Y, last.Y)
	points := make([]Point, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			points = append(points, Point{X: x, Y: y})
		}
	}
	return points, nil
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
