package board

import (
	"strings"

	"github.com/dmmcquay/sgfrender/internal/sgf"
)

// Captures counts stones captured by each player.
type Captures struct {
	Black int `json:"black"`
	White int `json:"white"`
}

// PlacedStone is a stone on the board together with the 1-based number of
// the move that placed it. Number is 0 for setup stones.
type PlacedStone struct {
	Color  sgf.Color `json:"color"`
	Point  sgf.Point `json:"point"`
	Number int       `json:"number,omitempty"`
}

// State is an immutable snapshot of a position. It is produced by Replay
// or Game.State and never changes afterwards.
type State struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Captures  Captures   `json:"captures"`
	LastMove  *sgf.Point `json:"lastMove,omitempty"`
	KoPoint   *sgf.Point `json:"koPoint,omitempty"`
	MoveIndex int        `json:"moveIndex"`

	cells       []sgf.Color
	moveNumbers []int
}

// State returns a snapshot of the current position.
func (g *Game) State() *State {
	s := &State{
		Width:       g.width,
		Height:      g.height,
		Captures:    Captures{Black: g.captures[sgf.Black], White: g.captures[sgf.White]},
		MoveIndex:   g.played,
		cells:       append([]sgf.Color(nil), g.cells...),
		moveNumbers: append([]int(nil), g.moveNumbers...),
	}
	if g.lastMove != none {
		p := g.point(g.lastMove)
		s.LastMove = &p
	}
	if g.ko != none {
		p := g.point(g.ko)
		s.KoPoint = &p
	}
	return s
}

// At returns the content of p, or Empty when p is off the board.
func (s *State) At(p sgf.Point) sgf.Color {
	if p.X < 0 || p.Y < 0 || p.X >= s.Width || p.Y >= s.Height {
		return sgf.Empty
	}
	return s.cells[p.Y*s.Width+p.X]
}

// MoveNumber returns the move number of the stone at p, 0 for setup stones
// and empty points.
func (s *State) MoveNumber(p sgf.Point) int {
	if s.At(p) == sgf.Empty {
		return 0
	}
	return s.moveNumbers[p.Y*s.Width+p.X]
}

// StoneCount returns the number of stones on the board.
func (s *State) StoneCount() int {
	count := 0
	for _, c := range s.cells {
		if c != sgf.Empty {
			count++
		}
	}
	return count
}

// Stones lists the stones on the board in row-major order.
func (s *State) Stones() []PlacedStone {
	stones := make([]PlacedStone, 0, s.StoneCount())
	for i, c := range s.cells {
		if c == sgf.Empty {
			continue
		}
		stones = append(stones, PlacedStone{
			Color:  c,
			Point:  sgf.Point{X: i % s.Width, Y: i / s.Width},
			Number: s.moveNumbers[i],
		})
	}
	return stones
}

// String draws the position as text: X for black, O for white, + for
// empty points, with the ko point marked as *.
func (s *State) String() string {
	var sb strings.Builder
	sb.Grow((s.Width*2 + 1) * s.Height)
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			if x > 0 {
				sb.WriteByte(' ')
			}
			p := sgf.Point{X: x, Y: y}
			switch s.At(p) {
			case sgf.Black:
				sb.WriteByte('X')
			case sgf.White:
				sb.WriteByte('O')
			default:
				if s.KoPoint != nil && *s.KoPoint == p {
					sb.WriteByte('*')
				} else {
					sb.WriteByte('+')
				}
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
