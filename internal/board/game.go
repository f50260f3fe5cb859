// Package board replays a game record into board positions. Captures,
// suicide and single-stone ko are enforced; any illegal move aborts the
// replay.
package board

import (
	"fmt"

	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
	"github.com/dmmcquay/sgfrender/internal/sgf"
)

const none = -1

type removedStone struct {
	index  int
	number int
}

// Game is a mutable position. It is not safe for concurrent use; Replay
// creates a fresh Game for every call.
type Game struct {
	width, height int
	cells         []sgf.Color
	moveNumbers   []int
	captures      [3]int
	lastMove      int
	ko            int
	played        int

	// Flood fill scratch, reused across moves.
	mark    []uint32
	epoch   uint32
	group   []int
	removed []removedStone
}

// NewGame returns an empty width×height position.
func NewGame(width, height int) *Game {
	n := width * height
	return &Game{
		width:       width,
		height:      height,
		cells:       make([]sgf.Color, n),
		moveNumbers: make([]int, n),
		lastMove:    none,
		ko:          none,
		mark:        make([]uint32, n),
		group:       make([]int, 0, n),
	}
}

// Setup places setup stones. They carry no move number and never capture.
func (g *Game) Setup(stones []sgf.Stone) error {
	for _, s := range stones {
		if !g.inBounds(s.Point) {
			return &kerrors.ParseError{
				Kind: kerrors.CoordinateOutOfBounds,
				Msg:  fmt.Sprintf("setup stone %s outside %dx%d board", s.Point, g.width, g.height),
			}
		}
		g.cells[g.index(s.Point)] = s.Color
	}
	return nil
}

// Played returns the number of moves applied so far, passes included.
func (g *Game) Played() int {
	return g.played
}

// Play applies the next move. On error the position is left unchanged.
func (g *Game) Play(m sgf.Move) error {
	number := g.played + 1

	if m.Pass {
		g.ko = none
		g.lastMove = none
		g.played++
		return nil
	}

	if !g.inBounds(m.Point) {
		return &kerrors.ParseError{
			Kind:      kerrors.CoordinateOutOfBounds,
			MoveIndex: number,
			Msg:       fmt.Sprintf("point %s outside %dx%d board", m.Point, g.width, g.height),
		}
	}

	idx := g.index(m.Point)
	if g.cells[idx] != sgf.Empty {
		return g.moveError(kerrors.OccupiedPoint, number, m)
	}

	color := m.Color
	opp := color.Opponent()
	g.cells[idx] = color

	g.removed = g.removed[:0]
	var adj [4]int
	for _, n := range g.neighbors(idx, &adj) {
		if g.cells[n] != opp {
			continue
		}
		stones, liberties := g.flood(n)
		if liberties > 0 {
			continue
		}
		for _, s := range stones {
			g.removed = append(g.removed, removedStone{index: s, number: g.moveNumbers[s]})
			g.cells[s] = sgf.Empty
			g.moveNumbers[s] = 0
		}
	}

	own, liberties := g.flood(idx)
	single := len(own) == 1 && liberties == 1 && len(g.removed) == 1

	if idx == g.ko && single {
		g.undo(idx, opp)
		return g.moveError(kerrors.KoViolation, number, m)
	}
	if liberties == 0 {
		g.undo(idx, opp)
		return g.moveError(kerrors.Suicide, number, m)
	}

	g.captures[color] += len(g.removed)
	g.moveNumbers[idx] = number
	g.lastMove = idx
	if single {
		g.ko = g.removed[0].index
	} else {
		g.ko = none
	}
	g.played++
	return nil
}

// undo reverts a tentative placement at idx and restores removed stones.
func (g *Game) undo(idx int, removedColor sgf.Color) {
	g.cells[idx] = sgf.Empty
	for _, r := range g.removed {
		g.cells[r.index] = removedColor
		g.moveNumbers[r.index] = r.number
	}
	g.removed = g.removed[:0]
}

func (g *Game) moveError(kind kerrors.MoveErrorKind, number int, m sgf.Move) error {
	return &kerrors.InvalidMoveError{
		Kind:      kind,
		MoveIndex: number,
		Color:     m.Color.String(),
		X:         m.Point.X,
		Y:         m.Point.Y,
	}
}

// flood returns the group containing start and its number of distinct
// liberties. The returned slice is scratch space owned by g and is only
// valid until the next call.
func (g *Game) flood(start int) ([]int, int) {
	g.nextEpoch()
	color := g.cells[start]

	g.group = append(g.group[:0], start)
	g.mark[start] = g.epoch
	liberties := 0

	var adj [4]int
	for i := 0; i < len(g.group); i++ {
		for _, n := range g.neighbors(g.group[i], &adj) {
			if g.mark[n] == g.epoch {
				continue
			}
			switch g.cells[n] {
			case color:
				g.mark[n] = g.epoch
				g.group = append(g.group, n)
			case sgf.Empty:
				g.mark[n] = g.epoch
				liberties++
			}
		}
	}
	return g.group, liberties
}

func (g *Game) nextEpoch() {
	g.epoch++
	if g.epoch == 0 {
		for i := range g.mark {
			g.mark[i] = 0
		}
		g.epoch = 1
	}
}

// neighbors fills buf with the 4-adjacent indices of idx.
func (g *Game) neighbors(idx int, buf *[4]int) []int {
	x, y := idx%g.width, idx/g.width
	n := 0
	if x > 0 {
		buf[n] = idx - 1
		n++
	}
	if x < g.width-1 {
		buf[n] = idx + 1
		n++
	}
	if y > 0 {
		buf[n] = idx - g.width
		n++
	}
	if y < g.height-1 {
		buf[n] = idx + g.width
		n++
	}
	return buf[:n]
}

func (g *Game) index(p sgf.Point) int {
	return p.Y*g.width + p.X
}

func (g *Game) point(idx int) sgf.Point {
	return sgf.Point{X: idx % g.width, Y: idx / g.width}
}

func (g *Game) inBounds(p sgf.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}
