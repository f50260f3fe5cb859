package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmmcquay/sgfrender/internal/board"
	"github.com/dmmcquay/sgfrender/internal/sgf"
)

// Description summarises a record and the position at a move.
type Description struct {
	Width             int            `json:"width"`
	Height            int            `json:"height"`
	Info              sgf.GameInfo   `json:"info"`
	TotalMoves        int            `json:"totalMoves"`
	SetupStones       int            `json:"setupStones"`
	SkippedVariations int            `json:"skippedVariations"`
	MoveIndex         int            `json:"moveIndex"`
	Stones            int            `json:"stones"`
	Captures          board.Captures `json:"captures"`
	LastMove          string         `json:"lastMove,omitempty"`
	KoPoint           string         `json:"koPoint,omitempty"`
	Board             string         `json:"board"`
}

// Describe parses and replays sgfText like Render but returns a text
// summary instead of an image. Only the board size and move options are
// used; the theme is still validated.
func (s *Service) Describe(ctx context.Context, sgfText string, opts Options) (*Description, error) {
	req, err := validate(opts)
	if err != nil {
		return nil, err
	}

	rec, state, err := s.position(sgfText, req.opts)
	if err != nil {
		s.logger.WithContext(ctx).Debug("Describe failed", "error", err)
		return nil, err
	}

	d := &Description{
		Width:       rec.Width,
		Height:      rec.Height,
		Info:        rec.Info,
		TotalMoves:  len(rec.Moves),
		SetupStones: len(rec.Setup),
		MoveIndex:   state.MoveIndex,
		Stones:      state.StoneCount(),
		Captures:    state.Captures,
		Board:       state.String(),
	}
	if rec.Tree != nil {
		d.SkippedVariations = rec.Tree.SkippedVariations
	}
	if state.LastMove != nil {
		d.LastMove = state.LastMove.String()
	}
	if state.KoPoint != nil {
		d.KoPoint = state.KoPoint.String()
	}
	return d, nil
}

// String formats d for terminals and MCP text results.
func (d *Description) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Board: %dx%d\n", d.Width, d.Height)
	if d.Info.GameName != "" {
		fmt.Fprintf(&b, "Game: %s\n", d.Info.GameName)
	}
	if d.Info.BlackPlayer != "" || d.Info.WhitePlayer != "" {
		fmt.Fprintf(&b, "Players: %s (B) vs %s (W)\n",
			withRank(d.Info.BlackPlayer, d.Info.BlackRank),
			withRank(d.Info.WhitePlayer, d.Info.WhiteRank))
	}
	if d.Info.Komi != 0 {
		fmt.Fprintf(&b, "Komi: %g\n", d.Info.Komi)
	}
	if d.Info.Handicap > 0 {
		fmt.Fprintf(&b, "Handicap: %d\n", d.Info.Handicap)
	}
	if d.Info.Result != "" {
		fmt.Fprintf(&b, "Result: %s\n", d.Info.Result)
	}
	fmt.Fprintf(&b, "Position: move %d of %d\n", d.MoveIndex, d.TotalMoves)
	fmt.Fprintf(&b, "Stones: %d (setup %d)\n", d.Stones, d.SetupStones)
	fmt.Fprintf(&b, "Captures: black %d, white %d\n", d.Captures.Black, d.Captures.White)
	if d.LastMove != "" {
		fmt.Fprintf(&b, "Last move: %s\n", d.LastMove)
	}
	if d.KoPoint != "" {
		fmt.Fprintf(&b, "Ko: %s\n", d.KoPoint)
	}
	if d.SkippedVariations > 0 {
		fmt.Fprintf(&b, "Variations skipped: %d\n", d.SkippedVariations)
	}
	b.WriteString("\n")
	b.WriteString(d.Board)
	return b.String()
}

func withRank(name, rank string) string {
	if name == "" {
		name = "?"
	}
	if rank == "" {
		return name
	}
	return name + " " + rank
}
