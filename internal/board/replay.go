package board

import (
	"github.com/dmmcquay/sgfrender/internal/sgf"
)

// ClampMoveIndex limits target to [0, total].
func ClampMoveIndex(target, total int) int {
	if target < 0 {
		return 0
	}
	if target > total {
		return total
	}
	return target
}

// Replay applies the setup stones and the first target moves of rec and
// returns the resulting position. target is clamped to [0, len(rec.Moves)].
// Only the applied prefix is checked for legality.
func Replay(rec *sgf.GameRecord, target int) (*State, error) {
	target = ClampMoveIndex(target, len(rec.Moves))

	g := NewGame(rec.Width, rec.Height)
	if err := g.Setup(rec.Setup); err != nil {
		return nil, err
	}
	for i := 0; i < target; i++ {
		if err := g.Play(rec.Moves[i]); err != nil {
			return nil, err
		}
	}
	return g.State(), nil
}
