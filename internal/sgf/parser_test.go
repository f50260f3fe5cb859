package sgf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		sgf        string
		wantWidth  int
		wantHeight int
		wantMoves  int
		wantSetup  int
		wantPasses int
	}{
		{
			name: "Basic game",
			sgf: `(;GM[1]FF[4]CA[UTF-8]SZ[19]KM[7.5]
				PB[Black Player]PW[White Player]
				;B[pd];W[dd];B[pp];W[dp])`,
			wantWidth: 19, wantHeight: 19, wantMoves: 4,
		},
		{
			name:      "Small board",
			sgf:       `(;GM[1]FF[4]SZ[13]KM[5.5]RU[Japanese];B[dd];W[jj])`,
			wantWidth: 13, wantHeight: 13, wantMoves: 2,
		},
		{
			name:      "Rectangular board",
			sgf:       `(;SZ[7:5];B[ge];W[aa])`,
			wantWidth: 7, wantHeight: 5, wantMoves: 2,
		},
		{
			name:      "Default size",
			sgf:       `(;GM[1];B[ss])`,
			wantWidth: 19, wantHeight: 19, wantMoves: 1,
		},
		{
			name:      "Handicap stones",
			sgf:       `(;SZ[19]HA[2]AB[pd][dp];W[dd];B[pp])`,
			wantWidth: 19, wantHeight: 19, wantMoves: 2, wantSetup: 2,
		},
		{
			name:      "Setup rectangle",
			sgf:       `(;SZ[9]AB[aa:cb]AW[ii])`,
			wantWidth: 9, wantHeight: 9, wantSetup: 7,
		},
		{
			name:      "Empty setup removes stones",
			sgf:       `(;SZ[9]AB[aa:cc]AE[bb])`,
			wantWidth: 9, wantHeight: 9, wantSetup: 8,
		},
		{
			name:      "Passes",
			sgf:       `(;SZ[19];B[dd];W[];B[tt];W[pp])`,
			wantWidth: 19, wantHeight: 19, wantMoves: 4, wantPasses: 2,
		},
		{
			name:      "Unknown properties ignored",
			sgf:       `(;SZ[9]XX[whatever]C[comment with \] bracket];B[ee]LB[ee:1]TR[aa])`,
			wantWidth: 9, wantHeight: 9, wantMoves: 1,
		},
		{
			name:      "Lowercase letters in identifiers",
			sgf:       `(;SiZe[9];Black[ee];White[ff])`,
			wantWidth: 9, wantHeight: 9, wantMoves: 2,
		},
		{
			name:      "Size only",
			sgf:       `(;FF[4]SZ[9])`,
			wantWidth: 9, wantHeight: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.sgf)
			require.NoError(t, err)

			assert.Equal(t, tt.wantWidth, rec.Width)
			assert.Equal(t, tt.wantHeight, rec.Height)
			assert.Len(t, rec.Moves, tt.wantMoves)
			assert.Len(t, rec.Setup, tt.wantSetup)

			passes := 0
			for _, m := range rec.Moves {
				if m.Pass {
					passes++
				}
			}
			assert.Equal(t, tt.wantPasses, passes)
		})
	}
}

func TestParseMoveOrderAndCoordinates(t *testing.T) {
	_, err := Parse(`(;SZ[19];B[pd];W[dc];B[];W[sA])`)
	require.ErrorIs(t, err, kerrors.ErrCoordinateOutOfBounds, "row A is 26, off a 19x19 board")

	rec, err := Parse(`(;SZ[19];B[pd];W[dc];B[])`)
	require.NoError(t, err)
	require.Len(t, rec.Moves, 3)

	assert.Equal(t, Move{Color: Black, Point: Point{X: 15, Y: 3}}, rec.Moves[0])
	assert.Equal(t, Move{Color: White, Point: Point{X: 3, Y: 2}}, rec.Moves[1])
	assert.Equal(t, Move{Color: Black, Pass: true}, rec.Moves[2])
	assert.Equal(t, 2, rec.Placements(3))
	assert.Equal(t, "pd", rec.Moves[0].Point.String())
}

func TestParseLargeBoardCoordinates(t *testing.T) {
	rec, err := Parse(`(;SZ[52];B[AZ];W[tt])`)
	require.NoError(t, err)
	require.Len(t, rec.Moves, 2)

	assert.Equal(t, Point{X: 26, Y: 51}, rec.Moves[0].Point)
	assert.False(t, rec.Moves[1].Pass, "tt is a real point on boards larger than 19")
	assert.Equal(t, Point{X: 19, Y: 19}, rec.Moves[1].Point)
}

func TestParseMainLineOnly(t *testing.T) {
	sgf := `(;SZ[9]
		;B[aa]
		(;W[bb];B[cc](;W[dd])(;W[ee]))
		(;W[ff]C[a variation with (parens) and \] escapes];B[gg]))`

	rec, err := Parse(sgf)
	require.NoError(t, err)
	require.Len(t, rec.Moves, 4)

	want := []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	for i, p := range want {
		assert.Equal(t, p, rec.Moves[i].Point, "move %d", i+1)
	}
	assert.Equal(t, 2, rec.Tree.SkippedVariations)
}

func TestParseCollectionUsesFirstGame(t *testing.T) {
	rec, err := Parse(`(;SZ[9];B[aa])(;SZ[13];B[bb];W[cc])`)
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Width)
	assert.Len(t, rec.Moves, 1)
}

func TestParseValueEscapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"escaped bracket", `GN[a\]b]`, "a]b"},
		{"escaped backslash", `GN[a\\b]`, `a\b`},
		{"escaped colon", `GN[a\:b]`, "a:b"},
		{"soft line break", "GN[ab\\\ncd]", "abcd"},
		{"soft crlf break", "GN[ab\\\r\ncd]", "abcd"},
		{"crlf normalised", "C[ab\r\ncd]", "ab\ncd"},
		{"lone cr normalised", "C[ab\rcd]", "ab\ncd"},
		{"lfcr normalised", "C[ab\n\rcd]", "ab\ncd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := newParser("(;" + tt.raw + ")").parseCollection()
			require.NoError(t, err)
			require.Len(t, tree.Nodes, 1)
			require.Len(t, tree.Nodes[0].Properties, 1)
			assert.Equal(t, tt.want, tree.Nodes[0].Properties[0].Values[0])
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		sgf       string
		target    error
		wantPos   int
		wantIndex int
	}{
		{"no game tree", `just some text`, kerrors.ErrMalformed, -1, 0},
		{"unterminated value", `(;SZ[9];B[aa`, kerrors.ErrMalformed, 9, 0},
		{"unterminated tree", `(;SZ[9];B[aa]`, kerrors.ErrMalformed, 0, 0},
		{"property without value", `(;SZ[9];B)`, kerrors.ErrMalformed, 8, 0},
		{"empty tree", `()`, kerrors.ErrMalformed, 0, 0},
		{"stray character", `(;SZ[9]];B[aa])`, kerrors.ErrMalformed, 7, 0},
		{"bad point letters", `(;SZ[9];B[a1])`, kerrors.ErrMalformed, 8, 0},
		{"unterminated variation", `(;SZ[9];B[aa](;W[bb])(;W[cc]`, kerrors.ErrMalformed, -1, 0},
		{"move out of bounds", `(;SZ[9];B[aa];W[jj])`, kerrors.ErrCoordinateOutOfBounds, -1, 2},
		{"setup out of bounds", `(;SZ[9]AB[aa][zz])`, kerrors.ErrCoordinateOutOfBounds, -1, 0},
		{"board size zero", `(;SZ[0])`, kerrors.ErrInvalidBoardSize, -1, 0},
		{"board size too large", `(;SZ[53])`, kerrors.ErrInvalidBoardSize, -1, 0},
		{"board size garbage", `(;SZ[big])`, kerrors.ErrInvalidBoardSize, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.sgf)
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)

			var perr *kerrors.ParseError
			require.True(t, errors.As(err, &perr))
			if tt.wantPos >= 0 {
				assert.Equal(t, tt.wantPos, perr.Position)
			}
			assert.Equal(t, tt.wantIndex, perr.MoveIndex)
		})
	}
}

func TestParseDefaultSizeOption(t *testing.T) {
	rec, err := Parse(`(;B[aa];W[mm])`, WithDefaultSize(13, 13))
	require.NoError(t, err)
	assert.Equal(t, 13, rec.Width)
	assert.False(t, rec.SizeDeclared)

	rec, err = Parse(`(;SZ[9];B[aa])`, WithDefaultSize(13, 13))
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Width, "declared size wins over the fallback")
	assert.True(t, rec.SizeDeclared)
}

func TestGameInfo(t *testing.T) {
	sgf := "(;SZ[19]GN[Final]PB[Lee Sedol]PW[AlphaGo]BR[9p]WR[-]KM[7.5]" +
		"RE[W+R]DT[2016-03-09]RU[Chinese]HA[0]PL[W];B[pd])"

	rec, err := Parse(sgf)
	require.NoError(t, err)

	assert.Equal(t, GameInfo{
		GameName:     "Final",
		BlackPlayer:  "Lee Sedol",
		WhitePlayer:  "AlphaGo",
		BlackRank:    "9p",
		WhiteRank:    "-",
		Result:       "W+R",
		Date:         "2016-03-09",
		Rules:        "Chinese",
		Komi:         7.5,
		PlayerToMove: White,
	}, rec.Info)
}

func TestGameInfoCharset(t *testing.T) {
	rec, err := Parse("(;CA[ISO-8859-1]PB[Ren\xe9];B[aa])")
	require.NoError(t, err)
	assert.Equal(t, "René", rec.Info.BlackPlayer)
	assert.Equal(t, "ISO-8859-1", rec.Info.Charset)

	rec, err = Parse("(;CA[no-such-charset]PB[plain];B[aa])")
	require.NoError(t, err)
	assert.Equal(t, "plain", rec.Info.BlackPlayer)
}

func TestColorOpponent(t *testing.T) {
	assert.Equal(t, White, Black.Opponent())
	assert.Equal(t, Black, White.Opponent())
	assert.Equal(t, Empty, Empty.Opponent())
}
