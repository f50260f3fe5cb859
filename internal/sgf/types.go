package sgf

// Board size limits of the SGF coordinate system.
const (
	MinBoardSize     = 1
	MaxBoardSize     = 52
	DefaultBoardSize = 19
)

// Color is the content of a board point. It doubles as the player color.
type Color uint8

const (
	Empty Color = iota
	Black
	White
)

// Opponent returns the other player color. Empty has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

func (c Color) String() string {
	switch c {
	case Black:
		return "B"
	case White:
		return "W"
	default:
		return "."
	}
}

// Point is a zero-based board coordinate. X is the column from the left,
// Y the row from the top, matching the SGF letter order.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the SGF letter pair for the point.
func (p Point) String() string {
	return string([]byte{encodeCoord(p.X), encodeCoord(p.Y)})
}

// Move is either a placement or a pass.
type Move struct {
	Color Color `json:"color"`
	Point Point `json:"point"`
	Pass  bool  `json:"pass,omitempty"`
}

// Stone is a setup stone placed before the first move.
type Stone struct {
	Color Color `json:"color"`
	Point Point `json:"point"`
}

// GameInfo holds the root-node metadata of a record, decoded with the
// record's charset.
type GameInfo struct {
	GameName     string  `json:"gameName,omitempty"`
	BlackPlayer  string  `json:"blackPlayer,omitempty"`
	WhitePlayer  string  `json:"whitePlayer,omitempty"`
	BlackRank    string  `json:"blackRank,omitempty"`
	WhiteRank    string  `json:"whiteRank,omitempty"`
	Result       string  `json:"result,omitempty"`
	Date         string  `json:"date,omitempty"`
	Rules        string  `json:"rules,omitempty"`
	Komi         float64 `json:"komi"`
	Handicap     int     `json:"handicap,omitempty"`
	Charset      string  `json:"charset,omitempty"`
	PlayerToMove Color   `json:"playerToMove,omitempty"`
}

// GameRecord is the parse result: board dimensions, setup stones and the
// main-line moves in record order. It is never modified after Parse returns
// and may be shared between goroutines.
type GameRecord struct {
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SizeDeclared bool      `json:"sizeDeclared"`
	Setup        []Stone   `json:"setup,omitempty"`
	Moves        []Move    `json:"moves"`
	Info         GameInfo  `json:"info"`
	Tree         *GameTree `json:"-"`
}

// InBounds reports whether p lies on the board.
func (r *GameRecord) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < r.Width && p.Y < r.Height
}

// Placements returns the number of non-pass moves among the first n moves.
func (r *GameRecord) Placements(n int) int {
	if n > len(r.Moves) {
		n = len(r.Moves)
	}
	count := 0
	for i := 0; i < n; i++ {
		if !r.Moves[i].Pass {
			count++
		}
	}
	return count
}

func encodeCoord(v int) byte {
	if v < 26 {
		return byte('a' + v)
	}
	return byte('A' + v - 26)
}

func decodeCoord(c byte) (int, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return int(c - 'a'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 26, true
	default:
		return 0, false
	}
}
