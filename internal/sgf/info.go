package sgf

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// readGameInfo collects root-node metadata. Text values are decoded from the
// CA charset when it names a known non-UTF-8 encoding; values that fail to
// decode are kept as-is.
func readGameInfo(root *Node) GameInfo {
	charset, _ := root.First("CA")
	dec := charsetDecoder(charset)

	text := func(ident string) string {
		v, ok := root.First(ident)
		if !ok {
			return ""
		}
		return decodeText(dec, strings.TrimSpace(v))
	}

	info := GameInfo{
		GameName:    text("GN"),
		BlackPlayer: text("PB"),
		WhitePlayer: text("PW"),
		BlackRank:   text("BR"),
		WhiteRank:   text("WR"),
		Result:      text("RE"),
		Date:        text("DT"),
		Rules:       text("RU"),
		Charset:     strings.TrimSpace(charset),
	}

	if v, ok := root.First("KM"); ok {
		if komi, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			info.Komi = komi
		}
	}
	if v, ok := root.First("HA"); ok {
		if ha, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && ha >= 0 {
			info.Handicap = ha
		}
	}
	if v, ok := root.First("PL"); ok {
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "B":
			info.PlayerToMove = Black
		case "W":
			info.PlayerToMove = White
		}
	}

	return info
}

// charsetDecoder returns nil for UTF-8, ASCII and unknown charsets.
func charsetDecoder(name string) *encoding.Decoder {
	name = strings.TrimSpace(name)
	switch strings.ToUpper(name) {
	case "", "UTF-8", "UTF8", "US-ASCII", "ASCII":
		return nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil
	}
	return enc.NewDecoder()
}

func decodeText(dec *encoding.Decoder, s string) string {
	if dec == nil || s == "" {
		return s
	}
	out, err := dec.String(s)
	if err != nil {
		return s
	}
	return out
}
