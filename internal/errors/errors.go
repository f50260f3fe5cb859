// Package errors holds the error taxonomy shared by the parse, replay and
// render stages. Every error is fatal to the render call that produced it.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed             = errors.New("malformed record")
	ErrCoordinateOutOfBounds = errors.New("coordinate out of bounds")
	ErrInvalidBoardSize      = errors.New("invalid board size")
	ErrOccupiedPoint         = errors.New("point is occupied")
	ErrSuicide               = errors.New("suicide")
	ErrKoViolation           = errors.New("ko violation")
	ErrUnknownTheme          = errors.New("unknown theme")
	ErrInvalidOption         = errors.New("invalid option")
)

// ParseErrorKind classifies a ParseError.
type ParseErrorKind int

const (
	Malformed ParseErrorKind = iota
	CoordinateOutOfBounds
	InvalidBoardSize
)

// ParseError reports a record that could not be turned into a GameRecord.
// Position is a byte offset into the input; MoveIndex is the 1-based move
// number (0 for setup stones) for coordinate errors.
type ParseError struct {
	Kind      ParseErrorKind
	Position  int
	MoveIndex int
	Msg       string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case CoordinateOutOfBounds:
		return fmt.Sprintf("parse error: move %d: %s", e.MoveIndex, e.Msg)
	case InvalidBoardSize:
		return fmt.Sprintf("parse error: %s", e.Msg)
	default:
		return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Msg)
	}
}

func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case Malformed:
		return target == ErrMalformed
	case CoordinateOutOfBounds:
		return target == ErrCoordinateOutOfBounds
	case InvalidBoardSize:
		return target == ErrInvalidBoardSize
	}
	return false
}

// MoveErrorKind classifies an InvalidMoveError.
type MoveErrorKind int

const (
	OccupiedPoint MoveErrorKind = iota
	Suicide
	KoViolation
)

func (k MoveErrorKind) String() string {
	switch k {
	case OccupiedPoint:
		return "occupied point"
	case Suicide:
		return "suicide"
	case KoViolation:
		return "ko violation"
	default:
		return "invalid move"
	}
}

// InvalidMoveError reports an illegal move in the main line.
type InvalidMoveError struct {
	Kind      MoveErrorKind
	MoveIndex int
	Color     string
	X, Y      int
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid move %d (%s at %d,%d): %s", e.MoveIndex, e.Color, e.X, e.Y, e.Kind)
}

func (e *InvalidMoveError) Is(target error) bool {
	switch e.Kind {
	case OccupiedPoint:
		return target == ErrOccupiedPoint
	case Suicide:
		return target == ErrSuicide
	case KoViolation:
		return target == ErrKoViolation
	}
	return false
}

// ConfigErrorKind classifies a ConfigError.
type ConfigErrorKind int

const (
	UnknownTheme ConfigErrorKind = iota
	BadBoardSize
	BadOption
)

// ConfigError reports caller options rejected before any parsing starts.
type ConfigError struct {
	Kind  ConfigErrorKind
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case UnknownTheme:
		return fmt.Sprintf("config error: unknown theme %q", e.Value)
	case BadBoardSize:
		return fmt.Sprintf("config error: invalid board size %s=%s", e.Field, e.Value)
	default:
		return fmt.Sprintf("config error: invalid %s %q", e.Field, e.Value)
	}
}

func (e *ConfigError) Is(target error) bool {
	switch e.Kind {
	case UnknownTheme:
		return target == ErrUnknownTheme
	case BadBoardSize:
		return target == ErrInvalidBoardSize
	case BadOption:
		return target == ErrInvalidOption
	}
	return false
}

// Stage names the pipeline stage an error belongs to: "config", "parse",
// "replay" or "io".
func Stage(err error) string {
	var (
		cfgErr   *ConfigError
		parseErr *ParseError
		moveErr  *InvalidMoveError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &moveErr):
		return "replay"
	default:
		return "io"
	}
}
