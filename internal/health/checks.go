package health

import (
	"context"
	"fmt"
	"io"

	"github.com/dmmcquay/sgfrender/internal/logging"
	"github.com/dmmcquay/sgfrender/internal/pipeline"
	"github.com/dmmcquay/sgfrender/internal/render"
)

// Pinger is implemented by *cache.Manager.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FontsCheck verifies the embedded label fonts parse.
func FontsCheck() Check {
	return func(context.Context) error {
		return render.LoadFonts()
	}
}

// PingCheck wraps a backend ping.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// smokeGame captures a stone so the check covers every pipeline stage.
const smokeGame = `(;SZ[5];B[aa];W[ba];B[cc];W[ab])`

// RenderCheck parses, replays, renders and encodes a small game. It uses
// its own service without cache or metrics, so every run does the full
// work and readiness checks never count as renders.
func RenderCheck(logger logging.ContextLogger) Check {
	svc := pipeline.NewService(logger)
	return func(ctx context.Context) error {
		d, err := svc.Describe(ctx, smokeGame, pipeline.Options{})
		if err != nil {
			return err
		}
		if d.Captures.White != 1 {
			return fmt.Errorf("smoke game replayed with %d white captures, want 1", d.Captures.White)
		}
		return svc.Render(ctx, smokeGame, io.Discard, pipeline.Options{
			Kifu:     true,
			CellSize: render.MinCellSize,
		})
	}
}
