// Package pipeline turns SGF text into PNG images: parse, replay, render
// and encode, with optional caching of the encoded result.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmmcquay/sgfrender/internal/board"
	"github.com/dmmcquay/sgfrender/internal/cache"
	"github.com/dmmcquay/sgfrender/internal/encoder"
	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
	"github.com/dmmcquay/sgfrender/internal/logging"
	"github.com/dmmcquay/sgfrender/internal/render"
	"github.com/dmmcquay/sgfrender/internal/sgf"
	"github.com/dmmcquay/sgfrender/internal/theme"
)

// Options describes one render request.
type Options struct {
	// Theme name; empty selects theme.Default.
	Theme string `json:"theme"`
	// Kifu draws move numbers on stones.
	Kifu bool `json:"kifu"`
	// MoveNumber selects the position after that many moves. nil renders
	// the final position, values past the end clamp and negative values
	// give the setup position.
	MoveNumber *int `json:"moveNumber,omitempty"`
	// BoardWidth and BoardHeight are used only when the record has no SZ.
	// Zero means 19.
	BoardWidth  int `json:"boardWidth,omitempty"`
	BoardHeight int `json:"boardHeight,omitempty"`
	// CellSize in pixels; zero means render.DefaultCellSize.
	CellSize    int  `json:"cellSize,omitempty"`
	Coordinates bool `json:"coordinates"`
}

// Recorder receives pipeline metrics. *metrics.PrometheusCollector
// implements it.
type Recorder interface {
	RecordRender(theme, status string, durationSecs float64)
	RecordRenderError(stage string)
	RecordReplay(moves int)
	RecordEncoded(size int)
	RecordCacheHit()
	RecordCacheMiss()
}

type nopRecorder struct{}

func (nopRecorder) RecordRender(string, string, float64) {}
func (nopRecorder) RecordRenderError(string) {}
func (nopRecorder) RecordReplay(int) {}
func (nopRecorder) RecordEncoded(int) {}
func (nopRecorder) RecordCacheHit() {}
func (nopRecorder) RecordCacheMiss() {}

// Service runs render requests. It is safe for concurrent use.
type Service struct {
	logger   logging.ContextLogger
	recorder Recorder
	cache    *cache.Manager
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithCache enables caching of encoded images.
func WithCache(m *cache.Manager) Option {
	return func(s *Service) {
		s.cache = m
	}
}

// NewService creates a Service.
func NewService(logger logging.ContextLogger, opts ...Option) *Service {
	s := &Service{logger: logger, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// request is Options after validation.
type request struct {
	theme  theme.Theme
	opts   Options
	render render.Options
}

// validate checks every option before any parsing is done.
func validate(opts Options) (*request, error) {
	th, err := theme.Resolve(opts.Theme)
	if err != nil {
		return nil, err
	}
	opts.Theme = th.Name

	for _, dim := range []struct {
		field string
		value *int
	}{
		{"boardWidth", &opts.BoardWidth},
		{"boardHeight", &opts.BoardHeight},
	} {
		if *dim.value == 0 {
			*dim.value = sgf.DefaultBoardSize
		}
		if *dim.value < sgf.MinBoardSize || *dim.value > sgf.MaxBoardSize {
			return nil, &kerrors.ConfigError{
				Kind:  kerrors.BadBoardSize,
				Field: dim.field,
				Value: strconv.Itoa(*dim.value),
			}
		}
	}

	if opts.CellSize == 0 {
		opts.CellSize = render.DefaultCellSize
	}
	if opts.CellSize < render.MinCellSize || opts.CellSize > render.MaxCellSize {
		return nil, &kerrors.ConfigError{
			Kind:  kerrors.BadOption,
			Field: "cellSize",
			Value: strconv.Itoa(opts.CellSize),
		}
	}

	return &request{
		theme: th,
		opts:  opts,
		render: render.Options{
			CellSize:    opts.CellSize,
			Kifu:        opts.Kifu,
			Coordinates: opts.Coordinates,
		},
	}, nil
}

// position parses text and replays it to the requested move.
func (s *Service) position(text string, opts Options) (*sgf.GameRecord, *board.State, error) {
	rec, err := sgf.Parse(text, sgf.WithDefaultSize(opts.BoardWidth, opts.BoardHeight))
	if err != nil {
		return nil, nil, err
	}

	target := len(rec.Moves)
	if opts.MoveNumber != nil {
		target = *opts.MoveNumber
	}
	state, err := board.Replay(rec, target)
	if err != nil {
		return nil, nil, err
	}
	return rec, state, nil
}

// Render writes the PNG for sgfText to w.
func (s *Service) Render(ctx context.Context, sgfText string, w io.Writer, opts Options) error {
	data, err := s.RenderBytes(ctx, sgfText, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// RenderBytes returns the PNG for sgfText.
func (s *Service) RenderBytes(ctx context.Context, sgfText string, opts Options) ([]byte, error) {
	start := time.Now()
	logger := s.logger.WithContext(ctx)

	req, err := validate(opts)
	if err != nil {
		s.fail(logger, "invalid", err, start)
		return nil, err
	}

	key, cacheable := s.cacheKey(sgfText, req.opts)
	if cacheable {
		if data, ok := s.cache.Get(ctx, key); ok {
			s.recorder.RecordCacheHit()
			s.recorder.RecordRender(req.theme.Name, "cached", time.Since(start).Seconds())
			logger.Debug("Render served from cache", "theme", req.theme.Name, "bytes", len(data))
			return data, nil
		}
		s.recorder.RecordCacheMiss()
	}

	_, state, err := s.position(sgfText, req.opts)
	if err != nil {
		s.fail(logger, req.theme.Name, err, start)
		return nil, err
	}
	s.recorder.RecordReplay(state.MoveIndex)

	canvas, err := render.Render(state, req.theme, req.render)
	if err != nil {
		s.fail(logger, req.theme.Name, err, start)
		return nil, err
	}

	data, err := encoder.Encode(canvas.Image)
	if err != nil {
		s.fail(logger, req.theme.Name, err, start)
		return nil, err
	}
	s.recorder.RecordEncoded(len(data))

	if cacheable {
		s.cache.Put(ctx, key, data)
	}

	duration := time.Since(start)
	s.recorder.RecordRender(req.theme.Name, "success", duration.Seconds())
	logger.Info("Rendered board",
		"theme", req.theme.Name,
		"width", state.Width,
		"height", state.Height,
		"moves", state.MoveIndex,
		"labels", len(canvas.Labels),
		"bytes", len(data),
		"duration_ms", duration.Milliseconds())
	return data, nil
}

// OutputFileMode is the permission of files written by RenderFile.
const OutputFileMode os.FileMode = 0o644

// RenderFile writes the PNG for sgfText to path. The image is written to a
// temporary file in the same directory and renamed, so path never holds a
// partial image.
func (s *Service) RenderFile(ctx context.Context, sgfText, path string, opts Options) error {
	data, err := s.RenderBytes(ctx, sgfText, opts)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(OutputFileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

func (s *Service) cacheKey(sgfText string, opts Options) (string, bool) {
	if s.cache == nil || !s.cache.IsEnabled() {
		return "", false
	}
	key, err := cache.Key(struct {
		SGF     string  `json:"sgf"`
		Options Options `json:"options"`
	}{sgfText, opts})
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *Service) fail(logger logging.ContextLogger, themeName string, err error, start time.Time) {
	stage := kerrors.Stage(err)
	s.recorder.RecordRenderError(stage)
	s.recorder.RecordRender(themeName, "error", time.Since(start).Seconds())
	logger.Warn("Render failed", "stage", stage, "error", err)
}
