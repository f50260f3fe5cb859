package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/encoder"
	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
	"github.com/dmmcquay/sgfrender/internal/pipeline"
	"github.com/dmmcquay/sgfrender/internal/ratelimit"
	"github.com/dmmcquay/sgfrender/internal/theme"
)

// maxBodyBytes caps an uploaded game record.
const maxBodyBytes = 1 << 20

// RenderRequest is the JSON body of POST /render and POST /describe.
// Unset fields take the configured defaults.
type RenderRequest struct {
	SGF         string  `json:"sgf"`
	Theme       *string `json:"theme,omitempty"`
	Kifu        *bool   `json:"kifu,omitempty"`
	MoveNumber  *int    `json:"moveNumber,omitempty"`
	BoardSize   int     `json:"boardSize,omitempty"`
	BoardWidth  int     `json:"boardWidth,omitempty"`
	BoardHeight int     `json:"boardHeight,omitempty"`
	CellSize    *int    `json:"cellSize,omitempty"`
	Coordinates *bool   `json:"coordinates,omitempty"`
}

// Options merges the request over defaults.
func (req RenderRequest) Options(defaults config.RenderConfig) pipeline.Options {
	opts := pipeline.Options{
		Theme:       defaults.Theme,
		Kifu:        defaults.Kifu,
		MoveNumber:  req.MoveNumber,
		BoardWidth:  req.BoardWidth,
		BoardHeight: req.BoardHeight,
		CellSize:    defaults.CellSize,
		Coordinates: defaults.Coordinates,
	}
	if req.Theme != nil {
		opts.Theme = *req.Theme
	}
	if req.Kifu != nil {
		opts.Kifu = *req.Kifu
	}
	if req.CellSize != nil {
		opts.CellSize = *req.CellSize
	}
	if req.Coordinates != nil {
		opts.Coordinates = *req.Coordinates
	}
	if req.BoardSize != 0 {
		if opts.BoardWidth == 0 {
			opts.BoardWidth = req.BoardSize
		}
		if opts.BoardHeight == 0 {
			opts.BoardHeight = req.BoardSize
		}
	}
	return opts
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to encode response", "error", err)
	}
}

// writeError maps pipeline errors to HTTP statuses.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	stage := kerrors.Stage(err)

	var limitErr *ratelimit.LimitError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &limitErr):
		status = http.StatusTooManyRequests
		stage = ""
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limitErr.RetryAfter.Seconds()))))
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
		stage = ""
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
		stage = ""
	case stage == "config" || stage == "parse":
		status = http.StatusBadRequest
	case stage == "replay":
		status = http.StatusUnprocessableEntity
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).Error("Request failed", "error", err)
		msg = "internal error"
	}
	s.writeJSON(w, r, status, errorResponse{Error: msg, Stage: stage})
}

var errBadRequest = errors.New("bad request")

// decodeRequest accepts either a JSON RenderRequest or a raw SGF body with
// options in the query string.
func decodeRequest(r *http.Request) (RenderRequest, error) {
	var req RenderRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return req, err
			}
			return req, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		req.SGF = string(body)
		if err := queryOptions(r, &req); err != nil {
			return req, err
		}
	}

	if strings.TrimSpace(req.SGF) == "" {
		return req, fmt.Errorf("%w: empty game record", errBadRequest)
	}
	return req, nil
}

func queryOptions(r *http.Request, req *RenderRequest) error {
	q := r.URL.Query()

	if v := q.Get("theme"); v != "" {
		req.Theme = &v
	}
	for _, b := range []struct {
		key string
		dst **bool
	}{{"kifu", &req.Kifu}, {"coordinates", &req.Coordinates}} {
		if v := q.Get(b.key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s must be a boolean", errBadRequest, b.key)
			}
			*b.dst = &parsed
		}
	}

	ints := []struct {
		key string
		set func(int)
	}{
		{"move", func(n int) { req.MoveNumber = &n }},
		{"boardSize", func(n int) { req.BoardSize = n }},
		{"cellSize", func(n int) { req.CellSize = &n }},
	}
	for _, i := range ints {
		if v := q.Get(i.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s must be an integer", errBadRequest, i.key)
			}
			i.set(n)
		}
	}
	return nil
}

// clientID identifies the caller for rate limiting.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *HTTPServer) handleRender(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Allow(clientID(r), "render"); err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := s.service.RenderBytes(r.Context(), req.SGF, req.Options(s.defaults))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", encoder.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.WithContext(r.Context()).Debug("Client went away during write", "error", err)
	}
}

func (s *HTTPServer) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Allow(clientID(r), "describe"); err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	desc, err := s.service.Describe(r.Context(), req.SGF, req.Options(s.defaults))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, desc)
}

type themeResponse struct {
	Name    string `json:"name"`
	Style   string `json:"style"`
	Default bool   `json:"default"`
}

func (s *HTTPServer) handleThemes(w http.ResponseWriter, r *http.Request) {
	names := theme.Names()
	themes := make([]themeResponse, 0, len(names))
	for _, name := range names {
		th, err := theme.Resolve(name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		themes = append(themes, themeResponse{
			Name:    th.Name,
			Style:   th.Style.String(),
			Default: th.Name == s.defaults.Theme,
		})
	}
	s.writeJSON(w, r, http.StatusOK, themes)
}
