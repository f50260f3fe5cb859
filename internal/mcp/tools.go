// Package mcp exposes the renderer as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dmmcquay/sgfrender/internal/cache"
	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/encoder"
	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
	"github.com/dmmcquay/sgfrender/internal/logging"
	"github.com/dmmcquay/sgfrender/internal/metrics"
	"github.com/dmmcquay/sgfrender/internal/pipeline"
	"github.com/dmmcquay/sgfrender/internal/ratelimit"
	"github.com/dmmcquay/sgfrender/internal/theme"
)

// ToolsHandler serves the rendering tools.
type ToolsHandler struct {
	service    *pipeline.Service
	defaults   config.RenderConfig
	version    string
	logger     logging.ContextLogger
	middleware *Middleware

	// Optional status sources for serverStatus.
	cache     *cache.Manager
	collector *metrics.Collector
	limiter   *ratelimit.Limiter
}

// NewToolsHandler creates a tools handler. defaults fill in options a tool
// call leaves out.
func NewToolsHandler(service *pipeline.Service, defaults config.RenderConfig, version string, logger logging.ContextLogger) *ToolsHandler {
	return &ToolsHandler{
		service:  service,
		defaults: defaults,
		version:  version,
		logger:   logger,
	}
}

// SetMiddleware sets the middleware for the tools handler.
func (h *ToolsHandler) SetMiddleware(middleware *Middleware) {
	h.middleware = middleware
}

// SetStatusSources registers the components reported by serverStatus. Any
// of them may be nil.
func (h *ToolsHandler) SetStatusSources(c *cache.Manager, collector *metrics.Collector, limiter *ratelimit.Limiter) {
	h.cache = c
	h.collector = collector
	h.limiter = limiter
}

func (h *ToolsHandler) wrap(name string, handler ToolHandler) server.ToolHandlerFunc {
	if h.middleware != nil {
		handler = h.middleware.WrapTool(name, handler)
	}
	return server.ToolHandlerFunc(handler)
}

// RegisterTools registers all tools with the MCP server.
func (h *ToolsHandler) RegisterTools(s *server.MCPServer) {
	themeList := strings.Join(theme.Names(), ", ")

	renderGameTool := mcp.NewTool("renderGame",
		mcp.WithDescription("Render a Go game record (SGF) as a PNG board image at a chosen move."),
		mcp.WithString("sgf",
			mcp.Description("SGF content of the game"),
			mcp.Required(),
		),
		mcp.WithString("theme",
			mcp.Description(fmt.Sprintf("Board theme: %s (default: %s)", themeList, h.defaults.Theme)),
			mcp.Enum(theme.Names()...),
		),
		mcp.WithBoolean("kifu",
			mcp.Description("Draw move numbers on the stones"),
		),
		mcp.WithNumber("moveNumber",
			mcp.Description("Show the position after this many moves. Defaults to the final position; larger values clamp to the last move and negative values show the empty or handicap board."),
		),
		mcp.WithNumber("boardSize",
			mcp.Description("Board size to assume when the SGF has no SZ property (default: 19)"),
		),
		mcp.WithNumber("cellSize",
			mcp.Description("Pixels between grid lines (12-200)"),
		),
		mcp.WithBoolean("coordinates",
			mcp.Description("Draw coordinate labels around the board"),
		),
	)
	s.AddTool(renderGameTool, h.wrap("renderGame", h.HandleRenderGame))

	describeGameTool := mcp.NewTool("describeGame",
		mcp.WithDescription("Summarise a Go game record: players, captures, ko and a text diagram of the board at a chosen move."),
		mcp.WithString("sgf",
			mcp.Description("SGF content of the game"),
			mcp.Required(),
		),
		mcp.WithNumber("moveNumber",
			mcp.Description("Describe the position after this many moves (default: final position)"),
		),
		mcp.WithNumber("boardSize",
			mcp.Description("Board size to assume when the SGF has no SZ property (default: 19)"),
		),
	)
	s.AddTool(describeGameTool, h.wrap("describeGame", h.HandleDescribeGame))

	listThemesTool := mcp.NewTool("listThemes",
		mcp.WithDescription("List the available board themes"),
	)
	s.AddTool(listThemesTool, h.wrap("listThemes", h.HandleListThemes))

	serverStatusTool := mcp.NewTool("serverStatus",
		mcp.WithDescription("Report server version, cache statistics, tool metrics and rate limits"),
	)
	s.AddTool(serverStatusTool, h.wrap("serverStatus", h.HandleServerStatus))
}

// HandleRenderGame handles the renderGame tool.
func (h *ToolsHandler) HandleRenderGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	sgfText, err := requireString(args, "sgf")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := h.renderOptions(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := h.service.RenderBytes(ctx, sgfText, opts)
	if err != nil {
		return toolError(err)
	}

	caption := fmt.Sprintf("Board rendered with the %s theme", opts.Theme)
	if opts.MoveNumber != nil {
		caption += fmt.Sprintf(" at move %d", *opts.MoveNumber)
	}
	return mcp.NewToolResultImage(caption, base64.StdEncoding.EncodeToString(data), encoder.MIMEType), nil
}

// HandleDescribeGame handles the describeGame tool.
func (h *ToolsHandler) HandleDescribeGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	sgfText, err := requireString(args, "sgf")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := h.renderOptions(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	desc, err := h.service.Describe(ctx, sgfText, opts)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(desc.String()), nil
}

// HandleListThemes handles the listThemes tool.
func (h *ToolsHandler) HandleListThemes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type themeInfo struct {
		Name    string `json:"name"`
		Style   string `json:"style"`
		Default bool   `json:"default"`
	}

	var themes []themeInfo
	for _, name := range theme.Names() {
		th, err := theme.Resolve(name)
		if err != nil {
			return nil, err
		}
		themes = append(themes, themeInfo{
			Name:    th.Name,
			Style:   th.Style.String(),
			Default: th.Name == h.defaults.Theme,
		})
	}

	out, err := json.MarshalIndent(themes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format themes: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// HandleServerStatus handles the serverStatus tool.
func (h *ToolsHandler) HandleServerStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := map[string]interface{}{
		"version":  h.version,
		"themes":   theme.Names(),
		"defaults": h.defaults,
	}
	if h.cache != nil {
		status["cache"] = map[string]interface{}{
			"backend": h.cache.Backend(),
			"stats":   h.cache.Stats(),
		}
	}
	if h.collector != nil {
		status["metrics"] = h.collector.GetStats()
	}
	status["rateLimit"] = h.limiter.GetStatus()

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format status: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// renderOptions merges tool arguments over the configured defaults.
func (h *ToolsHandler) renderOptions(args map[string]interface{}) (pipeline.Options, error) {
	opts := pipeline.Options{
		Theme:       h.defaults.Theme,
		Kifu:        h.defaults.Kifu,
		CellSize:    h.defaults.CellSize,
		Coordinates: h.defaults.Coordinates,
	}

	if v, ok, err := optionalString(args, "theme"); err != nil {
		return opts, err
	} else if ok {
		opts.Theme = v
	}
	if v, ok, err := optionalBool(args, "kifu"); err != nil {
		return opts, err
	} else if ok {
		opts.Kifu = v
	}
	if v, ok, err := optionalBool(args, "coordinates"); err != nil {
		return opts, err
	} else if ok {
		opts.Coordinates = v
	}
	if v, ok, err := optionalInt(args, "moveNumber"); err != nil {
		return opts, err
	} else if ok {
		opts.MoveNumber = &v
	}
	if v, ok, err := optionalInt(args, "boardSize"); err != nil {
		return opts, err
	} else if ok {
		opts.BoardWidth, opts.BoardHeight = v, v
	}
	if v, ok, err := optionalInt(args, "cellSize"); err != nil {
		return opts, err
	} else if ok {
		opts.CellSize = v
	}
	return opts, nil
}

// toolError reports request errors to the caller as a tool result and
// passes anything else through as a protocol error.
func toolError(err error) (*mcp.CallToolResult, error) {
	switch kerrors.Stage(err) {
	case "config", "parse", "replay":
		return mcp.NewToolResultError(err.Error()), nil
	default:
		return nil, err
	}
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments format")
	}
	return args, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok, err := optionalString(args, key)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

func optionalString(args map[string]interface{}, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("%s must be a string", key)
	}
	return v, true, nil
}

func optionalBool(args map[string]interface{}, key string) (bool, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, true, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, true, nil
		case "false":
			return false, true, nil
		}
	}
	return false, false, fmt.Errorf("%s must be a boolean", key)
}

func optionalInt(args map[string]interface{}, key string) (int, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return 0, false, fmt.Errorf("%s must be an integer", key)
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false, fmt.Errorf("%s must be an integer", key)
		}
		return int(n), true, nil
	}
	return 0, false, fmt.Errorf("%s must be a number", key)
}
