package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmmcquay/sgfrender/internal/logging"
	"github.com/dmmcquay/sgfrender/internal/metrics"
	"github.com/dmmcquay/sgfrender/internal/ratelimit"
)

// ToolRecorder receives tool call metrics. *metrics.PrometheusCollector
// implements it.
type ToolRecorder interface {
	RecordToolCall(tool, status string, durationSecs float64)
}

// Middleware wraps MCP tool handlers with rate limiting, metrics and logging.
type Middleware struct {
	logger      logging.ContextLogger
	collector   *metrics.Collector
	recorder    ToolRecorder
	rateLimiter *ratelimit.Limiter
}

// NewMiddleware creates a middleware. recorder and rateLimiter may be nil.
func NewMiddleware(logger logging.ContextLogger, collector *metrics.Collector, recorder ToolRecorder, rateLimiter *ratelimit.Limiter) *Middleware {
	return &Middleware{
		logger:      logger,
		collector:   collector,
		recorder:    recorder,
		rateLimiter: rateLimiter,
	}
}

// ToolHandler is the function signature for MCP tool handlers.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// WrapTool wraps a tool handler. Every call gets correlation and request
// IDs in its context. A result flagged IsError counts as a failed call.
func (m *Middleware) WrapTool(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		if _, ok := logging.CorrelationIDFromContext(ctx); !ok {
			ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
		}
		ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())
		logger := m.logger.WithContext(ctx).WithField("tool", toolName)

		clientID := extractClientID(ctx, request)
		logger.Debug("Tool request received", "client", clientID)

		if err := m.rateLimiter.Allow(clientID, toolName); err != nil {
			m.record(toolName, "rate_limited", time.Since(start))
			return nil, fmt.Errorf("tool %s: %w", toolName, err)
		}

		result, err := handler(ctx, request)

		status := "success"
		duration := time.Since(start)
		switch {
		case err != nil:
			status = "error"
			logger.Error("Tool request failed", "client", clientID, "error", err, "duration_ms", duration.Milliseconds())
		case result != nil && result.IsError:
			status = "error"
			logger.Info("Tool request rejected", "client", clientID, "duration_ms", duration.Milliseconds())
		default:
			logger.Info("Tool request completed", "client", clientID, "duration_ms", duration.Milliseconds())
		}
		m.record(toolName, status, duration)

		return result, err
	}
}

func (m *Middleware) record(toolName, status string, duration time.Duration) {
	if m.collector != nil {
		m.collector.RecordToolCall(toolName, status, duration)
	}
	if m.recorder != nil {
		m.recorder.RecordToolCall(toolName, status, duration.Seconds())
	}
}

type clientIDKey struct{}

// ContextWithClientID tags ctx with the caller's identity for rate limiting.
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// extractClientID reads the client from the context, then from a clientID
// argument, and falls back to "anonymous".
func extractClientID(ctx context.Context, request mcp.CallToolRequest) string {
	if clientID, ok := ctx.Value(clientIDKey{}).(string); ok && clientID != "" {
		return clientID
	}

	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		if clientID, ok := args["clientID"].(string); ok && clientID != "" {
			return clientID
		}
	}

	return "anonymous"
}
