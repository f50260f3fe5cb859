// Package health runs readiness checks for the render server.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmmcquay/sgfrender/internal/logging"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates a required component failed.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates an optional component failed; renders still work.
	StatusDegraded Status = "degraded"
)

const checkTimeout = 5 * time.Second

// Check represents a health check function.
type Check func(ctx context.Context) error

type registered struct {
	check    Check
	required bool
}

// Component represents a system component with health status.
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Required    bool      `json:"required"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	DurationMS  int64     `json:"duration_ms"`
}

// Response represents the health check response.
type Response struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components,omitempty"`
	Version    string      `json:"version,omitempty"`
	GitCommit  string      `json:"git_commit,omitempty"`
}

// Checker manages health checks for the application.
type Checker struct {
	logger    logging.ContextLogger
	checks    map[string]registered
	mu        sync.RWMutex
	version   string
	gitCommit string
}

// NewChecker creates a new health checker.
func NewChecker(logger logging.ContextLogger, version, gitCommit string) *Checker {
	return &Checker{
		logger:    logger,
		checks:    make(map[string]registered),
		version:   version,
		gitCommit: gitCommit,
	}
}

// RegisterCheck registers a required check. Its failure makes the server
// unhealthy.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.register(name, check, true)
}

// RegisterOptionalCheck registers a check whose failure only degrades the
// server, such as a shared cache the renderer can work without.
func (c *Checker) RegisterOptionalCheck(name string, check Check) {
	c.register(name, check, false)
}

func (c *Checker) register(name string, check Check, required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{check: check, required: required}
}

// CheckHealth runs all registered checks in parallel. Components are
// sorted by name.
func (c *Checker) CheckHealth(ctx context.Context) Response {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	response := Response{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		GitCommit:  c.gitCommit,
		Components: make([]Component, 0, len(checks)),
	}

	results := make(chan Component, len(checks))
	var wg sync.WaitGroup

	for name, r := range checks {
		wg.Add(1)
		go func(name string, r registered) {
			defer wg.Done()
			results <- c.run(ctx, name, r)
		}(name, r)
	}

	wg.Wait()
	close(results)

	for component := range results {
		response.Components = append(response.Components, component)
		switch component.Status {
		case StatusUnhealthy:
			response.Status = StatusUnhealthy
		case StatusDegraded:
			if response.Status == StatusHealthy {
				response.Status = StatusDegraded
			}
		}
	}
	sort.Slice(response.Components, func(i, j int) bool {
		return response.Components[i].Name < response.Components[j].Name
	})

	return response
}

func (c *Checker) run(ctx context.Context, name string, r registered) Component {
	start := time.Now()
	component := Component{
		Name:        name,
		Status:      StatusHealthy,
		Required:    r.required,
		LastChecked: start.UTC(),
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := r.check(checkCtx); err != nil {
		component.Status = StatusDegraded
		if r.required {
			component.Status = StatusUnhealthy
		}
		component.Message = err.Error()
		c.logger.WithContext(ctx).WithField("component", name).Warn("Health check failed", "error", err)
	}
	component.DurationMS = time.Since(start).Milliseconds()
	return component
}

// LivenessHandler returns an HTTP handler for liveness checks.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.write(w, r.Context(), http.StatusOK, Response{
			Status:    StatusHealthy,
			Timestamp: time.Now().UTC(),
			Version:   c.version,
			GitCommit: c.gitCommit,
		})
	}
}

// ReadinessHandler returns an HTTP handler for readiness checks. A degraded
// server is still ready.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, ok := logging.CorrelationIDFromContext(ctx); !ok {
			ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
		}
		c.logger.WithContext(ctx).Debug("Performing readiness check")

		response := c.CheckHealth(ctx)

		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.write(w, ctx, statusCode, response)
	}
}

func (c *Checker) write(w http.ResponseWriter, ctx context.Context, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		c.logger.WithContext(ctx).Error("Failed to encode health response", "error", err)
	}
}
