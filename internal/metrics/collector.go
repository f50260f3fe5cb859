package metrics

import (
	"sync"
	"time"
)

// Collector keeps in-process call statistics for the serverStatus tool.
type Collector struct {
	mu sync.RWMutex

	// Tool metrics
	toolCalls     map[string]int64
	toolErrors    map[string]int64
	toolDurations map[string][]time.Duration

	// Failed renders by pipeline stage
	stageErrors map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		toolCalls:     make(map[string]int64),
		toolErrors:    make(map[string]int64),
		toolDurations: make(map[string][]time.Duration),
		stageErrors:   make(map[string]int64),
	}
}

// RecordToolCall records a tool call with its status and duration.
func (c *Collector) RecordToolCall(tool, status string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolCalls[tool]++

	if status == "error" {
		c.toolErrors[tool]++
	}

	// Keep last 100 durations for each tool
	durations := c.toolDurations[tool]
	durations = append(durations, duration)
	if len(durations) > 100 {
		durations = durations[1:]
	}
	c.toolDurations[tool] = durations
}

// RecordStageError counts a failed render under its pipeline stage.
func (c *Collector) RecordStageError(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stageErrors[stage]++
}

// GetStats returns current metrics statistics.
func (c *Collector) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make(map[string]interface{})

	toolStats := make(map[string]interface{})
	for tool, calls := range c.toolCalls {
		errors := c.toolErrors[tool]
		errorRate := float64(0)
		if calls > 0 {
			errorRate = float64(errors) / float64(calls)
		}

		var totalDuration time.Duration
		durations := c.toolDurations[tool]
		for _, d := range durations {
			totalDuration += d
		}
		avgDuration := time.Duration(0)
		if len(durations) > 0 {
			avgDuration = totalDuration / time.Duration(len(durations))
		}

		toolStats[tool] = map[string]interface{}{
			"calls":           calls,
			"errors":          errors,
			"error_rate":      errorRate,
			"avg_duration_ms": avgDuration.Milliseconds(),
		}
	}
	stats["tools"] = toolStats

	stageStats := make(map[string]int64, len(c.stageErrors))
	for stage, n := range c.stageErrors {
		stageStats[stage] = n
	}
	stats["errors_by_stage"] = stageStats

	return stats
}

// Reset clears all metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolCalls = make(map[string]int64)
	c.toolErrors = make(map[string]int64)
	c.toolDurations = make(map[string][]time.Duration)
	c.stageErrors = make(map[string]int64)
}
