// Package health reports whether radhttpd can serve its API.
//
// Components are checked concurrently with a per-check timeout. A failing
// critical component (a database) makes the service unhealthy; a failing
// non-critical one (the node control socket) only degrades it.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckResult represents the result of a health check.
type CheckResult struct {
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ns"`
	Error       string         `json:"error,omitempty"`
}

// Check is a function that performs a health check.
type Check func(ctx context.Context) CheckResult

// Component represents a health-checkable component.
type Component struct {
	Name     string
	Critical bool
	Check    Check
	Timeout  time.Duration
}

// Checker manages health checks.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	results    map[string]CheckResult
	startTime  time.Time
	ready      bool
}

// NewChecker creates a new Checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		results:    make(map[string]CheckResult),
		startTime:  time.Now(),
	}
}

// Register registers a health check component.
func (c *Checker) Register(component *Component) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if component.Timeout == 0 {
		component.Timeout = 5 * time.Second
	}

	c.components[component.Name] = component
	c.results[component.Name] = CheckResult{Status: StatusUnknown}
}

// RegisterFunc registers a simple health check function.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{
		Name:     name,
		Critical: critical,
		Check:    check,
	})
}

// SetReady sets the readiness state.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// IsReady returns the readiness state.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Check runs all registered health checks.
func (c *Checker) Check(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	components := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		components = append(components, comp)
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(components))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, comp := range components {
		wg.Add(1)
		go func(comp *Component) {
			defer wg.Done()
			result := run(ctx, comp)

			mu.Lock()
			results[comp.Name] = result
			mu.Unlock()
		}(comp)
	}
	wg.Wait()

	c.mu.Lock()
	for name, result := range results {
		if _, ok := c.components[name]; ok {
			c.results[name] = result
		}
	}
	c.mu.Unlock()

	return results
}

// run executes one check with its timeout and panic recovery.
func run(ctx context.Context, comp *Component) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{
					Status:  StatusUnhealthy,
					Message: "check panicked",
					Error:   fmt.Sprintf("%v", r),
				}
			}
		}()
		done <- comp.Check(checkCtx)
	}()

	var result CheckResult
	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = CheckResult{
			Status:  StatusUnhealthy,
			Message: "check timed out",
			Error:   checkCtx.Err().Error(),
		}
	}

	result.LastChecked = start
	result.Duration = time.Since(start)
	return result
}

// OverallStatus aggregates the last results.
func (c *Checker) OverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hasUnknown := false
	hasDegraded := false

	for name, result := range c.results {
		comp := c.components[name]
		if comp == nil {
			continue
		}

		switch result.Status {
		case StatusUnhealthy:
			if comp.Critical {
				return StatusUnhealthy
			}
			hasDegraded = true
		case StatusDegraded:
			hasDegraded = true
		case StatusUnknown:
			if comp.Critical {
				hasUnknown = true
			}
		}
	}

	if hasUnknown {
		return StatusUnknown
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// Names returns the registered component names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Response is the body of the health endpoint.
type Response struct {
	Status     Status                 `json:"status"`
	Ready      bool                   `json:"ready"`
	Uptime     string                 `json:"uptime"`
	Components map[string]CheckResult `json:"components,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Response runs every check and builds the health response. Component
// results are only included when full is set.
func (c *Checker) Response(ctx context.Context, full bool) Response {
	results := c.Check(ctx)
	if !full {
		results = nil
	}

	return Response{
		Status:     c.OverallStatus(),
		Ready:      c.IsReady(),
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Components: results,
		Timestamp:  time.Now().UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// LivenessHandler answers as long as the process serves HTTP.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "alive",
			"timestamp": time.Now().UTC(),
		})
	})
}

// ReadinessHandler answers 200 once the server is ready and no critical
// component is unhealthy.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "not ready",
				"timestamp": time.Now().UTC(),
			})
			return
		}

		c.Check(r.Context())
		status := c.OverallStatus()
		code := http.StatusOK
		if status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":    status,
			"ready":     true,
			"timestamp": time.Now().UTC(),
		})
	})
}

// HealthHandler reports the aggregated status; ?full=true adds per
// component results.
func (c *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := c.Response(r.Context(), r.URL.Query().Get("full") == "true")

		code := http.StatusOK
		if response.Status == StatusUnhealthy || response.Status == StatusUnknown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	})
}

// DatabaseCheck returns a health check for a database ping.
func DatabaseCheck(path string, ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		details := map[string]any{"path": path}
		if err := ping(ctx); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "database unreadable",
				Details: details,
				Error:   err.Error(),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "database readable",
			Details: details,
		}
	}
}

// StateFunc reports the node state, e.g. "running" or "stopped".
type StateFunc func(ctx context.Context) (string, error)

// NodeCheck returns a health check for the node control socket. A stopped
// node degrades the service; an unreachable socket makes the component
// unhealthy.
func NodeCheck(socket string, state StateFunc) Check {
	return func(ctx context.Context) CheckResult {
		details := map[string]any{"socket": socket}
		s, err := state(ctx)
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "control socket unreachable",
				Details: details,
				Error:   err.Error(),
			}
		}
		details["state"] = s
		if s != "running" {
			return CheckResult{
				Status:  StatusDegraded,
				Message: "node is " + s,
				Details: details,
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "node is running",
			Details: details,
		}
	}
}
