// Package health reports whether the service and its backing stores are
// reachable.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/redmonkez12/agenda-api/internal/httputil"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Response represents the full health check response
type Response struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

// Checker runs the registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	now     func() time.Time
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{checks: make(map[string]CheckFunc), timeout: timeout, now: time.Now}
}

// Add registers a check under name.
func (c *Checker) Add(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every check in parallel. The service is unhealthy if any
// check fails.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	response := &Response{
		Status:     StatusHealthy,
		Timestamp:  c.now().UTC().Format(time.RFC3339),
		Components: make(map[string]ComponentHealth, len(checks)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.run(ctx, check)
			mu.Lock()
			response.Components[name] = result
			if result.Status != StatusHealthy {
				response.Status = StatusUnhealthy
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return response
}

func (c *Checker) run(ctx context.Context, check CheckFunc) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := check(ctx); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  err.Error(),
			Duration: time.Since(start).String(),
		}
	}
	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// Root answers the bare root path
// @Summary      Root
// @Tags         health
// @Success      200
// @Router       / [get]
func Root(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Handler serves the status endpoint
// @Summary      Service status
// @Description  Probes every backing store
// @Tags         health
// @Produce      json
// @Success      200 {object} Response
// @Failure      503 {object} Response
// @Router       /status [get]
func (c *Checker) Handler(w http.ResponseWriter, r *http.Request) {
	response := c.Check(r.Context())
	status := http.StatusOK
	if response.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	httputil.RespondJSON(w, response, status)
}
