package ipwarehouse

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	healthuc "github.com/kailas-cloud/ipwarehouse/internal/usecase/health"
)

// HealthStatus is the outcome of Health. Checks maps a component ("warehouse") to "ok" or "error".
type HealthStatus struct {
	Status string
	Checks map[string]string
}

// Healthy reports whether every component passed.
func (h HealthStatus) Healthy() bool {
	return h.Status == string(healthuc.Healthy)
}

// Failing returns the names of the components that failed, sorted.
func (h HealthStatus) Failing() []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(h.Checks)) {
		if h.Checks[name] != string(healthuc.CheckOK) {
			out = append(out, name)
		}
	}
	return out
}

// Health checks that the warehouse root is readable.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)
	h := HealthStatus{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, res := range report.Checks {
		h.Checks[name] = string(res)
	}

	var err error
	if !h.Healthy() {
		err = fmt.Errorf("unhealthy components: %v", h.Failing())
	}
	c.obs.observe("health", start, err)
	return h
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
