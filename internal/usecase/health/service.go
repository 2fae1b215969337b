package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	warehouse Pinger
	extra     map[string]Pinger
}

// Option registers an additional component check.
type Option func(*Service)

// WithCheck adds a named component to every report.
func WithCheck(name string, p Pinger) Option {
	return func(s *Service) { s.extra[name] = p }
}

// New creates a Service.
func New(warehouse Pinger, opts ...Option) *Service {
	s := &Service{warehouse: warehouse, extra: make(map[string]Pinger)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{"warehouse": result(s.warehouse.Ping(ctx))}
	for name, p := range s.extra {
		checks[name] = result(p.Ping(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
