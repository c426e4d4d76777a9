package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/storefront-bot/internal/health"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (health.Report, error)
}

// Probes answers liveness from the process itself and readiness from the component checks.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

// NewProbes creates a new Probes instance.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Drain makes readiness fail from now on; called when shutdown starts.
func (p *Probes) Drain() {
	p.draining.Store(true)
}

// Liveness reports success while the process runs.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails while draining or when any component check fails.
func (p *Probes) Readiness(ctx context.Context) (health.Report, error) {
	if p.draining.Load() {
		return nil, fmt.Errorf("shutting down")
	}
	if p.checker == nil {
		return health.Report{}, nil
	}

	report := p.checker.Check(ctx)
	if !report.Healthy() {
		return report, fmt.Errorf("unhealthy: %s", strings.Join(report.Failing(), ", "))
	}
	return report, nil
}
