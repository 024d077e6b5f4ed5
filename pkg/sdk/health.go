package knowchain

import (
	"context"
	"time"

	healthuc "github.com/kailas-cloud/knowchain/internal/usecase/health"
)

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health checks the vector store and, when it supports it, the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)
	c.obs.observe("health", "", start, nil)

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
