package metrics

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Collector keeps process-local counters for the HTTP layer and the
// payroll and leave workflows.
type Collector struct {
	totalRequests   atomic.Uint64
	errorRequests   atomic.Uint64
	rateLimited     atomic.Uint64
	totalDurationMs atomic.Uint64

	payrollRuns     atomic.Uint64
	payrollFailures atomic.Uint64
	leaveDecisions  atomic.Uint64
	reportsRendered atomic.Uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	c.totalRequests.Add(1)
	if status >= http.StatusInternalServerError {
		c.errorRequests.Add(1)
	}
	if status == http.StatusTooManyRequests {
		c.rateLimited.Add(1)
	}
	c.totalDurationMs.Add(uint64(duration.Milliseconds()))
}

func (c *Collector) PayrollRun(ok bool) {
	if c == nil {
		return
	}
	c.payrollRuns.Add(1)
	if !ok {
		c.payrollFailures.Add(1)
	}
}

func (c *Collector) LeaveDecision() {
	if c == nil {
		return
	}
	c.leaveDecisions.Add(1)
}

func (c *Collector) ReportRendered() {
	if c == nil {
		return
	}
	c.reportsRendered.Add(1)
}

func (c *Collector) Snapshot() map[string]any {
	total := c.totalRequests.Load()
	totalMs := c.totalDurationMs.Load()
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":       total,
		"errorsTotal":         c.errorRequests.Load(),
		"rateLimitedTotal":    c.rateLimited.Load(),
		"avgDurationMs":       avg,
		"payrollRunsTotal":    c.payrollRuns.Load(),
		"payrollFailureTotal": c.payrollFailures.Load(),
		"leaveDecisionsTotal": c.leaveDecisions.Load(),
		"reportsTotal":        c.reportsRendered.Load(),
	}
}
