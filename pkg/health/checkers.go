package health

import (
	"context"
	"time"
)

// Checkable is satisfied by the store adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker calls an adapter's HealthCheck with a timeout. A failure
// reports failStatus.
type AdapterChecker struct {
	name       string
	adapter    Checkable
	timeout    time.Duration
	failStatus Status
}

// NewAdapterChecker creates a checker that reports unhealthy on failure.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:       name,
		adapter:    adapter,
		timeout:    timeout,
		failStatus: StatusUnhealthy,
	}
}

// NewDatabaseChecker checks the document store. Queries cannot run without
// it, so a failure makes the service unhealthy.
func NewDatabaseChecker(name string, db Checkable) *AdapterChecker {
	return NewAdapterChecker(name, db, 5*time.Second)
}

// NewCacheChecker checks the result cache. The engine bypasses a failing
// cache, so a failure only degrades the service.
func NewCacheChecker(name string, cache Checkable) *AdapterChecker {
	c := NewAdapterChecker(name, cache, 3*time.Second)
	c.failStatus = StatusDegraded
	return c
}

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	result := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = c.failStatus
		result.Message = ""
		result.Error = err.Error()
	}
	return result
}

func (c *AdapterChecker) Name() string {
	return c.name
}

// PingChecker always reports healthy; it backs the liveness probe.
type PingChecker struct {
	name string
}

func NewPingChecker(name string) *PingChecker {
	return &PingChecker{name: name}
}

func (c *PingChecker) Check(context.Context) CheckResult {
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "Service is alive",
		Timestamp: time.Now(),
	}
}

func (c *PingChecker) Name() string {
	return c.name
}
