package utils

import (
	"context"
	"sync"
	"time"
)

// HealthProbe reports a dependency as healthy by returning nil.
type HealthProbe func(ctx context.Context) error

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Checks    map[string]bool `json:"checks"`
	CheckedAt time.Time       `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// CheckHealth runs every probe once and stores the result.
func CheckHealth(ctx context.Context, probes map[string]HealthProbe) HealthStatus {
	checks := make(map[string]bool, len(probes))
	for name, probe := range probes {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		checks[name] = probe(pctx) == nil
		cancel()
	}
	status := HealthStatus{Checks: checks, CheckedAt: time.Now()}

	mu.Lock()
	currentHealth = status
	mu.Unlock()
	return status
}

// StartHealthMonitor performs periodic health checks and updates in-memory
// state until ctx is cancelled.
func StartHealthMonitor(ctx context.Context, interval time.Duration, probes map[string]HealthProbe) {
	CheckHealth(ctx, probes)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CheckHealth(ctx, probes)
			}
		}
	}()
}
