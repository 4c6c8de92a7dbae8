package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// lockoutSchedule is the exponential backoff applied after each additional
// failure beyond the threshold, indexed by (FailedAttempts - lockoutThreshold - 1).
var lockoutSchedule = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	4 * time.Minute,
	8 * time.Minute,
}

const (
	lockoutThreshold = 5
	lockoutWindow    = 15 * time.Minute
)

// PasswordHasher wraps bcrypt so hashing/verification runs on a bounded
// worker pool instead of the request-dispatch goroutine, per §5's note that
// bcrypt verification is a CPU-bound suspension point.
type PasswordHasher struct {
	cost int
	pool *WorkerPool
}

// NewPasswordHasher builds a hasher at the given bcrypt cost (a cost below
// bcrypt.MinCost falls back to bcrypt.DefaultCost, one above bcrypt.MaxCost is
// clamped to it; production deployments should use cost >= 10) backed by a
// worker pool of the given size.
func NewPasswordHasher(cost, poolSize int) *PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost, pool: NewWorkerPool(poolSize)}
}

// Hash bcrypt-hashes a plaintext password on the worker pool.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	type result struct {
		hash string
		err  error
	}
	out := make(chan result, 1)
	submitted := h.pool.Submit(ctx, func() {
		b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
		out <- result{hash: string(b), err: err}
	})
	if !submitted {
		return "", ctx.Err()
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-out:
		if r.err != nil {
			return "", fmt.Errorf("hash password: %w", r.err)
		}
		return r.hash, nil
	}
}

// Verify compares plaintext against a bcrypt hash on the worker pool.
func (h *PasswordHasher) Verify(ctx context.Context, hash, plaintext string) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	out := make(chan result, 1)
	submitted := h.pool.Submit(ctx, func() {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
		if err == nil {
			out <- result{ok: true}
			return
		}
		if err == bcrypt.ErrMismatchedHashAndPassword {
			out <- result{ok: false}
			return
		}
		out <- result{ok: false, err: err}
	})
	if !submitted {
		return false, ctx.Err()
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-out:
		return r.ok, r.err
	}
}

// RecordFailure increments the user's failure counter and, once the
// threshold is exceeded, sets LockedUntil using the exponential schedule.
// Failures outside the 15-minute window reset the counter first.
func RecordFailure(u *User, now time.Time) {
	if u.LastFailureReset.IsZero() || now.Sub(u.LastFailureReset) > lockoutWindow {
		u.FailedAttempts = 0
		u.LastFailureReset = now
	}
	u.FailedAttempts++
	if u.FailedAttempts > lockoutThreshold {
		idx := u.FailedAttempts - lockoutThreshold - 1
		if idx >= len(lockoutSchedule) {
			idx = len(lockoutSchedule) - 1
		}
		u.LockedUntil = now.Add(lockoutSchedule[idx])
	}
}

// RecordSuccess clears the lockout state after a successful authentication.
func RecordSuccess(u *User) {
	u.FailedAttempts = 0
	u.LockedUntil = time.Time{}
}

// IsLocked reports whether the account is currently within its lockout window.
func IsLocked(u *User, now time.Time) bool {
	return !u.LockedUntil.IsZero() && now.Before(u.LockedUntil)
}
