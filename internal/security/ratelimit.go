package security

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// RateLimiter is a per-scope tumbling-window hit counter backed by one
// database row per (scope, client). Increments run as a single atomic
// upsert so concurrent requests never lose hits, and multiple workers
// share the same counters.
type RateLimiter struct {
	db        *gorm.DB
	threshold int64
	window    time.Duration
}

// NewRateLimiter builds a limiter; threshold <= 0 disables limiting.
func NewRateLimiter(db *gorm.DB, threshold int64, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &RateLimiter{db: db, threshold: threshold, window: window}
}

const hitSQL = `
INSERT INTO rate_limits (scope, client, window_start, hits)
VALUES (?, ?, ?, 1)
ON CONFLICT (scope, client) DO UPDATE SET
	hits = CASE WHEN rate_limits.window_start <= ? THEN 1 ELSE rate_limits.hits + 1 END,
	window_start = CASE WHEN rate_limits.window_start <= ? THEN ? ELSE rate_limits.window_start END
RETURNING hits`

// Hit records one miss and reports whether the client is now blocked.
// A window that elapsed restarts the counter at one.
func (r *RateLimiter) Hit(ctx context.Context, scope, client string) (bool, error) {
	if r.threshold <= 0 {
		return false, nil
	}
	now := time.Now().UTC()
	expiry := now.Add(-r.window)

	var hits int64
	err := r.db.WithContext(ctx).
		Raw(hitSQL, scope, client, now, expiry, expiry, now).
		Scan(&hits).Error
	if err != nil {
		return false, err
	}
	return hits >= r.threshold, nil
}

// Blocked reports whether the client already exhausted the window,
// without recording a hit. Valid credentials do not unblock a client
// until the window elapses.
func (r *RateLimiter) Blocked(ctx context.Context, scope, client string) (bool, error) {
	if r.threshold <= 0 {
		return false, nil
	}
	var row struct {
		WindowStart time.Time
		Hits        int64
	}
	err := r.db.WithContext(ctx).
		Table("rate_limits").
		Where("scope = ? AND client = ?", scope, client).
		Select("window_start, hits").
		Scan(&row).Error
	if err != nil {
		return false, err
	}
	if row.Hits < r.threshold {
		return false, nil
	}
	return row.WindowStart.After(time.Now().UTC().Add(-r.window)), nil
}
