// Package ratelimit caps accepted submissions per source over a fixed
// rolling window, backed by the database so limits survive restarts.
package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Limiter struct {
	db     *sql.DB
	limit  int
	window time.Duration

	// swapped out by tests
	now func() time.Time
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func New(db *sql.DB, limit int, window time.Duration) *Limiter {
	return &Limiter{db: db, limit: limit, window: window, now: time.Now}
}

// Allow performs the check-and-increment as one conditional upsert, so two
// concurrent requests from the same source can never both slip past the
// ceiling. A denied attempt leaves the window untouched: hammering the
// endpoint does not push the reset further out.
func (l *Limiter) Allow(ctx context.Context, source string) (Decision, error) {
	now := l.now().Unix()
	windowSecs := int64(l.window / time.Second)

	var windowStart, count int64
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO submission_rate_limit (ip_address, window_start, submission_count)
		VALUES (?1, ?2, 1)
		ON CONFLICT(ip_address) DO UPDATE SET
			submission_count = CASE
				WHEN ?2 - submission_rate_limit.window_start >= ?3 THEN 1
				ELSE submission_rate_limit.submission_count + 1
			END,
			window_start = CASE
				WHEN ?2 - submission_rate_limit.window_start >= ?3 THEN ?2
				ELSE submission_rate_limit.window_start
			END
		WHERE ?2 - submission_rate_limit.window_start >= ?3
			OR submission_rate_limit.submission_count < ?4
		RETURNING window_start, submission_count`,
		source, now, windowSecs, l.limit,
	).Scan(&windowStart, &count)

	if errors.Is(err, sql.ErrNoRows) {
		// over the ceiling inside an active window
		err = l.db.QueryRowContext(ctx, `
			SELECT window_start, submission_count
			FROM submission_rate_limit
			WHERE ip_address = ?`,
			source,
		).Scan(&windowStart, &count)
		if err != nil {
			return Decision{}, err
		}
		retry := time.Duration(windowStart+windowSecs-now) * time.Second
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	return Decision{Allowed: true, Remaining: l.limit - int(count)}, nil
}
