package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
)

// GlobalStats aggregates the operational counters in a single query.
// SuccessRate and AvgResponseTimeMs cover the trailing 24 hours; a window
// with no checks reports a success rate of 1.
func (r *Repo) GlobalStats(nowNs int64) (model.GlobalStats, error) {
	dayAgo := nowNs - int64(24*time.Hour)
	weekAgo := nowNs - int64(7*24*time.Hour)

	var s model.GlobalStats
	var avgMs sql.NullFloat64
	err := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM events WHERE is_open = 1),
			(SELECT COUNT(*) FROM subscriptions),
			(SELECT COUNT(*) FROM user_profiles),
			(SELECT COUNT(*) FROM check_history WHERE checked_at_ns >= ?),
			(SELECT COUNT(*) FROM check_history WHERE checked_at_ns >= ? AND success = 0),
			(SELECT COUNT(*) FROM opening_events WHERE opened_at_ns >= ?),
			(SELECT COUNT(*) FROM notification_log),
			(SELECT COUNT(*) FROM queue WHERE sent = 0),
			(SELECT AVG(response_time_ms) FROM check_history WHERE checked_at_ns >= ? AND success = 1)
	`, dayAgo, dayAgo, weekAgo, dayAgo).Scan(
		&s.TotalEvents, &s.OpenEvents, &s.TotalSubscriptions, &s.TotalUsers,
		&s.ChecksLast24h, &s.FailuresLast24h, &s.OpeningsLast7d,
		&s.NotificationsSent, &s.PendingQueue, &avgMs,
	)
	if err != nil {
		return model.GlobalStats{}, fmt.Errorf("global stats: %w", err)
	}

	s.SuccessRate = 1
	if s.ChecksLast24h > 0 {
		s.SuccessRate = float64(s.ChecksLast24h-s.FailuresLast24h) / float64(s.ChecksLast24h)
	}
	if avgMs.Valid {
		s.AvgResponseTimeMs = avgMs.Float64
	}
	return s, nil
}

// UpsertActivityBucket adds the delta counters into the bucket row,
// creating it on first touch. Additive merge keeps restarts within a bucket
// window from losing the counts accumulated before the restart.
func (r *Repo) UpsertActivityBucket(b model.ActivityBucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO activity_buckets (bucket_start_unix, checks, failures, openings, notifications)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(bucket_start_unix) DO UPDATE SET
			checks = checks + excluded.checks,
			failures = failures + excluded.failures,
			openings = openings + excluded.openings,
			notifications = notifications + excluded.notifications
	`, b.BucketStartUnix, b.Checks, b.Failures, b.Openings, b.Notifications)
	if err != nil {
		return fmt.Errorf("upsert activity bucket %d: %w", b.BucketStartUnix, err)
	}
	return nil
}

// QueryActivityBuckets returns the buckets with start in [fromUnix, toUnix],
// oldest first.
func (r *Repo) QueryActivityBuckets(fromUnix, toUnix int64) ([]model.ActivityBucket, error) {
	rows, err := r.db.Query(`
		SELECT bucket_start_unix, checks, failures, openings, notifications
		FROM activity_buckets
		WHERE bucket_start_unix >= ? AND bucket_start_unix <= ?
		ORDER BY bucket_start_unix
	`, fromUnix, toUnix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ActivityBucket
	for rows.Next() {
		var b model.ActivityBucket
		if err := rows.Scan(&b.BucketStartUnix, &b.Checks, &b.Failures, &b.Openings, &b.Notifications); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// PruneActivityBuckets deletes buckets starting before cutoffUnix and
// returns the number removed.
func (r *Repo) PruneActivityBuckets(cutoffUnix int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec("DELETE FROM activity_buckets WHERE bucket_start_unix < ?", cutoffUnix)
	if err != nil {
		return 0, fmt.Errorf("prune activity buckets: %w", err)
	}
	return res.RowsAffected()
}
