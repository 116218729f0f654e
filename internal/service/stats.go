package service

import (
	"time"

	"github.com/hoofs-app/hoofs/internal/engine"
	"github.com/hoofs-app/hoofs/internal/model"
)

// maxActivityHours caps the activity window at 30 days of hourly buckets.
const maxActivityHours = 720

// StatsResponse combines repository totals with the engine's runtime view.
type StatsResponse struct {
	model.GlobalStats
	Runtime engine.RuntimeStats `json:"runtime"`
}

// Stats returns the global stats snapshot.
func (s *AdminService) Stats() (StatsResponse, error) {
	stats, err := s.Repo.GlobalStats(time.Now().UnixNano())
	if err != nil {
		return StatsResponse{}, internal("load stats", err)
	}
	return StatsResponse{GlobalStats: stats, Runtime: s.Engine.Runtime()}, nil
}

// Activity returns the bucketed activity series for the trailing window,
// newest bucket (the live one) last. hours outside [1, 720] are clamped.
func (s *AdminService) Activity(hours int) ([]model.ActivityBucket, error) {
	if hours <= 0 {
		hours = 24
	}
	if hours > maxActivityHours {
		hours = maxActivityHours
	}
	to := time.Now().Unix()
	from := to - int64(hours)*3600
	buckets, err := s.Metrics.Activity(from, to)
	if err != nil {
		return nil, internal("load activity", err)
	}
	if buckets == nil {
		buckets = []model.ActivityBucket{}
	}
	return buckets, nil
}
