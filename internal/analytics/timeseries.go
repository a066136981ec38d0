package analytics

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/timeframe"
)

type TimeSeriesPoint struct {
	Date      string `json:"date"`
	Visitors  int    `json:"visitors"`
	Sessions  int    `json:"sessions"`
	PageViews int    `json:"pageViews"`
}

type bucketTally struct {
	start     time.Time
	visitors  map[uint]struct{}
	sessions  int
	pageViews int
}

// GetTimeSeries buckets page views (by enter time) and sessions (by start
// time) using the frame's granularity and timezone. Every bucket in the
// frame is present, ascending, zero-filled. Visitors per bucket is the number
// of distinct visitors behind that bucket's page views.
func GetTimeSeries(ctx context.Context, db *gorm.DB, tf *timeframe.TimeFrame) ([]TimeSeriesPoint, error) {
	db = db.WithContext(ctx)
	from, to := tf.From.UTC(), tf.To.UTC()

	var views []sessions.PageView
	err := db.Model(&sessions.PageView{}).
		Select("visitor_id", "entered_at").
		Where("entered_at BETWEEN ? AND ?", from, to).
		Find(&views).Error
	if err != nil {
		return nil, unavailable("loading page views for time series", err)
	}

	var started []sessions.Session
	err = db.Model(&sessions.Session{}).
		Select("started_at").
		Where("started_at BETWEEN ? AND ?", from, to).
		Find(&started).Error
	if err != nil {
		return nil, unavailable("loading sessions for time series", err)
	}

	tallies := make(map[int64]*bucketTally)
	bucket := func(t time.Time) *bucketTally {
		start := tf.BucketOf(t)
		key := start.Unix()
		b, ok := tallies[key]
		if !ok {
			b = &bucketTally{start: start, visitors: make(map[uint]struct{})}
			tallies[key] = b
		}
		return b
	}

	for _, start := range tf.Buckets() {
		bucket(start)
	}
	for _, pv := range views {
		b := bucket(pv.EnteredAt)
		b.pageViews++
		b.visitors[pv.VisitorID] = struct{}{}
	}
	for _, s := range started {
		bucket(s.StartedAt).sessions++
	}

	ordered := make([]*bucketTally, 0, len(tallies))
	for _, b := range tallies {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].start.Before(ordered[j].start) })

	points := make([]TimeSeriesPoint, len(ordered))
	for i, b := range ordered {
		points[i] = TimeSeriesPoint{
			Date:      tf.FormatBucket(b.start),
			Visitors:  len(b.visitors),
			Sessions:  b.sessions,
			PageViews: b.pageViews,
		}
	}
	return points, nil
}
