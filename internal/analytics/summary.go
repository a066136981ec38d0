package analytics

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/pkg/async"
	"github.com/stamns/Next-blog-sub000/internal/timeframe"
)

// Totals are the headline numbers for one range.
type Totals struct {
	Visitors           int64   `json:"visitors"`
	Sessions           int64   `json:"sessions"`
	PageViews          int64   `json:"pageViews"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
	AvgPageDuration    float64 `json:"avgPageDuration"`
	BounceRate         float64 `json:"bounceRate"`
}

type Summary struct {
	Totals
	Today Totals `json:"today"`
}

type totalsQuery struct {
	name string
	run  func(db *gorm.DB, from, to time.Time) (interface{}, error)
}

var totalsQueries = []totalsQuery{
	{"visitors", func(db *gorm.DB, from, to time.Time) (interface{}, error) { return CountVisitors(db, from, to) }},
	{"sessions", func(db *gorm.DB, from, to time.Time) (interface{}, error) { return CountSessions(db, from, to) }},
	{"page_views", func(db *gorm.DB, from, to time.Time) (interface{}, error) { return CountPageViews(db, from, to) }},
	{"avg_session_duration", func(db *gorm.DB, from, to time.Time) (interface{}, error) { return AvgSessionDuration(db, from, to) }},
	{"avg_page_duration", func(db *gorm.DB, from, to time.Time) (interface{}, error) { return AvgPageDuration(db, from, to) }},
	{"bounce_rate", func(db *gorm.DB, from, to time.Time) (interface{}, error) { return BounceRate(db, from, to) }},
}

// GetSummary computes Totals for the frame and for today (local midnight in
// the frame's timezone through now). The twelve queries run in parallel;
// any failure fails the whole summary.
func GetSummary(ctx context.Context, db *gorm.DB, tf *timeframe.TimeFrame, now time.Time) (*Summary, error) {
	db = db.WithContext(ctx)
	todayFrom, todayTo := timeframe.Today(now, tf.Tz)

	ranges := []struct {
		prefix   string
		from, to time.Time
	}{
		{"range.", tf.From.UTC(), tf.To.UTC()},
		{"today.", todayFrom, todayTo},
	}

	var tasks []async.Task
	for _, r := range ranges {
		for _, q := range totalsQueries {
			tasks = append(tasks, async.Task{
				Name:    r.prefix + q.name,
				Execute: func() (interface{}, error) { return q.run(db, r.from, r.to) },
			})
		}
	}

	results := async.NewPool(len(tasks)).Execute(ctx, tasks)

	summary := &Summary{}
	for _, r := range []struct {
		prefix string
		dst    *Totals
	}{{"range.", &summary.Totals}, {"today.", &summary.Today}} {
		if err := collectTotals(results, r.prefix, r.dst); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func collectTotals(results map[string]async.Result, prefix string, dst *Totals) error {
	var err error
	if dst.Visitors, err = async.Get[int64](results, prefix+"visitors"); err != nil {
		return err
	}
	if dst.Sessions, err = async.Get[int64](results, prefix+"sessions"); err != nil {
		return err
	}
	if dst.PageViews, err = async.Get[int64](results, prefix+"page_views"); err != nil {
		return err
	}
	if dst.AvgSessionDuration, err = async.Get[float64](results, prefix+"avg_session_duration"); err != nil {
		return err
	}
	if dst.AvgPageDuration, err = async.Get[float64](results, prefix+"avg_page_duration"); err != nil {
		return err
	}
	if dst.BounceRate, err = async.Get[float64](results, prefix+"bounce_rate"); err != nil {
		return err
	}
	return nil
}

// CountVisitors counts distinct visitors among sessions started in [from, to].
func CountVisitors(db *gorm.DB, from, to time.Time) (int64, error) {
	var n int64
	err := db.Raw(`SELECT COUNT(DISTINCT visitor_id) FROM sessions WHERE started_at BETWEEN ? AND ?`,
		from.UTC(), to.UTC()).Scan(&n).Error
	if err != nil {
		return 0, unavailable("counting visitors", err)
	}
	return n, nil
}

func CountSessions(db *gorm.DB, from, to time.Time) (int64, error) {
	var n int64
	err := db.Raw(`SELECT COUNT(*) FROM sessions WHERE started_at BETWEEN ? AND ?`,
		from.UTC(), to.UTC()).Scan(&n).Error
	if err != nil {
		return 0, unavailable("counting sessions", err)
	}
	return n, nil
}

func CountPageViews(db *gorm.DB, from, to time.Time) (int64, error) {
	var n int64
	err := db.Raw(`SELECT COUNT(*) FROM page_views WHERE entered_at BETWEEN ? AND ?`,
		from.UTC(), to.UTC()).Scan(&n).Error
	if err != nil {
		return 0, unavailable("counting page views", err)
	}
	return n, nil
}

// AvgSessionDuration is the mean duration in seconds of closed sessions
// started in range. Open sessions have no duration and are ignored.
func AvgSessionDuration(db *gorm.DB, from, to time.Time) (float64, error) {
	var avg float64
	err := db.Raw(`SELECT COALESCE(AVG(duration), 0.0) FROM sessions
		WHERE started_at BETWEEN ? AND ? AND duration IS NOT NULL`,
		from.UTC(), to.UTC()).Scan(&avg).Error
	if err != nil {
		return 0, unavailable("averaging session duration", err)
	}
	return round2(avg), nil
}

func AvgPageDuration(db *gorm.DB, from, to time.Time) (float64, error) {
	var avg float64
	err := db.Raw(`SELECT COALESCE(AVG(duration), 0.0) FROM page_views
		WHERE entered_at BETWEEN ? AND ? AND duration IS NOT NULL`,
		from.UTC(), to.UTC()).Scan(&avg).Error
	if err != nil {
		return 0, unavailable("averaging page duration", err)
	}
	return round2(avg), nil
}

// BounceRate is the percentage of sessions started in range with at most one
// page view, rounded to two decimals. 0 when there are no sessions.
func BounceRate(db *gorm.DB, from, to time.Time) (float64, error) {
	var row struct {
		Total   int64
		Bounced int64
	}
	err := db.Raw(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN views <= 1 THEN 1 ELSE 0 END), 0) AS bounced
		FROM (
			SELECT s.id, COUNT(p.id) AS views
			FROM sessions s
			LEFT JOIN page_views p ON p.session_id = s.id
			WHERE s.started_at BETWEEN ? AND ?
			GROUP BY s.id
		) per_session`,
		from.UTC(), to.UTC()).Scan(&row).Error
	if err != nil {
		return 0, unavailable("computing bounce rate", err)
	}
	return percentage(row.Bounced, row.Total), nil
}
