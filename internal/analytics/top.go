package analytics

import (
	"context"

	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/pkg/referrers"
)

type PageStat struct {
	Path        string  `json:"path"`
	Title       string  `json:"title"`
	Views       int64   `json:"views"`
	AvgDuration float64 `json:"avgDuration"`
}

type ReferrerStat struct {
	Referrer    string  `json:"referrer"`
	Host        string  `json:"host"`
	Source      string  `json:"source"`
	Sessions    int64   `json:"sessions"`
	AvgDuration float64 `json:"avgDuration"`
}

// GetTopPages groups page views entered in range by path, most viewed first.
// AvgDuration only covers page views that were closed by a leave event.
func GetTopPages(ctx context.Context, db *gorm.DB, params QueryParams) ([]PageStat, error) {
	from, to := params.bounds()

	var rows []PageStat
	err := db.WithContext(ctx).Raw(`
		SELECT path,
		       MAX(title) AS title,
		       COUNT(*) AS views,
		       COALESCE(AVG(duration), 0.0) AS avg_duration
		FROM page_views
		WHERE entered_at BETWEEN ? AND ?
		GROUP BY path
		ORDER BY views DESC, path ASC
		LIMIT ?`,
		from, to, params.Limit).Scan(&rows).Error
	if err != nil {
		return nil, unavailable("fetching top pages", err)
	}

	for i := range rows {
		rows[i].AvgDuration = round2(rows[i].AvgDuration)
	}
	if rows == nil {
		rows = []PageStat{}
	}
	return rows, nil
}

// GetTopReferrers groups sessions started in range by referrer URL. Sessions
// without a referrer are left out.
func GetTopReferrers(ctx context.Context, db *gorm.DB, params QueryParams) ([]ReferrerStat, error) {
	from, to := params.bounds()

	var rows []ReferrerStat
	err := db.WithContext(ctx).Raw(`
		SELECT referrer,
		       COUNT(*) AS sessions,
		       COALESCE(AVG(duration), 0.0) AS avg_duration
		FROM sessions
		WHERE started_at BETWEEN ? AND ?
		  AND referrer IS NOT NULL AND referrer <> ''
		GROUP BY referrer
		ORDER BY sessions DESC, referrer ASC
		LIMIT ?`,
		from, to, params.Limit).Scan(&rows).Error
	if err != nil {
		return nil, unavailable("fetching top referrers", err)
	}

	for i := range rows {
		rows[i].AvgDuration = round2(rows[i].AvgDuration)
		rows[i].Host = referrers.Host(rows[i].Referrer)
		rows[i].Source = referrers.Source(rows[i].Referrer)
	}
	if rows == nil {
		rows = []ReferrerStat{}
	}
	return rows, nil
}
