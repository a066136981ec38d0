package analytics_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/analytics"
	"github.com/stamns/Next-blog-sub000/internal/testsupport"
	"github.com/stamns/Next-blog-sub000/internal/timeframe"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func dayFrame(t *testing.T, from, to time.Time) *timeframe.TimeFrame {
	t.Helper()
	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeDay, time.UTC)
	require.NoError(t, err)
	return tf
}

// seedBounceScenario creates three sessions with 1, 1 and 3 page views.
func seedBounceScenario(t *testing.T, db *gorm.DB) {
	t.Helper()
	alice := testsupport.CreateVisitor(t, db, "alice", base, func(v *visitors.Visitor) {
		v.Device, v.Browser, v.OS, v.Country = "desktop", "Chrome", "Windows", "US"
	})
	bob := testsupport.CreateVisitor(t, db, "bob", base, func(v *visitors.Visitor) {
		v.Device, v.Browser, v.OS, v.Country = "mobile", "Safari", "iOS", "DE"
	})
	carol := testsupport.CreateVisitor(t, db, "carol", base, func(v *visitors.Visitor) {
		v.Device, v.Browser, v.OS, v.Country = "desktop", "Firefox", "Linux", ""
	})

	s1 := testsupport.CreateSession(t, db, alice, base, testsupport.IntPtr(30), "https://www.google.com/search?q=go")
	testsupport.CreatePageView(t, db, s1, "/a", base, testsupport.IntPtr(30))

	s2 := testsupport.CreateSession(t, db, bob, base.Add(time.Hour), testsupport.IntPtr(60), "https://news.ycombinator.com/item?id=1")
	testsupport.CreatePageView(t, db, s2, "/b", base.Add(time.Hour), testsupport.IntPtr(60))

	s3 := testsupport.CreateSession(t, db, carol, base.Add(24*time.Hour), nil, "https://www.google.com/search?q=go")
	testsupport.CreatePageView(t, db, s3, "/a", base.Add(24*time.Hour), testsupport.IntPtr(10))
	testsupport.CreatePageView(t, db, s3, "/c", base.Add(24*time.Hour+time.Minute), testsupport.IntPtr(20))
	testsupport.CreatePageView(t, db, s3, "/a", base.Add(24*time.Hour+2*time.Minute), nil)
}

func TestGetSummary(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	seedBounceScenario(t, db)

	tf := dayFrame(t, base.Add(-time.Hour), base.Add(48*time.Hour))
	now := base.Add(24*time.Hour + 5*time.Minute)

	summary, err := analytics.GetSummary(context.Background(), db, tf, now)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.Visitors)
	assert.Equal(t, int64(3), summary.Sessions)
	assert.Equal(t, int64(5), summary.PageViews)
	assert.Equal(t, 45.0, summary.AvgSessionDuration)
	assert.Equal(t, 30.0, summary.AvgPageDuration)
	assert.Equal(t, 66.67, summary.BounceRate)

	// Today starts at midnight of 2025-03-11 UTC: only carol's session.
	assert.Equal(t, int64(1), summary.Today.Visitors)
	assert.Equal(t, int64(1), summary.Today.Sessions)
	assert.Equal(t, int64(3), summary.Today.PageViews)
	assert.Equal(t, 0.0, summary.Today.BounceRate)
}

func TestBounceRate(t *testing.T) {
	t.Run("no sessions", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		rate, err := analytics.BounceRate(db, base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0.0, rate)
	})

	t.Run("sessions without page views bounce", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		testsupport.CleanAllTables(db)
		v := testsupport.CreateVisitor(t, db, "empty", base)
		testsupport.CreateSession(t, db, v, base, nil, "")

		rate, err := analytics.BounceRate(db, base.Add(-time.Minute), base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 100.0, rate)
	})
}

func TestGetTimeSeries(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	seedBounceScenario(t, db)

	from := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 12, 23, 59, 59, 0, time.UTC)
	tf := dayFrame(t, from, to)

	points, err := analytics.GetTimeSeries(context.Background(), db, tf)
	require.NoError(t, err)

	require.Len(t, points, 4)
	assert.Equal(t, []string{"2025-03-09", "2025-03-10", "2025-03-11", "2025-03-12"},
		[]string{points[0].Date, points[1].Date, points[2].Date, points[3].Date})

	assert.Equal(t, analytics.TimeSeriesPoint{Date: "2025-03-09"}, points[0])
	assert.Equal(t, analytics.TimeSeriesPoint{Date: "2025-03-10", Visitors: 2, Sessions: 2, PageViews: 2}, points[1])
	assert.Equal(t, analytics.TimeSeriesPoint{Date: "2025-03-11", Visitors: 1, Sessions: 1, PageViews: 3}, points[2])

	total, err := analytics.CountPageViews(db, tf.From, tf.To)
	require.NoError(t, err)
	sum := 0
	for _, p := range points {
		sum += p.PageViews
	}
	assert.Equal(t, int(total), sum)
}

func TestGetTimeSeries_HourlyInTimezone(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	v := testsupport.CreateVisitor(t, db, "tz", base)
	s := testsupport.CreateSession(t, db, v, base, nil, "")
	testsupport.CreatePageView(t, db, s, "/", base, nil)
	testsupport.CreatePageView(t, db, s, "/next", base.Add(2*time.Hour), nil)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	tf, err := timeframe.NewTimeFrame(base, base.Add(2*time.Hour), timeframe.TimeFrameBucketSizeHour, tokyo)
	require.NoError(t, err)

	points, err := analytics.GetTimeSeries(context.Background(), db, tf)
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, "2025-03-10T21:00:00+09:00", points[0].Date)
	assert.Equal(t, 1, points[0].PageViews)
	assert.Equal(t, 1, points[0].Sessions)
	assert.Equal(t, 0, points[1].PageViews)
	assert.Equal(t, 1, points[2].PageViews)
	assert.Equal(t, 1, points[2].Visitors)
}

func TestGetTopPages(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	seedBounceScenario(t, db)
	tf := dayFrame(t, base.Add(-time.Hour), base.Add(48*time.Hour))

	pages, err := analytics.GetTopPages(context.Background(), db, analytics.NewQueryParams(tf, 2))
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, "/a", pages[0].Path)
	assert.Equal(t, int64(3), pages[0].Views)
	assert.Equal(t, 20.0, pages[0].AvgDuration)
	assert.Equal(t, "/b", pages[1].Path)
	assert.Equal(t, int64(1), pages[1].Views)
}

func TestGetTopReferrers(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	seedBounceScenario(t, db)
	v := testsupport.CreateVisitor(t, db, "direct", base)
	testsupport.CreateSession(t, db, v, base.Add(2*time.Hour), nil, "")

	tf := dayFrame(t, base.Add(-time.Hour), base.Add(48*time.Hour))
	refs, err := analytics.GetTopReferrers(context.Background(), db, analytics.NewQueryParams(tf, 0))
	require.NoError(t, err)

	require.Len(t, refs, 2)
	assert.Equal(t, "https://www.google.com/search?q=go", refs[0].Referrer)
	assert.Equal(t, "www.google.com", refs[0].Host)
	assert.Equal(t, "Google", refs[0].Source)
	assert.Equal(t, int64(2), refs[0].Sessions)
	assert.Equal(t, 30.0, refs[0].AvgDuration)
	assert.Equal(t, "Hacker News", refs[1].Source)
}

func TestGetBreakdown(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	seedBounceScenario(t, db)
	// Seen but without a session in range: not an active visitor.
	testsupport.CreateVisitor(t, db, "idle", base, func(v *visitors.Visitor) { v.Device = "tablet" })

	tf := dayFrame(t, base.Add(-time.Hour), base.Add(48*time.Hour))
	params := analytics.NewQueryParams(tf, 0)

	devices, err := analytics.GetBreakdown(context.Background(), db, params, analytics.DimensionDevice)
	require.NoError(t, err)
	assert.Equal(t, []analytics.BreakdownItem{
		{Name: "desktop", Label: "Desktop", Count: 2, Percentage: 66.67},
		{Name: "mobile", Label: "Mobile", Count: 1, Percentage: 33.33},
	}, devices)

	countries, err := analytics.GetBreakdown(context.Background(), db, params, analytics.DimensionCountry)
	require.NoError(t, err)
	require.Len(t, countries, 3)
	labels := map[string]string{}
	for _, c := range countries {
		labels[c.Name] = c.Label
	}
	assert.Equal(t, "United States", labels["US"])
	assert.Equal(t, "Germany", labels["DE"])
	assert.Equal(t, analytics.UnknownLabel, labels[""])

	empty := dayFrame(t, base.Add(-72*time.Hour), base.Add(-48*time.Hour))
	none, err := analytics.GetBreakdown(context.Background(), db, analytics.NewQueryParams(empty, 0), analytics.DimensionBrowser)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = analytics.GetBreakdown(context.Background(), db, params, analytics.Dimension("shoe_size"))
	assert.Error(t, err)
}

func TestGetRealtimeVisitors(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	now := base.Add(10 * time.Minute)

	a := testsupport.CreateVisitor(t, db, "a", base)
	b := testsupport.CreateVisitor(t, db, "b", base)
	sa := testsupport.CreateSession(t, db, a, base, nil, "")
	sb := testsupport.CreateSession(t, db, b, base, nil, "")

	testsupport.CreatePageView(t, db, sa, "/old", base, nil)
	testsupport.CreatePageView(t, db, sa, "/first", now.Add(-4*time.Minute), nil)
	testsupport.CreatePageView(t, db, sa, "/latest", now.Add(-time.Minute), nil)
	testsupport.CreatePageView(t, db, sb, "/b", now.Add(-2*time.Minute), nil)

	rows, err := analytics.GetRealtimeVisitors(context.Background(), db, now, 5)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].VisitorID)
	assert.Equal(t, "/latest", rows[0].Path)
	assert.Equal(t, visitors.Alias("a"), rows[0].Alias)
	assert.Equal(t, "b", rows[1].VisitorID)
}

func TestGetRealtimeVisitors_ClampsMinutes(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	now := base.Add(10 * time.Minute)

	live := testsupport.CreateVisitor(t, db, "live", now)
	stale := testsupport.CreateVisitor(t, db, "stale", now)
	testsupport.CreatePageView(t, db, testsupport.CreateSession(t, db, live, now.Add(-time.Minute), nil, ""),
		"/now", now.Add(-time.Minute), nil)
	testsupport.CreatePageView(t, db, testsupport.CreateSession(t, db, stale, now.Add(-48*time.Hour), nil, ""),
		"/then", now.Add(-48*time.Hour), nil)

	for _, minutes := range []int{200000000, math.MaxInt} {
		rows, err := analytics.GetRealtimeVisitors(context.Background(), db, now, minutes)
		require.NoError(t, err)
		require.Len(t, rows, 1, "minutes=%d", minutes)
		assert.Equal(t, "live", rows[0].VisitorID)
	}
}

func TestListVisitors_ClampsPage(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CreateVisitor(t, db, "v1", base)

	page, err := analytics.ListVisitors(context.Background(), db, math.MaxInt, 50)
	require.NoError(t, err)
	assert.Equal(t, analytics.MaxPage, page.Page)
	assert.Equal(t, int64(1), page.Total)
	assert.Empty(t, page.Visitors)
}

func TestListVisitors(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	for i, token := range []string{"v1", "v2", "v3"} {
		testsupport.CreateVisitor(t, db, token, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := analytics.ListVisitors(context.Background(), db, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Visitors, 2)
	assert.Equal(t, "v3", page.Visitors[0].Token)
	assert.Equal(t, "v2", page.Visitors[1].Token)

	page, err = analytics.ListVisitors(context.Background(), db, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Visitors, 1)
	assert.Equal(t, "v1", page.Visitors[0].Token)

	page, err = analytics.ListVisitors(context.Background(), db, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, analytics.MaxPageSize, page.PageSize)
}

func TestGetVisitorDetail(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	v := testsupport.CreateVisitor(t, db, "reader", base)
	for i := 0; i < analytics.RecentSessionsLimit+2; i++ {
		s := testsupport.CreateSession(t, db, v, base.Add(time.Duration(i)*time.Hour), testsupport.IntPtr(60), "")
		testsupport.CreatePageView(t, db, s, "/second", base.Add(time.Duration(i)*time.Hour+time.Minute), nil)
		testsupport.CreatePageView(t, db, s, "/first", base.Add(time.Duration(i)*time.Hour), nil)
	}

	detail, err := analytics.GetVisitorDetail(context.Background(), db, "reader")
	require.NoError(t, err)

	require.Len(t, detail.Sessions, analytics.RecentSessionsLimit)
	assert.True(t, detail.Sessions[0].StartedAt.After(detail.Sessions[1].StartedAt))
	require.Len(t, detail.Sessions[0].PageViews, 2)
	assert.Equal(t, "/first", detail.Sessions[0].PageViews[0].Path)
	assert.Equal(t, "/second", detail.Sessions[0].PageViews[1].Path)

	_, err = analytics.GetVisitorDetail(context.Background(), db, "nobody")
	assert.ErrorIs(t, err, analytics.ErrVisitorNotFound)
}

func TestStoreFailureIsDataUnavailable(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	require.NoError(t, db.Exec("DROP TABLE page_views").Error)

	_, err := analytics.CountPageViews(db, base, base.Add(time.Hour))
	assert.ErrorIs(t, err, analytics.ErrDataUnavailable)

	tf := dayFrame(t, base, base.Add(time.Hour))
	_, err = analytics.GetSummary(context.Background(), db, tf, base.Add(time.Hour))
	assert.ErrorIs(t, err, analytics.ErrDataUnavailable)
}
