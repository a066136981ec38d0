package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"

	"github.com/stamns/Next-blog-sub000/internal/events"
)

// Seeder fills the database with synthetic traffic by driving the real
// ingestion pipeline under a simulated clock, so every row it produces
// went through the same reconciliation as live traffic.
type Seeder struct {
	DBManager      cartridge.DBManager
	Logger         *slog.Logger
	Visitors       int
	Days           int
	SessionTimeout time.Duration
	Seed           uint64
}

// Stats counts the events the seeder sent.
type Stats struct {
	Visitors    int
	PageViews   int
	PageLeaves  int
	SessionEnds int
}

type visit struct {
	token     string
	ip        string
	userAgent string
	referrer  string
	start     time.Time
	journey   []string
	end       bool
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, visitors, days int, sessionTimeout time.Duration) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:      dbManager,
		Logger:         logger,
		Visitors:       visitors,
		Days:           max(days, 1),
		SessionTimeout: sessionTimeout,
		Seed:           uint64(time.Now().UnixNano()),
	}
}

// Run generates traffic for the Days leading up to end.
func (s *Seeder) Run(ctx context.Context, end time.Time) (Stats, error) {
	started := time.Now()
	s.Logger.Info("Seeding visitors...",
		slog.Int("visitors", s.Visitors),
		slog.Int("days", s.Days))

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	visits := s.plan(rng, end.UTC())

	var clock time.Time
	collector := events.NewCollector(s.DBManager, s.Logger, s.SessionTimeout,
		events.WithClock(func() time.Time { return clock }))
	enricher := events.DefaultEnricher()

	stats := Stats{Visitors: s.Visitors}
	send := func(p events.Payload, v visit) error {
		ev, err := events.Normalize(p, events.RequestMeta{ClientIP: v.ip, UserAgent: v.userAgent, Now: clock})
		if err != nil {
			return err
		}
		enricher.Enrich(ev, v.userAgent)
		_, err = collector.Collect(ev)
		return err
	}

	for i, v := range visits {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		clock = v.start
		for n, path := range v.journey {
			view := events.Payload{
				VisitorID: events.LooseString(v.token),
				Path:      events.LooseString(path),
				Title:     events.LooseString(titleFor(path)),
			}
			if n == 0 {
				view.Referer = events.LooseString(v.referrer)
			}
			if err := send(view, v); err != nil {
				return stats, fmt.Errorf("error seeding page view %d: %w", i, err)
			}
			stats.PageViews++

			// Most readers leave a page the browser can report on.
			dwell := 5 + rng.IntN(240)
			clock = clock.Add(time.Duration(dwell) * time.Second)
			if rng.IntN(10) < 8 {
				leave := events.Payload{
					VisitorID:   events.LooseString(v.token),
					Path:        events.LooseString(path),
					EventType:   "pageleave",
					Duration:    events.LooseInt{Value: dwell, Valid: true},
					ScrollDepth: events.LooseInt{Value: rng.IntN(101), Valid: true},
				}
				if err := send(leave, v); err != nil {
					return stats, fmt.Errorf("error seeding page leave %d: %w", i, err)
				}
				stats.PageLeaves++
			}
			clock = clock.Add(time.Duration(1+rng.IntN(20)) * time.Second)
		}

		if v.end {
			sessionEnd := events.Payload{VisitorID: events.LooseString(v.token), EventType: "session_end"}
			if err := send(sessionEnd, v); err != nil {
				return stats, fmt.Errorf("error seeding session end %d: %w", i, err)
			}
			stats.SessionEnds++
		}
	}

	s.Logger.Info("Seeding completed",
		slog.Int("visits", len(visits)),
		slog.Int("page_views", stats.PageViews),
		slog.Duration("elapsed", time.Since(started)))
	return stats, nil
}

// plan lays out every visit up front, ordered by start time. A visitor
// comes back on distinct days so its visits never overlap.
func (s *Seeder) plan(rng *rand.Rand, end time.Time) []visit {
	ipPool := generateIPPool(rng, max(s.Visitors, 1))
	userAgents := getUserAgents()
	referrers := getReferrers()
	journeys := getJourneys()
	first := end.Truncate(24*time.Hour).AddDate(0, 0, -(s.Days - 1))

	var visits []visit
	for i := 0; i < s.Visitors; i++ {
		token := uuid.NewString()
		ip := ipPool[i]
		userAgent := userAgents[rng.IntN(len(userAgents))]

		returns := 1 + rng.IntN(min(3, s.Days))
		for _, day := range rng.Perm(s.Days)[:returns] {
			// Visits start between 06:00 and 22:00 UTC.
			offset := 6*time.Hour + time.Duration(rng.IntN(16*60))*time.Minute
			startAt := first.AddDate(0, 0, day).Add(offset)
			if startAt.After(end) {
				startAt = end.Add(-time.Duration(1+rng.IntN(60)) * time.Minute)
			}
			visits = append(visits, visit{
				token:     token,
				ip:        ip,
				userAgent: userAgent,
				referrer:  referrers[rng.IntN(len(referrers))],
				start:     startAt,
				journey:   journeys[rng.IntN(len(journeys))],
				end:       rng.IntN(2) == 0,
			})
		}
	}

	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].start.Before(visits[j].start)
	})
	return visits
}

// titleFor turns "/posts/go-concurrency-patterns" into "go concurrency patterns".
func titleFor(path string) string {
	slug := path[strings.LastIndex(path, "/")+1:]
	if slug == "" {
		return "Home"
	}
	return strings.ReplaceAll(slug, "-", " ")
}

// generateIPPool returns count distinct public-looking IPv4 addresses.
func generateIPPool(rng *rand.Rand, count int) []string {
	seen := make(map[string]bool)
	var ips []string
	for len(ips) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", rng.IntN(200)+11, rng.IntN(256), rng.IntN(256), rng.IntN(254)+1)
		if !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	return ips
}

// getUserAgents returns a list of common user agent strings
func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
	}
}

// getReferrers returns a list of common referrer URLs
func getReferrers() []string {
	return []string{
		"", // Direct visit
		"",
		"https://www.google.com/",
		"https://duckduckgo.com/",
		"https://news.ycombinator.com/item?id=1",
		"https://t.co/abc123",
		"https://www.reddit.com/r/golang/",
		"https://github.com/",
		"https://juejin.cn/post/1",
		"https://some-other-blog.dev/links",
	}
}

// getJourneys returns typical reading paths through a blog.
func getJourneys() [][]string {
	return [][]string{
		{"/"},
		{"/", "/posts/hello-world"},
		{"/posts/go-concurrency-patterns"},
		{"/posts/go-concurrency-patterns", "/posts/context-cancellation", "/"},
		{"/", "/archive", "/posts/sqlite-wal-mode"},
		{"/", "/about"},
		{"/tags/go", "/posts/generics-in-practice", "/posts/go-concurrency-patterns"},
		{"/posts/sqlite-wal-mode", "/about"},
	}
}
