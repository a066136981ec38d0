package analytics

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

type RealtimeVisitor struct {
	VisitorID string    `json:"visitorId"`
	Alias     string    `json:"alias"`
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	EnteredAt time.Time `json:"enteredAt"`
	Country   string    `json:"country,omitempty"`
	Device    string    `json:"device,omitempty"`
	Browser   string    `json:"browser,omitempty"`
}

// GetRealtimeVisitors returns one row per visitor with a page view entered in
// the last minutes, showing their most recent path, newest first, capped at
// MaxRealtimeResults. minutes is clamped into [1, MaxRealtimeMinutes].
func GetRealtimeVisitors(ctx context.Context, db *gorm.DB, now time.Time, minutes int) ([]RealtimeVisitor, error) {
	switch {
	case minutes <= 0:
		minutes = DefaultRealtimeMinutes
	case minutes > MaxRealtimeMinutes:
		minutes = MaxRealtimeMinutes
	}
	db = db.WithContext(ctx)
	since := now.UTC().Add(-time.Duration(minutes) * time.Minute)

	// Latest page view per visitor, picked in SQL so only the capped rows load.
	var latest []sessions.PageView
	err := db.Raw(`
		SELECT pv.*
		FROM page_views pv
		WHERE pv.entered_at >= ?
		  AND pv.id = (
			SELECT p2.id FROM page_views p2
			WHERE p2.visitor_id = pv.visitor_id AND p2.entered_at >= ?
			ORDER BY p2.entered_at DESC, p2.id DESC
			LIMIT 1)
		ORDER BY pv.entered_at DESC, pv.id DESC
		LIMIT ?`,
		since, since, MaxRealtimeResults).Scan(&latest).Error
	if err != nil {
		return nil, unavailable("loading recent page views", err)
	}

	result := make([]RealtimeVisitor, 0, len(latest))
	if len(latest) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(latest))
	for _, pv := range latest {
		ids = append(ids, pv.VisitorID)
	}
	var found []visitors.Visitor
	if err := db.Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, unavailable("loading realtime visitors", err)
	}
	byID := make(map[uint]*visitors.Visitor, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	for _, pv := range latest {
		v, ok := byID[pv.VisitorID]
		if !ok {
			continue
		}
		result = append(result, RealtimeVisitor{
			VisitorID: v.Token,
			Alias:     visitors.Alias(v.Token),
			Path:      pv.Path,
			Title:     pv.Title,
			EnteredAt: pv.EnteredAt,
			Country:   v.Country,
			Device:    v.Device,
			Browser:   v.Browser,
		})
	}
	return result, nil
}
