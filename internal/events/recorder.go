package events

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
)

// RecordPageView inserts a new open page view under the session. An already
// open page view for the same path is left untouched.
func RecordPageView(tx *gorm.DB, session *sessions.Session, ev *PageView, now time.Time) (*sessions.PageView, error) {
	pv := &sessions.PageView{
		SessionID: session.ID,
		VisitorID: session.VisitorID,
		Path:      ev.Path,
		Title:     ev.Title,
		ArticleID: ev.ArticleID,
		EnteredAt: now.UTC(),
	}
	if err := tx.Create(pv).Error; err != nil {
		return nil, fmt.Errorf("error creating page view: %w", err)
	}
	return pv, nil
}

// RecordPageLeave closes the newest open page view for the event's path in
// the session. It reports false when there was nothing open to close, which
// makes replayed leave events harmless.
//
// Duration and scroll depth come from the event. When the client did not
// report a duration, the time since the page view was entered is used.
func RecordPageLeave(tx *gorm.DB, session *sessions.Session, ev *PageLeave, now time.Time) (bool, error) {
	var open []sessions.PageView
	err := tx.Where("session_id = ? AND path = ? AND left_at IS NULL", session.ID, ev.Path).
		Order("entered_at DESC").
		Limit(1).
		Find(&open).Error
	if err != nil {
		return false, fmt.Errorf("error finding open page view: %w", err)
	}
	if len(open) == 0 {
		return false, nil
	}
	pv := open[0]

	now = now.UTC()
	duration := ev.Duration
	if duration == nil {
		elapsed := max(int(now.Sub(pv.EnteredAt).Round(time.Second)/time.Second), 0)
		duration = &elapsed
	}

	updates := map[string]interface{}{
		"left_at":  now,
		"duration": *duration,
	}
	if ev.ScrollDepth != nil {
		updates["scroll_depth"] = *ev.ScrollDepth
	}

	res := tx.Model(&sessions.PageView{}).
		Where("id = ? AND left_at IS NULL", pv.ID).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("error closing page view: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
