package sessions

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

// ErrOpenSessionConflict is returned when another writer opened a session
// for the same visitor between our lookup and our insert. Callers retry.
var ErrOpenSessionConflict = errors.New("open session already exists for visitor")

// Reconciler decides which session an event belongs to.
//
// The window is fixed: a session is reusable while now - StartedAt <= Timeout,
// regardless of how recent its last activity was.
type Reconciler struct {
	Timeout time.Duration
}

func NewReconciler(timeout time.Duration) *Reconciler {
	return &Reconciler{Timeout: timeout}
}

func (r *Reconciler) withinWindow(s *Session, now time.Time) bool {
	return now.Sub(s.StartedAt) <= r.Timeout
}

// OpenOrReuse handles a page view. It reuses the visitor's open session when
// still inside the window. Otherwise it closes any lapsed open session, opens
// a new one with the given attribution and bumps the visitor's visit count.
// The returned bool is true when a session was created.
func (r *Reconciler) OpenOrReuse(tx *gorm.DB, visitorID uint, attr Attribution, now time.Time) (*Session, bool, error) {
	now = now.UTC()

	current, err := findOpen(tx, visitorID)
	if err != nil {
		return nil, false, err
	}
	if current != nil {
		if r.withinWindow(current, now) {
			return current, false, nil
		}
		// Already closed by another writer is fine here: either way it is no
		// longer open.
		if _, err := closeLapsed(tx, current, now); err != nil {
			return nil, false, err
		}
	}

	session := &Session{
		PublicID:    uuid.NewString(),
		VisitorID:   visitorID,
		StartedAt:   now,
		Referrer:    attr.Referrer,
		UTMSource:   attr.UTMSource,
		UTMMedium:   attr.UTMMedium,
		UTMCampaign: attr.UTMCampaign,
	}
	if err := tx.Create(session).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, false, ErrOpenSessionConflict
		}
		return nil, false, fmt.Errorf("error creating session: %w", err)
	}

	if err := visitors.IncrementVisitCount(tx, visitorID); err != nil {
		return nil, false, err
	}

	return session, true, nil
}

// FindActive returns the visitor's open session if it is still inside the
// window, or nil. Used by page-leave events, which never open sessions.
func (r *Reconciler) FindActive(tx *gorm.DB, visitorID uint, now time.Time) (*Session, error) {
	current, err := findOpen(tx, visitorID)
	if err != nil || current == nil {
		return nil, err
	}
	if !r.withinWindow(current, now.UTC()) {
		return nil, nil
	}
	return current, nil
}

// Close ends the visitor's most recent open session, ignoring the window,
// with duration = now - start. Returns nil when there is nothing to close,
// including when another writer closed it first.
func (r *Reconciler) Close(tx *gorm.DB, visitorID uint, now time.Time) (*Session, error) {
	current, err := findOpen(tx, visitorID)
	if err != nil || current == nil {
		return nil, err
	}
	closed, err := closeAt(tx, current, now.UTC())
	if err != nil || !closed {
		return nil, err
	}
	return current, nil
}

func findOpen(tx *gorm.DB, visitorID uint) (*Session, error) {
	var found []Session
	err := tx.Where("visitor_id = ? AND ended_at IS NULL", visitorID).
		Order("started_at DESC").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("error looking up open session: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// closeAt ends s at end. It reports false, leaving s untouched, when the row
// was no longer open.
func closeAt(tx *gorm.DB, s *Session, end time.Time) (bool, error) {
	if end.Before(s.StartedAt) {
		end = s.StartedAt
	}
	duration := durationSeconds(s.StartedAt, end)

	res := tx.Model(&Session{}).
		Where("id = ? AND ended_at IS NULL", s.ID).
		Updates(map[string]interface{}{"ended_at": end, "duration": duration})
	if res.Error != nil {
		return false, fmt.Errorf("error closing session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.EndedAt = &end
	s.Duration = &duration
	return true, nil
}

// closeLapsed closes a session whose window ran out without an explicit end.
// The end time is the last recorded activity rather than now, so abandoned
// sessions do not accumulate idle time.
func closeLapsed(tx *gorm.DB, s *Session, now time.Time) (bool, error) {
	end, err := lastActivity(tx, s)
	if err != nil {
		return false, err
	}
	if end.After(now) {
		end = now
	}
	return closeAt(tx, s, end)
}

func lastActivity(tx *gorm.DB, s *Session) (time.Time, error) {
	var views []PageView
	if err := tx.Where("session_id = ?", s.ID).Find(&views).Error; err != nil {
		return time.Time{}, fmt.Errorf("error loading session page views: %w", err)
	}

	last := s.StartedAt
	for _, pv := range views {
		if pv.EnteredAt.After(last) {
			last = pv.EnteredAt
		}
		if pv.LeftAt != nil && pv.LeftAt.After(last) {
			last = *pv.LeftAt
		}
	}
	return last.UTC(), nil
}

func durationSeconds(from, to time.Time) int {
	return int(to.Sub(from).Round(time.Second) / time.Second)
}
