package sessions

import "time"

// Session is one browsing episode of a visitor. EndedAt == nil means open.
type Session struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	PublicID    string     `gorm:"uniqueIndex;not null" json:"sessionId"`
	VisitorID   uint       `gorm:"index:idx_sessions_visitor_started;not null" json:"-"`
	StartedAt   time.Time  `gorm:"index:idx_sessions_visitor_started;index;not null" json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
	Duration    *int       `json:"duration"`
	Referrer    string     `gorm:"index" json:"referrer,omitempty"`
	UTMSource   string     `json:"utmSource,omitempty"`
	UTMMedium   string     `json:"utmMedium,omitempty"`
	UTMCampaign string     `json:"utmCampaign,omitempty"`
	PageViews   []PageView `gorm:"foreignKey:SessionID" json:"pageViews,omitempty"`
}

// IsOpen reports whether the session has not been closed yet.
func (s *Session) IsOpen() bool {
	return s.EndedAt == nil
}

// PageView is a single path visit inside a session.
type PageView struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	SessionID   uint       `gorm:"index:idx_page_views_session_path;not null" json:"-"`
	VisitorID   uint       `gorm:"index;not null" json:"-"`
	Path        string     `gorm:"index:idx_page_views_session_path;not null" json:"path"`
	Title       string     `json:"title,omitempty"`
	ArticleID   string     `json:"articleId,omitempty"`
	EnteredAt   time.Time  `gorm:"index;not null" json:"enteredAt"`
	LeftAt      *time.Time `json:"leftAt"`
	Duration    *int       `json:"duration"`
	ScrollDepth *int       `json:"scrollDepth"`
}

// Attribution is copied onto a session when it opens.
type Attribution struct {
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}
