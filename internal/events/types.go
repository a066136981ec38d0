package events

import (
	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

// Kind identifies one of the three event variants.
type Kind string

const (
	KindPageView   Kind = "pageview"
	KindPageLeave  Kind = "pageleave"
	KindSessionEnd Kind = "session_end"
)

// Event is a validated inbound event. The concrete type is one of
// *PageView, *PageLeave or *SessionEnd; nothing else implements it.
type Event interface {
	Kind() Kind
	Base() *Common
	sealed()
}

// Common holds the fields every variant carries.
type Common struct {
	VisitorToken string
	// ClientSessionID is whatever session id the client echoed back. It is
	// kept for logging only; sessions are always resolved server-side.
	ClientSessionID string
	Path            string
	Visitor         visitors.Attributes
}

func (c *Common) Base() *Common { return c }
func (c *Common) sealed()       {}

// PageView opens (or reuses) a session and records a new page view.
type PageView struct {
	Common
	Title       string
	ArticleID   string
	Attribution sessions.Attribution
}

func (*PageView) Kind() Kind { return KindPageView }

// PageLeave closes the newest open page view for its path.
type PageLeave struct {
	Common
	// Duration in seconds; nil when the client did not report it.
	Duration *int
	// ScrollDepth in percent, 0-100; nil when not reported.
	ScrollDepth *int
}

func (*PageLeave) Kind() Kind { return KindPageLeave }

// SessionEnd closes the visitor's open session.
type SessionEnd struct {
	Common
}

func (*SessionEnd) Kind() Kind { return KindSessionEnd }
