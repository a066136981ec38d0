package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

var ErrUnsupportedEvent = errors.New("unsupported event type")

const (
	maxURLLength   = 2048
	maxFieldLength = 255
)

// LooseString accepts a JSON string, number or boolean. Anything else
// decodes to the empty string instead of failing the whole payload.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		*s = LooseString(v)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return nil
	}
	*s = LooseString(b)
	return nil
}

// LooseInt accepts a JSON number or a numeric string. Fractions are rounded.
// Unparseable input leaves Valid false.
type LooseInt struct {
	Value int
	Valid bool
}

func (n *LooseInt) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	} else if f < math.MinInt32 {
		f = math.MinInt32
	}
	n.Value = int(math.Round(f))
	n.Valid = true
	return nil
}

// Payload is the wire shape of an inbound event. It is never passed past
// Normalize.
type Payload struct {
	VisitorID    LooseString `json:"visitorId"`
	SessionID    LooseString `json:"sessionId"`
	Path         LooseString `json:"path"`
	Title        LooseString `json:"title"`
	ArticleID    LooseString `json:"articleId"`
	Referer      LooseString `json:"referer"`
	UTMSource    LooseString `json:"utmSource"`
	UTMMedium    LooseString `json:"utmMedium"`
	UTMCampaign  LooseString `json:"utmCampaign"`
	IP           LooseString `json:"ip"`
	Browser      LooseString `json:"browser"`
	BrowserVer   LooseString `json:"browserVer"`
	OS           LooseString `json:"os"`
	OSVer        LooseString `json:"osVer"`
	Device       LooseString `json:"device"`
	ScreenWidth  LooseInt    `json:"screenWidth"`
	ScreenHeight LooseInt    `json:"screenHeight"`
	Language     LooseString `json:"language"`
	Timezone     LooseString `json:"timezone"`
	Country      LooseString `json:"country"`
	Region       LooseString `json:"region"`
	City         LooseString `json:"city"`
	EventType    LooseString `json:"eventType"`
	Duration     LooseInt    `json:"duration"`
	ScrollDepth  LooseInt    `json:"scrollDepth"`
}

// ParsePayload decodes a request body. Only a body that is not a JSON object
// at all is an error; individual bad fields are dropped.
func ParsePayload(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("error decoding event payload: %w", err)
	}
	return p, nil
}

// RequestMeta is what the transport knows about the request an event came in on.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Now       time.Time
}

// Normalize validates and coerces a payload into one of the Event variants.
// Missing optional fields are left empty. An empty eventType means pageview.
// A missing visitorId is replaced with a daily-rotating fingerprint of the
// client IP and user agent.
func Normalize(p Payload, meta RequestMeta) (Event, error) {
	kind, ok := parseKind(string(p.EventType))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, clip(string(p.EventType), maxFieldLength))
	}

	ip := clean(p.IP, maxFieldLength)
	if ip == "" {
		ip = meta.ClientIP
	}

	token := clean(p.VisitorID, maxFieldLength)
	if token == "" {
		token = visitors.FingerprintToken(ip, meta.UserAgent, meta.Now)
	}

	common := Common{
		VisitorToken:    token,
		ClientSessionID: clean(p.SessionID, maxFieldLength),
		Path:            normalizePath(string(p.Path)),
		Visitor: visitors.Attributes{
			IPAddress:      ip,
			Country:        strings.ToUpper(clean(p.Country, maxFieldLength)),
			Region:         clean(p.Region, maxFieldLength),
			City:           clean(p.City, maxFieldLength),
			Browser:        clean(p.Browser, maxFieldLength),
			BrowserVersion: clean(p.BrowserVer, maxFieldLength),
			OS:             clean(p.OS, maxFieldLength),
			OSVersion:      clean(p.OSVer, maxFieldLength),
			Device:         strings.ToLower(clean(p.Device, maxFieldLength)),
			ScreenWidth:    nonNegative(p.ScreenWidth),
			ScreenHeight:   nonNegative(p.ScreenHeight),
			Language:       clean(p.Language, maxFieldLength),
			Timezone:       clean(p.Timezone, maxFieldLength),
		},
	}

	switch kind {
	case KindPageLeave:
		ev := &PageLeave{Common: common}
		if p.Duration.Valid {
			d := max(p.Duration.Value, 0)
			ev.Duration = &d
		}
		if p.ScrollDepth.Valid {
			s := min(max(p.ScrollDepth.Value, 0), 100)
			ev.ScrollDepth = &s
		}
		return ev, nil
	case KindSessionEnd:
		return &SessionEnd{Common: common}, nil
	default:
		return &PageView{
			Common:    common,
			Title:     clean(p.Title, maxFieldLength),
			ArticleID: clean(p.ArticleID, maxFieldLength),
			Attribution: sessions.Attribution{
				Referrer:    clean(p.Referer, maxURLLength),
				UTMSource:   clean(p.UTMSource, maxFieldLength),
				UTMMedium:   clean(p.UTMMedium, maxFieldLength),
				UTMCampaign: clean(p.UTMCampaign, maxFieldLength),
			},
		}, nil
	}
}

func parseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pageview", "page_view":
		return KindPageView, true
	case "pageleave", "page_leave":
		return KindPageLeave, true
	case "session_end", "sessionend":
		return KindSessionEnd, true
	default:
		return "", false
	}
}

// normalizePath keeps only the path of a full URL and defaults to "/".
func normalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil {
			raw = u.Path
		}
	}
	if raw == "" {
		return "/"
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return clip(raw, maxURLLength)
}

func clean(s LooseString, limit int) string {
	return clip(strings.TrimSpace(string(s)), limit)
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func nonNegative(n LooseInt) int {
	if !n.Valid || n.Value < 0 {
		return 0
	}
	return n.Value
}
