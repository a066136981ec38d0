package events

import (
	"github.com/stamns/Next-blog-sub000/internal/pkg/geoip"
	"github.com/stamns/Next-blog-sub000/internal/pkg/user_agent"
)

// Enricher fills visitor attributes the client did not report, from the
// request's IP and User-Agent. Reported values always win.
type Enricher struct {
	LookupLocation func(ip string) (geoip.Location, bool)
	ParseUserAgent func(userAgent string) user_agent.UserAgent
}

// DefaultEnricher uses the GeoLite2 database and the user agent parser.
func DefaultEnricher() *Enricher {
	return &Enricher{
		LookupLocation: geoip.Lookup,
		ParseUserAgent: user_agent.Parse,
	}
}

// Enrich fills the event's visitor attributes in place.
func (e *Enricher) Enrich(ev Event, userAgent string) {
	if e == nil {
		return
	}
	attrs := &ev.Base().Visitor

	if e.LookupLocation != nil && attrs.Country == "" && attrs.IPAddress != "" {
		if loc, ok := e.LookupLocation(attrs.IPAddress); ok {
			attrs.Country = loc.Country
			if attrs.Region == "" {
				attrs.Region = loc.Region
			}
			if attrs.City == "" {
				attrs.City = loc.City
			}
		}
	}

	if e.ParseUserAgent == nil || userAgent == "" {
		return
	}
	if attrs.Browser != "" && attrs.OS != "" && attrs.Device != "" {
		return
	}

	// Versions only come along with the name they belong to.
	ua := e.ParseUserAgent(userAgent)
	if attrs.Browser == "" {
		attrs.Browser = ua.Browser
		fillEmpty(&attrs.BrowserVersion, ua.BrowserVersion)
	}
	if attrs.OS == "" {
		attrs.OS = ua.OS
		fillEmpty(&attrs.OSVersion, ua.OSVersion)
	}
	fillEmpty(&attrs.Device, ua.Device)
}

func fillEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}
