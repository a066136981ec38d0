// Package analytics answers dashboard questions over visitors, sessions and
// page views. Every function is a read; none of them take locks, so results
// may mix pre- and post-write state of sessions being ingested concurrently.
//
// Store failures are returned wrapped in ErrDataUnavailable. Callers must
// report them as "no data", never as zero.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stamns/Next-blog-sub000/internal/timeframe"
)

var (
	ErrDataUnavailable = errors.New("data unavailable")
	ErrVisitorNotFound = errors.New("visitor not found")
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	DefaultRealtimeMinutes = 5
	MaxRealtimeMinutes     = 24 * 60
	MaxRealtimeResults     = 50

	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 1_000_000

	RecentSessionsLimit = 20
)

// QueryParams scopes a range query.
type QueryParams struct {
	TimeFrame *timeframe.TimeFrame
	Limit     int
}

// NewQueryParams clamps limit into [1, MaxLimit], using DefaultLimit when unset.
func NewQueryParams(tf *timeframe.TimeFrame, limit int) QueryParams {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return QueryParams{TimeFrame: tf, Limit: limit}
}

func (p QueryParams) bounds() (time.Time, time.Time) {
	return p.TimeFrame.From.UTC(), p.TimeFrame.To.UTC()
}

func unavailable(what string, err error) error {
	return fmt.Errorf("%w: error %s: %w", ErrDataUnavailable, what, err)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}
