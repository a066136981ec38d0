package timeframe

import (
	"fmt"
	"time"
)

// DefaultRangeDays is the look-back used when no start date is given.
const DefaultRangeDays = 30

type TimeFrameParserParams struct {
	StartDate   string
	EndDate     string
	Tz          string
	Granularity string
}

type TimeFrameParser struct {
	timeProvider TimeProvider
}

func NewTimeFrameParser(timeProvider ...TimeProvider) *TimeFrameParser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}

	return &TimeFrameParser{
		timeProvider: provider,
	}
}

// ParseTimeFrame turns YYYY-MM-DD dates in the given timezone into a frame.
// The start date begins at local midnight, the end date runs through the
// end of its day. Missing dates default to the last 30 days up to now.
func (p *TimeFrameParser) ParseTimeFrame(params TimeFrameParserParams) (*TimeFrame, error) {
	tz := params.Tz
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone: %w", err)
	}
	now := p.timeProvider.Now(loc)

	from := startOfDay(now.AddDate(0, 0, -DefaultRangeDays))
	if params.StartDate != "" {
		d, err := time.ParseInLocation("2006-01-02", params.StartDate, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid 'startDate': %w", err)
		}
		from = d
	}

	to := now
	if params.EndDate != "" {
		d, err := time.ParseInLocation("2006-01-02", params.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid 'endDate': %w", err)
		}
		to = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	if from.After(to) {
		return nil, fmt.Errorf("startDate must not be after endDate")
	}

	bucket := TimeFrameBucketSize(params.Granularity)
	if params.Granularity == "" {
		bucket = GetAppropriateBucketSize(from, to)
	}

	return NewTimeFrame(from, to, bucket, loc)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
