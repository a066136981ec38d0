package timeframe

import (
	"fmt"
	"time"
)

type TimeFrameBucketSize string

const (
	TimeFrameBucketSizeMonth TimeFrameBucketSize = "month"
	TimeFrameBucketSizeWeek  TimeFrameBucketSize = "week"
	TimeFrameBucketSizeDay   TimeFrameBucketSize = "day"
	TimeFrameBucketSizeHour  TimeFrameBucketSize = "hour"
)

// MaxBuckets bounds the number of points a single time series may produce.
const MaxBuckets = 2000

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// TimeFrame represents a closed period [From, To] split into buckets.
type TimeFrame struct {
	From       time.Time
	To         time.Time
	BucketSize TimeFrameBucketSize
	Tz         *time.Location
}

func NewTimeFrame(from, to time.Time, bucketSize TimeFrameBucketSize, tz *time.Location) (*TimeFrame, error) {
	if from.After(to) {
		return nil, fmt.Errorf("fromTime must be before toTime")
	}
	if tz == nil {
		tz = time.UTC
	}
	if !bucketSize.Valid() {
		return nil, fmt.Errorf("invalid bucket size: %q", bucketSize)
	}

	tf := &TimeFrame{
		From:       from.UTC(),
		To:         to.UTC(),
		BucketSize: bucketSize,
		Tz:         tz,
	}
	if n := len(tf.Buckets()); n > MaxBuckets {
		return nil, fmt.Errorf("range produces %d %s buckets, max is %d", n, bucketSize, MaxBuckets)
	}
	return tf, nil
}

func (b TimeFrameBucketSize) Valid() bool {
	switch b {
	case TimeFrameBucketSizeMonth, TimeFrameBucketSizeWeek, TimeFrameBucketSizeDay, TimeFrameBucketSizeHour:
		return true
	}
	return false
}

// GetAppropriateBucketSize picks hourly buckets for short ranges, monthly for
// long ones, daily otherwise.
func GetAppropriateBucketSize(from, to time.Time) TimeFrameBucketSize {
	days := to.Sub(from).Hours() / 24

	switch {
	case days >= 3*30:
		return TimeFrameBucketSizeMonth
	case days >= 2:
		return TimeFrameBucketSizeDay
	default:
		return TimeFrameBucketSizeHour
	}
}

// TruncateToBucketInTimezone truncates a time to the appropriate bucket boundary in the given timezone
func TruncateToBucketInTimezone(t time.Time, bucketSize TimeFrameBucketSize, loc *time.Location) time.Time {
	localTime := t.In(loc)
	year, month, day := localTime.Year(), localTime.Month(), localTime.Day()

	switch bucketSize {
	case TimeFrameBucketSizeMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, loc)
	case TimeFrameBucketSizeWeek:
		weekday := int(localTime.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		return time.Date(year, month, day-(weekday-1), 0, 0, 0, 0, loc)
	case TimeFrameBucketSizeDay:
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	case TimeFrameBucketSizeHour:
		return time.Date(year, month, day, localTime.Hour(), 0, 0, 0, loc)
	default:
		return localTime
	}
}

func (tf *TimeFrame) next(t time.Time) time.Time {
	switch tf.BucketSize {
	case TimeFrameBucketSizeMonth:
		return t.AddDate(0, 1, 0)
	case TimeFrameBucketSizeWeek:
		return t.AddDate(0, 0, 7)
	case TimeFrameBucketSizeDay:
		return t.AddDate(0, 0, 1)
	default:
		return t.Add(time.Hour)
	}
}

// Buckets returns the start of every bucket overlapping the frame, ascending.
func (tf *TimeFrame) Buckets() []time.Time {
	var points []time.Time
	for t := tf.BucketOf(tf.From); !t.After(tf.To); t = tf.next(t) {
		points = append(points, t)
		if len(points) > MaxBuckets {
			break
		}
	}
	return points
}

// BucketOf returns the start of the bucket containing t.
func (tf *TimeFrame) BucketOf(t time.Time) time.Time {
	return TruncateToBucketInTimezone(t, tf.BucketSize, tf.Tz)
}

// FormatBucket renders a bucket start the way the API reports it.
func (tf *TimeFrame) FormatBucket(t time.Time) string {
	local := t.In(tf.Tz)
	switch tf.BucketSize {
	case TimeFrameBucketSizeHour:
		return local.Format(time.RFC3339)
	case TimeFrameBucketSizeMonth:
		return local.Format("2006-01")
	default:
		return local.Format("2006-01-02")
	}
}

// Today returns local midnight through now in loc.
func Today(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.UTC(), now.UTC()
}
