package domain

import "time"

// Clock is where services read creation timestamps from. Tests swap in
// domaintest clocks to pin or step the time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// UnixMillis is the wire form of a timestamp in the admin API: UTC
// milliseconds since the epoch.
func UnixMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis is the inverse of UnixMillis, in UTC.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ Clock = RealClock{}
