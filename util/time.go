package util

import (
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// NowMS is in units of milliseconds
func NowMS() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// Time an operation - defer the returned function to record the interval
// from now until the defer completes in the named timer.
func Time(name string) func() {
	beginTSInMS := NowMS()
	return func() {
		interval := time.Duration(NowMS()-beginTSInMS) * time.Millisecond
		t := metrics.GetOrRegisterTimer(name, metrics.DefaultRegistry)
		t.Update(interval)
	}
}

// ElapsedMS reports the mean recorded duration for a named timer in
// milliseconds, or zero when the timer has never fired.
func ElapsedMS(name string) int64 {
	t := metrics.GetOrRegisterTimer(name, metrics.DefaultRegistry)
	return int64(t.Mean() / float64(time.Millisecond))
}
