// Package schedule answers whether a dispatch is eligible to advance at the
// current instant, given its optional schedule and a resolved timezone. All
// predicates are pure: the only input besides the schedule is the clock.
package schedule

import (
	"time"

	"github.com/example/dispatch-engine/internal/model"
)

// Clock abstracts "now" so tests can drive fixed instants.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Evaluator struct {
	clock       Clock
	defaultZone string
}

func NewEvaluator(clock Clock, defaultZone string) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	if defaultZone == "" {
		defaultZone = "UTC"
	}
	return &Evaluator{clock: clock, defaultZone: defaultZone}
}

// ResolveZone picks the effective timezone: the schedule's own zone wins,
// then the dispatch owner's persisted zone, then the configured default.
func (e *Evaluator) ResolveZone(s *model.Schedule, userZone string) string {
	if s != nil && s.Timezone != "" {
		return s.Timezone
	}
	if userZone != "" {
		return userZone
	}
	return e.defaultZone
}

// HasStartPassed reports whether the schedule's start instant has arrived
// in the given zone. A schedule with no start date has always started.
// Dates and times are compared as "YYYY-MM-DD" / "HH:mm" strings.
func (e *Evaluator) HasStartPassed(s *model.Schedule, zone string) bool {
	if s == nil || s.StartDate == "" {
		return true
	}
	now := e.localNow(zone)
	date := now.Format("2006-01-02")
	if date > s.StartDate {
		return true
	}
	if date < s.StartDate {
		return false
	}
	return now.Format("15:04") >= s.StartTime
}

// IsWithinWindow reports whether the local time-of-day falls inside
// [StartTime, EndTime], both ends inclusive. Windows with EndTime earlier
// than StartTime never match; overnight windows are not supported.
func (e *Evaluator) IsWithinWindow(s *model.Schedule, zone string) bool {
	if s == nil || s.StartTime == "" || s.EndTime == "" {
		return true
	}
	tod := e.localNow(zone).Format("15:04")
	return s.StartTime <= tod && tod <= s.EndTime
}

// IsAllowedWeekday reports whether the local weekday (0=Sunday..6=Saturday)
// is not suspended by the schedule.
func (e *Evaluator) IsAllowedWeekday(s *model.Schedule, zone string) bool {
	if s == nil {
		return true
	}
	return !s.Suspended(int(e.localNow(zone).Weekday()))
}

// Eligible combines all three predicates for a dispatch. A dispatch
// without a schedule is always eligible.
func (e *Evaluator) Eligible(d *model.Dispatch) bool {
	if d.Schedule == nil {
		return true
	}
	zone := e.ResolveZone(d.Schedule, d.UserTimezone)
	return e.HasStartPassed(d.Schedule, zone) &&
		e.IsWithinWindow(d.Schedule, zone) &&
		e.IsAllowedWeekday(d.Schedule, zone)
}

func (e *Evaluator) localNow(zone string) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	return e.clock.Now().In(loc)
}
