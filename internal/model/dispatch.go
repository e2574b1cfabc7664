package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Speed string

const (
	SpeedFast       Speed = "fast"
	SpeedNormal     Speed = "normal"
	SpeedSlow       Speed = "slow"
	SpeedRandomized Speed = "randomized"
)

type DelayUnit string

const (
	UnitSeconds DelayUnit = "seconds"
	UnitMinutes DelayUnit = "minutes"
	UnitHours   DelayUnit = "hours"
)

// Duration converts n units into a time.Duration. Unknown units are
// treated as seconds.
func (u DelayUnit) Duration(n int) time.Duration {
	switch u {
	case UnitMinutes:
		return time.Duration(n) * time.Minute
	case UnitHours:
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * time.Second
	}
}

// ContactData is the per-recipient row of a dispatch. Insertion order in
// Dispatch.Contacts defines send order.
type ContactData struct {
	Phone          string            `json:"phone"`
	Name           string            `json:"name,omitempty"`
	FormattedPhone string            `json:"formattedPhone"`
	Extra          map[string]string `json:"extra,omitempty"`
}

type Settings struct {
	Speed           Speed     `json:"speed"`
	AutoDelete      bool      `json:"autoDelete"`
	DeleteDelay     int       `json:"deleteDelay"`
	DeleteDelayUnit DelayUnit `json:"deleteDelayUnit"`
}

// Schedule constrains when a dispatch may advance. All fields use local
// wall-clock strings: StartDate is "YYYY-MM-DD", StartTime/EndTime "HH:mm".
type Schedule struct {
	StartDate         string `json:"startDate,omitempty"`
	StartTime         string `json:"startTime,omitempty"`
	EndTime           string `json:"endTime,omitempty"`
	SuspendedWeekdays []int  `json:"suspendedWeekdays,omitempty"`
	Timezone          string `json:"timezone,omitempty"`
}

// Suspended reports whether the weekday index (0=Sunday..6=Saturday) is
// excluded by this schedule.
func (s *Schedule) Suspended(weekday int) bool {
	for _, d := range s.SuspendedWeekdays {
		if d == weekday {
			return true
		}
	}
	return false
}

type Stats struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Invalid int `json:"invalid"`
	Total   int `json:"total"`
}

// Dispatch is one bulk-messaging campaign with its own contact list,
// schedule and progress counters.
type Dispatch struct {
	ID           string
	OwnerID      string
	InstanceID   string
	TemplateID   string
	Name         string
	Status       Status
	Settings     Settings
	Schedule     *Schedule
	Contacts     []ContactData
	Stats        Stats
	UserTimezone string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Cursor is the index of the next contact to process. Sent+Failed is the
// authoritative pointer into Contacts; it survives restarts because both
// counters are persisted.
func (d *Dispatch) Cursor() int {
	return d.Stats.Sent + d.Stats.Failed
}

// Exhausted reports whether every contact has been attempted.
func (d *Dispatch) Exhausted() bool {
	return d.Cursor() >= d.Stats.Total
}
