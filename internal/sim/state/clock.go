package state

import "fmt"

// Time periods derived from the clock.
const (
	PeriodMorning   = "morning"
	PeriodAfternoon = "afternoon"
	PeriodEvening   = "evening"
	PeriodNight     = "night"
)

// TimeState is the world clock: hour [0,23], minute [0,59], day >= 1, and a
// multiplier converting elapsed real seconds to game minutes.
type TimeState struct {
	Hour      int     `json:"hour"`
	Minute    int     `json:"minute"`
	Day       int     `json:"day"`
	TimeScale float64 `json:"time_scale"`
}

func (t TimeState) String() string {
	return fmt.Sprintf("Day %d, %02d:%02d", t.Day, t.Hour, t.Minute)
}

// IsDayTime reports whether the hour falls in [6,18).
func (t TimeState) IsDayTime() bool {
	return t.Hour >= 6 && t.Hour < 18
}

func (t TimeState) Period() string {
	switch {
	case t.Hour >= 5 && t.Hour < 12:
		return PeriodMorning
	case t.Hour >= 12 && t.Hour < 17:
		return PeriodAfternoon
	case t.Hour >= 17 && t.Hour < 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}

// advance adds whole game minutes and cascades overflow minute -> hour -> day.
// Arbitrarily large deltas are valid; no value is skipped.
func (t *TimeState) advance(gameMinutes int) {
	if gameMinutes <= 0 {
		return
	}
	t.Minute += gameMinutes
	if t.Minute >= 60 {
		t.Hour += t.Minute / 60
		t.Minute %= 60
	}
	if t.Hour >= 24 {
		t.Day += t.Hour / 24
		t.Hour %= 24
	}
}
