package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	TimeScale float64 `yaml:"time_scale"`
	StartHour int     `yaml:"start_hour"`
	StartDay  int     `yaml:"start_day"`

	MoodDriftStep   float64 `yaml:"mood_drift_step"`
	EventHistoryCap int     `yaml:"event_history_cap"`
}

func defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      1,
		TimeScale:       1.0,
		StartHour:       12,
		StartDay:        1,
		MoodDriftStep:   0.1,
		EventHistoryCap: 1000,
	}
}

// Load reads tuning.yaml, falling back to defaults when path is empty.
func Load(path string) (Tuning, error) {
	t := defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive")
	}
	if t.TimeScale <= 0 {
		return fmt.Errorf("time_scale must be positive")
	}
	if t.StartHour < 0 || t.StartHour > 23 {
		return fmt.Errorf("start_hour out of range: %d", t.StartHour)
	}
	if t.StartDay < 1 {
		return fmt.Errorf("start_day must be >= 1")
	}
	if t.EventHistoryCap <= 0 {
		return fmt.Errorf("event_history_cap must be positive")
	}
	return nil
}
