package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 1 || got.TimeScale != 1.0 || got.StartHour != 12 || got.StartDay != 1 {
		t.Fatalf("defaults wrong: %+v", got)
	}
	if got.MoodDriftStep != 0.1 || got.EventHistoryCap != 1000 {
		t.Fatalf("defaults wrong: %+v", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := strings.Join([]string{
		"time_scale: 60.0",
		"start_hour: 8",
		"event_history_cap: 50",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TimeScale != 60.0 || got.StartHour != 8 || got.EventHistoryCap != 50 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	// Unset keys keep their defaults.
	if got.TickRateHz != 1 || got.MoodDriftStep != 0.1 {
		t.Fatalf("defaults lost on partial file: %+v", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero tick":  "tick_rate_hz: 0",
		"bad scale":  "time_scale: -1",
		"hour range": "start_hour: 24",
		"day range":  "start_day: 0",
		"zero cap":   "event_history_cap: 0",
		"not yaml":   "{{{",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
