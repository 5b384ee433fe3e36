package parser

import (
	"testing"

	"modlog-archive/internal/models"
)

func TestExtractDuration(t *testing.T) {
	cases := []struct {
		name       string
		tail       string
		wantReason string
		wantAmount int
		wantUnit   models.DurationUnit
	}{
		{"simple hours", "outside the pit 2 hours", "outside the pit", 2, models.UnitHour},
		{"singular unit", "griefing 1 day", "griefing", 1, models.UnitDay},
		{"weeks", "ban evasion 2 weeks", "ban evasion", 2, models.UnitWeek},
		{"minutes plural", "spam 45 minutes", "spam", 45, models.UnitMinute},
		{"case insensitive", "spam 3 HOURS", "spam", 3, models.UnitHour},
		{"no space before unit", "spam 30minutes", "spam", 30, models.UnitMinute},
		{"multi group folds to smallest", "repeat offender 1 day 2 hours", "repeat offender", 26, models.UnitHour},
		{"multi group minutes", "repeat offender 1 hour 30 minutes", "repeat offender", 90, models.UnitMinute},
		{"whole tail is the clause", "2 hours", "", 2, models.UnitHour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, d := ExtractDuration(tc.tail)
			if reason != tc.wantReason {
				t.Errorf("expected reason %q, got %q", tc.wantReason, reason)
			}
			if d == nil {
				t.Fatal("expected a duration")
			}
			if d.Amount != tc.wantAmount || d.Unit != tc.wantUnit {
				t.Errorf("expected %d %s, got %d %s", tc.wantAmount, tc.wantUnit, d.Amount, d.Unit)
			}
		})
	}
}

func TestExtractDuration_NoClause(t *testing.T) {
	cases := []struct {
		name string
		tail string
	}{
		{"plain reason", "FFA: flourish before dueling"},
		{"number mid-reason", "took 3 items from the chest"},
		{"unit without number", "banned for hours"},
		{"number without unit", "broke rule 4"},
		{"unsupported unit", "muted 30 seconds"},
		{"clause not at end", "2 hours of griefing reported"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, d := ExtractDuration(tc.tail)
			if d != nil {
				t.Errorf("expected nil duration, got %+v", d)
			}
			if reason != tc.tail {
				t.Errorf("reason should be untouched, got %q", reason)
			}
		})
	}
}

func TestExtractDuration_ZeroIsUnspecified(t *testing.T) {
	reason, d := ExtractDuration("spam 0 minutes")
	if d != nil {
		t.Errorf("zero length carries no duration, got %+v", d)
	}
	if reason != "spam" {
		t.Errorf("clause should still be stripped, got %q", reason)
	}
}

func TestDurationMinutes(t *testing.T) {
	d := models.Duration{Amount: 2, Unit: models.UnitDay}
	if got := d.Minutes(); got != 2880 {
		t.Errorf("expected 2880 minutes, got %d", got)
	}
}
