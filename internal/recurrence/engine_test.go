package recurrence

import (
	"testing"
	"time"

	"github.com/storypilot/scheduler/internal/models"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestValidatePattern(t *testing.T) {
	valid := &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1, MaxOccurrences: 3}
	if err := ValidatePattern(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePattern_Rejects(t *testing.T) {
	end := date(2025, 6, 1, 0, 0)
	cases := []struct {
		name    string
		pattern *models.RecurringPattern
	}{
		{"nil pattern", nil},
		{"unknown frequency", &models.RecurringPattern{Frequency: "hourly", Interval: 1}},
		{"zero interval", &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 0}},
		{"negative interval", &models.RecurringPattern{Frequency: models.FrequencyWeekly, Interval: -2}},
		{"day of week out of range", &models.RecurringPattern{Frequency: models.FrequencyWeekly, Interval: 1, DaysOfWeek: []int{1, 7}}},
		{"day of month out of range", &models.RecurringPattern{Frequency: models.FrequencyMonthly, Interval: 1, DayOfMonth: 32}},
		{"negative max occurrences", &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1, MaxOccurrences: -1}},
		{"end date and max occurrences together", &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1, EndDate: &end, MaxOccurrences: 5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidatePattern(tc.pattern); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestNext_Daily(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1}
	after := date(2025, 1, 1, 10, 30)

	next, ok := Next(after, p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2025, 1, 2, 10, 30); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_DailyInterval(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 3}
	next, ok := Next(date(2025, 1, 30, 9, 0), p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2025, 2, 2, 9, 0); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_CustomStepsLikeDaily(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyCustom, Interval: 2}
	next, ok := Next(date(2025, 1, 1, 8, 0), p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2025, 1, 3, 8, 0); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_WeeklyNoDays(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyWeekly, Interval: 2}
	next, ok := Next(date(2025, 1, 6, 12, 0), p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2025, 1, 20, 12, 0); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_WeeklyListedDays(t *testing.T) {
	// Mon/Wed/Fri walk. 2025-01-06 is a Monday.
	p := &models.RecurringPattern{Frequency: models.FrequencyWeekly, Interval: 1, DaysOfWeek: []int{1, 3, 5}}

	steps := []time.Time{
		date(2025, 1, 6, 9, 0),  // Mon
		date(2025, 1, 8, 9, 0),  // Wed
		date(2025, 1, 10, 9, 0), // Fri
		date(2025, 1, 13, 9, 0), // next Mon
	}

	current := steps[0]
	for _, want := range steps[1:] {
		next, ok := Next(current, p)
		if !ok {
			t.Fatal("expected an occurrence")
		}
		if !next.Equal(want) {
			t.Fatalf("expected %v, got %v", want, next)
		}
		current = next
	}
}

func TestNext_WeeklyListedDaysInterval(t *testing.T) {
	// Fridays only, every other week. 2025-01-10 is a Friday.
	p := &models.RecurringPattern{Frequency: models.FrequencyWeekly, Interval: 2, DaysOfWeek: []int{5}}
	next, ok := Next(date(2025, 1, 10, 18, 0), p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2025, 1, 24, 18, 0); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_MonthlyClamps(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyMonthly, Interval: 1, DayOfMonth: 31}

	next, ok := Next(date(2025, 1, 31, 7, 0), p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2025, 2, 28, 7, 0); !next.Equal(want) {
		t.Errorf("expected clamp to Feb 28, got %v", next)
	}

	next, ok = Next(next, p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2025, 3, 31, 7, 0); !next.Equal(want) {
		t.Errorf("expected pinned day 31 back in March, got %v", next)
	}
}

func TestNext_MonthlyLeapYear(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyMonthly, Interval: 1, DayOfMonth: 30}
	next, ok := Next(date(2024, 1, 30, 7, 0), p)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := date(2024, 2, 29, 7, 0); !next.Equal(want) {
		t.Errorf("expected clamp to Feb 29 in a leap year, got %v", next)
	}
}

func TestNext_EndDateCutsOff(t *testing.T) {
	end := date(2025, 1, 3, 0, 0)
	p := &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1, EndDate: &end}

	next, ok := Next(date(2025, 1, 1, 10, 0), p)
	if !ok {
		t.Fatal("expected an occurrence before the end date")
	}
	if want := date(2025, 1, 2, 10, 0); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	if _, ok := Next(next, p); ok {
		t.Error("expected the end date to cut the series off")
	}
}

func TestIterator_StartCountsAsFirst(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1, MaxOccurrences: 3}
	start := date(2025, 1, 1, 10, 0)

	it := NewIterator(start, p)

	var got []time.Time
	for {
		occ, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, occ)
	}

	want := []time.Time{
		date(2025, 1, 1, 10, 0),
		date(2025, 1, 2, 10, 0),
		date(2025, 1, 3, 10, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d occurrences, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d: expected %v, got %v", i+1, want[i], got[i])
		}
	}

	// Exhausted iterators stay exhausted.
	if _, ok := it.Next(); ok {
		t.Error("expected iterator to stay done")
	}
}

func TestGenerate_Monotone(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyWeekly, Interval: 1, DaysOfWeek: []int{1, 3, 5}}
	occs := Generate(date(2025, 1, 6, 9, 0), p, 20)

	if len(occs) != 20 {
		t.Fatalf("expected 20 occurrences, got %d", len(occs))
	}
	for i := 1; i < len(occs); i++ {
		if !occs[i].After(occs[i-1]) {
			t.Fatalf("sequence not strictly increasing at %d: %v then %v", i, occs[i-1], occs[i])
		}
	}
}

func TestGenerate_HonorsMaxOccurrences(t *testing.T) {
	p := &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1, MaxOccurrences: 4}
	occs := Generate(date(2025, 1, 1, 10, 0), p, 100)
	if len(occs) != 4 {
		t.Errorf("expected 4 occurrences, got %d", len(occs))
	}
}

func TestGenerate_WallClockAcrossZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := &models.RecurringPattern{Frequency: models.FrequencyDaily, Interval: 1, MaxOccurrences: 3}
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, loc)

	occs := Generate(start, p, 10)
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occs))
	}
	for i, occ := range occs {
		if occ.Hour() != 18 || occ.Minute() != 0 {
			t.Errorf("occurrence %d: expected 18:00 wall clock, got %v", i+1, occ)
		}
		if want := 1 + i; occ.Day() != want {
			t.Errorf("occurrence %d: expected day %d, got %d", i+1, want, occ.Day())
		}
	}
}
