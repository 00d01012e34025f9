package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/storypilot/scheduler/internal/models"
)

// ValidatePattern rejects patterns the engine cannot step. A pattern may
// carry an end date or a max occurrence count, never both.
func ValidatePattern(p *models.RecurringPattern) error {
	if p == nil {
		return errors.New("recurring pattern is nil")
	}

	switch p.Frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyCustom:
	default:
		return fmt.Errorf("unknown frequency %q", p.Frequency)
	}

	if p.Interval < 1 {
		return fmt.Errorf("interval must be at least 1, got %d", p.Interval)
	}

	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("day of week %d out of range 0..6", d)
		}
	}

	if p.DayOfMonth != 0 && (p.DayOfMonth < 1 || p.DayOfMonth > 31) {
		return fmt.Errorf("day of month %d out of range 1..31", p.DayOfMonth)
	}

	if p.MaxOccurrences < 0 {
		return fmt.Errorf("max occurrences must not be negative, got %d", p.MaxOccurrences)
	}

	if p.EndDate != nil && p.MaxOccurrences > 0 {
		return errors.New("end date and max occurrences are mutually exclusive")
	}

	return nil
}

// Next computes the occurrence following after, or false when the pattern's
// end date cuts the series off. It never consults the max occurrence count;
// that is the iterator's job.
func Next(after time.Time, p *models.RecurringPattern) (time.Time, bool) {
	var candidate time.Time

	switch p.Frequency {
	case models.FrequencyWeekly:
		candidate = nextWeekly(after, p)
	case models.FrequencyMonthly:
		candidate = nextMonthly(after, p)
	default:
		// daily; custom steps like daily until it grows semantics of its own
		candidate = after.AddDate(0, 0, p.Interval)
	}

	if p.EndDate != nil && !candidate.Before(*p.EndDate) {
		return time.Time{}, false
	}

	return candidate, true
}

func nextWeekly(after time.Time, p *models.RecurringPattern) time.Time {
	if len(p.DaysOfWeek) == 0 {
		return after.AddDate(0, 0, 7*p.Interval)
	}

	days := append([]int(nil), p.DaysOfWeek...)
	sort.Ints(days)

	weekday := int(after.Weekday())
	for _, d := range days {
		if d > weekday {
			return after.AddDate(0, 0, d-weekday)
		}
	}

	// No listed day remains this week: wrap to the first listed day after
	// skipping interval-1 whole weeks.
	wrap := 7 - weekday + days[0] + 7*(p.Interval-1)
	return after.AddDate(0, 0, wrap)
}

// nextMonthly pins the day of month after advancing. Days past the end of
// the target month clamp to its last day (the 31st hits Apr 30, Feb 28/29).
func nextMonthly(after time.Time, p *models.RecurringPattern) time.Time {
	day := after.Day()
	if p.DayOfMonth != 0 {
		day = p.DayOfMonth
	}

	year, month, _ := after.Date()
	firstOfTarget := time.Date(year, month+time.Month(p.Interval), 1,
		after.Hour(), after.Minute(), after.Second(), after.Nanosecond(), after.Location())

	if last := daysIn(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}

	return firstOfTarget.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Iterator walks a finite occurrence sequence. The start instant counts as
// the first occurrence. Restart by constructing a fresh iterator.
type Iterator struct {
	pattern  *models.RecurringPattern
	current  time.Time
	produced int
	done     bool
}

func NewIterator(start time.Time, p *models.RecurringPattern) *Iterator {
	return &Iterator{pattern: p, current: start}
}

func (it *Iterator) Next() (time.Time, bool) {
	if it.done {
		return time.Time{}, false
	}

	if it.pattern.MaxOccurrences > 0 && it.produced >= it.pattern.MaxOccurrences {
		it.done = true
		return time.Time{}, false
	}

	var next time.Time
	if it.produced == 0 {
		next = it.current
	} else {
		var ok bool
		next, ok = Next(it.current, it.pattern)
		if !ok {
			it.done = true
			return time.Time{}, false
		}
	}

	it.current = next
	it.produced++
	return next, true
}

// Generate materializes up to maxGenerate occurrences starting at start.
func Generate(start time.Time, p *models.RecurringPattern, maxGenerate int) []time.Time {
	it := NewIterator(start, p)

	var out []time.Time
	for len(out) < maxGenerate {
		occ, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, occ)
	}
	return out
}
