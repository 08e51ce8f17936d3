package parse

import (
	"fmt"
	"time"

	"picking-tracker-backend/internal/model"
)

// DateLayout is the wire and storage format for run dates.
const DateLayout = "2006-01-02"

// weekdayLabels maps the operating weekdays to their Dutch display names.
var weekdayLabels = map[int]string{
	2: "Dinsdag",
	3: "Woensdag",
	4: "Donderdag",
	5: "Vrijdag",
}

// RunDate validates and normalizes a YYYY-MM-DD date string.
func RunDate(raw string) (string, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid run date %q: expected YYYY-MM-DD", raw)
	}
	return t.Format(DateLayout), nil
}

// Weekday validates that the given weekday is an operating day (2-5,
// Tuesday through Friday).
func Weekday(weekday int) error {
	if weekday < model.WeekdayMin || weekday > model.WeekdayMax {
		return fmt.Errorf("weekday %d is outside the operating days (%d-%d)", weekday, model.WeekdayMin, model.WeekdayMax)
	}
	return nil
}

// WeekdayLabel returns the Dutch name of an operating weekday, or "Dag" for
// anything outside the operating range.
func WeekdayLabel(weekday int) string {
	if label, ok := weekdayLabels[weekday]; ok {
		return label
	}
	return "Dag"
}

// DefaultWeekday maps a calendar date to an operating weekday, falling back
// to Tuesday when the date falls on a non-operating day.
func DefaultWeekday(t time.Time) int {
	wd := int(t.Weekday()) // 0=Sunday
	if wd >= model.WeekdayMin && wd <= model.WeekdayMax {
		return wd
	}
	return model.WeekdayMin
}

// RunTitle builds the display title for a run, e.g.
// "Picking – Dinsdag 2024-06-04".
func RunTitle(weekday int, runDate string) string {
	return fmt.Sprintf("Picking – %s %s", WeekdayLabel(weekday), runDate)
}
