// Package cron parses the 5-field cron expressions spec §6 defines
// and computes their next run time after a given instant.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// field bounds, in declaration order: minute, hour, day-of-month,
// month, day-of-week.
var fieldBounds = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 7},  // day of week, 7 aliases to 0 (Sunday)
}

// ParseError reports a malformed cron expression.
type ParseError struct {
	Expr   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Cron.ParseError: %q: %s", e.Expr, e.Reason)
}

// NoMatchWithinHorizonError is returned when no run time exists within
// ten years of the reference instant.
type NoMatchWithinHorizonError struct {
	Expr string
}

func (e *NoMatchWithinHorizonError) Error() string {
	return fmt.Sprintf("Cron.NoMatchWithinHorizon: %q", e.Expr)
}

// Schedule is a parsed 5-field cron expression.
type Schedule struct {
	expr    string
	fields  [5]map[int]bool
	domStar bool
	dowStar bool
}

// Parse parses a 5-field "minute hour dayOfMonth month dayOfWeek"
// expression.
func Parse(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, &ParseError{Expr: expr, Reason: fmt.Sprintf("expected 5 fields, got %d", len(parts))}
	}

	s := &Schedule{expr: expr}
	for i, part := range parts {
		set, err := parseField(part, fieldBounds[i][0], fieldBounds[i][1])
		if err != nil {
			return nil, &ParseError{Expr: expr, Reason: fmt.Sprintf("field %d (%q): %v", i, part, err)}
		}
		if i == 4 {
			normalizeDayOfWeek(set)
		}
		s.fields[i] = set
	}
	s.domStar = parts[2] == "*"
	s.dowStar = parts[4] == "*"
	return s, nil
}

// normalizeDayOfWeek folds 7 into 0 so both spellings of Sunday match
// the same set.
func normalizeDayOfWeek(set map[int]bool) {
	if set[7] {
		delete(set, 7)
		set[0] = true
	}
}

// parseField parses one comma-separated field of lists/ranges/steps.
func parseField(field string, min, max int) (map[int]bool, error) {
	set := map[int]bool{}
	for _, item := range strings.Split(field, ",") {
		if item == "" {
			return nil, fmt.Errorf("empty list item")
		}
		if err := parseItem(item, min, max, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func parseItem(item string, min, max int, set map[int]bool) error {
	rangePart := item
	step := 1
	if idx := strings.Index(item, "/"); idx >= 0 {
		rangePart = item[:idx]
		n, err := strconv.Atoi(item[idx+1:])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step in %q", item)
		}
		step = n
	}

	var lo, hi int
	switch {
	case rangePart == "*":
		lo, hi = min, max
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		a, err1 := strconv.Atoi(bounds[0])
		b, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("invalid range %q", rangePart)
		}
		lo, hi = a, b
	default:
		n, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("invalid value %q", rangePart)
		}
		lo, hi = n, n
	}

	if lo < min || hi > max || lo > hi {
		return fmt.Errorf("value out of range [%d,%d]: %q", min, max, item)
	}
	for v := lo; v <= hi; v += step {
		set[v] = true
	}
	return nil
}

const tenYears = 10 * 365 * 24 * time.Hour

// NextRun returns the first instant strictly after `after` that
// matches the schedule, or a NoMatchWithinHorizonError if none exists
// within ten years.
func (s *Schedule) NextRun(after time.Time) (time.Time, error) {
	horizon := after.Add(tenYears)

	t := after.Truncate(time.Minute).Add(time.Minute)
	for !t.After(horizon) {
		if s.matches(t) {
			return t, nil
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, &NoMatchWithinHorizonError{Expr: s.expr}
}

func (s *Schedule) matches(t time.Time) bool {
	minute := t.Minute()
	hour := t.Hour()
	dom := t.Day()
	month := int(t.Month())
	dow := int(t.Weekday())

	if !s.fields[0][minute] || !s.fields[1][hour] || !s.fields[3][month] {
		return false
	}

	domMatch := s.fields[2][dom]
	dowMatch := s.fields[4][dow]

	switch {
	case s.domStar && s.dowStar:
		return true
	case s.domStar:
		return dowMatch
	case s.dowStar:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}
