package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := Parse("* * *")
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseRejectsOutOfRangeValue(t *testing.T) {
	_, err := Parse("60 * * * *")
	assert.Error(t, err)
}

func TestNextRunEveryFiveMinutesStaysInSet(t *testing.T) {
	s, err := Parse("*/5 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	next, err := s.NextRun(after)
	require.NoError(t, err)
	assert.Equal(t, 5, next.Minute())
	assert.True(t, next.After(after))
}

func TestNextRunIsMonotone(t *testing.T) {
	s, err := Parse("*/5 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	first, err := s.NextRun(after)
	require.NoError(t, err)
	second, err := s.NextRun(first)
	require.NoError(t, err)
	assert.True(t, second.After(first))
}

func TestNextRunHonorsSpecificTime(t *testing.T) {
	s, err := Parse("30 9 * * *")
	require.NoError(t, err)

	after := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	next, err := s.NextRun(after)
	require.NoError(t, err)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.Equal(t, 1, next.Day())
}

func TestNextRunAcceptsSevenAsSunday(t *testing.T) {
	zeroSunday, err := Parse("0 0 * * 0")
	require.NoError(t, err)
	sevenSunday, err := Parse("0 0 * * 7")
	require.NoError(t, err)

	after := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a, err := zeroSunday.NextRun(after)
	require.NoError(t, err)
	b, err := sevenSunday.NextRun(after)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNextRunDayOfMonthOrDayOfWeekWhenBothRestricted(t *testing.T) {
	// Matches the 1st of the month OR any Monday.
	s, err := Parse("0 0 1 * 1")
	require.NoError(t, err)

	after := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday
	next, err := s.NextRun(after)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestNextRunReturnsErrorBeyondHorizon(t *testing.T) {
	s, err := Parse("0 0 31 2 *") // Feb 31st never exists
	require.NoError(t, err)

	_, err = s.NextRun(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var horizonErr *NoMatchWithinHorizonError
	assert.ErrorAs(t, err, &horizonErr)
}

func TestNextRunStrictlyAfterReferenceTime(t *testing.T) {
	s, err := Parse("0 * * * *")
	require.NoError(t, err)

	exact := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next, err := s.NextRun(exact)
	require.NoError(t, err)
	assert.True(t, next.After(exact))
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), next)
}
