package timetable

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := map[string]Clock{
		"00:00":    0,
		"09:05":    545,
		"23:59":    1439,
		"12:30:00": 750,
		" 07:15 ":  435,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "9:00", "24:00", "12:60", "ab:cd", "12:30:15", "1230"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func TestClockRoundTripsThroughJSON(t *testing.T) {
	e := Entry{ID: "x", Day: Friday, Start: MustClock("08:05"), End: MustClock("09:40")}
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"x","day":"Friday","start_time":"08:05","end_time":"09:40"}`, string(raw))

	var decoded Entry
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, e, decoded)
}

func TestParseDay(t *testing.T) {
	for in, want := range map[string]Day{"Monday": Monday, "sun": Sunday, " WEDNESDAY ": Wednesday, "thu": Thursday} {
		got, err := ParseDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDay("mo")
	require.ErrorIs(t, err, ErrInvalidDay)
	_, err = ParseDay("Funday")
	require.ErrorIs(t, err, ErrInvalidDay)
}

func TestDayWeekdayConversion(t *testing.T) {
	assert.Equal(t, time.Monday, Monday.Weekday())
	assert.Equal(t, time.Sunday, Sunday.Weekday())

	// 2024-01-07 was a Sunday.
	sunday := time.Date(2024, time.January, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Sunday, DayOf(sunday))
	assert.Equal(t, Monday, DayOf(sunday.AddDate(0, 0, 1)))
}
