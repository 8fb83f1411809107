package calendar

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vhsite/internal/model"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func TestMonthDays_CompleteWeeks(t *testing.T) {
	for _, ws := range []time.Weekday{time.Sunday, time.Monday} {
		m := Month{Year: 2019, Month: time.January}
		for i := 0; i < 12*12; i++ {
			days := MonthDays(m, ws)

			require.Zero(t, len(days)%7, "month %s week start %s", m, ws)
			assert.Equal(t, ws, days[0].Weekday())

			seen := map[Date]int{}
			for _, d := range days {
				seen[d]++
			}
			for d := m.First(); !m.Last().Before(d); d = d.AddDays(1) {
				assert.Equal(t, 1, seen[d], "day %s in %s", d, m)
			}
			for j := 1; j < len(days); j++ {
				assert.Equal(t, days[j-1].AddDays(1), days[j])
			}
			m = m.Add(1)
		}
	}
}

func TestMonthDays_KnownLayout(t *testing.T) {
	// June 2025 starts on a Sunday and ends on a Monday.
	days := MonthDays(Month{Year: 2025, Month: time.June}, time.Sunday)
	assert.Len(t, days, 35)
	assert.Equal(t, Date{2025, time.June, 1}, days[0])
	assert.Equal(t, Date{2025, time.July, 5}, days[len(days)-1])

	days = MonthDays(Month{Year: 2025, Month: time.June}, time.Monday)
	assert.Equal(t, Date{2025, time.May, 26}, days[0])
	assert.Equal(t, Date{2025, time.July, 6}, days[len(days)-1])
}

func TestHasEvent_UsesDisplayLocation(t *testing.T) {
	chicago := mustLoc(t, "America/Chicago")

	// 03:30 UTC on the 15th is still the evening of the 14th in Chicago.
	events := []model.Event{
		{ID: "late", Start: time.Date(2025, time.June, 15, 3, 30, 0, 0, time.UTC)},
	}
	c := New(events, WithLocation(chicago), WithClock(fixedClock(time.Date(2025, time.June, 1, 12, 0, 0, 0, chicago))))

	assert.True(t, c.HasEvent(Date{2025, time.June, 14}))
	assert.False(t, c.HasEvent(Date{2025, time.June, 15}))

	c.SelectDay(Date{2025, time.June, 14})
	assert.Equal(t, []string{"late"}, ids(c.Visible()))
}

func TestHasEvent_MatchesEventsIffSameDay(t *testing.T) {
	loc := mustLoc(t, "America/Chicago")
	events := []model.Event{
		{ID: "a", Start: time.Date(2025, time.June, 1, 9, 0, 0, 0, loc)},
		{ID: "b", Start: time.Date(2025, time.June, 1, 23, 59, 0, 0, loc)},
		{ID: "c", Start: time.Date(2025, time.June, 20, 0, 0, 0, 0, loc)},
	}
	c := New(events, WithLocation(loc), WithClock(fixedClock(time.Date(2025, time.June, 10, 0, 0, 0, 0, loc))))

	want := map[Date]bool{
		{2025, time.June, 1}:  true,
		{2025, time.June, 20}: true,
	}
	for _, cell := range c.Grid() {
		assert.Equal(t, want[cell.Date], cell.HasEvent, "cell %s", cell.Date)
	}
}

func TestEmptyEvents(t *testing.T) {
	c := New(nil)
	cells := c.Grid()
	require.NotEmpty(t, cells)
	for _, cell := range cells {
		assert.False(t, cell.HasEvent)
	}
	assert.Empty(t, c.Visible())

	c.SelectDay(Date{2025, time.June, 3})
	assert.Empty(t, c.Visible())
}

func TestUpcoming_DefaultView(t *testing.T) {
	loc := mustLoc(t, "America/Chicago")
	events := []model.Event{
		{ID: "first", Start: time.Date(2025, time.June, 1, 9, 0, 0, 0, loc)},
		{ID: "second", Start: time.Date(2025, time.June, 15, 11, 0, 0, 0, loc)},
	}
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, loc)
	c := New(events, WithLocation(loc), WithClock(fixedClock(now)))

	assert.Equal(t, []string{"second"}, ids(c.Visible()))
}

func TestUpcoming_OrderLimitAndTies(t *testing.T) {
	base := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "late", Start: base.Add(72 * time.Hour)},
		{ID: "tie-1", Start: base.Add(24 * time.Hour)},
		{ID: "past", Start: base.Add(-time.Hour)},
		{ID: "tie-2", Start: base.Add(24 * time.Hour)},
		{ID: "now", Start: base},
		{ID: "later", Start: base.Add(96 * time.Hour)},
	}
	c := New(events, WithUpcomingLimit(4), WithClock(fixedClock(base)))

	got := ids(c.Upcoming(base))
	want := []string{"now", "tie-1", "tie-2", "late"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("upcoming mismatch (-want +got):\n%s", diff)
	}
}

func TestIsUpcoming(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	assert.True(t, IsUpcoming(model.Event{Start: now}, now))
	assert.True(t, IsUpcoming(model.Event{Start: now.Add(time.Second)}, now))
	assert.False(t, IsUpcoming(model.Event{Start: now.Add(-time.Second)}, now))
}

func TestSelectDay_NoEventsIsEmptyNotUnfiltered(t *testing.T) {
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "a", Start: now.Add(24 * time.Hour)},
	}
	c := New(events, WithClock(fixedClock(now)))
	require.NotEmpty(t, c.Visible())

	c.SelectDay(Date{2025, time.June, 30})
	got := c.Visible()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSelectDay_IncludesPastEventsAndDoesNotMutate(t *testing.T) {
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "evening", Start: time.Date(2025, time.June, 2, 19, 0, 0, 0, time.UTC)},
		{ID: "morning", Start: time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)},
		{ID: "other", Start: time.Date(2025, time.June, 3, 8, 0, 0, 0, time.UTC)},
	}
	original := append([]model.Event(nil), events...)

	c := New(events, WithClock(fixedClock(now)))
	c.SelectDay(Date{2025, time.June, 2})
	assert.Equal(t, []string{"morning", "evening"}, ids(c.Visible()))
	assert.Equal(t, original, events)

	c.SelectDay(Date{})
	_, ok := c.Selected()
	assert.False(t, ok, "zero date clears the selection")
}

func TestResetSelection_ReturnsToToday(t *testing.T) {
	loc := mustLoc(t, "America/Chicago")
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, loc)
	c := New(nil, WithLocation(loc), WithClock(fixedClock(now)))

	for i := 0; i < 30; i++ {
		c.AdvanceMonth(Next)
	}
	assert.Equal(t, Month{2027, time.December}, c.Anchor())
	c.SelectDay(Date{2027, time.December, 25})

	c.ResetSelection()
	assert.Equal(t, Month{2025, time.June}, c.Anchor())
	_, ok := c.Selected()
	assert.False(t, ok)

	for i := 0; i < 100; i++ {
		c.AdvanceMonth(Previous)
	}
	c.ResetSelection()
	assert.Equal(t, Month{2025, time.June}, c.Anchor())
}

func TestResetSelection_UsesNowAtCallTime(t *testing.T) {
	now := time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)
	c := New(nil, WithClock(func() time.Time { return now }))
	assert.Equal(t, Month{2025, time.January}, c.Anchor())

	now = time.Date(2025, time.March, 2, 12, 0, 0, 0, time.UTC)
	c.ResetSelection()
	assert.Equal(t, Month{2025, time.March}, c.Anchor())
}

func TestGrid_Flags(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	c := New(nil, WithClock(fixedClock(now)))
	c.SelectDay(Date{2025, time.June, 12})

	var today, selected, outside int
	for _, cell := range c.Grid() {
		if cell.Today {
			today++
			assert.Equal(t, Date{2025, time.June, 10}, cell.Date)
		}
		if cell.Selected {
			selected++
		}
		if !cell.InMonth {
			outside++
		}
	}
	assert.Equal(t, 1, today)
	assert.Equal(t, 1, selected)
	assert.Equal(t, 5, outside)
}

func TestMonthArithmetic(t *testing.T) {
	m := Month{2025, time.January}
	assert.Equal(t, Month{2024, time.December}, m.Add(-1))
	assert.Equal(t, Month{2026, time.February}, m.Add(13))
	assert.Equal(t, Date{2024, time.February, 29}, Month{2024, time.February}.Last())
	assert.Equal(t, "June 2025", Month{2025, time.June}.Title())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, Date{2025, time.June, 15}, d)

	_, err = ParseDate("2025-02-30")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)

	m, err := ParseMonth("2025-11")
	require.NoError(t, err)
	assert.Equal(t, Month{2025, time.November}, m)
}

func TestWeekdayLabels(t *testing.T) {
	assert.Equal(t, []string{"S", "M", "T", "W", "T", "F", "S"}, WeekdayLabels(time.Sunday))
	assert.Equal(t, []string{"M", "T", "W", "T", "F", "S", "S"}, WeekdayLabels(time.Monday))
}
