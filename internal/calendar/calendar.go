// Package calendar derives the month picker and event lists shown on the
// events page. It never mutates the events it is given.
package calendar

import (
	"slices"
	"sort"
	"time"

	"vhsite/internal/model"
)

// Direction selects where AdvanceMonth moves the anchor.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

const defaultUpcomingLimit = 3

// Calendar owns one selection and one month anchor over a fixed event list.
type Calendar struct {
	events []model.Event
	// byDay maps a local date to indices into events, in fetch order.
	byDay map[Date][]int

	loc       *time.Location
	weekStart time.Weekday
	limit     int
	now       func() time.Time

	anchor      Month
	selected    Date
	hasSelected bool
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithLocation sets the display location used for every day comparison.
func WithLocation(loc *time.Location) Option {
	return func(c *Calendar) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithWeekStart sets the first column of the grid.
func WithWeekStart(wd time.Weekday) Option {
	return func(c *Calendar) { c.weekStart = wd }
}

// WithUpcomingLimit sets N for the default "next N events" view.
func WithUpcomingLimit(n int) Option {
	return func(c *Calendar) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Calendar anchored at the current month with no selection.
// A nil or empty events slice is valid.
func New(events []model.Event, opts ...Option) *Calendar {
	c := &Calendar{
		events:    slices.Clone(events),
		loc:       time.UTC,
		weekStart: time.Sunday,
		limit:     defaultUpcomingLimit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.byDay = make(map[Date][]int, len(c.events))
	for i, ev := range c.events {
		d := DateOf(ev.Start, c.loc)
		c.byDay[d] = append(c.byDay[d], i)
	}

	c.anchor = MonthOf(c.Today())
	return c
}

// Location returns the display location.
func (c *Calendar) Location() *time.Location { return c.loc }

// WeekStart returns the first weekday of the grid.
func (c *Calendar) WeekStart() time.Weekday { return c.weekStart }

// Today returns the current date in the display location.
func (c *Calendar) Today() Date {
	return DateOf(c.now(), c.loc)
}

// Anchor returns the displayed month.
func (c *Calendar) Anchor() Month { return c.anchor }

// SetAnchor jumps to m, e.g. when restoring navigation from a URL.
func (c *Calendar) SetAnchor(m Month) {
	if m.Year == 0 || m.Month < time.January || m.Month > time.December {
		return
	}
	c.anchor = m
}

// AdvanceMonth shifts the anchor one month. There are no bounds.
func (c *Calendar) AdvanceMonth(dir Direction) {
	switch {
	case dir > 0:
		c.anchor = c.anchor.Add(1)
	case dir < 0:
		c.anchor = c.anchor.Add(-1)
	}
}

// SelectDay sets the selection. A zero Date clears it.
func (c *Calendar) SelectDay(d Date) {
	if d.IsZero() {
		c.selected, c.hasSelected = Date{}, false
		return
	}
	c.selected, c.hasSelected = d, true
}

// Selected returns the selected day, if any.
func (c *Calendar) Selected() (Date, bool) {
	return c.selected, c.hasSelected
}

// ResetSelection clears the selection and moves the anchor to the month
// containing now, regardless of where navigation had gone.
func (c *Calendar) ResetSelection() {
	c.selected, c.hasSelected = Date{}, false
	c.anchor = MonthOf(c.Today())
}

// HasEvent reports whether at least one event falls on d in the display
// location.
func (c *Calendar) HasEvent(d Date) bool {
	return len(c.byDay[d]) > 0
}

// Grid returns the cells of the anchor month.
func (c *Calendar) Grid() []Cell {
	today := c.Today()
	days := MonthDays(c.anchor, c.weekStart)

	cells := make([]Cell, len(days))
	for i, d := range days {
		cells[i] = Cell{
			Date:     d,
			InMonth:  c.anchor.Contains(d),
			Today:    d == today,
			Selected: c.hasSelected && d == c.selected,
			HasEvent: c.HasEvent(d),
		}
	}
	return cells
}

// EventsOn returns the events on d ordered by start; ties keep fetch order.
func (c *Calendar) EventsOn(d Date) []model.Event {
	idx := c.byDay[d]
	out := make([]model.Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.events[i])
	}
	sortByStart(out)
	return out
}

// Upcoming returns the earliest events starting at or after now, at most
// the configured limit.
func (c *Calendar) Upcoming(now time.Time) []model.Event {
	out := make([]model.Event, 0, c.limit)
	for _, ev := range c.events {
		if IsUpcoming(ev, now) {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	if len(out) > c.limit {
		out = out[:c.limit]
	}
	return out
}

// Visible is the list beside the grid: the selected day's events, or the
// upcoming view when nothing is selected.
func (c *Calendar) Visible() []model.Event {
	if c.hasSelected {
		return c.EventsOn(c.selected)
	}
	return c.Upcoming(c.now())
}

// IsUpcoming reports whether ev starts at or after now.
func IsUpcoming(ev model.Event, now time.Time) bool {
	return !ev.Start.Before(now)
}

func sortByStart(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
