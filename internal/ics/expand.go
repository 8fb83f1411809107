package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "vhsite/internal/log"
	"vhsite/internal/model"
)

const defaultMaxOccurrences = 5000

// Window bounds recurrence expansion.
type Window struct {
	Start time.Time
	End   time.Time

	// MaxOccurrences caps each recurring VEVENT. Zero means 5000.
	MaxOccurrences int
}

func (w Window) validate() (Window, error) {
	if w.End.Before(w.Start) {
		return w, errors.New("ics: window end is before start")
	}
	if w.MaxOccurrences <= 0 {
		w.MaxOccurrences = defaultMaxOccurrences
	}
	return w, nil
}

// Expand turns parsed VEVENTs into concrete events inside w. Output keeps
// feed order: base events in the order they were parsed, occurrences of
// one series ascending. RECURRENCE-ID overrides replace the matching
// instance and EXDATEs remove instances.
func Expand(vevents []VEvent, w Window) ([]model.Event, error) {
	w, err := w.validate()
	if err != nil {
		return nil, err
	}

	overrides := make(map[string][]VEvent)
	for _, v := range vevents {
		if v.IsOverride() {
			overrides[v.UID] = append(overrides[v.UID], v)
		}
	}

	out := make([]model.Event, 0, len(vevents))
	for _, v := range vevents {
		if v.IsOverride() {
			continue
		}
		if v.RRule == "" {
			if o, ok := findOverride(overrides[v.UID], v.Start); ok {
				v = o
			}
			if overlaps(v.Start, v.End, w.Start, w.End) {
				out = append(out, toEvent(v, v.Start, v.End))
			}
			continue
		}

		occ, truncated := expandRecurring(v, overrides[v.UID], w)
		if truncated {
			appLog.Warn("ics: recurrence truncated", "feed", v.Feed.ID, "uid", v.UID, "cap", w.MaxOccurrences)
		}
		out = append(out, occ...)
	}
	return out, nil
}

func expandRecurring(v VEvent, overrides []VEvent, w Window) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(v.RRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "feed", v.Feed.ID, "uid", v.UID, "rrule", v.RRule)
		return nil, false
	}
	r.DTStart(v.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range v.ExDates {
		set.ExDate(ex.In(v.Start.Location()))
	}

	loc := v.Start.Location()
	starts := set.Between(w.Start.In(loc), w.End.In(loc), true)
	truncated := false
	if len(starts) > w.MaxOccurrences {
		starts = starts[:w.MaxOccurrences]
		truncated = true
	}

	dur := v.End.Sub(v.Start)
	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		if o, ok := findOverride(overrides, s); ok {
			out = append(out, toEvent(o, o.Start, o.End))
			continue
		}
		out = append(out, toEvent(v, s, s.Add(dur)))
	}
	return out, truncated
}

func findOverride(overrides []VEvent, start time.Time) (VEvent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return VEvent{}, false
}

func toEvent(v VEvent, start, end time.Time) model.Event {
	category := v.Feed.Category
	if category == "" && len(v.Categories) > 0 {
		category = v.Categories[0]
	}
	return model.Event{
		ID:       fmt.Sprintf("%s:%s:%d", v.Feed.ID, v.UID, start.Unix()),
		Title:    v.Summary,
		Category: category,
		Location: v.Location,
		Source:   v.Feed.ID,
		Start:    start,
		End:      end,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
