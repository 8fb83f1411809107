package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"vhsite/internal/model"
)

const productID = "-//Victory House//vhsite//EN"

// Export serializes events as a published iCalendar feed. Events without
// an end get a one hour slot.
func Export(name string, events []model.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		e := cal.AddEvent(ev.ID + "@vhsite")
		e.SetDtStampTime(stamp.UTC())
		e.SetSummary(ev.Title)
		if ev.Location != "" {
			e.SetLocation(ev.Location)
		}
		if ev.Category != "" {
			e.AddProperty(ical.ComponentPropertyCategories, ev.Category)
		}
		if ev.ImageURL != "" {
			e.AddProperty(ical.ComponentPropertyUrl, ev.ImageURL)
		}
		end := ev.End
		if end.IsZero() || end.Before(ev.Start) {
			end = ev.Start.Add(time.Hour)
		}
		e.SetStartAt(ev.Start.UTC())
		e.SetEndAt(end.UTC())
	}
	return cal.Serialize()
}
