package ics

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"vhsite/internal/config"
	"vhsite/internal/fetch"
	appLog "vhsite/internal/log"
	"vhsite/internal/model"
)

// ServiceCategory is the category given to configured service times.
const ServiceCategory = "service"

const serviceStartLayout = "2006-01-02T15:04:05"

// ExpandServices expands recurring service times into events inside w.
// Start times are wall-clock times in loc, so a 9am service stays at 9am
// across DST changes.
func ExpandServices(services []config.ServiceConfig, loc *time.Location, w Window) ([]model.Event, error) {
	w, err := w.validate()
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	out := make([]model.Event, 0)
	for _, svc := range services {
		start, err := time.ParseInLocation(serviceStartLayout, svc.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("ics: service %q: bad start %q: %w", svc.ID, svc.Start, err)
		}
		dur := time.Duration(svc.DurationMinutes) * time.Minute

		starts := []time.Time{start}
		if svc.RRule != "" {
			r, err := rrule.StrToRRule(svc.RRule)
			if err != nil {
				return nil, fmt.Errorf("ics: service %q: %w", svc.ID, err)
			}
			r.DTStart(start)
			starts = r.Between(w.Start.In(loc), w.End.In(loc), true)
			if len(starts) > w.MaxOccurrences {
				appLog.Warn("ics: service recurrence truncated", "service", svc.ID, "cap", w.MaxOccurrences)
				starts = starts[:w.MaxOccurrences]
			}
		} else if !overlaps(start, start.Add(dur), w.Start, w.End) {
			continue
		}

		for _, s := range starts {
			out = append(out, model.Event{
				ID:       fmt.Sprintf("%s:%s", svc.ID, s.Format("20060102T1504")),
				Title:    svc.Title,
				Category: ServiceCategory,
				Location: svc.Location,
				Source:   model.SourceService,
				Start:    s,
				End:      s.Add(dur),
			})
		}
	}
	return out, nil
}

// FeedFromConfig converts a configured subscription.
func FeedFromConfig(fc config.FeedConfig) Feed {
	id := fc.ID
	if id == "" {
		id = fetch.RedactURL(fc.URL)
	}
	return Feed{ID: id, URL: fc.URL, Name: fc.Name, Category: fc.Category}
}

// FetchFeed downloads, parses and expands one partner feed.
func FetchFeed(ctx context.Context, g *fetch.Getter, feed Feed, loc *time.Location, w Window) ([]model.Event, error) {
	res, err := g.Get(ctx, fetch.Request{ID: feed.ID, URL: feed.URL})
	if err != nil {
		return nil, fmt.Errorf("ics: fetch feed %s: %w", feed.ID, err)
	}
	vevents, err := Parse(feed, res.Body, loc)
	if err != nil {
		return nil, fmt.Errorf("ics: parse feed %s: %w", feed.ID, err)
	}
	return Expand(vevents, w)
}
