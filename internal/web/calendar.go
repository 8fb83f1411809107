package web

import (
	"net/http"
	"time"

	"vhsite/internal/calendar"
	"vhsite/internal/model"
)

// eventDTO is the JSON view of an event. Date and Time are already in the
// church timezone so clients never do day math.
type eventDTO struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Category string        `json:"category"`
	Location string        `json:"location,omitempty"`
	ImageURL string        `json:"image_url,omitempty"`
	Source   string        `json:"source"`
	Start    time.Time     `json:"start"`
	End      *time.Time    `json:"end,omitempty"`
	Date     calendar.Date `json:"date"`
	Time     string        `json:"time"`
}

func (s *Server) toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		local := ev.Start.In(s.loc)
		d := eventDTO{
			ID:       ev.ID,
			Title:    ev.Title,
			Category: ev.Category,
			Location: ev.Location,
			ImageURL: ev.ImageURL,
			Source:   ev.Source,
			Start:    local,
			Date:     calendar.DateOf(ev.Start, s.loc),
			Time:     local.Format("3:04 PM"),
		}
		if !ev.End.IsZero() {
			end := ev.End.In(s.loc)
			d.End = &end
		}
		out = append(out, d)
	}
	return out
}

type calendarResponse struct {
	Month    calendar.Month  `json:"month"`
	Title    string          `json:"title"`
	Today    calendar.Date   `json:"today"`
	Timezone string          `json:"timezone"`
	Weekdays []string        `json:"weekdays"`
	Cells    []calendar.Cell `json:"cells"`
	Selected *calendar.Date  `json:"selected"`
	Heading  string          `json:"heading"`
	Events   []eventDTO      `json:"events"`
}

func (s *Server) newCalendar() *calendar.Calendar {
	var events []model.Event
	if s.store != nil {
		events = s.store.Snapshot().Events
	}
	return calendar.New(events,
		calendar.WithLocation(s.loc),
		calendar.WithWeekStart(calendar.ParseWeekStart(s.cfg.WeekStart)),
		calendar.WithUpcomingLimit(s.cfg.UpcomingLimit),
		calendar.WithClock(s.now),
	)
}

// handleCalendar renders the month picker and its event list.
//
// GET /api/calendar?month=2025-06&day=2025-06-15&nav=prev|next&reset=1
//   - month: anchor month (defaults to the day's month, then the current month)
//   - day:   selected day; the list shows only that day's events. A value
//     that is not a real date selects nothing.
//   - nav:   shift the anchor one month after applying month
//   - reset: clear the selection and jump back to the current month
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cal := s.newCalendar()

	if q.Get("reset") == "1" || q.Get("reset") == "true" {
		cal.ResetSelection()
	} else {
		if v := q.Get("day"); v != "" {
			if d, err := calendar.ParseDate(v); err == nil {
				cal.SelectDay(d)
				cal.SetAnchor(calendar.MonthOf(d))
			}
		}
		if v := q.Get("month"); v != "" {
			m, err := calendar.ParseMonth(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, errBadRequest, "month must be YYYY-MM")
				return
			}
			cal.SetAnchor(m)
		}
		switch q.Get("nav") {
		case "":
		case "prev":
			cal.AdvanceMonth(calendar.Previous)
		case "next":
			cal.AdvanceMonth(calendar.Next)
		default:
			writeError(w, http.StatusBadRequest, errBadRequest, "nav must be prev or next")
			return
		}
	}

	resp := calendarResponse{
		Month:    cal.Anchor(),
		Title:    cal.Anchor().Title(),
		Today:    cal.Today(),
		Timezone: s.loc.String(),
		Weekdays: calendar.WeekdayLabels(cal.WeekStart()),
		Cells:    cal.Grid(),
		Heading:  "Upcoming Events",
		Events:   s.toDTOs(cal.Visible()),
	}
	if d, ok := cal.Selected(); ok {
		resp.Selected = &d
		resp.Heading = "Events on " + d.Start(s.loc).Format("January 2, 2006")
	}
	writeJSON(w, http.StatusOK, resp)
}
