package web

import (
	"net/http"
	"time"

	"vhsite/internal/content"
	"vhsite/internal/ics"
	"vhsite/internal/model"
)

func (s *Server) snapshot() content.Snapshot {
	if s.store == nil {
		return content.Snapshot{
			Events:      []model.Event{},
			Sermons:     []model.Sermon{},
			Testimonies: []model.Testimony{},
		}
	}
	return s.store.Snapshot()
}

// handleUpcoming returns the next N events from now.
func (s *Server) handleUpcoming(w http.ResponseWriter, _ *http.Request) {
	cal := s.newCalendar()
	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.toDTOs(cal.Upcoming(s.now())),
	})
}

// handleICS exports every known event as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot()
	body := ics.Export("Victory House", snap.Events, s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type sermonDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Preacher    string    `json:"preacher"`
	SeriesTitle string    `json:"series_title,omitempty"`
	Date        time.Time `json:"date"`
	AudioURL    string    `json:"audio_url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	HasAudio    bool      `json:"has_audio"`
}

func sermonDTOs(in []model.Sermon) []sermonDTO {
	out := make([]sermonDTO, 0, len(in))
	for _, sm := range in {
		out = append(out, sermonDTO{
			ID:          sm.ID,
			Title:       sm.Title,
			Preacher:    sm.Preacher,
			SeriesTitle: sm.SeriesTitle,
			Date:        sm.Date,
			AudioURL:    sm.AudioURL,
			ImageURL:    sm.ImageURL,
			VideoURL:    sm.VideoURL,
			HasAudio:    sm.HasAudio(),
		})
	}
	return out
}

// handleSermons lists sermons, newest first, optionally filtered by ?q=.
func (s *Server) handleSermons(w http.ResponseWriter, r *http.Request) {
	var sermons []model.Sermon
	if s.store != nil {
		sermons = s.store.SearchSermons(r.URL.Query().Get("q"))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sermons": sermonDTOs(sermons),
	})
}

type seriesDTO struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Subtitle      string      `json:"subtitle,omitempty"`
	Description   string      `json:"description,omitempty"`
	CoverURL      string      `json:"cover_url,omitempty"`
	RecentSermons []sermonDTO `json:"recent_sermons"`
}

func (s *Server) handleCurrentSeries(w http.ResponseWriter, _ *http.Request) {
	series := s.snapshot().Series
	if series == nil {
		writeError(w, http.StatusNotFound, errNotFound, "no current series")
		return
	}
	writeJSON(w, http.StatusOK, seriesDTO{
		ID:            series.ID,
		Title:         series.Title,
		Subtitle:      series.Subtitle,
		Description:   series.Description,
		CoverURL:      series.CoverURL,
		RecentSermons: sermonDTOs(series.RecentSermons),
	})
}

type testimonyDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Quote    string `json:"quote"`
	PhotoURL string `json:"photo_url,omitempty"`
}

func (s *Server) handleTestimonies(w http.ResponseWriter, _ *http.Request) {
	ts := s.snapshot().Testimonies
	out := make([]testimonyDTO, 0, len(ts))
	for _, t := range ts {
		out = append(out, testimonyDTO(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"testimonies": out})
}
