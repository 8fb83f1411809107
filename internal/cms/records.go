package cms

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vhsite/internal/model"
)

// ErrInvalidRecord marks a CMS document rejected at the boundary.
var ErrInvalidRecord = errors.New("invalid record")

type rawEvent struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Date     string `json:"date"`
	Location string `json:"location"`
	ImageURL string `json:"imageUrl"`
}

func (r rawEvent) toModel() (model.Event, error) {
	if r.ID == "" {
		return model.Event{}, fmt.Errorf("%w: missing _id", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Title) == "" {
		return model.Event{}, fmt.Errorf("%w: missing title", ErrInvalidRecord)
	}
	start, err := parseInstant(r.Date)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		ID:       r.ID,
		Title:    strings.TrimSpace(r.Title),
		Category: r.Category,
		Location: r.Location,
		ImageURL: r.ImageURL,
		Source:   model.SourceCMS,
		Start:    start,
	}, nil
}

type rawSermon struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Preacher    string `json:"preacher"`
	Date        string `json:"date"`
	SeriesTitle string `json:"seriesTitle"`
	ImageURL    string `json:"imageUrl"`
	FileURL     string `json:"fileUrl"`
	YoutubeURL  string `json:"youtubeUrl"`
}

func (r rawSermon) toModel(defaultSpeaker string) (model.Sermon, error) {
	if r.ID == "" {
		return model.Sermon{}, fmt.Errorf("%w: missing _id", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Title) == "" {
		return model.Sermon{}, fmt.Errorf("%w: missing title", ErrInvalidRecord)
	}
	date, err := parseInstant(r.Date)
	if err != nil {
		return model.Sermon{}, err
	}
	preacher := strings.TrimSpace(r.Preacher)
	if preacher == "" {
		preacher = defaultSpeaker
	}
	return model.Sermon{
		ID:          r.ID,
		Title:       strings.TrimSpace(r.Title),
		Preacher:    preacher,
		SeriesTitle: r.SeriesTitle,
		Date:        date,
		AudioURL:    r.FileURL,
		ImageURL:    r.ImageURL,
		VideoURL:    r.YoutubeURL,
	}, nil
}

type rawSeries struct {
	ID            string      `json:"_id"`
	Title         string      `json:"title"`
	Subtitle      string      `json:"subtitle"`
	Description   string      `json:"description"`
	CoverURL      string      `json:"coverUrl"`
	RecentSermons []rawSermon `json:"recentSermons"`
}

type rawTestimony struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Quote    string `json:"quote"`
	PhotoURL string `json:"photoUrl"`
}

func (r rawTestimony) toModel() (model.Testimony, error) {
	if r.ID == "" || strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Quote) == "" {
		return model.Testimony{}, fmt.Errorf("%w: testimony needs _id, name and quote", ErrInvalidRecord)
	}
	return model.Testimony{
		ID:       r.ID,
		Name:     r.Name,
		Role:     r.Role,
		Quote:    r.Quote,
		PhotoURL: r.PhotoURL,
	}, nil
}

// parseInstant accepts Sanity datetimes ("2025-06-01T09:00:00.000Z").
func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidRecord, s)
	}
	return t, nil
}
