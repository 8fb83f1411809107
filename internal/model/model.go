package model

import "time"

// Event sources other than partner feed IDs.
const (
	SourceCMS     = "cms"
	SourceService = "service"
)

// Event is a single dated calendar entry. Events are read-only once
// fetched; the calendar only ever derives views from them.
type Event struct {
	ID       string
	Title    string
	Category string
	Location string
	ImageURL string

	// Source is SourceCMS, SourceService or a partner feed ID.
	Source string

	// Start is an absolute instant. Day-level comparisons convert it into
	// the display location first.
	Start time.Time
	// End is zero when the CMS does not provide one.
	End time.Time
}

// Sermon is a playable teaching record from the CMS.
type Sermon struct {
	ID          string
	Title       string
	Preacher    string
	SeriesTitle string
	Date        time.Time

	// AudioURL may be empty ("audio coming soon").
	AudioURL string
	ImageURL string
	VideoURL string
}

// HasAudio reports whether the sermon can be handed to the player.
func (s Sermon) HasAudio() bool {
	return s.AudioURL != ""
}

// Series is the sermon series featured on the home page.
type Series struct {
	ID            string
	Title         string
	Subtitle      string
	Description   string
	CoverURL      string
	RecentSermons []Sermon
}

// Testimony is a short member quote.
type Testimony struct {
	ID       string
	Name     string
	Role     string
	Quote    string
	PhotoURL string
}
