package player

import "context"

// Media is the thing that actually makes sound: a browser audio element
// driven over a websocket, or a test double. Load, Pause and Rewind must
// not block; Play may block until playback has started or failed.
type Media interface {
	Load(src string)
	Play(ctx context.Context) error
	Pause()
	Rewind()
}

type playIDKey struct{}

func withPlayID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, playIDKey{}, id)
}

// PlayID returns the play request a Media.Play context was issued for.
// Media that report failures or end-of-track asynchronously echo it back
// to Coordinator.Fail and Coordinator.Ended.
func PlayID(ctx context.Context) uint64 {
	id, _ := ctx.Value(playIDKey{}).(uint64)
	return id
}

// Action is a system media control signal.
type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
)

// Artwork is one size variant of the now-playing image.
type Artwork struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

// Metadata is what the operating system's now-playing display shows.
type Metadata struct {
	Title   string    `json:"title"`
	Artist  string    `json:"artist"`
	Album   string    `json:"album"`
	Artwork []Artwork `json:"artwork"`
}

// IsZero reports whether m carries no track, i.e. the display was cleared.
func (m Metadata) IsZero() bool {
	return m.Title == "" && m.Artist == "" && len(m.Artwork) == 0
}

// MediaSession is the host's system media controls integration.
type MediaSession interface {
	SetMetadata(md Metadata)
	SetActionHandler(action Action, handler func())
}

var artworkSizes = []string{"96x96", "128x128", "512x512"}

func buildMetadata(t Track, album, fallbackArt string) Metadata {
	src := t.Artwork
	if src == "" {
		src = fallbackArt
	}
	md := Metadata{
		Title:  t.Title,
		Artist: t.Speaker,
		Album:  album,
	}
	if src == "" {
		return md
	}
	md.Artwork = make([]Artwork, 0, len(artworkSizes))
	for _, size := range artworkSizes {
		md.Artwork = append(md.Artwork, Artwork{Src: src, Sizes: size, Type: "image/png"})
	}
	return md
}
