// Package player coordinates single-track sermon playback. A Coordinator
// holds at most one current track; any number of UI surfaces may drive it
// and observe it.
package player

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoAudio is returned by PlayTrack when the track has no media URL.
var ErrNoAudio = errors.New("audio coming soon")

// Status is the coordinator state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// Track is the now-playing audio reference.
type Track struct {
	Title   string `json:"title"`
	Speaker string `json:"speaker"`
	Src     string `json:"src"`
	Artwork string `json:"artwork,omitempty"`
}

// State is an immutable snapshot of a Coordinator.
type State struct {
	Status    Status `json:"status"`
	Track     *Track `json:"track"`
	IsPlaying bool   `json:"is_playing"`
	// Err is the last playback failure for the current track, if any.
	Err string `json:"error,omitempty"`
	// Generation increases on every transition.
	Generation uint64 `json:"generation"`
}

// Pending is the outcome of an asynchronous play request. IsPlaying
// reflects intent as soon as the request is issued; Pending reports what
// the media backend actually did.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolved(err error) *Pending {
	p := newPending()
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the request settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the settled error. It is only meaningful after Done.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the request settles or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

const defaultPlayTimeout = 30 * time.Second

// Coordinator is the process-wide slot for one visitor's current track.
// Construct one per visitor and hand it to whatever needs playback.
type Coordinator struct {
	mu    sync.Mutex
	pubMu sync.Mutex

	media   Media
	session MediaSession

	album       string
	fallbackArt string
	playTimeout time.Duration

	status Status
	track  Track
	err    string
	gen    uint64

	subs    map[int]func(State)
	nextSub int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSession wires system media controls. The coordinator routes both
// play and pause signals to TogglePlay.
func WithSession(s MediaSession) Option {
	return func(c *Coordinator) { c.session = s }
}

// WithAlbum sets the album label surfaced to the media session.
func WithAlbum(album string) Option {
	return func(c *Coordinator) { c.album = album }
}

// WithDefaultArtwork sets the artwork used when a track has none.
func WithDefaultArtwork(src string) Option {
	return func(c *Coordinator) { c.fallbackArt = src }
}

// WithPlayTimeout bounds how long a Media.Play call may take.
func WithPlayTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.playTimeout = d
		}
	}
}

// New returns an Idle coordinator driving media.
func New(media Media, opts ...Option) *Coordinator {
	c := &Coordinator{
		media:       media,
		status:      StatusIdle,
		playTimeout: defaultPlayTimeout,
		subs:        make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session != nil {
		c.session.SetActionHandler(ActionPlay, func() { c.TogglePlay() })
		c.session.SetActionHandler(ActionPause, func() { c.TogglePlay() })
	}
	return c
}

// State returns the current snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every state change and returns a function that
// removes it. fn runs synchronously after the transition and must not call
// back into the coordinator.
func (c *Coordinator) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// PlayTrack replaces any current track with t and starts playback. The
// previous track is dropped without a visible Idle step. It returns
// ErrNoAudio and changes nothing when t has no media URL.
func (c *Coordinator) PlayTrack(t Track) (*Pending, error) {
	if t.Src == "" {
		return nil, ErrNoAudio
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.track = t
	c.status = StatusPlaying
	c.err = ""
	c.media.Load(t.Src)
	md := buildMetadata(t, c.album, c.fallbackArt)
	c.publishMetadataLocked(&md)
	return c.startPlay(gen), nil
}

// TogglePlay flips between Playing and Paused. It does nothing when no
// track is set.
func (c *Coordinator) TogglePlay() *Pending {
	c.mu.Lock()
	switch c.status {
	case StatusPlaying:
		c.gen++
		c.status = StatusPaused
		c.media.Pause()
		c.publishLocked()
		return resolved(nil)
	case StatusPaused:
		c.gen++
		gen := c.gen
		c.status = StatusPlaying
		c.err = ""
		c.publishLocked()
		return c.startPlay(gen)
	default:
		c.mu.Unlock()
		return resolved(nil)
	}
}

// Pause silences playback but keeps the track, e.g. while a video modal
// is open.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	if c.status != StatusPlaying {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.status = StatusPaused
	c.media.Pause()
	c.publishLocked()
}

// ClosePlayer stops playback, rewinds to the start and clears the track.
func (c *Coordinator) ClosePlayer() {
	c.mu.Lock()
	wasActive := c.status != StatusIdle
	c.gen++
	c.media.Pause()
	c.media.Rewind()
	c.status = StatusIdle
	c.track = Track{}
	c.err = ""
	if !wasActive {
		c.publishLocked()
		return
	}
	c.publishMetadataLocked(&Metadata{})
}

// Ended records that the media reached the end of the play request
// identified by play. The track stays loaded. A play of 0 means whatever
// is current; a report for any other superseded request is ignored.
func (c *Coordinator) Ended(play uint64) {
	c.mu.Lock()
	if !c.reportCurrentLocked(play) {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.status = StatusPaused
	c.publishLocked()
}

// Fail records a playback error the media layer reported for the play
// request identified by play (codec, network). There is no retry and no
// skip; the track stays visible so the visitor can try again. Reports for
// a superseded request, or arriving while not playing, are ignored.
func (c *Coordinator) Fail(play uint64, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if !c.reportCurrentLocked(play) {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.status = StatusPaused
	c.err = err.Error()
	c.publishLocked()
}

// reportCurrentLocked reports whether a media report for play applies.
// While Playing, the generation is the one issued with the play request.
func (c *Coordinator) reportCurrentLocked(play uint64) bool {
	if c.status != StatusPlaying {
		return false
	}
	return play == 0 || play == c.gen
}

func (c *Coordinator) startPlay(gen uint64) *Pending {
	p := newPending()
	go func() {
		ctx, cancel := context.WithTimeout(withPlayID(context.Background(), gen), c.playTimeout)
		err := c.media.Play(ctx)
		cancel()
		if err != nil {
			c.playFailed(gen, err)
		}
		p.resolve(err)
	}()
	return p
}

// playFailed applies a rejected play unless a newer transition already
// superseded it.
func (c *Coordinator) playFailed(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.status = StatusPaused
	c.err = err.Error()
	c.publishLocked()
}

// publishLocked must be called with mu held; it releases mu. Subscribers
// are notified in transition order.
func (c *Coordinator) publishLocked() {
	c.publishMetadataLocked(nil)
}

// publishMetadataLocked is publishLocked that also hands md to the media
// session, in the same order as the state it belongs to.
func (c *Coordinator) publishMetadataLocked(md *Metadata) {
	st := c.snapshotLocked()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	if md != nil && c.session != nil {
		c.session.SetMetadata(*md)
	}
}

func (c *Coordinator) snapshotLocked() State {
	st := State{
		Status:     c.status,
		IsPlaying:  c.status == StatusPlaying,
		Err:        c.err,
		Generation: c.gen,
	}
	if c.status != StatusIdle {
		t := c.track
		st.Track = &t
	}
	return st
}
