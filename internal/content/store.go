// Package content loads and caches everything the site pages render:
// events merged from the CMS, service times and partner feeds, plus
// sermons, the current series and testimonies.
package content

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vhsite/internal/config"
	"vhsite/internal/fetch"
	"vhsite/internal/ics"
	appLog "vhsite/internal/log"
	"vhsite/internal/metrics"
	"vhsite/internal/model"
	"vhsite/internal/player"
)

// CMS is the content source. *cms.Client implements it.
type CMS interface {
	Events(ctx context.Context) ([]model.Event, error)
	Sermons(ctx context.Context) ([]model.Sermon, error)
	CurrentSeries(ctx context.Context) (*model.Series, error)
	Testimonies(ctx context.Context) ([]model.Testimony, error)
}

// Snapshot is one consistent view of site content. Slices are never nil.
type Snapshot struct {
	Events      []model.Event
	Sermons     []model.Sermon
	Series      *model.Series
	Testimonies []model.Testimony
	UpdatedAt   time.Time
}

// Options configures a Store.
type Options struct {
	Location     *time.Location
	Services     []config.ServiceConfig
	Feeds        []ics.Feed
	Getter       *fetch.Getter
	HorizonDays  int
	BackfillDays int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Store holds the latest Snapshot.
type Store struct {
	cms  CMS
	opts Options

	mu   sync.RWMutex
	snap Snapshot

	refreshMu sync.Mutex
}

// NewStore creates a Store with an empty snapshot. cms may be nil, in
// which case only service times and partner feeds are loaded.
func NewStore(cms CMS, opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 120
	}
	return &Store{
		cms:  cms,
		opts: opts,
		snap: emptySnapshot(),
	}
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Events:      []model.Event{},
		Sermons:     []model.Sermon{},
		Testimonies: []model.Testimony{},
	}
}

// Snapshot returns the current snapshot. Callers must not modify the
// returned slices.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh reloads all content. On error the previous snapshot is kept.
// Partner feed failures are logged and do not fail the refresh.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := time.Now()
	next, err := s.load(ctx)
	metrics.ObserveRefresh(time.Since(started), err)
	if err != nil {
		appLog.Error("content refresh failed; keeping previous snapshot", err)
		return err
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	appLog.Info("content refreshed",
		"events", len(next.Events),
		"sermons", len(next.Sermons),
		"testimonies", len(next.Testimonies),
		"has_series", next.Series != nil,
		"took", time.Since(started).String(),
	)
	return nil
}

func (s *Store) load(ctx context.Context) (Snapshot, error) {
	now := s.opts.Now()
	snap := emptySnapshot()
	snap.UpdatedAt = now

	if s.cms != nil {
		var (
			events      []model.Event
			sermons     []model.Sermon
			series      *model.Series
			testimonies []model.Testimony
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			if events, err = s.cms.Events(gctx); err != nil {
				err = fmt.Errorf("content: events: %w", err)
			}
			return err
		})
		g.Go(func() (err error) {
			if sermons, err = s.cms.Sermons(gctx); err != nil {
				err = fmt.Errorf("content: sermons: %w", err)
			}
			return err
		})
		g.Go(func() (err error) {
			if series, err = s.cms.CurrentSeries(gctx); err != nil {
				err = fmt.Errorf("content: series: %w", err)
			}
			return err
		})
		g.Go(func() (err error) {
			if testimonies, err = s.cms.Testimonies(gctx); err != nil {
				err = fmt.Errorf("content: testimonies: %w", err)
			}
			return err
		})
		if err := g.Wait(); err != nil {
			return Snapshot{}, err
		}

		snap.Events = append(snap.Events, events...)
		snap.Sermons = append(snap.Sermons, sermons...)
		snap.Series = series
		snap.Testimonies = append(snap.Testimonies, testimonies...)
	}

	w := s.window(now)
	services, err := ics.ExpandServices(s.opts.Services, s.opts.Location, w)
	if err != nil {
		return Snapshot{}, fmt.Errorf("content: services: %w", err)
	}
	snap.Events = append(snap.Events, services...)

	for _, feed := range s.opts.Feeds {
		if s.opts.Getter == nil {
			return Snapshot{}, errors.New("content: partner feeds configured without a getter")
		}
		events, err := ics.FetchFeed(ctx, s.opts.Getter, feed, s.opts.Location, w)
		if err != nil {
			appLog.Error("partner feed skipped", err, "feed", feed.ID)
			metrics.FeedFailed(feed.ID)
			continue
		}
		snap.Events = append(snap.Events, events...)
	}

	// Ties keep fetch order: CMS, then services, then feeds.
	slices.SortStableFunc(snap.Events, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
	return snap, nil
}

// window starts at the first of the month BackfillDays ago so the visible
// month keeps markers on earlier days.
func (s *Store) window(now time.Time) ics.Window {
	local := now.In(s.opts.Location)
	back := local.AddDate(0, 0, -s.opts.BackfillDays)
	start := time.Date(back.Year(), back.Month(), 1, 0, 0, 0, 0, s.opts.Location)
	return ics.Window{
		Start: start,
		End:   local.AddDate(0, 0, s.opts.HorizonDays),
	}
}

// SearchSermons matches q case-insensitively against title, preacher and
// series title. An empty query returns every sermon.
func (s *Store) SearchSermons(q string) []model.Sermon {
	sermons := s.Snapshot().Sermons
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return slices.Clone(sermons)
	}
	out := make([]model.Sermon, 0)
	for _, sm := range sermons {
		if strings.Contains(strings.ToLower(sm.Title), q) ||
			strings.Contains(strings.ToLower(sm.Preacher), q) ||
			strings.Contains(strings.ToLower(sm.SeriesTitle), q) {
			out = append(out, sm)
		}
	}
	return out
}

// Sermon finds a sermon by ID in the current snapshot, including the
// current series' recent sermons.
func (s *Store) Sermon(id string) (model.Sermon, bool) {
	snap := s.Snapshot()
	for _, sm := range snap.Sermons {
		if sm.ID == id {
			return sm, true
		}
	}
	if snap.Series != nil {
		for _, sm := range snap.Series.RecentSermons {
			if sm.ID == id {
				return sm, true
			}
		}
	}
	return model.Sermon{}, false
}

// TrackDefaults fill gaps in sermon records handed to the player.
type TrackDefaults struct {
	Speaker string
	Artwork string
}

// TrackFromSermon builds a player track, or returns player.ErrNoAudio when
// the sermon has no media yet.
func TrackFromSermon(sm model.Sermon, d TrackDefaults) (player.Track, error) {
	if !sm.HasAudio() {
		return player.Track{}, player.ErrNoAudio
	}
	t := player.Track{
		Title:   sm.Title,
		Speaker: sm.Preacher,
		Src:     sm.AudioURL,
		Artwork: sm.ImageURL,
	}
	if t.Speaker == "" {
		t.Speaker = d.Speaker
	}
	if t.Artwork == "" {
		t.Artwork = d.Artwork
	}
	return t, nil
}
