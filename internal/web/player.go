package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vhsite/internal/config"
	"vhsite/internal/content"
	appLog "vhsite/internal/log"
	"vhsite/internal/metrics"
	"vhsite/internal/player"
	"vhsite/internal/websocket"
)

// remoteMedia drives the audio element in the visitor's browser tabs.
// Commands are fire-and-forget; the tab reports failures back as
// media.error frames. Every tab preloads the source but only the active
// tab is told to play.
type remoteMedia struct {
	hub   *websocket.Hub
	topic string
	sess  *remoteSession
}

func (m remoteMedia) command(cmd websocket.CommandPayload) {
	m.hub.Publish(m.topic, websocket.NewMessage(websocket.TypeMediaCommand, cmd))
}

func (m remoteMedia) Load(src string) { m.command(websocket.CommandPayload{Op: websocket.OpLoad, Src: src}) }
func (m remoteMedia) Pause()          { m.command(websocket.CommandPayload{Op: websocket.OpPause}) }
func (m remoteMedia) Rewind()         { m.command(websocket.CommandPayload{Op: websocket.OpRewind}) }

func (m remoteMedia) Play(ctx context.Context) error {
	m.command(websocket.CommandPayload{Op: websocket.OpPlay, Tab: m.sess.activeTab(), Play: player.PlayID(ctx)})
	return nil
}

// remoteSession forwards now-playing metadata to the tabs, which hand it
// to navigator.mediaSession, and receives their play/pause signals. It also
// tracks the visitor's open tabs; the most recently attached one owns the
// audio.
type remoteSession struct {
	hub   *websocket.Hub
	topic string

	mu       sync.Mutex
	metadata player.Metadata
	handlers map[player.Action]func()
	tabs     []string
}

func newRemoteSession(hub *websocket.Hub, topic string) *remoteSession {
	return &remoteSession{hub: hub, topic: topic, handlers: make(map[player.Action]func())}
}

func (s *remoteSession) SetMetadata(md player.Metadata) {
	s.mu.Lock()
	s.metadata = md
	s.mu.Unlock()
	s.hub.Publish(s.topic, websocket.NewMessage(websocket.TypeSessionMetadata, md))
}

func (s *remoteSession) SetActionHandler(a player.Action, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[a] = fn
}

func (s *remoteSession) trigger(a player.Action) {
	s.mu.Lock()
	fn := s.handlers[a]
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *remoteSession) currentMetadata() player.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// attach makes tab the active tab and tells the others to stand down.
func (s *remoteSession) attach(tab string) {
	s.mu.Lock()
	s.tabs = append(s.tabs, tab)
	s.mu.Unlock()
	s.hub.Publish(s.topic, websocket.NewMessage(websocket.TypeTabActive, websocket.TabPayload{Tab: tab}))
}

// detach forgets tab and reports whether it was the active one. The previous
// tab, if any, takes over.
func (s *remoteSession) detach(tab string) bool {
	s.mu.Lock()
	idx := slices.Index(s.tabs, tab)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	wasActive := idx == len(s.tabs)-1
	s.tabs = slices.Delete(s.tabs, idx, idx+1)
	next := ""
	if wasActive && len(s.tabs) > 0 {
		next = s.tabs[len(s.tabs)-1]
	}
	s.mu.Unlock()

	if next != "" {
		s.hub.Publish(s.topic, websocket.NewMessage(websocket.TypeTabActive, websocket.TabPayload{Tab: next}))
	}
	return wasActive
}

func (s *remoteSession) activeTab() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tabs) == 0 {
		return ""
	}
	return s.tabs[len(s.tabs)-1]
}

// Players owns one coordinator per visitor session, each wired to that
// visitor's websocket topic.
type Players struct {
	hub      *websocket.Hub
	registry *player.Registry
	defaults content.TrackDefaults

	mu       sync.Mutex
	sessions map[string]*remoteSession
}

// NewPlayers builds the per-visitor registry.
func NewPlayers(hub *websocket.Hub, cfg config.PlayerConfig) *Players {
	p := &Players{
		hub:      hub,
		defaults: content.TrackDefaults{Speaker: cfg.DefaultSpeaker, Artwork: cfg.DefaultArtwork},
		sessions: make(map[string]*remoteSession),
	}
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	p.registry = player.NewRegistry(func(id string) *player.Coordinator {
		sess := newRemoteSession(hub, id)
		p.mu.Lock()
		p.sessions[id] = sess
		p.mu.Unlock()
		metrics.PlayerSessions.Inc()

		c := player.New(remoteMedia{hub: hub, topic: id, sess: sess},
			player.WithSession(sess),
			player.WithAlbum(cfg.Album),
			player.WithDefaultArtwork(cfg.DefaultArtwork),
		)
		c.Subscribe(func(st player.State) {
			hub.Publish(id, websocket.NewMessage(websocket.TypePlayerState, st))
		})
		return c
	}, ttl)

	// An open tab keeps its session alive even when it only listens.
	p.registry.KeepAlive(func(id string) bool {
		return hub.ClientCount(id) > 0
	})
	p.registry.OnEvict(func(id string) {
		p.mu.Lock()
		delete(p.sessions, id)
		p.mu.Unlock()
		metrics.PlayerSessions.Dec()
		appLog.Debug("player session evicted", "session", id)
	})
	return p
}

// Get returns the coordinator for a visitor.
func (p *Players) Get(id string) *player.Coordinator {
	return p.registry.Get(id)
}

func (p *Players) session(id string) *remoteSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[id]
}

// Sweep drops idle visitor sessions.
func (p *Players) Sweep() int {
	n := p.registry.Sweep()
	if n > 0 {
		appLog.Info("player sessions swept", "removed", n, "live", p.registry.Len())
	}
	return n
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	c := s.players.Get(visitorID(w, r))
	writeJSON(w, http.StatusOK, c.State())
}

// playRequest selects a sermon by ID or carries an explicit track.
type playRequest struct {
	SermonID string `json:"sermon_id"`
	Title    string `json:"title"`
	Speaker  string `json:"speaker"`
	Src      string `json:"src"`
	Artwork  string `json:"artwork"`
}

func (s *Server) handlePlayerPlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, "invalid JSON body")
		return
	}

	var track player.Track
	if req.SermonID != "" {
		if s.store == nil {
			writeError(w, http.StatusNotFound, errNotFound, "sermon not found")
			return
		}
		sm, ok := s.store.Sermon(req.SermonID)
		if !ok {
			metrics.ObservePlay(metrics.PlayNotFound)
			writeError(w, http.StatusNotFound, errNotFound, "sermon not found")
			return
		}
		t, err := content.TrackFromSermon(sm, s.players.defaults)
		if err != nil {
			metrics.ObservePlay(metrics.PlayNoAudio)
			writeError(w, http.StatusUnprocessableEntity, errNoAudio, err.Error())
			return
		}
		track = t
	} else {
		track = player.Track{Title: req.Title, Speaker: req.Speaker, Src: req.Src, Artwork: req.Artwork}
		if track.Speaker == "" {
			track.Speaker = s.players.defaults.Speaker
		}
		if strings.TrimSpace(track.Title) == "" && track.Src != "" {
			writeError(w, http.StatusBadRequest, errBadRequest, "title is required")
			return
		}
	}

	c := s.players.Get(visitorID(w, r))
	pending, err := c.PlayTrack(track)
	if errors.Is(err, player.ErrNoAudio) {
		metrics.ObservePlay(metrics.PlayNoAudio)
		writeError(w, http.StatusUnprocessableEntity, errNoAudio, err.Error())
		return
	}
	metrics.ObservePlay(metrics.PlayStarted)
	_ = pending.Wait(r.Context())
	writeJSON(w, http.StatusOK, c.State())
}

// mediaReport is the body of the ended and error actions. Play is the play
// request being reported on; zero means the current one.
type mediaReport struct {
	Message string `json:"message"`
	Play    uint64 `json:"play"`
}

func (s *Server) handlePlayerAction(w http.ResponseWriter, r *http.Request) {
	c := s.players.Get(visitorID(w, r))

	switch mux.Vars(r)["action"] {
	case "toggle":
		_ = c.TogglePlay().Wait(r.Context())
	case "pause":
		c.Pause()
	case "close":
		c.ClosePlayer()
	case "ended":
		var req mediaReport
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req)
		c.Ended(req.Play)
	case "error":
		var req mediaReport
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req)
		if req.Message == "" {
			req.Message = "playback failed"
		}
		c.Fail(req.Play, errors.New(req.Message))
	}
	writeJSON(w, http.StatusOK, c.State())
}

// handlePlayerWS attaches a browser tab to the visitor's player. The
// coordinator is resolved again for every frame rather than held for the
// life of the connection.
func (s *Server) handlePlayerWS(w http.ResponseWriter, r *http.Request) {
	id := visitorID(w, r)
	s.players.Get(id)
	tab := uuid.NewString()

	greet := func() []websocket.Message {
		c := s.players.Get(id)
		sess := s.players.session(id)
		if sess != nil {
			sess.attach(tab)
		}

		st := c.State()
		frames := []websocket.Message{
			websocket.NewMessage(websocket.TypeTabHello, websocket.TabPayload{Tab: tab}),
			websocket.NewMessage(websocket.TypePlayerState, st),
		}
		if st.Track == nil {
			return frames
		}
		frames = append(frames, websocket.NewMessage(websocket.TypeMediaCommand, websocket.CommandPayload{Op: websocket.OpLoad, Src: st.Track.Src}))
		if sess != nil {
			frames = append(frames, websocket.NewMessage(websocket.TypeSessionMetadata, sess.currentMetadata()))
		}
		if st.IsPlaying {
			frames = append(frames, websocket.NewMessage(websocket.TypeMediaCommand, websocket.CommandPayload{Op: websocket.OpPlay, Tab: tab, Play: st.Generation}))
		}
		return frames
	}

	websocket.Serve(s.hub, w, r, id, greet, func(msg websocket.Message) *websocket.Message {
		c := s.players.Get(id)
		sess := s.players.session(id)

		switch msg.Type {
		case websocket.TypeMediaPlay:
			if sess != nil {
				sess.trigger(player.ActionPlay)
			}
		case websocket.TypeMediaPause:
			if sess != nil {
				sess.trigger(player.ActionPause)
			}
		case websocket.TypeMediaEnded:
			if sess == nil || sess.activeTab() != tab {
				return nil
			}
			var p websocket.MediaEndedPayload
			_ = json.Unmarshal(msg.Payload, &p)
			c.Ended(p.Play)
		case websocket.TypeMediaError:
			if sess == nil || sess.activeTab() != tab {
				return nil
			}
			var p websocket.MediaErrorPayload
			_ = json.Unmarshal(msg.Payload, &p)
			if p.Message == "" {
				p.Message = "playback failed"
			}
			c.Fail(p.Play, errors.New(p.Message))
		default:
			m := websocket.NewMessage(websocket.TypeError, websocket.ErrorPayload{Code: errBadRequest, Message: "unknown message type " + string(msg.Type)})
			return &m
		}
		return nil
	})

	// Closing the tab that holds the audio pauses the player.
	if sess := s.players.session(id); sess != nil && sess.detach(tab) {
		if c, ok := s.players.registry.Lookup(id); ok {
			c.Pause()
		}
	}
}
