package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vhsite/internal/chat"
	"vhsite/internal/config"
	"vhsite/internal/content"
	"vhsite/internal/model"
	"vhsite/internal/websocket"
)

type fakeCMS struct {
	events      []model.Event
	sermons     []model.Sermon
	series      *model.Series
	testimonies []model.Testimony
}

func (f *fakeCMS) Events(context.Context) ([]model.Event, error)   { return f.events, nil }
func (f *fakeCMS) Sermons(context.Context) ([]model.Sermon, error) { return f.sermons, nil }
func (f *fakeCMS) CurrentSeries(context.Context) (*model.Series, error) {
	return f.series, nil
}
func (f *fakeCMS) Testimonies(context.Context) ([]model.Testimony, error) {
	return f.testimonies, nil
}

type fakeGenerator struct {
	chunks []string
	err    error

	system string
	msgs   []chat.Message
}

func (g *fakeGenerator) Stream(_ context.Context, system string, msgs []chat.Message, emit func(string) error) error {
	g.system, g.msgs = system, msgs
	for _, c := range g.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return g.err
}

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	hub    *websocket.Hub
}

type envOption func(*Deps)

func withChat(g chat.Generator) envOption {
	return func(d *Deps) { d.Chat = g }
}

func withBasicAuth(user, pass string) envOption {
	return func(d *Deps) { d.Config.BasicAuth = &config.BasicAuthConfig{Username: user, Password: pass} }
}

func withRefresh(fn func(context.Context) error) envOption {
	return func(d *Deps) { d.Refresh = fn }
}

func newTestEnv(t *testing.T, cms *fakeCMS, opts ...envOption) *testEnv {
	t.Helper()
	loc := chicago(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, loc)
	clock := func() time.Time { return now }

	cfg := config.DefaultConfig()
	cfg.Services = nil

	store := content.NewStore(cms, content.Options{
		Location:    loc,
		HorizonDays: 60,
		Now:         clock,
	})
	require.NoError(t, store.Refresh(context.Background()))

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	d := Deps{
		Config:   cfg,
		Location: loc,
		Store:    store,
		Players:  NewPlayers(hub, cfg.Player),
		Hub:      hub,
		Now:      clock,
	}
	for _, o := range opts {
		o(&d)
	}

	srv := httptest.NewServer(NewServer(d).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	return &testEnv{srv: srv, client: newClient(t), hub: hub}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := e.client.Post(e.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func churchEvents(loc *time.Location) []model.Event {
	return []model.Event{
		{ID: "early", Title: "Prayer Breakfast", Start: time.Date(2025, 6, 1, 9, 0, 0, 0, loc), Source: model.SourceCMS},
		{ID: "later", Title: "Baptism Sunday", Start: time.Date(2025, 6, 15, 11, 0, 0, 0, loc), Source: model.SourceCMS},
	}
}

type calendarBody struct {
	Month    string           `json:"month"`
	Title    string           `json:"title"`
	Today    string           `json:"today"`
	Timezone string           `json:"timezone"`
	Weekdays []string         `json:"weekdays"`
	Cells    []map[string]any `json:"cells"`
	Selected *string          `json:"selected"`
	Heading  string           `json:"heading"`
	Events   []map[string]any `json:"events"`
}

func eventIDs(events []map[string]any) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev["id"].(string))
	}
	return ids
}

func TestCalendar_DefaultViewShowsUpcoming(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{events: churchEvents(chicago(t))})

	resp := env.get(t, "/api/calendar")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[calendarBody](t, resp)

	assert.Equal(t, "2025-06", body.Month)
	assert.Equal(t, "June 2025", body.Title)
	assert.Equal(t, "2025-06-10", body.Today)
	assert.Equal(t, "America/Chicago", body.Timezone)
	assert.Equal(t, []string{"S", "M", "T", "W", "T", "F", "S"}, body.Weekdays)
	assert.Nil(t, body.Selected)
	assert.Equal(t, "Upcoming Events", body.Heading)
	assert.Equal(t, []string{"later"}, eventIDs(body.Events))
	assert.Equal(t, "11:00 AM", body.Events[0]["time"])

	require.Zero(t, len(body.Cells)%7)
	marked := map[string]bool{}
	for _, c := range body.Cells {
		if c["has_event"].(bool) {
			marked[c["date"].(string)] = true
		}
	}
	assert.Equal(t, map[string]bool{"2025-06-01": true, "2025-06-15": true}, marked)
}

func TestCalendar_SelectNavigateReset(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{events: churchEvents(chicago(t))})

	t.Run("select a past day", func(t *testing.T) {
		body := decode[calendarBody](t, env.get(t, "/api/calendar?day=2025-06-01"))
		require.NotNil(t, body.Selected)
		assert.Equal(t, "2025-06-01", *body.Selected)
		assert.Equal(t, "Events on June 1, 2025", body.Heading)
		assert.Equal(t, []string{"early"}, eventIDs(body.Events))
	})

	t.Run("empty day", func(t *testing.T) {
		body := decode[calendarBody](t, env.get(t, "/api/calendar?day=2025-06-02"))
		assert.Empty(t, body.Events)
	})

	t.Run("navigation keeps the selection", func(t *testing.T) {
		body := decode[calendarBody](t, env.get(t, "/api/calendar?day=2025-06-01&month=2025-06&nav=next"))
		assert.Equal(t, "2025-07", body.Month)
		require.NotNil(t, body.Selected)
		assert.Equal(t, []string{"early"}, eventIDs(body.Events))
	})

	t.Run("year rollover", func(t *testing.T) {
		body := decode[calendarBody](t, env.get(t, "/api/calendar?month=2025-01&nav=prev"))
		assert.Equal(t, "2024-12", body.Month)
	})

	t.Run("reset returns to today", func(t *testing.T) {
		body := decode[calendarBody](t, env.get(t, "/api/calendar?day=2025-06-01&month=2026-02&reset=1"))
		assert.Equal(t, "2025-06", body.Month)
		assert.Nil(t, body.Selected)
		assert.Equal(t, []string{"later"}, eventIDs(body.Events))
	})
}

func TestCalendar_UnparseableDaySelectsNothing(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{events: churchEvents(chicago(t))})

	for _, q := range []string{"day=tomorrow", "day=2025-02-30", "day=not-a-date", "day=2025-06-31"} {
		t.Run(q, func(t *testing.T) {
			resp := env.get(t, "/api/calendar?"+q)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			body := decode[calendarBody](t, resp)
			assert.Nil(t, body.Selected)
			assert.Equal(t, "2025-06", body.Month)
			assert.Equal(t, "Upcoming Events", body.Heading)
			assert.Equal(t, []string{"later"}, eventIDs(body.Events))
		})
	}
}

func TestCalendar_BadParams(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{})

	for _, q := range []string{"month=2025-13", "nav=sideways"} {
		t.Run(q, func(t *testing.T) {
			resp := env.get(t, "/api/calendar?"+q)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, errBadRequest, decode[ErrorResponse](t, resp).Error)
		})
	}
}

func TestUpcomingAndICS(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{events: churchEvents(chicago(t))})

	body := decode[struct {
		Events []map[string]any `json:"events"`
	}](t, env.get(t, "/api/events"))
	assert.Equal(t, []string{"later"}, eventIDs(body.Events))

	resp := env.get(t, "/events.ics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	ics := readBody(t, resp)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "SUMMARY:Prayer Breakfast")
	assert.Contains(t, ics, "SUMMARY:Baptism Sunday")
}

func sermonFixtures() []model.Sermon {
	return []model.Sermon{
		{ID: "s1", Title: "Amazing Grace", Preacher: "Pastor Dan", AudioURL: "https://cdn.example/s1.mp3", Date: time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)},
		{ID: "s2", Title: "Faith Over Fear", Preacher: "Pastor Dan", Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestSermonsAndSeries(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{
		sermons:     sermonFixtures(),
		testimonies: []model.Testimony{{ID: "t1", Name: "Ana", Quote: "I found a family here."}},
	})

	type sermonsBody struct {
		Sermons []sermonDTO `json:"sermons"`
	}

	all := decode[sermonsBody](t, env.get(t, "/api/sermons"))
	require.Len(t, all.Sermons, 2)
	assert.True(t, all.Sermons[0].HasAudio)
	assert.False(t, all.Sermons[1].HasAudio)

	found := decode[sermonsBody](t, env.get(t, "/api/sermons?q=grace"))
	require.Len(t, found.Sermons, 1)
	assert.Equal(t, "s1", found.Sermons[0].ID)

	resp := env.get(t, "/api/series/current")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ts := decode[struct {
		Testimonies []testimonyDTO `json:"testimonies"`
	}](t, env.get(t, "/api/testimonies"))
	assert.Equal(t, []testimonyDTO{{ID: "t1", Name: "Ana", Quote: "I found a family here."}}, ts.Testimonies)
}

type stateBody struct {
	Status    string `json:"status"`
	IsPlaying bool   `json:"is_playing"`
	Track     *struct {
		Title   string `json:"title"`
		Speaker string `json:"speaker"`
		Src     string `json:"src"`
	} `json:"track"`
	Error string `json:"error"`
}

func TestPlayer_RESTFlow(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{sermons: sermonFixtures()})

	st := decode[stateBody](t, env.get(t, "/api/player"))
	assert.Equal(t, "idle", st.Status)
	assert.Nil(t, st.Track)

	resp := env.post(t, "/api/player/play", `{"sermon_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st = decode[stateBody](t, resp)
	assert.Equal(t, "playing", st.Status)
	assert.True(t, st.IsPlaying)
	require.NotNil(t, st.Track)
	assert.Equal(t, "Amazing Grace", st.Track.Title)
	assert.Equal(t, "Pastor Dan", st.Track.Speaker)

	// Pause then toggle resumes the same track.
	st = decode[stateBody](t, env.post(t, "/api/player/pause", ""))
	assert.Equal(t, "paused", st.Status)
	st = decode[stateBody](t, env.post(t, "/api/player/toggle", ""))
	assert.Equal(t, "playing", st.Status)
	assert.Equal(t, "Amazing Grace", st.Track.Title)

	st = decode[stateBody](t, env.post(t, "/api/player/error", `{"message":"decode failed"}`))
	assert.Equal(t, "paused", st.Status)
	assert.Equal(t, "decode failed", st.Error)

	st = decode[stateBody](t, env.post(t, "/api/player/close", ""))
	assert.Equal(t, "idle", st.Status)
	assert.Nil(t, st.Track)
}

func TestPlayer_Errors(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{sermons: sermonFixtures()})

	resp := env.post(t, "/api/player/play", `{"sermon_id":"s2"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.Equal(t, errNoAudio, e.Error)
	assert.Equal(t, "audio coming soon", e.Message)

	resp = env.post(t, "/api/player/play", `{"sermon_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.post(t, "/api/player/play", `{"title":"Clip"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.post(t, "/api/player/play", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	st := decode[stateBody](t, env.get(t, "/api/player"))
	assert.Equal(t, "idle", st.Status)
}

func TestPlayer_SessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{sermons: sermonFixtures()})

	resp := env.post(t, "/api/player/play", `{"title":"Clip","src":"https://cdn.example/clip.mp3"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[stateBody](t, resp)
	assert.Equal(t, "Pastor Dan", st.Track.Speaker, "default speaker fills a blank one")

	other := &testEnv{srv: env.srv, client: newClient(t)}
	st = decode[stateBody](t, other.get(t, "/api/player"))
	assert.Equal(t, "idle", st.Status)
}

// playerTab is one browser tab attached to the player websocket.
type playerTab struct {
	t    *testing.T
	conn *gws.Conn
	id   string
}

func dialPlayer(t *testing.T, env *testEnv) *playerTab {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/player/ws"
	dialer := gws.Dialer{Jar: env.client.Jar, HandshakeTimeout: 2 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	tab := &playerTab{t: t, conn: conn}
	hello := tab.read()
	require.Equal(t, websocket.TypeTabHello, hello.Type)
	var p websocket.TabPayload
	require.NoError(t, json.Unmarshal(hello.Payload, &p))
	require.NotEmpty(t, p.Tab)
	tab.id = p.Tab
	return tab
}

func (tab *playerTab) read() websocket.Message {
	tab.t.Helper()
	require.NoError(tab.t, tab.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m websocket.Message
	require.NoError(tab.t, tab.conn.ReadJSON(&m))
	return m
}

func (tab *playerTab) send(typ websocket.MessageType, payload any) {
	tab.t.Helper()
	require.NoError(tab.t, tab.conn.WriteJSON(websocket.NewMessage(typ, payload)))
}

// sync waits until every frame sent so far has been handled.
func (tab *playerTab) sync() {
	tab.t.Helper()
	tab.send(websocket.TypePing, nil)
	tab.until(websocket.TypePong)
}

// until reads frames until one of type typ arrives.
func (tab *playerTab) until(typ websocket.MessageType) websocket.Message {
	tab.t.Helper()
	for {
		if m := tab.read(); m.Type == typ {
			return m
		}
	}
}

// nextCommand reads frames until a media command with op arrives.
func (tab *playerTab) nextCommand(op string) websocket.CommandPayload {
	tab.t.Helper()
	for {
		m := tab.until(websocket.TypeMediaCommand)
		var cmd websocket.CommandPayload
		require.NoError(tab.t, json.Unmarshal(m.Payload, &cmd))
		if cmd.Op == op {
			return cmd
		}
	}
}

func playerState(t *testing.T, env *testEnv) stateBody {
	t.Helper()
	return decode[stateBody](t, env.get(t, "/api/player"))
}

func TestPlayer_WebSocket(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{sermons: sermonFixtures()})

	// Issue the session cookie first.
	env.get(t, "/api/player")

	tab := dialPlayer(t, env)
	conn, read := tab.conn, tab.read

	greet := read()
	require.Equal(t, websocket.TypePlayerState, greet.Type)
	require.Eventually(t, func() bool {
		u, err := url.Parse(env.srv.URL)
		if err != nil {
			return false
		}
		for _, c := range env.client.Jar.Cookies(u) {
			if c.Name == sessionCookie {
				return env.hub.ClientCount(c.Value) == 1
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	resp2 := env.post(t, "/api/player/play", `{"sermon_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var ops []string
	var sawMetadata bool
	for len(ops) < 2 {
		m := read()
		switch m.Type {
		case websocket.TypeMediaCommand:
			var cmd websocket.CommandPayload
			require.NoError(t, json.Unmarshal(m.Payload, &cmd))
			ops = append(ops, cmd.Op)
		case websocket.TypeSessionMetadata:
			sawMetadata = true
		}
	}
	assert.Equal(t, []string{websocket.OpLoad, websocket.OpPlay}, ops)
	assert.True(t, sawMetadata)

	// The system pause control arrives from the tab and routes to toggle.
	require.NoError(t, conn.WriteJSON(websocket.NewMessage(websocket.TypeMediaPause, nil)))
	require.Eventually(t, func() bool {
		r, err := env.client.Get(env.srv.URL + "/api/player")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var st stateBody
		return json.NewDecoder(r.Body).Decode(&st) == nil && st.Status == "paused"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(websocket.NewMessage("bogus", nil)))
	for {
		if m := read(); m.Type == websocket.TypeError {
			break
		}
	}
}

func TestPlayer_StaleMediaReportsIgnored(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{sermons: sermonFixtures()})
	env.get(t, "/api/player")
	tab := dialPlayer(t, env)

	require.Equal(t, http.StatusOK, env.post(t, "/api/player/play", `{"title":"First","src":"https://cdn.example/a.mp3"}`).StatusCode)
	first := tab.nextCommand(websocket.OpPlay)
	assert.Equal(t, tab.id, first.Tab)
	require.NotZero(t, first.Play)

	require.Equal(t, http.StatusOK, env.post(t, "/api/player/play", `{"title":"Second","src":"https://cdn.example/b.mp3"}`).StatusCode)
	second := tab.nextCommand(websocket.OpPlay)
	assert.Greater(t, second.Play, first.Play)

	// The first play() promise rejects after the second source replaced it.
	tab.send(websocket.TypeMediaError, websocket.MediaErrorPayload{Message: "AbortError", Play: first.Play})
	tab.send(websocket.TypeMediaEnded, websocket.MediaEndedPayload{Play: first.Play})
	tab.sync()

	st := playerState(t, env)
	assert.Equal(t, "playing", st.Status)
	require.NotNil(t, st.Track)
	assert.Equal(t, "Second", st.Track.Title)
	assert.Empty(t, st.Error)

	tab.send(websocket.TypeMediaEnded, websocket.MediaEndedPayload{Play: second.Play})
	tab.sync()
	assert.Equal(t, "paused", playerState(t, env).Status)
}

func TestPlayer_LatestTabOwnsAudio(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{sermons: sermonFixtures()})
	env.get(t, "/api/player")

	older := dialPlayer(t, env)
	newer := dialPlayer(t, env)
	require.NotEqual(t, older.id, newer.id)

	// The older tab hears that it no longer owns the audio.
	for {
		m := older.until(websocket.TypeTabActive)
		var p websocket.TabPayload
		require.NoError(t, json.Unmarshal(m.Payload, &p))
		if p.Tab == newer.id {
			break
		}
	}

	require.Equal(t, http.StatusOK, env.post(t, "/api/player/play", `{"sermon_id":"s1"}`).StatusCode)
	for _, tab := range []*playerTab{older, newer} {
		load := tab.nextCommand(websocket.OpLoad)
		assert.Equal(t, "https://cdn.example/s1.mp3", load.Src)
		play := tab.nextCommand(websocket.OpPlay)
		assert.Equal(t, newer.id, play.Tab, "only the newest tab is told to play")
	}

	// Reports from a tab that is not playing are dropped.
	older.send(websocket.TypeMediaError, websocket.MediaErrorPayload{Message: "audio failed to load"})
	older.sync()
	assert.Equal(t, "playing", playerState(t, env).Status)

	// Closing the tab that held the audio pauses the player and hands
	// ownership back.
	require.NoError(t, newer.conn.Close())
	m := older.until(websocket.TypeTabActive)
	var p websocket.TabPayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	assert.Equal(t, older.id, p.Tab)
	require.Eventually(t, func() bool {
		r, err := env.client.Get(env.srv.URL + "/api/player")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var st stateBody
		return json.NewDecoder(r.Body).Decode(&st) == nil && st.Status == "paused"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChat(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, &fakeCMS{})
		resp := env.post(t, "/api/chat", `{"messages":[]}`)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("missing messages", func(t *testing.T) {
		env := newTestEnv(t, &fakeCMS{}, withChat(&fakeGenerator{}))
		for _, body := range []string{`{}`, `{"messages":"hi"}`, `nope`} {
			resp := env.post(t, "/api/chat", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			assert.Equal(t, "Missing messages", readBody(t, resp))
		}
	})

	t.Run("streams the reply", func(t *testing.T) {
		gen := &fakeGenerator{chunks: []string{"Service is ", "at 9am."}}
		env := newTestEnv(t, &fakeCMS{}, withChat(gen))

		resp := env.post(t, "/api/chat", `{"messages":[{"role":"user","content":"When?"},{"role":"user","content":"  "}]}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
		assert.Equal(t, "Service is at 9am.", readBody(t, resp))
		assert.Equal(t, chat.DefaultSystemPrompt, gen.system)
		assert.Equal(t, []chat.Message{{Role: chat.RoleUser, Content: "When?"}}, gen.msgs)
	})

	t.Run("model failure", func(t *testing.T) {
		env := newTestEnv(t, &fakeCMS{}, withChat(&fakeGenerator{err: errors.New("quota")}))
		resp := env.post(t, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Internal server error", readBody(t, resp))
	})
}

func TestAdminRefresh(t *testing.T) {
	t.Run("open without credentials configured", func(t *testing.T) {
		env := newTestEnv(t, &fakeCMS{})
		resp := env.post(t, "/api/admin/refresh", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("basic auth", func(t *testing.T) {
		var calls atomic.Int32
		env := newTestEnv(t, &fakeCMS{}, withBasicAuth("admin", "s3cret"), withRefresh(func(context.Context) error {
			calls.Add(1)
			return nil
		}))

		resp := env.post(t, "/api/admin/refresh", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/admin/refresh", nil)
		require.NoError(t, err)
		req.SetBasicAuth("admin", "s3cret")
		ok, err := env.client.Do(req)
		require.NoError(t, err)
		defer ok.Body.Close()
		assert.Equal(t, http.StatusOK, ok.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("refresh failure", func(t *testing.T) {
		env := newTestEnv(t, &fakeCMS{}, withRefresh(func(context.Context) error { return errors.New("sanity down") }))
		resp := env.post(t, "/api/admin/refresh", "")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestRoutes(t *testing.T) {
	env := newTestEnv(t, &fakeCMS{events: churchEvents(chicago(t))})

	resp := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", readBody(t, resp))

	resp = env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "vhsite_http_requests_total")

	resp = env.get(t, "/api/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errNotFound, decode[ErrorResponse](t, resp).Error)

	resp = env.post(t, "/api/calendar", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = env.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Victory House Chicago")

	resp = env.get(t, "/display")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, `data-ready="true"`)
	assert.Contains(t, page, "June 2025")
	assert.Contains(t, page, "Baptism Sunday")
	assert.NotContains(t, page, "Prayer Breakfast")
}
