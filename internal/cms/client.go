// Package cms queries the Sanity content lake and turns its loosely typed
// documents into validated model records.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vhsite/internal/config"
	"vhsite/internal/fetch"
	appLog "vhsite/internal/log"
	"vhsite/internal/model"
)

// Client runs GROQ queries over the Sanity HTTP API.
type Client struct {
	getter         *fetch.Getter
	baseURL        string
	apiVersion     string
	dataset        string
	token          string
	defaultSpeaker string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the project host, e.g. for a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithDefaultSpeaker sets the preacher used when a sermon has none.
func WithDefaultSpeaker(name string) Option {
	return func(c *Client) { c.defaultSpeaker = name }
}

// NewClient builds a client for cfg. it fails when no project is configured
// and no base URL override is given.
func NewClient(cfg config.SanityConfig, getter *fetch.Getter, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("cms: getter is nil")
	}
	c := &Client{
		getter:     getter,
		apiVersion: strings.TrimPrefix(cfg.APIVersion, "v"),
		dataset:    cfg.Dataset,
		token:      cfg.Token,
	}
	if cfg.ProjectID != "" {
		host := "api.sanity.io"
		if cfg.UseCDN {
			host = "apicdn.sanity.io"
		}
		c.baseURL = "https://" + cfg.ProjectID + "." + host
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, errors.New("cms: sanity project_id is not configured")
	}
	if c.dataset == "" {
		return nil, errors.New("cms: sanity dataset is not configured")
	}
	return c, nil
}

// queryResponse is the Sanity query envelope.
type queryResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"error,omitempty"`
}

// Query runs groq and decodes the result into out. A null result leaves
// out untouched.
func (c *Client) Query(ctx context.Context, id, groq string, out any) error {
	req := fetch.Request{ID: id, URL: c.queryURL(groq)}
	if c.token != "" {
		req.Header = http.Header{"Authorization": {"Bearer " + c.token}}
	}

	res, err := c.getter.Get(ctx, req)
	if err != nil {
		return fmt.Errorf("cms: query %s: %w", id, err)
	}

	var env queryResponse
	if err := json.Unmarshal(res.Body, &env); err != nil {
		return fmt.Errorf("cms: query %s: decode envelope: %w", id, err)
	}
	if env.Error != nil {
		return fmt.Errorf("cms: query %s: %s: %s", id, env.Error.Type, env.Error.Description)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("cms: query %s: decode result: %w", id, err)
	}
	return nil
}

func (c *Client) queryURL(groq string) string {
	return fmt.Sprintf("%s/v%s/data/query/%s?query=%s",
		c.baseURL, c.apiVersion, url.PathEscape(c.dataset), url.QueryEscape(strings.TrimSpace(groq)))
}

// Events returns every valid event, ascending by date in fetch order.
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	var raw []rawEvent
	if err := c.Query(ctx, "events", eventsQuery, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(raw))
	for _, r := range raw {
		ev, err := r.toModel()
		if err != nil {
			appLog.Warn("cms: dropping event", "id", r.ID, "reason", err.Error())
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Sermons returns every valid sermon, newest first.
func (c *Client) Sermons(ctx context.Context) ([]model.Sermon, error) {
	var raw []rawSermon
	if err := c.Query(ctx, "sermons", sermonsQuery, &raw); err != nil {
		return nil, err
	}
	return c.sermons(raw), nil
}

// CurrentSeries returns the featured series, or nil when none is flagged.
func (c *Client) CurrentSeries(ctx context.Context) (*model.Series, error) {
	var raw *rawSeries
	if err := c.Query(ctx, "series", currentSeriesQuery, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	s := &model.Series{
		ID:            raw.ID,
		Title:         raw.Title,
		Subtitle:      raw.Subtitle,
		Description:   raw.Description,
		CoverURL:      raw.CoverURL,
		RecentSermons: c.sermons(raw.RecentSermons),
	}
	for i := range s.RecentSermons {
		if s.RecentSermons[i].SeriesTitle == "" {
			s.RecentSermons[i].SeriesTitle = s.Title
		}
		if s.RecentSermons[i].ImageURL == "" {
			s.RecentSermons[i].ImageURL = s.CoverURL
		}
	}
	return s, nil
}

// Testimonies returns valid testimonies, newest first.
func (c *Client) Testimonies(ctx context.Context) ([]model.Testimony, error) {
	var raw []rawTestimony
	if err := c.Query(ctx, "testimonies", testimoniesQuery, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Testimony, 0, len(raw))
	for _, r := range raw {
		t, err := r.toModel()
		if err != nil {
			appLog.Warn("cms: dropping testimony", "id", r.ID, "reason", err.Error())
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) sermons(raw []rawSermon) []model.Sermon {
	out := make([]model.Sermon, 0, len(raw))
	for _, r := range raw {
		s, err := r.toModel(c.defaultSpeaker)
		if err != nil {
			appLog.Warn("cms: dropping sermon", "id", r.ID, "reason", err.Error())
			continue
		}
		out = append(out, s)
	}
	return out
}
