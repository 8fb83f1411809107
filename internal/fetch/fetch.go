// Package fetch performs conditional HTTP GETs backed by a disk cache so
// that an unreachable upstream degrades to the last good response.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "vhsite/internal/log"
)

// Request names one upstream resource.
type Request struct {
	// ID is used only for logging.
	ID string
	// URL is the resource; it is also the cache key.
	URL string
	// Header is added to the outgoing request (e.g. Authorization).
	Header http.Header
}

// Result contains the outcome of one Get.
type Result struct {
	Request   Request
	Body      []byte
	FromCache bool // true if the cached body was served (304 or fallback)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Getter fetches URLs honoring ETag / Last-Modified with a per-URL disk
// cache under cacheDir.
type Getter struct {
	client   *http.Client
	cacheDir string
}

// Option configures a Getter.
type Option func(*Getter)

// WithClient replaces the default 15s-timeout client.
func WithClient(c *http.Client) Option {
	return func(g *Getter) {
		if c != nil {
			g.client = c
		}
	}
}

// NewGetter creates a Getter. An empty cacheDir falls back to a relative
// directory so development runs need no special permissions.
func NewGetter(cacheDir string, opts ...Option) *Getter {
	if cacheDir == "" {
		cacheDir = "./cache/http"
	}
	g := &Getter{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// StatusError is returned for non-2xx responses with no cached fallback.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "fetch: unexpected status " + e.Status
}

// Get fetches req.URL. On a network error or a non-OK status it serves the
// cached body when one exists.
func (g *Getter) Get(ctx context.Context, req Request) (Result, error) {
	if req.URL == "" {
		return Result{}, errors.New("fetch: URL is empty")
	}

	cachePath := g.cachePathForURL(req.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, fmt.Errorf("fetch: cache dir: %w", err)
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := loadCacheBody(cachePath)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{}, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			httpReq.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			httpReq.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("fetch start", "id", req.ID, "url", RedactURL(req.URL))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("fetch network error, using cached body", err, "id", req.ID, "url", RedactURL(req.URL))
			return Result{Request: req, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Result{}, readErr
		}

		newMeta := cacheEntry{
			URL:          req.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("fetch cache save failed", err, "id", req.ID, "url", RedactURL(req.URL))
		}

		appLog.Debug("fetch success", "id", req.ID, "url", RedactURL(req.URL), "bytes", len(body))
		return Result{Request: req, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, errors.New("fetch: 304 Not Modified but no cached body available")
		}
		appLog.Debug("fetch not modified; using cache", "id", req.ID, "url", RedactURL(req.URL))
		return Result{Request: req, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("fetch non-OK, using cached body", errors.New(resp.Status), "id", req.ID, "url", RedactURL(req.URL), "status", resp.StatusCode)
			return Result{Request: req, Body: cachedBody, FromCache: true}, nil
		}
		return Result{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}

func (g *Getter) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(g.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL keeps only scheme and host so tokens and private paths never
// reach the log.
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
