package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SanityConfig points at the headless CMS project that owns events,
// sermons, series and testimonies.
type SanityConfig struct {
	ProjectID  string `yaml:"project_id" json:"project_id"`
	Dataset    string `yaml:"dataset" json:"dataset"`
	APIVersion string `yaml:"api_version" json:"api_version"`
	// UseCDN selects the apicdn host. Tokens are ignored by the CDN, so it
	// should stay false for private datasets.
	UseCDN bool `yaml:"use_cdn" json:"use_cdn"`
	// Token is a read token; usually supplied via VHSITE_SANITY_TOKEN.
	Token string `yaml:"token,omitempty" json:"-"`
}

// FeedConfig describes a partner ICS subscription merged into the calendar.
type FeedConfig struct {
	URL      string `yaml:"url" json:"url"`
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Category string `yaml:"category" json:"category"`
}

// ServiceConfig is a recurring service time, e.g. the Sunday 9am service.
type ServiceConfig struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Location string `yaml:"location" json:"location"`
	// Start is a local date-time in Timezone ("2006-01-02T15:04:05").
	Start string `yaml:"start" json:"start"`
	// DurationMinutes defaults to 90.
	DurationMinutes int `yaml:"duration_minutes" json:"duration_minutes"`
	// RRule is an RFC 5545 rule without the "RRULE:" prefix.
	RRule string `yaml:"rrule" json:"rrule"`
}

// PlayerConfig holds the now-playing defaults surfaced to media sessions.
type PlayerConfig struct {
	DefaultSpeaker string `yaml:"default_speaker" json:"default_speaker"`
	DefaultArtwork string `yaml:"default_artwork" json:"default_artwork"`
	Album          string `yaml:"album" json:"album"`
	// SessionTTLMinutes is how long an untouched visitor player survives.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`
}

// ChatConfig configures the assistant proxied at /api/chat.
type ChatConfig struct {
	Model        string `yaml:"model" json:"model"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
	// APIKey is usually supplied via VHSITE_GENAI_API_KEY or GEMINI_API_KEY.
	APIKey string `yaml:"api_key,omitempty" json:"-"`
}

// DisplayConfig controls the lobby display snapshot.
type DisplayConfig struct {
	// SnapshotCron, if set, captures /display on this schedule.
	SnapshotCron string `yaml:"snapshot_cron" json:"snapshot_cron"`
	OutputPath   string `yaml:"output_path" json:"output_path"`
	Width        int    `yaml:"width" json:"width"`
	Height       int    `yaml:"height" json:"height"`
}

// BasicAuthConfig protects the admin endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for every calendar-day comparison.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the content refresh schedule. Seconds are not used;
	// descriptors such as "@every 60s" are accepted.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// UpcomingLimit is N in the "next N events" view.
	UpcomingLimit int `yaml:"upcoming_limit" json:"upcoming_limit"`

	// HorizonDays bounds recurring expansion into the future; BackfillDays
	// into the past so that earlier days of the visible month keep markers.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Sanity   SanityConfig    `yaml:"sanity" json:"sanity"`
	Feeds    []FeedConfig    `yaml:"feeds" json:"feeds"`
	Services []ServiceConfig `yaml:"services" json:"services"`
	Player   PlayerConfig    `yaml:"player" json:"player"`
	Chat     ChatConfig      `yaml:"chat" json:"chat"`
	Display  DisplayConfig   `yaml:"display" json:"display"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on /api/admin.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "America/Chicago"
	defaultRefresh      = "@every 60s"
	defaultAPIVersion   = "2024-01-01"
	defaultDataset      = "production"
	defaultChatModel    = "gemini-2.0-flash"
	defaultSpeaker      = "Victory House"
	defaultArtwork      = "/rccg.png"
	defaultAlbum        = "Victory Chapel Sermons"
	defaultSnapshotPath = "./cache/display.png"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      defaultTimezone,
		WeekStart:     "sunday",
		RefreshCron:   defaultRefresh,
		UpcomingLimit: 3,
		HorizonDays:   120,
		BackfillDays:  45,
		LogLevel:      "info",
		CacheDir:      "./cache/http",
		Sanity: SanityConfig{
			Dataset:    defaultDataset,
			APIVersion: defaultAPIVersion,
			UseCDN:     true,
		},
		Feeds: []FeedConfig{},
		Services: []ServiceConfig{
			{ID: "sunday-bethel", Title: "Bethel Service", Start: "2025-01-05T09:00:00", RRule: "FREQ=WEEKLY;BYDAY=SU"},
			{ID: "sunday-word", Title: "Word Service", Start: "2025-01-05T10:30:00", RRule: "FREQ=WEEKLY;BYDAY=SU"},
			{ID: "sunday-victory", Title: "Victory House Service", Start: "2025-01-05T11:00:00", RRule: "FREQ=WEEKLY;BYDAY=SU"},
		},
		Player: PlayerConfig{
			DefaultSpeaker:    defaultSpeaker,
			DefaultArtwork:    defaultArtwork,
			Album:             defaultAlbum,
			SessionTTLMinutes: 120,
		},
		Chat: ChatConfig{
			Model: defaultChatModel,
		},
		Display: DisplayConfig{
			OutputPath: defaultSnapshotPath,
			Width:      1920,
			Height:     1080,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = 3
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 120
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache/http"
	}
	if c.Sanity.Dataset == "" {
		c.Sanity.Dataset = defaultDataset
	}
	if c.Sanity.APIVersion == "" {
		c.Sanity.APIVersion = defaultAPIVersion
	}
	c.Sanity.APIVersion = strings.TrimPrefix(c.Sanity.APIVersion, "v")
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Services {
		if c.Services[i].DurationMinutes <= 0 {
			c.Services[i].DurationMinutes = 90
		}
	}
	if c.Player.DefaultSpeaker == "" {
		c.Player.DefaultSpeaker = defaultSpeaker
	}
	if c.Player.DefaultArtwork == "" {
		c.Player.DefaultArtwork = defaultArtwork
	}
	if c.Player.Album == "" {
		c.Player.Album = defaultAlbum
	}
	if c.Player.SessionTTLMinutes <= 0 {
		c.Player.SessionTTLMinutes = 120
	}
	if c.Chat.Model == "" {
		c.Chat.Model = defaultChatModel
	}
	if c.Display.OutputPath == "" {
		c.Display.OutputPath = defaultSnapshotPath
	}
	if c.Display.Width <= 0 {
		c.Display.Width = 1920
	}
	if c.Display.Height <= 0 {
		c.Display.Height = 1080
	}
}

// applyEnvOverrides lets secrets live outside the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VHSITE_SANITY_TOKEN"); v != "" {
		c.Sanity.Token = v
	}
	if v := os.Getenv("VHSITE_SANITY_PROJECT"); v != "" {
		c.Sanity.ProjectID = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Chat.APIKey = v
	}
	// The service-specific variable wins over the generic one.
	if v := os.Getenv("VHSITE_GENAI_API_KEY"); v != "" {
		c.Chat.APIKey = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
//
// Environment overrides are applied after the file in both cases and are
// never written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				cfg.applyEnvOverrides()
				return cfg, err
			}
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".vhsite-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
