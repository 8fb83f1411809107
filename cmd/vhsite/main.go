package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vhsite/internal/cms"
	"vhsite/internal/config"
	"vhsite/internal/content"
	"vhsite/internal/fetch"
	"vhsite/internal/ics"
	appLog "vhsite/internal/log"
)

const version = "0.3.0"

var (
	configPath string
	listenAddr string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "vhsite",
	Short: "Victory House Chicago website server",
	Long: `vhsite serves the church website API: the event calendar merged from
the CMS, service times and partner feeds, sermons with the site-wide audio
player, the chat assistant and the lobby display page.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLog.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")

	rootCmd.AddCommand(serveCmd, snapshotCmd, upcomingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime is the shared state every subcommand starts from.
type runtime struct {
	cfg   *config.Config
	loc   *time.Location
	store *content.Store
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", configPath)
		return nil, err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	getter := fetch.NewGetter(cfg.CacheDir)

	var source content.CMS
	if cfg.Sanity.ProjectID != "" {
		client, err := cms.NewClient(cfg.Sanity, getter, cms.WithDefaultSpeaker(cfg.Player.DefaultSpeaker))
		if err != nil {
			return nil, err
		}
		source = client
	} else {
		appLog.Warn("sanity project not configured; serving service times and partner feeds only")
	}

	feeds := make([]ics.Feed, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		feeds = append(feeds, ics.FeedFromConfig(fc))
	}

	store := content.NewStore(source, content.Options{
		Location:     loc,
		Services:     cfg.Services,
		Feeds:        feeds,
		Getter:       getter,
		HorizonDays:  cfg.HorizonDays,
		BackfillDays: cfg.BackfillDays,
	})

	appLog.Info("effective config",
		"version", version,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"services", len(cfg.Services),
		"feeds", len(feeds),
		"sanity_project", cfg.Sanity.ProjectID,
		"chat_enabled", cfg.Chat.APIKey != "",
	)
	return &runtime{cfg: cfg, loc: loc, store: store}, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// displayURL is the lobby page on the local server.
func displayURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/display"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/display"
}
