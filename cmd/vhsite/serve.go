package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"vhsite/internal/capture"
	"vhsite/internal/chat"
	appLog "vhsite/internal/log"
	"vhsite/internal/schedule"
	"vhsite/internal/web"
	"vhsite/internal/websocket"
)

const (
	jobRefresh  = "content-refresh"
	jobSweep    = "player-sweep"
	jobSnapshot = "display-snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and background refresh jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return serve(ctx, rt)
	},
}

func serve(ctx context.Context, rt *runtime) error {
	cfg := rt.cfg
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub()
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	players := web.NewPlayers(hub, cfg.Player)

	var gen chat.Generator
	if cfg.Chat.APIKey != "" {
		g, err := chat.NewGemini(ctx, cfg.Chat.APIKey, cfg.Chat.Model)
		if err != nil {
			appLog.Error("chat disabled", err)
		} else {
			appLog.Info("chat enabled", "model", g.Name())
			gen = g
		}
	}

	sched := schedule.New(2 * time.Minute)
	if err := sched.Add(jobRefresh, cfg.RefreshCron, rt.store.Refresh); err != nil {
		return err
	}
	if err := sched.Add(jobSweep, "@every 5m", func(context.Context) error {
		players.Sweep()
		return nil
	}); err != nil {
		return err
	}
	if cfg.Display.SnapshotCron != "" {
		opts := capture.Options{
			URL:        displayURL(cfg.Listen),
			OutputPath: cfg.Display.OutputPath,
			Width:      cfg.Display.Width,
			Height:     cfg.Display.Height,
		}
		if err := sched.Add(jobSnapshot, cfg.Display.SnapshotCron, func(ctx context.Context) error {
			return capture.DisplayPNG(ctx, opts)
		}); err != nil {
			return err
		}
	}

	// Load content before the first scheduled tick.
	go sched.Trigger(jobRefresh, rt.store.Refresh)
	sched.Start()
	defer sched.Stop()

	srv := web.NewServer(web.Deps{
		Config:   cfg,
		Location: rt.loc,
		Store:    rt.store,
		Players:  players,
		Hub:      hub,
		Chat:     gen,
	})
	err := srv.ListenAndServe(ctx)
	cancel()

	<-hubDone
	appLog.Info("vhsite exiting")
	return err
}
