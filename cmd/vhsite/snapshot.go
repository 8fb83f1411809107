package main

import (
	"time"

	"github.com/spf13/cobra"

	"vhsite/internal/capture"
	"vhsite/internal/config"
)

var (
	snapshotURL    string
	snapshotOut    string
	snapshotChrome string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the lobby display page of a running server to PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Listen = listenAddr
		}

		opts := capture.Options{
			URL:        snapshotURL,
			OutputPath: snapshotOut,
			Width:      cfg.Display.Width,
			Height:     cfg.Display.Height,
			Timeout:    time.Minute,
			ExecPath:   snapshotChrome,
		}
		if opts.URL == "" {
			opts.URL = displayURL(cfg.Listen)
		}
		if opts.OutputPath == "" {
			opts.OutputPath = cfg.Display.OutputPath
		}

		ctx, cancel := signalContext()
		defer cancel()
		return capture.DisplayPNG(ctx, opts)
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "", "Page to capture (defaults to /display on the configured listen address)")
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "Output PNG path (defaults to display.output_path)")
	snapshotCmd.Flags().StringVar(&snapshotChrome, "chrome", "", "Chromium binary path")
}
