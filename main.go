package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/pyama86/moodcheck/config"
	"github.com/pyama86/moodcheck/handler"
	"github.com/urfave/cli/v3"
)

func main() {
	buildInfo, _ := debug.ReadBuildInfo()

	cmd := &cli.Command{
		Name:           "moodcheck",
		Usage:          "Slack bot that asks the team how they feel and records the answers",
		Version:        buildInfo.Main.Version,
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve Slack webhooks and the cron endpoint",
				Action: serve,
			},
			{
				Name:  "send",
				Usage: "send the check-in prompt once and print the result",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "send even on a weekend",
					},
				},
				Action: send,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("moodcheck failed", slog.Any("err", err))
		stop()
		os.Exit(1)
	}
}

func setup() (*config.Config, *handler.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	initLog(os.Stderr, cfg.Log)

	h, err := handler.NewHandler(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("NewHandler failed: %w", err)
	}
	return cfg, h, nil
}

func serve(ctx context.Context, _ *cli.Command) error {
	_, h, err := setup()
	if err != nil {
		return err
	}

	// 定時送信
	h.StartPromptScheduler(ctx)

	return h.Handle(ctx)
}

func send(ctx context.Context, cmd *cli.Command) error {
	_, h, err := setup()
	if err != nil {
		return err
	}

	summary, err := h.SendPrompt(ctx, cmd.Bool("force"))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func initLog(w io.Writer, cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Level)}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.ToLower(cfg.Format) == "text" {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}
