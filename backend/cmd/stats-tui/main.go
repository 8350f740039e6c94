package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"post-stats-service/backend/internal/client"
	"post-stats-service/backend/internal/config"
	"post-stats-service/backend/internal/eventbus"
	"post-stats-service/backend/internal/likestate"
	"post-stats-service/backend/internal/tui"
	"post-stats-service/backend/internal/widget"
)

func main() {
	configPath := flag.String("config", "", "path to statsConfig.yaml")
	baseURL := flag.String("url", "", "stats server base URL (overrides Client.baseURL)")
	live := flag.Bool("live", false, "follow server pushes over websocket")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <slug> [slug...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	slugs := flag.Args()
	if len(slugs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}

	// 日志写进文件，避免打乱终端界面
	if f, err := os.OpenFile("stats-tui.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := client.NewClient(cfg.Client.BaseURL)
	if err != nil {
		log.Fatalf("init client failed: %v", err)
	}
	likes, err := likestate.OpenFileStore(cfg.Client.LikesPath)
	if err != nil {
		log.Fatalf("open like record failed: %v", err)
	}
	bus := eventbus.New()

	detail := widget.NewInteractive(slugs[0], api, likes, bus)
	tiles := make([]*widget.ReadOnly, 0, len(slugs))
	for _, slug := range slugs {
		tiles = append(tiles, widget.NewReadOnly(slug, api, widget.DefaultStrategies(bus, cfg.RefreshInterval())...))
	}

	if cfg.Client.Live || *live {
		feed := client.NewFeed(api, bus)
		for _, slug := range slugs {
			feed.Start(ctx, slug)
		}
	}

	if err := tui.Run(tui.Options{Context: ctx, Detail: detail, Tiles: tiles}); err != nil {
		log.Fatalf("tui: %v", err)
	}
}
