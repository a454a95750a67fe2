// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/ZSC714725/ytdlmanager/internal/api"
	"github.com/ZSC714725/ytdlmanager/internal/config"
	"github.com/ZSC714725/ytdlmanager/internal/logger"
	"github.com/ZSC714725/ytdlmanager/internal/metrics"
	"github.com/ZSC714725/ytdlmanager/internal/task"
	"github.com/ZSC714725/ytdlmanager/internal/ytdl"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ytdlBin := flag.String("ytdl", "", "Downloader binary path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.New("ytdlmanager", logger.Config{}).Error("load config: %v", err)
			os.Exit(1)
		}
	}

	bindAddr := cfg.Server.Bind
	if *bind != "" {
		bindAddr = *bind
	}
	ytdlPath := cfg.Ytdl.Path
	if *ytdlBin != "" {
		ytdlPath = *ytdlBin
	}

	log := logger.New("ytdlmanager", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	urlValidator, err := ytdl.NewURLValidator(cfg.Ytdl.Allow, cfg.Ytdl.Block)
	if err != nil {
		log.Error("url validator: %v", err)
		os.Exit(1)
	}
	outputValidator, err := ytdl.NewValidator(cfg.Ytdl.OutputAllow, cfg.Ytdl.OutputBlock)
	if err != nil {
		log.Error("output validator: %v", err)
		os.Exit(1)
	}

	dl, err := ytdl.New(ytdl.Config{
		Binary:          ytdlPath,
		FFmpeg:          cfg.Ytdl.FFmpeg,
		MaxLogLines:     cfg.Ytdl.MaxLogLines,
		MaxEvents:       cfg.Ytdl.MaxEvents,
		ValidatorURL:    urlValidator,
		ValidatorOutput: outputValidator,
	})
	if err != nil {
		log.Error("downloader init: %v", err)
		os.Exit(1)
	}
	logSkills(log, dl)

	store := task.NewStore(dl, log)
	handler := api.NewHandler(store, dl)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.Default())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	handler.Register(r.Group("/api/v3"))

	srv := &http.Server{Addr: bindAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("YtdlManager listening on %s", bindAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// SIGHUP 重新探测下载器（升级 yt-dlp 后无需重启）
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := dl.ReloadSkills(); err != nil {
					log.Error("reload skills: %v", err)
					continue
				}
				logSkills(log, dl)
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		for _, t := range store.List(nil, "") {
			if t.IsRunning() {
				if err := store.Stop(t.ID); err != nil {
					log.Error("stop %s: %v", t.ID, err)
				}
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server: %v", err)
		os.Exit(1)
	}
}

func logSkills(log logger.Logger, dl ytdl.Downloader) {
	sk := dl.Skills()
	log.Info("%s %s, %d extractors, ffmpeg %q", sk.Downloader.Name, sk.Downloader.Version, len(sk.Extractors), sk.FFmpeg.Version)
}
