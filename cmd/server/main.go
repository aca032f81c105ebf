package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andy6609/roomchat/internal/chat"
	"github.com/andy6609/roomchat/internal/config"
	"github.com/andy6609/roomchat/internal/journal"
	"github.com/andy6609/roomchat/internal/transport"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var recorder chat.Recorder
	var jr *journal.Redis
	if cfg.Redis.Enabled() {
		jr, err = journal.NewRedis(journal.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			StreamMaxLen: cfg.Redis.StreamMaxLen,
		}, logger)
		if err != nil {
			logger.Warn("activity journal disabled", "error", err)
		} else {
			go jr.Run(ctx)
			recorder = jr
		}
	}

	srv := chat.NewServer(chat.Options{
		Addr:        cfg.ChatAddr,
		MaxTextSize: cfg.MaxTextSize,
		Recorder:    recorder,
		Session: chat.SessionOptions{
			OutboundBuffer: cfg.OutboundBuffer,
			RateBurst:      cfg.RateLimit.Burst,
			RateInterval:   cfg.RateLimit.RefillInterval,
		},
	}, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = transport.NewHTTPServer(cfg.HTTPAddr, transport.NewGateway(srv, logger))
		go func() {
			logger.Info("http gateway started", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http gateway failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if httpServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http gateway shutdown", "error", err)
		}
		stop()
	}
	if err := srv.Stop(cfg.ShutdownTimeout); err != nil {
		logger.Warn("server stop", "error", err)
	}

	cancel()
	if jr != nil {
		if err := jr.Close(); err != nil {
			logger.Warn("journal close", "error", err)
		}
	}
}
