package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-carousel/internal/carousel"
	"service-carousel/internal/eventloop"
	"service-carousel/internal/platform/config"
	"service-carousel/internal/platform/logger"
	"service-carousel/internal/platform/metrics"
	"service-carousel/internal/poller"
	"service-carousel/internal/render"
	"service-carousel/internal/web"
	"service-carousel/internal/worker"

	"github.com/go-chi/chi/v5"
)

const (
	shutdownTimeout = 10 * time.Second
	attachTimeout   = 5 * time.Second
)

func main() {
	_ = config.Load()

	cfg, err := config.LoadFile(config.GetEnv("CAROUSEL_CONFIG", ""))
	if err != nil {
		logger.New("error", "json", os.Stderr).Error("config error", "error", err)
		os.Exit(1)
	}
	cfg = config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		logger.New("error", "json", os.Stderr).Error("config error", "error", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		fw := logger.FileWriter(cfg.LogFile)
		defer fw.Close()
		out = fw
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, out)

	loop := eventloop.New(eventloop.DefaultQueueSize)
	defer loop.Close()

	met := metrics.New()
	svc := carousel.NewService(loop, log, carousel.Options{
		Interval: cfg.RotationInterval,
		Spacing:  cfg.ServiceSpacing,
		Metrics:  met,
	})
	h := carousel.NewHandler(svc, log, cfg.MaxChunkBytes)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log, "/metrics"))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			if n, err := svc.ServiceCount(r.Context()); err == nil {
				met.SetServices(n)
			}
			if st, err := svc.Animation(r.Context()); err == nil {
				met.SetRunning(st.Running)
			}
		}).ServeHTTP(w, r)
	})
	h.Mount(r)

	// quit is closed by the terminal renderer when the user leaves it.
	quit := make(chan struct{})

	switch cfg.Renderer {
	case config.RendererWebSocket:
		hub := render.NewHub(log, met)
		defer hub.Close()
		r.Handle("/ws", hub)
		r.Handle("/*", web.Handler())
		attach(svc, hub, log)
	case config.RendererTerminal:
		term, err := render.NewTerminal(nil)
		if err != nil {
			log.Error("terminal init failed", "error", err)
			os.Exit(1)
		}
		defer term.Close()
		attach(svc, term, log)
		go term.Run(func() { close(quit) })
	}

	var p *poller.Poller
	if cfg.SourceURL != "" {
		autoStart := cfg.AutoStart && cfg.RotationMode == config.RotationInternal
		p = poller.New(cfg.SourceURL, cfg.PollInterval, cfg.MaxChunkBytes, autoStart, svc, log)
		p.Start()
	}

	var driver *worker.Driver
	if cfg.RotationMode == config.RotationExternal {
		driver = worker.New(svc, cfg.RotationInterval, log)
		driver.Start()
	}

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"renderer", cfg.Renderer,
		"rotation_mode", cfg.RotationMode,
		"rotation_interval", cfg.RotationInterval.String(),
		"source_url", cfg.SourceURL,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received, draining connections")
	case <-quit:
		log.Info("terminal closed, shutting down")
	}

	if driver != nil {
		driver.Stop()
	}
	if p != nil {
		p.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Stop(ctx); err != nil {
		log.Warn("stop rotation failed", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func attach(svc *carousel.Service, rd render.Renderer, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), attachTimeout)
	defer cancel()
	if err := svc.AttachRenderer(ctx, rd); err != nil {
		log.Error("attach renderer failed", "error", err)
		os.Exit(1)
	}
}
