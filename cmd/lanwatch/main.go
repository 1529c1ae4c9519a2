package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lanwatch/internal/adapter"
	"lanwatch/internal/config"
	"lanwatch/internal/handler"
	"lanwatch/internal/hub"
	"lanwatch/internal/logger"
	"lanwatch/internal/notify"
	"lanwatch/internal/presence"
	"lanwatch/internal/repository"
	"lanwatch/internal/repository/sqlite"
	"lanwatch/internal/service"
	"lanwatch/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search $LANWATCH_CONFIG, ./lanwatch.yaml, ~/.config/lanwatch)")
	once := flag.Bool("once", false, "run a single scan, print the status table and exit")
	logLevel := flag.String("log-level", "", "override log level (trace, debug, info, warn, error)")
	flag.Parse()

	if err := run(*configPath, *once, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "lanwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool, logLevel string) error {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	if path == "" {
		log.Info().Msg("no config file found, using defaults")
	} else {
		log.Info().Str("path", path).Msg("config loaded")
	}
	log.Info().Msg(cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	classifier, err := presence.NewClassifier(cfg.Thresholds())
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	registry := presence.NewRegistry(classifier)

	names, err := cfg.DeviceNames()
	if err != nil {
		return err
	}

	scanner, err := adapter.New(cfg.Scan, log)
	if err != nil {
		return err
	}
	if err := scanner.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", scanner.Name(), err)
	}
	defer scanner.Stop()

	notifiers, err := notify.FromConfig(cfg.Notify, log)
	if err != nil {
		log.Warn().Err(err).Msg("some notifiers are unavailable")
	}
	bus := service.NewEventBus()
	dispatcher := notify.NewDispatcher(log, notifiers,
		notify.WithNames(names),
		notify.WithOnlyKnown(cfg.Notify.OnlyKnown),
		notify.WithConcurrency(cfg.Notify.Concurrency),
		notify.WithDeliveryTimeout(cfg.Notify.Timeout.Duration()),
	)
	dispatcher.AddNotifier(service.NewBusNotifier(bus))
	defer dispatcher.Close()

	opts := []service.MonitorOption{service.WithInterval(cfg.Scan.Interval.Duration())}
	if cfg.Report.Enabled || once {
		opts = append(opts, service.WithReport(os.Stdout))
	}

	store, err := openStore(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, service.WithStore(store))
	}

	monitor := service.NewMonitor(registry, scanner, dispatcher, bus, log, opts...)
	if _, err := monitor.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("starting without stored state")
	}

	if once {
		_, err := monitor.RunCycle(ctx)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	if path != "" {
		reloader := watcher.NewDeviceNames(path, dispatcher, log)
		g.Go(func() error {
			if err := reloader.Run(gctx); err != nil {
				log.Warn().Err(err).Msg("config watcher stopped, device names will not reload")
			}
			return nil
		})
	}

	if cfg.HTTP.Addr != "" {
		startHTTP(gctx, g, cfg.HTTP.Addr, monitor, bus, log)
	}

	log.Info().Strs("notifiers", dispatcher.Notifiers()).Msg("lanwatch running")
	err = g.Wait()
	log.Info().Msg("lanwatch stopped")
	return err
}

func openStore(path string, log zerolog.Logger) (repository.StateStore, error) {
	if path == "" {
		return nil, nil
	}
	if err := config.EnsureConfigDir(path); err != nil {
		return nil, fmt.Errorf("database directory: %w", err)
	}
	repo, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("database opened")
	return repo, nil
}

func startHTTP(ctx context.Context, g *errgroup.Group, addr string, monitor *service.Monitor, bus *service.EventBus, log zerolog.Logger) {
	sseHub := hub.New(log)
	g.Go(func() error {
		sseHub.Run(ctx)
		return nil
	})

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	bus.Subscribe(eventChan)
	g.Go(func() error {
		for {
			select {
			case event := <-eventChan:
				sseHub.Broadcast(event)
			case <-ctx.Done():
				return nil
			}
		}
	})

	mux := http.NewServeMux()
	handler.NewPresenceHandler(monitor, log).RegisterRoutes(mux, sseHub)

	server := &http.Server{
		Addr: addr,
		Handler: handler.Chain(mux,
			handler.Recover(log),
			handler.CORS,
			handler.Logger(log),
		),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server shutdown error")
		}
		return nil
	})
}
