package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/alerting"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/config"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/fetcher"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/httpapi"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/scheduler"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/service"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives tables and reports.
	Out io.Writer

	now func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logging.Component(logger, "app"),
		Out:    os.Stdout,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *App) retryPolicy() fetcher.RetryPolicy {
	return fetcher.RetryPolicy{
		MaxRetries: a.Config.Sheets.MaxRetries,
		Base:       a.Config.Sheets.RetryBase,
		Jitter:     a.Config.Sheets.RetryJitter,
	}
}

func (a *App) newSheets() *fetcher.Sheets {
	cfg := a.Config.Sheets
	return fetcher.NewSheets(fetcher.SheetsOptions{
		DocsBaseURL: cfg.DocsBaseURL,
		APIBaseURL:  cfg.APIBaseURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.RequestTimeout,
		UserAgent:   cfg.UserAgent,
		Retry:       a.retryPolicy(),
	}, a.Logger)
}

func (a *App) newBackend() *fetcher.Backend {
	cfg := a.Config.Backend
	return fetcher.NewBackend(fetcher.BackendOptions{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.RequestTimeout,
		UserAgent: a.Config.Sheets.UserAgent,
		PageSize:  cfg.PageSize,
		Retry:     a.retryPolicy(),
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// runtime is one fully wired service.
type runtime struct {
	svc      *service.Service
	registry *prometheus.Registry
	close    func()
}

type buildOptions struct {
	persist   bool
	scheduler *scheduler.Scheduler
	backend   fetcher.BackendFetcher
	notifier  alerting.Notifier
}

func (a *App) build(ctx context.Context, opts buildOptions) (*runtime, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := service.Deps{
		Sheets:    a.newSheets(),
		Backend:   opts.backend,
		Notifier:  opts.notifier,
		Scheduler: opts.scheduler,
		Metrics:   service.NewMetrics(reg),
		Now:       a.now,
	}
	if deps.Backend == nil && a.Config.Backend.BaseURL != "" {
		deps.Backend = a.newBackend()
	}
	if deps.Notifier == nil {
		if n := a.newNotifier(); n != nil {
			deps.Notifier = n
		}
	}

	rt := &runtime{registry: reg, close: func() {}}
	if opts.persist {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		if store == nil {
			a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
		} else {
			deps.Records = store
			deps.Snapshots = store
			deps.Alerts = store
			deps.Locker = store
			rt.close = closeStore
		}
	}

	rt.svc = service.New(a.Config, deps, a.Logger)
	reg.MustRegister(service.NewCacheCollector(rt.svc))
	return rt, nil
}

// RunOptions configure the run command.
type RunOptions struct {
	// Serve also exposes the read API on http.addr.
	Serve bool
}

// Run executes the long-running refresh service.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Immediate:    true,
	}, a.Logger)
	if err != nil {
		return err
	}

	rt, err := a.build(ctx, buildOptions{persist: true, scheduler: sched})
	if err != nil {
		return err
	}
	defer rt.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.svc.Run(gctx) })
	if opts.Serve {
		g.Go(func() error { return a.serveHTTP(gctx, rt) })
	}

	a.Logger.Info().Strs("sources", rt.svc.SourceNames()).Bool("serve", opts.Serve).Msg("starting refresh service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh service stopped")
	return nil
}

// Serve exposes the read API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := a.build(ctx, buildOptions{persist: true})
	if err != nil {
		return err
	}
	defer rt.close()
	return a.serveHTTP(ctx, rt)
}

func (a *App) serveHTTP(ctx context.Context, rt *runtime) error {
	cfg := a.Config.HTTP
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(rt.svc, rt.registry, a.Logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.Logger.Info().Str("addr", cfg.Addr).Msg("http api listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		a.Logger.Info().Msg("http api stopped")
		return nil
	}
}
