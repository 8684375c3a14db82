package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ErenAtasun/MaskHeist/internal/config"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/httpapi"
	"github.com/ErenAtasun/MaskHeist/internal/hub"
	"github.com/ErenAtasun/MaskHeist/internal/logging"
	"github.com/ErenAtasun/MaskHeist/internal/roles"
	"github.com/ErenAtasun/MaskHeist/internal/session"
	"github.com/ErenAtasun/MaskHeist/internal/spawn"
	"github.com/ErenAtasun/MaskHeist/internal/store"
	"github.com/ErenAtasun/MaskHeist/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var (
		recorder session.Recorder = store.Nop{}
		history  httpapi.History  = store.Nop{}
	)
	if cfg.DatabaseURL != "" {
		db, openErr := store.Open(ctx, cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, store.Close(db)) }()
		rec := store.NewGormRecorder(db)
		recorder, history = rec, rec
	} else {
		log.Info("no database configured, round history disabled")
	}

	factory := func(ctx context.Context, code string) (*session.Session, error) {
		spawns, err := newSpawns(cfg.Game)
		if err != nil {
			return nil, err
		}
		return session.New(ctx, session.Options{
			Code:     code,
			Config:   cfg.Game,
			Log:      log,
			Spawns:   spawns,
			Recorder: recorder,
		})
	}
	// The hub outlives the signal context so sessions can be closed in order.
	h := hub.NewHub(context.WithoutCancel(ctx), factory, log)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:     h,
			History: history,
			WS: ws.Options{
				OutboxSize:     cfg.OutboxSize,
				Log:            log,
				OriginPatterns: cfg.OriginPatterns,
				AutoCreate:     cfg.AutoCreate,
			},
			Log: log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(srv.Shutdown(sctx), h.Shutdown(sctx))
	})
	return g.Wait()
}

// newSpawns builds one session's spawn points; round robin state is per
// session.
func newSpawns(g config.Game) (*spawn.Points, error) {
	seed, err := roles.NewSeed()
	if err != nil {
		return nil, err
	}
	points := spawn.New(spawn.Mode(g.SpawnMode), g.SpawnFallback.Engine(), rand.New(rand.NewSource(seed)))
	for _, p := range g.HiderSpawns {
		points.Register(engine.RoleHider, p.Engine())
	}
	for _, p := range g.SeekerSpawns {
		points.Register(engine.RoleSeeker, p.Engine())
	}
	return points, nil
}
