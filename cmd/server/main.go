package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	router "github.com/skatehub/gateway/internal/adapters/http"
	"github.com/skatehub/gateway/internal/adapters/identity"
	wssignal "github.com/skatehub/gateway/internal/adapters/signal"
	"github.com/skatehub/gateway/internal/app"
	"github.com/skatehub/gateway/internal/app/admission"
	"github.com/skatehub/gateway/internal/app/auth"
	"github.com/skatehub/gateway/internal/app/orch"
	"github.com/skatehub/gateway/internal/config"
	"github.com/skatehub/gateway/internal/metrics"
)

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Log)

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("gateway stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	var users auth.UserLookup
	if cfg.Database.URL != "" {
		pool, err := identity.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		users = identity.NewPostgresUsers(pool)
	} else {
		dir := identity.NewDirectory()
		dir.Provision = cfg.Mode != "release"
		users = dir
		log.Warn().Str("module", "main").Bool("provision", dir.Provision).Msg("no database configured, using in-memory users")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := metrics.New(reg)

	conns := app.NewConnections()
	rooms := app.NewRoomRegistry(cfg.Rooms.CapacityTable(), conns,
		app.WithPolicy(app.PolicyByName(cfg.Rooms.Backpressure)),
		app.WithSweepInterval(cfg.Rooms.SweepInterval),
		app.WithBroadcastObserver(m),
	)
	m.WatchRooms(rooms, conns)

	limiter := admission.NewLimiter(cfg.RateLimit.Ceiling, cfg.RateLimit.Window)
	authn := auth.New(limiter,
		identity.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience),
		users,
		auth.WithObserver(m),
	)

	o := orch.New(rooms, orch.WithLobby(cfg.Rooms.Lobby))
	ctl := wssignal.NewSignalWSController(o, authn, wssignal.Options{
		ReadLimit:  cfg.WS.ReadLimit,
		PingPeriod: cfg.WS.PingPeriod,
		PongWait:   cfg.WS.PongWait,
		WriteWait:  cfg.WS.WriteWait,
		SendBuffer: cfg.WS.SendBuffer,
		EventRate:  rate.Limit(cfg.Events.Rate),
		EventBurst: cfg.Events.Burst,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(router.SetupRouter(ctx, cfg, ctl, rooms, reg))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("gateway started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		rooms.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		conns.CancelAll()
		ctl.Wait()
		return err
	})
	return g.Wait()
}
