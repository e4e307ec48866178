package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/immxrtalbeast/axenix_call/internal/api/http"
	"github.com/immxrtalbeast/axenix_call/internal/api/ws"
	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/immxrtalbeast/axenix_call/internal/service"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
	"github.com/immxrtalbeast/axenix_call/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "callbroker",
		Short:        "WebRTC call signaling broker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load(".env")

			cfg, err := config.LoadPath(config.ResolvePath(configPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := setupLogger(cfg.Env)

			if err := run(cmd.Context(), cfg, log); err != nil {
				log.Error("broker stopped", sl.Err(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or config/local.yaml)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()

	users, closeDirectory, err := setupDirectory(cfg.Directory)
	if err != nil {
		return fmt.Errorf("open user directory: %w", err)
	}
	defer closeDirectory()

	iceServers := service.ICEServers(cfg.WebRTC)

	presence := service.NewPresenceDirectory(m, log)
	rooms := service.NewRoomRegistry(cfg.Call.InviteTTL, m, log)
	relay := service.NewSignalRelay(rooms, presence, cfg.WebSocket.SendTimeout, m, log)

	var directory service.UserDirectory
	var userController *httpapi.UserController
	if users != nil {
		directory = users
		userController = httpapi.NewUserController(service.NewUserService(users, log))
	}

	signaling := service.NewSignalingService(presence, rooms, relay, directory, iceServers, log)
	calls := service.NewCallCoordinator(presence, rooms, relay, directory, m, log)

	signalingController := httpapi.NewSignalingController(
		signaling,
		cfg.HTTP.AllowedOrigins,
		ws.OptionsFromConfig(cfg.WebSocket),
		m,
		log,
	)
	router := httpapi.SetupRouter(
		httpapi.RouterConfig{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			APIKey:         cfg.HTTP.APIKey,
			Metrics:        m,
		},
		httpapi.NewCallController(calls, rooms, iceServers, log),
		signalingController,
		userController,
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting application",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("env", cfg.Env),
			slog.String("directory", cfg.Directory.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		rooms.Run(gctx, cfg.Call.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by http.Server.
		signalingController.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// setupDirectory returns a nil repository for the "none" driver.
func setupDirectory(cfg config.DirectoryConfig) (repository.UserRepository, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case repository.DriverNone:
		return nil, noop, nil
	case repository.DriverMemory:
		return repository.NewInMemoryUserRepository(), noop, nil
	}

	db, err := repository.OpenDatabase(cfg)
	if err != nil {
		return nil, noop, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, noop, err
	}
	return repository.NewGormUserRepository(db), func() { _ = sqlDB.Close() }, nil
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog(os.Stdout)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog(os.Stdout)
	}

	return log
}

func setupPrettySlog(out io.Writer) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(out)

	return slog.New(handler)
}
