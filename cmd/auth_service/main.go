package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth_api/internal/auth"
	"auth_api/internal/config"
	"auth_api/internal/handler"
	"auth_api/internal/images"
	"auth_api/internal/service"
	"auth_api/internal/storage"

	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to yaml config; env only when empty")

	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	out, closeLog := logOutput(cfg.Log.File)
	defer closeLog()

	lgr := setupLogger(cfg.Env, out)
	lgr.Info("starting auth service", slog.String("env", cfg.Env), slog.String("address", cfg.HTTPServer.Address))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//INIT DB
	st, err := setupStorage(ctx, cfg, lgr)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	//INIT IMAGES
	imgs, mediaRoot, err := setupImages(ctx, cfg)
	if err != nil {
		lgr.Error("failed to init image store", slog.Any("error", err))
		os.Exit(1)
	}

	//INIT SERVICE
	tokens := auth.NewTokenIssuer(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL.Duration(), cfg.JWT.RefreshTTL.Duration())
	srvc := service.NewService(st, tokens, lgr)

	h := handler.NewHandler(srvc, tokens, imgs, lgr,
		handler.WithMaxImageSize(cfg.Images.MaxSize),
		handler.WithCORSOrigins(cfg.HTTPServer.CORSOrigins),
		handler.WithMediaRoot(mediaRoot),
		handler.WithHealthCheck(st.Ping),
	)

	//INIT SERVER
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	lgr.Info("server started")

	<-ctx.Done()

	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("failed to shutdown server", slog.Any("error", err))
	}

	lgr.Info("server stopped")
}

func setupStorage(ctx context.Context, cfg *config.Config, lgr *slog.Logger) (storage.Storage, error) {
	if cfg.DB.Driver == "memory" {
		lgr.Warn("using in-memory storage; users are lost on restart")
		return storage.NewMemoryStorage(), nil
	}

	pg, err := storage.NewPostgresStorage(ctx, cfg.DB.DbURL)
	if err != nil {
		return nil, err
	}

	if !cfg.DB.SkipMigrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		lgr.Info("migrations applied")
	}

	return pg, nil
}

// setupImages also returns the directory to serve at /media/images, empty
// when images live outside the process.
func setupImages(ctx context.Context, cfg *config.Config) (images.Store, string, error) {
	if cfg.Images.Backend == "s3" {
		store, err := images.NewS3Store(ctx, images.S3Config{
			Bucket:        cfg.Images.S3Bucket,
			Region:        cfg.Images.S3Region,
			BaseEndpoint:  cfg.Images.S3BaseEndpoint,
			AccessKey:     cfg.Images.S3AccessKey,
			SecretKey:     cfg.Images.S3SecretKey,
			PublicBaseURL: cfg.Images.PublicBaseURL,
		})
		if err != nil {
			return nil, "", err
		}

		return store, "", nil
	}

	store, err := images.NewDiskStore(cfg.Images.Dir, cfg.Images.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}

	return store, store.Root(), nil
}

func logOutput(path string) (io.Writer, func()) {
	if path == "" {
		return os.Stdout, func() {}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}

	return io.MultiWriter(os.Stdout, f), func() { f.Close() }
}

func setupLogger(env string, out io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
