package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"taeu.kr/filebox/internal/app"
	"taeu.kr/filebox/internal/config"
)

var goEnv string = "development"

const shutdownTimeout = 10 * time.Second

func main() {
	setupLogger(goEnv, "info")

	configDir := os.Getenv("FILEBOX_CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	if err := config.SetConfig(goEnv, configDir); err != nil {
		log.Fatal().Err(err).Msg("[Main] failed to load configuration")
	}
	setupLogger(goEnv, config.Conf.Log.Level)

	log.Info().Str("environment", goEnv).Msg("[Main] Starting Server...")

	application, err := app.New(config.Conf)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] failed to initialize application")
	}
	defer application.Close()

	if err := application.Accounts.EnsureDefaultAdmin(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("[Main] failed to ensure default administrator")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, ":"+config.Conf.Server.Port, application.Routes()); err != nil {
		log.Fatal().Err(err).Msg("[Main] server failed")
	}
	log.Info().Msg("[Main] server stopped")
}

// run은 ctx가 끝날 때까지 서버를 실행하고 진행 중인 요청을 기다린 뒤 종료합니다
func run(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("[Main] Server is running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func setupLogger(env, level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if env == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}
