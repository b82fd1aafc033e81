package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfryman/vestaboard-mqtt/internal/board"
	"github.com/jfryman/vestaboard-mqtt/internal/config"
	"github.com/jfryman/vestaboard-mqtt/internal/httpapi"
	"github.com/jfryman/vestaboard-mqtt/internal/mqttbridge"
)

func main() {
	// Flags with environment variable defaults
	defaultConfig := os.Getenv("VESTABOARD_MQTT_CONFIG")
	configPath := flag.String("config", defaultConfig, "Path to config file (.toml/.yaml/.json); env vars overlay it")
	logLevel := flag.String("log-level", "", "Override log level (debug|info|warn|error)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info().Msg("configuration loaded")

	display, err := board.New(board.Options{
		APIKey:      cfg.Vestaboard.APIKey,
		LocalAPIKey: cfg.Vestaboard.LocalAPIKey,
		UseLocalAPI: cfg.Vestaboard.UseLocalAPI,
		LocalHost:   cfg.Vestaboard.LocalHost,
		LocalPort:   cfg.Vestaboard.LocalPort,
		BoardType:   cfg.Vestaboard.BoardType,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create board client")
	}

	bridge, err := mqttbridge.New(cfg, display, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create MQTT bridge")
	}
	if err := bridge.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MQTT broker")
	}

	mux := httpapi.NewMux(bridge, logger)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTPPort), Handler: mux}

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	bridge.Stop()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if os.Getenv("LOG_FORMAT") == "json" {
		return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
