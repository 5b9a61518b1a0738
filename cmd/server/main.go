//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/PulseRate/internal/config"
	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
	"github.com/himanishpuri/PulseRate/pkg/utils"
)

var (
	configPath     string
	port           int
	dbPath         string
	tempDir        string
	allowedOrigins string
	logRequests    bool
)

func init() {
	flag.StringVar(&configPath, "config", os.Getenv("PULSE_CONFIG"), "Path to a YAML config file")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("PULSE_TEMP_DIR", os.TempDir()), "Temporary directory for uploads")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (overrides config)")
	flag.BoolVar(&logRequests, "log-requests", true, "Log every HTTP request")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if allowedOrigins != "" {
		cfg.Server.Origins = allowedOrigins
	}

	tempDir = strings.TrimSpace(tempDir)
	if err := utils.MakeDir(tempDir); err != nil {
		log.Fatalf("Failed to create temp dir %s: %v", tempDir, err)
	}

	windowSize := ppg.WindowSizeFor(cfg.Monitor.SampleRate, cfg.Monitor.WindowSeconds)

	service, err := pulserate.NewService(
		pulserate.WithDBPath(cfg.Storage.DBPath),
		pulserate.WithSampleRate(cfg.Monitor.SampleRate),
		pulserate.WithWindowSize(windowSize),
		pulserate.WithSmoothingWindow(cfg.Monitor.SmoothingWindow),
		pulserate.WithComputeInterval(cfg.Monitor.ComputeInterval),
		pulserate.WithLogger(log),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           cfg.Server.Port,
		DBPath:         cfg.Storage.DBPath,
		TempDir:        tempDir,
		SampleRate:     cfg.Monitor.SampleRate,
		WindowSize:     windowSize,
		AllowedOrigins: cfg.Server.OriginList(),
		LogRequests:    logRequests,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}
