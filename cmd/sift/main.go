// Package main implements the sift server binary: event ingestion,
// search, and detail retrieval behind one HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/siftlog/sift/internal/app"
	"github.com/siftlog/sift/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		metricsAddr string
		devLogging  bool
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the API server")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for the metrics endpoint")
	flag.BoolVar(&devLogging, "dev", false, "Use human-readable development logging")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Sift - event search and retrieval engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sift [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sift -data-dir /data/sift\n")
		fmt.Fprintf(os.Stderr, "  sift -config /etc/sift/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SIFT_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  SIFT_HTTP_ADDR      API server address\n")
		fmt.Fprintf(os.Stderr, "  SIFT_TOKEN_SECRET   HMAC key for tokens and cursors\n")
		fmt.Fprintf(os.Stderr, "  SIFT_STORAGE_TYPE   Archive storage type (local, s3)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("sift version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, httpAddr, metricsAddr)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(devLogging)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logger.Fatal("failed to start application", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig layers file, environment, and flags, lowest to highest
// priority.
func loadConfig(configFile, dataDir, httpAddr, metricsAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if metricsAddr != "" {
		cfg.HTTP.MetricsAddr = metricsAddr
	}
	return cfg, nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
