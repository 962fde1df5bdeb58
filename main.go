package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"remapper/internal/api"
	"remapper/internal/config"
	"remapper/internal/logging"
	"remapper/internal/middleware"
	"remapper/internal/parcel"
	"remapper/internal/remap"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	remapOpts := remap.OptionsFromConfig(cfg.Remap)
	remapOpts.Logger = logger.Logger

	p, err := parcel.New(parcel.Options{
		DataDir:         cfg.Database.Path,
		CacheSize:       cfg.Archive.CacheSize,
		CompressMinSize: cfg.Archive.CompressMinSize,
		Remap:           remapOpts,
	}, logger.Logger)
	if err != nil {
		logger.Fatal("failed to initialize parcel", zap.Error(err))
	}
	defer p.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheck)
	api.NewRemapHandler(p, logger, cfg.Server.AllowedRoot).Routes(mux)

	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recover(logger),
		middleware.MaxBodySize(cfg.Server.MaxBodyBytes),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server",
		zap.String("address", addr),
		zap.String("temp_directory", p.Remapper.TempDirectory()),
		zap.String("allowed_root", cfg.Server.AllowedRoot))

	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
