package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arencloud/janus/internal/api"
	"github.com/arencloud/janus/internal/config"
	"github.com/arencloud/janus/internal/db"
	"github.com/arencloud/janus/internal/gateway"
	"github.com/arencloud/janus/internal/logging"
	"github.com/arencloud/janus/internal/middleware"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)

	if err := db.Init(cfg, logger); err != nil {
		logger.Fatal("failed to init db", "error", err)
	}
	if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
		logger.Fatal("failed to create data root", "error", err, "path", cfg.DataRoot)
	}

	gw := gateway.New(logger, filepath.Join(cfg.DataRoot, ".staging"), cfg.SignedURLTTL)
	r := api.Router(cfg, logger, gw)

	srv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           middleware.Recoverer(r, logger),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0, // allow long-running uploads/downloads; rely on LB timeouts
		WriteTimeout:      0,
		MaxHeaderBytes:    1 << 20, // 1MB headers
	}
	logger.Info("server starting", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}
