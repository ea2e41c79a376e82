// Command ckeylockd runs the CKeyLock server: it loads Ckeylock.toml,
// opens the encrypted snapshot, starts the single-writer executor, and
// serves the WebSocket protocol until SIGINT/SIGTERM.
//
// Grounded on the original Rust server's main.rs for the startup sequence
// (config -> cipher -> storage -> executor -> ws server) and on the
// teacher's cmd/gateway signal-handling convention for graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oblivisheee/ckeylock/internal/cipher"
	"github.com/oblivisheee/ckeylock/internal/config"
	"github.com/oblivisheee/ckeylock/internal/executor"
	"github.com/oblivisheee/ckeylock/internal/log"
	"github.com/oblivisheee/ckeylock/internal/metrics"
	"github.com/oblivisheee/ckeylock/internal/storage"
	"github.com/oblivisheee/ckeylock/internal/wsserver"
)

func main() {
	configPath := config.DefaultPath
	var flagArgs []string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
		flagArgs = os.Args[2:]
	}
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on, empty disables it")
	flag.CommandLine.Parse(flagArgs)

	logger := log.NewFromEnv("ckeylockd")

	if err := run(configPath, *metricsAddr, logger); err != nil {
		logger.WithError(err).Fatal("ckeylockd exited with an error")
	}
}

func run(configPath, metricsAddr string, logger *log.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := cipher.NewFromPassphrase(cfg.DumpPassword)
	if err != nil {
		return fmt.Errorf("build cipher: %w", err)
	}

	store, err := storage.Open(cfg.DumpPath, c, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := executor.New(ctx, store, logger)
	m := metrics.New(prometheus.DefaultRegisterer)

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	srv := wsserver.New(exec, cfg.Password, cfg.WorkerLimit(), logger, m)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Base().Info("shutting down")
		cancel()
	}()

	logger.Base().Infof("listening on %s", cfg.Bind)
	return srv.ListenAndServe(ctx, cfg.Bind)
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("metrics server exited")
	}
}
