package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dawidmalina/alertops/internal/dispatch"
	"github.com/dawidmalina/alertops/internal/metrics"
	"github.com/dawidmalina/alertops/internal/plugin"
	"github.com/dawidmalina/alertops/internal/plugins"
	"github.com/dawidmalina/alertops/internal/server"
	"github.com/dawidmalina/alertops/internal/stream"
)

var configPath = flag.String("config", "config/config.yaml", "Path to config.yaml.")

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	flag.Parse()

	config, err := ParseConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	err = InitLogger(config.LogLevel, config.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Infof("Starting AlertOps %s", version)
	if config.loadedFrom != "" {
		log.Infof("Config file '%s' loaded successfully", config.loadedFrom)
	} else {
		log.Warnf("Config file '%s' not found, using defaults", *configPath)
	}
	log.Debugf("Enabled plugins: %v", config.Plugins.Enabled)

	if err := run(config); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(config *Config) error {
	reg := plugin.NewRegistry()
	if err := plugins.Register(reg); err != nil {
		return err
	}
	enabled, err := plugin.Enable(reg, plugin.Env{Logger: log, Stdout: os.Stdout}, config.Plugins.Enabled, config.Plugins.Options)
	if err != nil {
		return fmt.Errorf("enabling plugins: %w", err)
	}
	defer func() {
		if err := enabled.Close(); err != nil {
			log.Warnf("Closing plugins: %v", err)
		}
	}()
	log.Infof("Loaded %d plugin(s): %v (registered: %v)", enabled.Len(), enabled.Names(), reg.Names())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg, func(name string) bool {
		_, ok := reg.Resolve(name)
		return ok
	})

	hub := stream.New(log)
	go hub.Run(ctx)

	router := dispatch.New(enabled, dispatch.MultiRecorder{dispatch.LogRecorder{Logger: log}, m, hub}, log)

	handler := server.New(server.Config{
		Version:            version,
		WebhookAPIKey:      config.WebhookAPIKey,
		AllowedIPs:         config.AllowedIPs,
		RequireHTTPS:       config.RequireHTTPS,
		TrustedProxies:     config.TrustedProxies,
		MaxBodyBytes:       config.MaxBodyBytes,
		RateLimitPerSecond: config.RateLimitPerSecond,
	}, server.Deps{
		Router:  router,
		Enabled: enabled,
		Metrics: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		Stream:  hub,
		Logger:  log,
	})

	srv := &http.Server{
		Addr:              ":" + config.ListenPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on port %s", config.ListenPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infof("Shutting down, waiting up to %s for running handlers", config.ShutdownGracePeriod)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	if err := router.Drain(shutdownCtx); err != nil {
		log.Warnf("Abandoned %d running handler(s): %v", router.InFlight(), err)
	}
	return nil
}
