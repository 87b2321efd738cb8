// Command kinetic-device runs a simulated Kinetic key-value drive.
//
// The device listens on a plain TCP port and a TLS port, executes GET, PUT,
// DELETE, SETUP, SECURITY, PINOP, batch and media commands against a local
// store, and keeps its setup and security state in a home directory.
//
// Usage:
//
//	kinetic-device [flags]
//
// Flags:
//
//	-config string          YAML configuration file
//	-listen string          Plain TCP listen address (default ":8123")
//	-tls-listen string      TLS listen address (default ":8443")
//	-home string            Device home directory
//	-store string           Store backend: memory, sqlite (default "memory")
//	-ordered                Execute each connection's requests in arrival order (default true)
//	-workers int            Concurrent request executions (default 16)
//	-queue-depth int        Per-connection ordered queue bound (0 = unbounded)
//	-protocol-log string    Write protocol events to this .klog file
//	-metrics-listen string  Serve Prometheus metrics on this address
//	-mdns                   Advertise the device over mDNS
//	-interactive            Run the interactive console
//	-log-level string       Log level: debug, info, warn, error (default "info")
//
// Setting KINETIC_FAULT_INJECT_CLOSE_CONNECTION=true makes the device close
// every connection on its first request.
//
// Examples:
//
//	# Durable device with mDNS and metrics
//	kinetic-device -home /var/lib/kinetic -store sqlite -mdns -metrics-listen :9100
//
//	# Unordered execution, debug logging, protocol capture
//	kinetic-device -ordered=false -log-level debug -protocol-log device.klog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kinetic-sim/kinetic-go/cmd/kinetic-device/interactive"
	"github.com/kinetic-sim/kinetic-go/pkg/discovery"
	"github.com/kinetic-sim/kinetic-go/pkg/log"
	"github.com/kinetic-sim/kinetic-go/pkg/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseOptions(args, os.Stderr, os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	var (
		console *interactive.Console
		out     io.Writer = os.Stderr
	)
	if opts.Interactive {
		console, err = interactive.New()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out = console.Stderr()
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	if err := serve(opts, logger, level, console); err != nil {
		logger.Error("device failed", "error", err)
		return 1
	}
	return 0
}

func serve(opts Options, logger *slog.Logger, level slog.Level, console *interactive.Console) error {
	cfg, err := opts.DeviceConfig()
	if err != nil {
		return err
	}
	cfg.Logger = logger

	protocolLogger, closeLog, err := newProtocolLogger(opts.ProtocolLog, logger, level)
	if err != nil {
		return err
	}
	defer closeLog()
	cfg.ProtocolLogger = protocolLogger

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cfg.MetricsRegisterer = registry

	svc, err := service.NewDeviceService(cfg)
	if err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	if opts.MDNS {
		svc.SetAdvertiser(discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: opts.MDNSInterface,
			TTL:       discovery.DefaultAdvertiserConfig().TTL,
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	logger.Info("device started",
		"serial", opts.Serial,
		"listen", addrString(svc.Addr()),
		"tlsListen", addrString(svc.TLSAddr()),
		"store", opts.Store,
		"home", opts.Home,
		"ordered", opts.EnforceOrdering)

	if opts.MetricsListen != "" {
		srv, err := startMetricsServer(opts.MetricsListen, registry, logger)
		if err != nil {
			_ = svc.Stop()
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if console != nil {
		go console.Run(ctx, stop, svc)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return svc.Stop()
}

// newProtocolLogger combines the optional capture file with a debug-level
// slog adapter. It returns a nil logger when neither is enabled.
func newProtocolLogger(path string, logger *slog.Logger, level slog.Level) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open protocol log: %w", err)
		}
		closeFn = func() {
			_ = fl.Close()
			written, dropped := fl.Counts()
			logger.Info("protocol capture closed",
				"path", fl.Path(),
				"events", written,
				"dropped", dropped)
		}
		loggers = append(loggers, fl)
	}
	if level <= slog.LevelDebug {
		loggers = append(loggers, log.NewSlogAdapter(logger.With("component", "protocol")))
	}

	switch len(loggers) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}

func startMetricsServer(addr string, registry *prometheus.Registry, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics enabled", "listen", ln.Addr().String())
	return srv, nil
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
