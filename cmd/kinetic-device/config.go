package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kinetic-sim/kinetic-go/pkg/service"
	"github.com/kinetic-sim/kinetic-go/pkg/transport"
)

// EnvFaultInject enables fault injection when set to a true value.
const EnvFaultInject = "KINETIC_FAULT_INJECT_CLOSE_CONNECTION"

// Options is the merged command configuration. Values come from defaults,
// then the YAML file, then explicitly set flags.
type Options struct {
	ConfigFile string `yaml:"-"`

	Listen            string `yaml:"listen"`
	TLSListen         string `yaml:"tlsListen"`
	Home              string `yaml:"home"`
	Store             string `yaml:"store"`
	EnforceOrdering   bool   `yaml:"enforceOrdering"`
	WorkerPoolSize    int    `yaml:"workerPoolSize"`
	OrderedQueueDepth int    `yaml:"orderedQueueDepth"`
	AuditRawPins      bool   `yaml:"auditRawPins"`
	FaultInject       bool   `yaml:"faultInject"`

	Serial string `yaml:"serial"`
	Model  string `yaml:"model"`

	TLSCert string `yaml:"tlsCert"`
	TLSKey  string `yaml:"tlsKey"`

	LogLevel      string `yaml:"logLevel"`
	ProtocolLog   string `yaml:"protocolLog"`
	MetricsListen string `yaml:"metricsListen"`

	MDNS          bool   `yaml:"mdns"`
	MDNSInterface string `yaml:"mdnsInterface"`

	Interactive bool `yaml:"interactive"`
}

func defaultOptions() Options {
	d := service.DefaultDeviceConfig()
	return Options{
		Listen:          d.ListenAddress,
		TLSListen:       d.TLSListenAddress,
		Home:            "kinetic-home",
		Store:           d.StoreBackend,
		EnforceOrdering: d.EnforceOrdering,
		WorkerPoolSize:  d.WorkerPoolSize,
		Serial:          d.SerialNumber,
		Model:           d.Model,
		LogLevel:        "info",
	}
}

func newFlagSet(opts *Options, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("kinetic-device", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.ConfigFile, "config", opts.ConfigFile, "YAML configuration file")
	fs.StringVar(&opts.Listen, "listen", opts.Listen, "Plain TCP listen address (empty disables)")
	fs.StringVar(&opts.TLSListen, "tls-listen", opts.TLSListen, "TLS listen address (empty disables)")
	fs.StringVar(&opts.Home, "home", opts.Home, "Device home directory")
	fs.StringVar(&opts.Store, "store", opts.Store, "Store backend: memory, sqlite")
	fs.BoolVar(&opts.EnforceOrdering, "ordered", opts.EnforceOrdering, "Execute each connection's requests in arrival order")
	fs.IntVar(&opts.WorkerPoolSize, "workers", opts.WorkerPoolSize, "Concurrent request executions")
	fs.IntVar(&opts.OrderedQueueDepth, "queue-depth", opts.OrderedQueueDepth, "Per-connection ordered queue bound (0 = unbounded)")
	fs.BoolVar(&opts.AuditRawPins, "audit-raw-pins", opts.AuditRawPins, "Echo rejected pins verbatim instead of a fingerprint")
	fs.BoolVar(&opts.FaultInject, "fault-inject", opts.FaultInject, "Close every connection on its first request")
	fs.StringVar(&opts.Serial, "serial", opts.Serial, "Device serial number")
	fs.StringVar(&opts.Model, "model", opts.Model, "Device model")
	fs.StringVar(&opts.TLSCert, "tls-cert", opts.TLSCert, "TLS certificate file (self-signed if empty)")
	fs.StringVar(&opts.TLSKey, "tls-key", opts.TLSKey, "TLS key file")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&opts.ProtocolLog, "protocol-log", opts.ProtocolLog, "Write protocol events to this .klog file")
	fs.StringVar(&opts.MetricsListen, "metrics-listen", opts.MetricsListen, "Serve Prometheus metrics on this address")
	fs.BoolVar(&opts.MDNS, "mdns", opts.MDNS, "Advertise the device over mDNS")
	fs.StringVar(&opts.MDNSInterface, "mdns-interface", opts.MDNSInterface, "Network interface for mDNS (empty = all)")
	fs.BoolVar(&opts.Interactive, "interactive", opts.Interactive, "Run the interactive console")
	return fs
}

// parseOptions resolves the configuration from args, the file named by
// -config and the environment.
func parseOptions(args []string, output io.Writer, getenv func(string) string) (Options, error) {
	opts := defaultOptions()
	fs := newFlagSet(&opts, output)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.ConfigFile != "" {
		if err := loadConfigFile(opts.ConfigFile, &opts); err != nil {
			return opts, err
		}
		// Flags win over the file.
		if err := fs.Parse(args); err != nil {
			return opts, err
		}
	}

	if v := getenv(EnvFaultInject); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", EnvFaultInject, err)
		}
		opts.FaultInject = on
	}
	return opts, nil
}

func loadConfigFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// DeviceConfig converts the options into a service configuration. Loggers
// and metrics are attached by the caller.
func (o Options) DeviceConfig() (service.DeviceConfig, error) {
	cfg := service.DefaultDeviceConfig()
	cfg.ListenAddress = o.Listen
	cfg.TLSListenAddress = o.TLSListen
	cfg.Home = o.Home
	cfg.StoreBackend = o.Store
	cfg.EnforceOrdering = o.EnforceOrdering
	cfg.WorkerPoolSize = o.WorkerPoolSize
	cfg.OrderedQueueDepth = o.OrderedQueueDepth
	cfg.AuditRawPins = o.AuditRawPins
	cfg.FaultInjectCloseConnection = o.FaultInject
	cfg.SerialNumber = o.Serial
	cfg.Model = o.Model

	if o.TLSCert != "" || o.TLSKey != "" {
		cert, err := transport.LoadCertificate(o.TLSCert, o.TLSKey)
		if err != nil {
			return cfg, fmt.Errorf("load TLS certificate: %w", err)
		}
		cfg.TLSCertificate = &cert
	}
	return cfg, cfg.Validate()
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
