// Command pingd brings up a one-device userspace network stack with
// an IPv4 interface and the ICMP echo responder: a host that answers
// ping without touching the kernel's stack.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/go-netstack"
	"github.com/ehrlich-b/go-netstack/driver"
	"github.com/ehrlich-b/go-netstack/icmp"
	"github.com/ehrlich-b/go-netstack/internal/logging"
	"github.com/ehrlich-b/go-netstack/ipv4"
)

// Config mirrors the optional YAML config file. Flags override it.
type Config struct {
	Device struct {
		Driver string `yaml:"driver"` // "tap" or "loopback"
		Name   string `yaml:"name"`   // tap interface name
	} `yaml:"device"`
	Interface struct {
		Address string `yaml:"address"`
		Netmask string `yaml:"netmask"`
	} `yaml:"interface"`
	Logging struct {
		Level string `yaml:"level"` // debug, info, warn, error
	} `yaml:"logging"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Device.Driver = "tap"
	cfg.Device.Name = "tap0"
	cfg.Interface.Address = "192.0.2.2"
	cfg.Interface.Netmask = "255.255.255.0"
	cfg.Logging.Level = "info"
	return cfg
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func logLevel(name string) (logging.LogLevel, error) {
	switch name {
	case "debug":
		return logging.LevelDebug, nil
	case "info":
		return logging.LevelInfo, nil
	case "warn":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		drvName    = flag.String("driver", "", "Device driver: tap or loopback")
		ifName     = flag.String("if", "", "TAP interface name")
		addr       = flag.String("addr", "", "IPv4 unicast address")
		netmask    = flag.String("netmask", "", "IPv4 netmask")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if *drvName != "" {
		cfg.Device.Driver = *drvName
	}
	if *ifName != "" {
		cfg.Device.Name = *ifName
	}
	if *addr != "" {
		cfg.Interface.Address = *addr
	}
	if *netmask != "" {
		cfg.Interface.Netmask = *netmask
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	// Set up logging
	level, err := logLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logConfig := logging.DefaultConfig()
	logConfig.Level = level
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	metrics := netstack.NewMetrics()
	stack := netstack.New(&netstack.Options{
		Logger:   logger,
		Observer: netstack.NewMetricsObserver(metrics),
	})

	var dev *netstack.Device
	switch cfg.Device.Driver {
	case "tap":
		dev = driver.NewTAP(stack, cfg.Device.Name)
	case "loopback":
		dev = driver.NewLoopback(stack)
	default:
		log.Fatalf("Unknown driver %q", cfg.Device.Driver)
	}
	if err := stack.RegisterDevice(dev); err != nil {
		logger.Error("failed to register device", "error", err)
		os.Exit(1)
	}

	ip, err := ipv4.Register(stack)
	if err != nil {
		logger.Error("failed to register ipv4", "error", err)
		os.Exit(1)
	}
	if _, err := icmp.Register(ip); err != nil {
		logger.Error("failed to register icmp", "error", err)
		os.Exit(1)
	}

	iface, err := ipv4.NewIface(cfg.Interface.Address, cfg.Interface.Netmask)
	if err != nil {
		logger.Error("invalid interface address", "error", err)
		os.Exit(1)
	}
	if err := ip.RegisterIface(dev, iface); err != nil {
		logger.Error("failed to register iface", "error", err)
		os.Exit(1)
	}

	if err := stack.Run(); err != nil {
		logger.Error("failed to start stack", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("stopping stack")
		stack.Shutdown()
		metrics.Stop()
	}()

	logger.Info("stack running",
		"dev", dev.Name(),
		"driver", cfg.Device.Driver,
		"addr", cfg.Interface.Address,
		"netmask", cfg.Interface.Netmask)

	fmt.Printf("Device: %s (%s)\n", dev.Name(), cfg.Device.Driver)
	fmt.Printf("Address: %s netmask %s\n", cfg.Interface.Address, cfg.Interface.Netmask)
	fmt.Printf("\nPress Ctrl+C to stop...\n")

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	snap := metrics.Snapshot()
	fmt.Printf("\nFrames in: %d (%d bytes), dispatched: %d, drops: %d\n",
		snap.FramesIn, snap.BytesIn, snap.Dispatched, snap.InDrops)
	fmt.Printf("Frames out: %d (%d bytes), transmit errors: %d\n",
		snap.FramesOut, snap.BytesOut, snap.TransmitErrors)
}
