package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/route-beacon/bgp-speaker/internal/bgp"
	"github.com/route-beacon/bgp-speaker/internal/config"
	"github.com/route-beacon/bgp-speaker/internal/db"
	"github.com/route-beacon/bgp-speaker/internal/fsm"
	"github.com/route-beacon/bgp-speaker/internal/httpd"
	"github.com/route-beacon/bgp-speaker/internal/metrics"
	"github.com/route-beacon/bgp-speaker/internal/peerd"
	"github.com/route-beacon/bgp-speaker/internal/rib"
	"github.com/route-beacon/bgp-speaker/internal/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "migrate":
		runMigrate()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: bgp-speaker <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the peering session")
	fmt.Println("  migrate   Run database migrations (RIB sink schema)")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting bgp-speaker",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
		zap.String("peer_remote_ip", cfg.Peer.RemoteIP),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sink rib.Sink
	var dbChecker httpd.DBChecker
	if cfg.Postgres.DSN != "" {
		pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		pgSink := rib.NewPostgresSink(pool, logger.Named("rib"))
		sink = pgSink
		dbChecker = pgSink
	}

	var publisher telemetry.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		tlsCfg, err := cfg.Kafka.BuildTLSConfig()
		if err != nil {
			logger.Fatal("failed to build TLS config", zap.Error(err))
		}
		saslMech := cfg.Kafka.BuildSASLMechanism()

		kp, err := telemetry.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.Topic, tlsCfg, saslMech, logger.Named("telemetry"))
		if err != nil {
			logger.Fatal("failed to create telemetry publisher", zap.Error(err))
		}
		defer kp.Close()
		publisher = kp
	}

	fsmCfg, err := buildFSMConfig(cfg)
	if err != nil {
		logger.Fatal("invalid peer configuration", zap.Error(err))
	}

	session := peerd.New(peerd.Config{
		PeerID:      cfg.Service.InstanceID,
		ListenAddr:  cfg.Peer.ListenAddr,
		RemoteAddr:  cfg.Peer.RemoteIP,
		Passive:     cfg.Peer.Passive,
		DialTimeout: 10 * time.Second,
	}, fsmCfg, sink, publisher, logger.Named("peer"))

	sessionDone := make(chan error, 1)
	go func() { sessionDone <- session.Run(ctx) }()

	session.Peer().Post(fsm.Event{Kind: startEventKind(cfg.Peer)})

	httpServer := httpd.NewServer(cfg.Service.HTTPListen, dbChecker, session.Peer(), logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("peer session and HTTP server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()

	select {
	case <-sessionDone:
		logger.Info("peer session stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, session may not have finished")
	}

	logger.Info("bgp-speaker stopped")
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	if cfg.Postgres.DSN == "" {
		logger.Fatal("migrate requires postgres.dsn (RIB sink not configured)")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func migrationsDir() string {
	return "migrations"
}

// buildFSMConfig translates the loaded peer configuration into the
// fsm.Config the session drives. Send/ReinitiateConnection/
// DropConnection/DeliverUpdate/OnTransition/Logger are left for
// peerd.New to fill in.
func buildFSMConfig(cfg *config.Config) (fsm.Config, error) {
	localIP, err := netip.ParseAddr(cfg.Peer.LocalIP)
	if err != nil {
		return fsm.Config{}, fmt.Errorf("parsing peer.local_ip: %w", err)
	}
	localRouterID, err := netip.ParseAddr(cfg.Peer.LocalRouterID)
	if err != nil {
		return fsm.Config{}, fmt.Errorf("parsing peer.local_router_id: %w", err)
	}

	var remoteIP netip.Addr
	if cfg.Peer.RemoteIP != "" {
		remoteIP, err = netip.ParseAddr(cfg.Peer.RemoteIP)
		if err != nil {
			return fsm.Config{}, fmt.Errorf("parsing peer.remote_ip: %w", err)
		}
	}

	var attrs fsm.SessionAttributeFlags
	if cfg.Peer.AllowAutomaticStart {
		attrs |= fsm.AllowAutomaticStart
	}
	if cfg.Peer.AllowAutomaticStop {
		attrs |= fsm.AllowAutomaticStop
	}
	if cfg.Peer.DampPeerOscillations {
		attrs |= fsm.DampPeerOscillations
	}
	if cfg.Peer.DelayOpen {
		attrs |= fsm.DelayOpenAttr
	}
	if cfg.Peer.Passive {
		attrs |= fsm.PassiveTCPEstablishment
	}

	caps := make([]bgp.Capability, 0, len(cfg.Peer.Capabilities))
	for _, c := range cfg.Peer.Capabilities {
		if c.Code == bgp.CapMultiprotocol {
			caps = append(caps, bgp.Capability{
				Code:  c.Code,
				Value: bgp.MultiprotocolValue{AFI: c.AFI, SAFI: c.SAFI}.Encode(),
			})
			continue
		}
		caps = append(caps, bgp.Capability{Code: c.Code})
	}

	return fsm.Config{
		LocalIP:       localIP,
		RemoteIP:      remoteIP,
		LocalASN:      cfg.Peer.LocalASN,
		RemoteASN:     cfg.Peer.RemoteASN,
		LocalRouterID: localRouterID,
		Attributes:    attrs,
		Timers:        buildTimerSet(cfg.Peer.Timers),
		Capabilities:  caps,
	}, nil
}

func buildTimerSet(t config.TimersConfig) fsm.TimerSet {
	return fsm.TimerSet{
		ConnectRetry:             time.Duration(t.ConnectRetrySeconds) * time.Second,
		Hold:                     time.Duration(t.HoldSeconds) * time.Second,
		Keepalive:                time.Duration(t.KeepaliveSeconds) * time.Second,
		MinASOriginationInterval: time.Duration(t.MinASOriginationIntervalSeconds) * time.Second,
		MinRouteAdvertisement:    time.Duration(t.MinRouteAdvertisementIntervalSeconds) * time.Second,
		DelayOpen:                time.Duration(t.DelayOpenSeconds) * time.Second,
		IdleHold:                 time.Duration(t.IdleHoldSeconds) * time.Second,
	}
}

// startEventKind picks the start event variant matching the configured
// session attributes (spec.md §4.4's administrative event family).
func startEventKind(p config.PeerConfig) fsm.EventKind {
	switch {
	case p.Passive && p.DampPeerOscillations:
		return fsm.EventAutomaticStartWithDampPeerOscillationsAndPassiveTCP
	case p.Passive:
		return fsm.EventManualStartWithPassiveTCP
	case p.DampPeerOscillations:
		return fsm.EventAutomaticStartWithDampPeerOscillations
	default:
		return fsm.EventManualStart
	}
}
