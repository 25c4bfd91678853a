package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zenjugit/zeppelin/internal/config"
	"github.com/zenjugit/zeppelin/internal/leader"
	"github.com/zenjugit/zeppelin/internal/metrics"
	"github.com/zenjugit/zeppelin/internal/server"
	"github.com/zenjugit/zeppelin/internal/store"
	"github.com/zenjugit/zeppelin/internal/store/badgerlog"
	"github.com/zenjugit/zeppelin/internal/transport"
	"github.com/zenjugit/zeppelin/internal/update"
)

var (
	configPath = flag.String("config", "", "path to YAML config file")
	localIP    = flag.String("ip", "", "local ip (overrides config)")
	localPort  = flag.Int("port", 0, "local base port (overrides config)")
	dataDir    = flag.String("data-dir", "", "data directory (overrides config)")
	devLog     = flag.Bool("dev-log", false, "human-readable log output")
)

func main() {
	flag.Parse()

	logger := mustLogger(*devLog)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config failed", zap.Error(err))
	}
	if *localIP != "" {
		cfg.LocalIP = *localIP
	}
	if *localPort != 0 {
		cfg.LocalPort = *localPort
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("bad config", zap.Error(err))
	}

	// The replicated-log collaborator. Standalone runs with a local
	// one-member log; a multi-server deployment plugs its consensus
	// client in behind store.Log instead.
	backend, err := badgerlog.Open(cfg.DataDir, cfg.LocalIP, cfg.LocalPort)
	if err != nil {
		logger.Fatal("open log backend failed", zap.Error(err))
	}
	defer backend.Close()

	adapter := store.NewAdapter(backend, logger)

	notifier := update.NewNotifier(logger)
	notifier.Subscribe(func(ev update.Event) {
		logger.Info("membership change",
			zap.String("node", ev.IPPort), zap.Stringer("op", ev.Op))
	})

	srv := server.NewServer(adapter, notifier,
		&server.Config{
			LivenessTimeout: cfg.LivenessTimeout,
			TickInterval:    cfg.TickInterval,
			RetryInterval:   cfg.RetryInterval,
		},
		&leader.Config{
			LocalIP:      cfg.LocalIP,
			LocalPort:    cfg.LocalPort,
			CmdPortShift: cfg.CmdPortShift,
			PollInterval: cfg.RetryInterval,
			DialTimeout:  cfg.DialTimeout,
			SendTimeout:  cfg.SendTimeout,
			RecvTimeout:  cfg.RecvTimeout,
		},
		logger)

	cmdServer := transport.NewServer(cfg.CmdAddr(), srv.Handle, logger)
	exporter := metrics.NewExporter(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return cmdServer.Start()
	})
	g.Go(func() error {
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		cmdServer.Stop()
		exporter.Stop()
		return nil
	})

	logger.Info("zp-meta starting",
		zap.String("local", cfg.LocalIP),
		zap.Int("port", cfg.LocalPort),
		zap.String("cmd_addr", cfg.CmdAddr()))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func mustLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
