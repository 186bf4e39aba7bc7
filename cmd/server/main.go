package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ryandielhenn/cachelab/internal/config"
	"github.com/ryandielhenn/cachelab/internal/logging"
	"github.com/ryandielhenn/cachelab/internal/telemetry"
	"github.com/ryandielhenn/cachelab/pkg/hashtable"
	"github.com/ryandielhenn/cachelab/pkg/kv"
	"github.com/ryandielhenn/cachelab/pkg/node"
	"github.com/ryandielhenn/cachelab/pkg/registry"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.SetBuildInfo(version, gitSHA)
	bootLog := logger.Named("boot")

	// 1. Initialize the store
	hasher, err := hashtable.HasherByName(cfg.HashFunc)
	if err != nil {
		return err
	}
	storeLog := logger.Named("store")
	store := kv.NewStore(
		hashtable.WithSize(cfg.InitialBuckets),
		hashtable.WithDefaultTTL(cfg.DefaultTTL),
		hashtable.WithHasher(hasher),
		hashtable.WithResizeHook(func(oldSize, newSize, dropped int) {
			telemetry.ResizesTotal.Inc()
			storeLog.Info("resized hash table",
				zap.Int("old_size", oldSize),
				zap.Int("new_size", newSize),
				zap.Int("dropped_expired", dropped))
		}),
		hashtable.WithExpireHook(func(string) { telemetry.ExpiredTotal.Inc() }),
	)
	if err := telemetry.Registry.Register(telemetry.NewTableCollector(store)); err != nil {
		return err
	}
	bootLog.Info("store ready",
		zap.Int("buckets", cfg.InitialBuckets),
		zap.Duration("default_ttl", cfg.DefaultTTL),
		zap.String("hash", cfg.HashFunc))

	_, port, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		port = "8080"
	}
	n := node.NewNode(store, node.Options{
		ID:           cfg.SelfID,
		Addr:         node.NormalizeHostPort(cfg.SelfAddr, port),
		Logger:       logger.Named("http"),
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	// 2. Advertise this node in etcd
	if len(cfg.EtcdEndpoints) > 0 {
		bootLog.Info("creating etcd client", zap.Strings("endpoints", cfg.EtcdEndpoints))
		cli, cerr := registry.NewClient(cfg.EtcdEndpoints, 5*time.Second)
		if cerr != nil {
			return cerr
		}
		defer func() { err = multierr.Append(err, cli.Close()) }()

		leaseID, cancel, rerr := registry.RegisterNode(ctx, cli, n.ID(), n.Addr(), cfg.RegistrationTTL)
		if rerr != nil {
			return rerr
		}
		bootLog.Info("registered with etcd", zap.String("id", n.ID()), zap.String("addr", n.Addr()))
		defer func() {
			cancel()
			rctx, rcancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer rcancel()
			err = multierr.Append(err, registry.Deregister(rctx, cli, leaseID))
		}()
	}

	// 3. Serve until signalled
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           n.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("net/http")),
	}
	errCh := make(chan error, 1)
	go func() {
		bootLog.Info("CacheLab node listening", zap.String("addr", cfg.ListenAddr), zap.String("id", n.ID()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
