// exchange-json-rpc serves the JSON-RPC gateway in the foreground.
// Usage: exchange-json-rpc run [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexZinkM/exchange-json-rpc/ark"
	"github.com/AlexZinkM/exchange-json-rpc/internal/api"
	"github.com/AlexZinkM/exchange-json-rpc/internal/client"
	"github.com/AlexZinkM/exchange-json-rpc/internal/config"
	"github.com/AlexZinkM/exchange-json-rpc/internal/handler"
	"github.com/AlexZinkM/exchange-json-rpc/internal/logger"
	"github.com/AlexZinkM/exchange-json-rpc/internal/metrics"
	"github.com/AlexZinkM/exchange-json-rpc/internal/store"
	"github.com/AlexZinkM/exchange-json-rpc/internal/txcache"
	"github.com/AlexZinkM/exchange-json-rpc/internal/vault"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// version is set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          config.AppName,
		Short:        "JSON-RPC gateway for ARK exchanges",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the server in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd.Flags(), cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "listen host (HOST)")
	flags.Int("port", 0, "listen port (PORT)")
	flags.String("network", "", "mainnet or devnet (NETWORK)")
	flags.String("peer", "", "pin every request to this node (PEER)")
	flags.Int("peer-port", 0, "node API port (PEER_PORT)")
	flags.Bool("allow-remote", false, "accept requests from any address (ALLOW_REMOTE)")
	flags.StringSlice("whitelist", nil, "addresses allowed when remote access is off (WHITELIST)")
	flags.String("data-path", "", "directory of the database (DATA_PATH)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	return cmd
}

// applyFlags overrides environment values with flags set on the command line
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "host":
			cfg.Host, err = flags.GetString(f.Name)
		case "port":
			cfg.Port, err = flags.GetInt(f.Name)
		case "network":
			cfg.Network, err = flags.GetString(f.Name)
		case "peer":
			cfg.Peer, err = flags.GetString(f.Name)
		case "peer-port":
			cfg.PeerPort, err = flags.GetInt(f.Name)
		case "allow-remote":
			cfg.AllowRemote, err = flags.GetBool(f.Name)
		case "whitelist":
			cfg.Whitelist, err = flags.GetStringSlice(f.Name)
		case "data-path":
			cfg.DataPath, err = flags.GetString(f.Name)
		case "log-level":
			cfg.LogLevel, err = flags.GetString(f.Name)
		}
	})
	return err
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer log.Sync()

	m := metrics.New()

	db, err := store.Open(cfg.DatabasePath(), store.Options{CacheSize: cfg.CacheSize, Logger: log})
	if err != nil {
		log.Error("failed to open storage", zap.String("path", cfg.DatabasePath()), zap.Error(err))
		return err
	}
	defer db.Close()

	httpClient := client.NewHTTPClient()
	directory := client.NewDirectory(client.DirectoryOptions{
		Network:         cfg.Network,
		Peer:            cfg.Peer,
		PeerPort:        cfg.PeerPort,
		SeedSource:      cfg.SeedSource,
		MaxPeerProbes:   cfg.MaxPeerProbes,
		RequestTimeout:  cfg.RequestTimeout,
		RefreshInterval: cfg.PeerRefreshInterval,
	}, httpClient, client.TCPProber{Timeout: cfg.ProbeTimeout}, log, m)

	if err := directory.Init(ctx); err != nil {
		log.Error("failed to initialise peers", zap.String("network", cfg.Network), zap.Error(err))
		return err
	}
	go directory.Run(ctx)

	relay := client.NewRelay(directory, httpClient, client.RelayOptions{
		Timeout:     cfg.RequestTimeout,
		MaxAttempts: cfg.MaxAttempts,
		RateLimit:   cfg.RateLimit,
	}, log, m)

	network := cfg.CryptoNetwork()
	svc := ark.NewService(relay, txcache.New(db), vault.New(db, network, log), ark.Options{
		Network:     network,
		FeeCacheTTL: cfg.FeeCacheTTL,
		Logger:      log,
	})

	if cfg.AllowRemote {
		log.Warn("remote connections are allowed, this is a potential security risk")
	}

	srv := &http.Server{
		Addr: cfg.ListenAddress(),
		Handler: api.SetupRouter(handler.NewMethods(svc, log, m), api.Options{
			AllowRemote: cfg.AllowRemote,
			Whitelist:   cfg.Whitelist,
			Metrics:     m,
			Logger:      log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server is listening",
			zap.String("address", srv.Addr),
			zap.String("network", cfg.Network),
			zap.String("database", db.Path()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
