package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/calehh/phishgov/app"
	"github.com/calehh/phishgov/client"
	"github.com/calehh/phishgov/config"
	phcrypto "github.com/calehh/phishgov/crypto"
	"github.com/calehh/phishgov/indexer"
	"github.com/calehh/phishgov/keeper"
	"github.com/calehh/phishgov/service"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "bgov",
	Short: "bgov is a token-gated phishing blacklist governed on chain",
	Long: `bgov runs a CometBFT chain whose token holders propose and vote on additions to and
removals from a shared URL and address blacklist. Without a subcommand it starts the node.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(cmd, args); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func resolvePath(home, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(home, p)
}

func rpcUrl(listenAddr string) (string, error) {
	u, err := url.Parse(listenAddr)
	if err != nil {
		return "", err
	}
	u.Scheme = "http"
	return u.String(), nil
}

func run(cmd *cobra.Command, args []string) error {
	if homeDir == "" {
		homeDir = config.DefaultHome()
	}
	appConfig, err := config.LoadConfig(homeDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)
	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		return fmt.Errorf("failed to load node's key: %w", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	govApp, err := app.NewGovApp(appConfig.App, logger)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}
	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(govApp),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		govApp.Stop()
		return fmt.Errorf("creating node: %w", err)
	}
	govApp.Start(node.BlockStore())
	if err = node.Start(); err != nil {
		govApp.Stop()
		return fmt.Errorf("start comet node: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if err = startSidecars(gctx, g, appConfig, logger); err != nil {
		cancel()
	}

	<-gctx.Done()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		logger.Error("sidecar fail", "err", werr)
		if err == nil {
			err = werr
		}
	}
	log.Println("shut down...")
	done := make(chan struct{})
	go func() {
		defer close(done)
		if serr := node.Stop(); serr != nil {
			logger.Error("stop comet node fail", "err", serr)
		}
		node.Wait()
		govApp.Stop()
	}()
	select {
	case <-time.After(10 * time.Second):
		return errors.New("shutdown timed out")
	case <-done:
	}
	return err
}

// startSidecars runs the indexer with its read service, and the keeper, next to the node.
func startSidecars(ctx context.Context, g *errgroup.Group, appConfig *config.Config, logger cmtlog.Logger) error {
	cfg := appConfig.App
	nodeUrl, err := rpcUrl(appConfig.RPC.ListenAddress)
	if err != nil {
		return err
	}
	if cfg.IndexerEnabled {
		src, err := indexer.NewCometSource(nodeUrl)
		if err != nil {
			return err
		}
		db, err := indexer.OpenDB(cfg.IndexerDBPath())
		if err != nil {
			return err
		}
		reg := prometheus.NewRegistry()
		idx, err := indexer.NewChainIndexer(logger, db, src, indexer.Options{
			PollInterval: cfg.PollInterval,
			StartHeight:  cfg.StartHeight,
			Registerer:   reg,
		})
		if err != nil {
			db.Close()
			return err
		}
		svc := service.NewService(logger, cfg.ServiceListen, idx, reg)
		g.Go(func() error {
			defer db.Close()
			return idx.Run(ctx)
		})
		g.Go(func() error { return svc.Start(ctx) })
	}
	if cfg.KeeperEnabled {
		key, err := phcrypto.LoadKeyFile(resolvePath(cfg.Home, cfg.KeeperKeyFile))
		if err != nil {
			return err
		}
		cli, err := client.Dial(nodeUrl)
		if err != nil {
			return err
		}
		kp := keeper.NewKeeper(logger, cli, key, cfg.KeeperInterval)
		g.Go(func() error { return kp.Run(ctx) })
	}
	return nil
}
