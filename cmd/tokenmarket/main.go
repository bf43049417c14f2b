package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fotonphotos/tokenmarket/internal/alerts"
	"github.com/fotonphotos/tokenmarket/internal/bootstrap"
	"github.com/fotonphotos/tokenmarket/internal/config"
	"github.com/fotonphotos/tokenmarket/internal/logging"
	"github.com/fotonphotos/tokenmarket/internal/metrics"
	"github.com/fotonphotos/tokenmarket/internal/scheduler"
	"github.com/fotonphotos/tokenmarket/internal/store"
	"github.com/fotonphotos/tokenmarket/internal/vendor"
)

var configPath string

func main() {
	fmt.Println("🚀 tokenmarket-core - TOKEN MARKET DATA & INDICATOR PIPELINE")

	root := &cobra.Command{
		Use:   "tokenmarket",
		Short: "Token market-data ingestion and technical-indicator engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to ./configs/config.yaml next to the binary)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newBootstrapCommand())

	if err := root.Execute(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath mirrors the teacher's executable-relative config lookup:
// an explicit --config flag wins, otherwise configs/config.yaml next to the
// binary.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	execPath, err := os.Executable()
	if err != nil {
		return filepath.Join("configs", "config.yaml")
	}
	return filepath.Join(filepath.Dir(execPath), "configs", "config.yaml")
}

// components bundles everything a subcommand needs once config, logger, and
// store/vendor collaborators are wired.
type components struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *store.DB
	tokens      *store.TokenRepo
	catalog     *store.TimeframeCatalog
	candles     *store.CandleStore
	credentials *store.CredentialRepo
	primary     vendor.Client
	secondary   vendor.Client
	primaryPool *vendor.KeyPool
	secondaryPool *vendor.KeyPool
}

func buildComponents(ctx context.Context) (*components, error) {
	// The logger is built twice, like the teacher's setupLogger: a production
	// logger boots first so config-load failures are still reported
	// structurally, then swapped for one matching the loaded environment.
	logger, err := logging.New("production")
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	cfgPath := resolveConfigPath()
	loader := config.NewConfigLoader()
	cfg, err := loader.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", cfgPath, err)
	}

	if cfg.Environment != "production" {
		logger, err = logging.New(cfg.Environment)
		if err != nil {
			return nil, fmt.Errorf("failed to setup %s logger: %w", cfg.Environment, err)
		}
	}
	logger.Info("configuration loaded", zap.String("path", cfgPath), zap.String("environment", cfg.Environment))

	db, err := store.Open(cfg.Store.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Address(), err)
	}

	tokens := store.NewTokenRepo(db)
	catalog := store.NewTimeframeCatalog(db)
	candles := store.NewCandleStore(db)
	credentials := store.NewCredentialRepo(db)

	primaryKeys := make([]vendor.Key, 0, len(cfg.Vendors.Primary.Keys))
	primarySeeds := make([]store.KeySeed, 0, len(cfg.Vendors.Primary.Keys))
	for _, k := range cfg.Vendors.Primary.Keys {
		primaryKeys = append(primaryKeys, vendor.Key{Label: k.Label, APIKey: k.APIKey})
		primarySeeds = append(primarySeeds, store.KeySeed{Label: k.Label, APIKey: k.APIKey, DefaultCredits: k.DefaultCredits, ResetIntervalHr: k.ResetIntervalHr})
	}
	secondaryKeys := make([]vendor.Key, 0, len(cfg.Vendors.Secondary.Keys))
	secondarySeeds := make([]store.KeySeed, 0, len(cfg.Vendors.Secondary.Keys))
	for _, k := range cfg.Vendors.Secondary.Keys {
		secondaryKeys = append(secondaryKeys, vendor.Key{Label: k.Label, APIKey: k.APIKey})
		secondarySeeds = append(secondarySeeds, store.KeySeed{Label: k.Label, APIKey: k.APIKey, DefaultCredits: k.DefaultCredits, ResetIntervalHr: k.ResetIntervalHr})
	}

	if err := credentials.EnsureKeys(ctx, cfg.Vendors.Primary.Name, cfg.Vendors.Primary.CreditsPerCall, primarySeeds); err != nil {
		return nil, fmt.Errorf("failed to seed primary credentials: %w", err)
	}
	if err := credentials.EnsureKeys(ctx, cfg.Vendors.Secondary.Name, cfg.Vendors.Secondary.CreditsPerCall, secondarySeeds); err != nil {
		return nil, fmt.Errorf("failed to seed secondary credentials: %w", err)
	}

	primaryPool := vendor.NewKeyPool(cfg.Vendors.Primary.Name, cfg.Vendors.Primary.CreditsPerCall, primaryKeys, redisClient, credentials, logger)
	secondaryPool := vendor.NewKeyPool(cfg.Vendors.Secondary.Name, cfg.Vendors.Secondary.CreditsPerCall, secondaryKeys, redisClient, credentials, logger)
	if err := primaryPool.SeedFromStore(ctx); err != nil {
		logger.Warn("failed to seed primary key pool from store, starting from config defaults", zap.Error(err))
	}
	if err := secondaryPool.SeedFromStore(ctx); err != nil {
		logger.Warn("failed to seed secondary key pool from store, starting from config defaults", zap.Error(err))
	}

	primary := vendor.NewPrimaryClient(cfg.Vendors.Primary, primaryPool, logger)
	secondary := vendor.NewSecondaryClient(cfg.Vendors.Secondary, secondaryPool, logger)

	return &components{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		tokens:        tokens,
		catalog:       catalog,
		candles:       candles,
		credentials:   credentials,
		primary:       primary,
		secondary:     secondary,
		primaryPool:   primaryPool,
		secondaryPool: secondaryPool,
	}, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler: fetch, aggregate, compute indicators, and emit alerts on every tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer c.db.Close()

	c.logger.Info("✅ core components initialized")

	var promMetrics *metrics.PrometheusMetrics
	if c.cfg.Monitoring.MetricsEnabled {
		promMetrics = metrics.NewPrometheusMetrics()
		if err := promMetrics.Start(c.cfg.Monitoring.ListenAddress); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer promMetrics.Stop()
	}

	sched := scheduler.New(scheduler.Deps{
		SchedulerConfig: c.cfg.Scheduler,
		AlertsConfig:    c.cfg.Alerts,
		Catalog:         c.catalog,
		Candles:         c.candles,
		Credentials:     c.credentials,
		Primary:         c.primary,
		Secondary:       c.secondary,
		PrimaryPool:     c.primaryPool,
		SecondaryPool:   c.secondaryPool,
		Notifier:        &alerts.LogNotifier{Logger: c.logger},
		MarketCap:       nil,
		Logger:          c.logger,
		Metrics:         promMetrics,
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	c.logger.Info("🔁 scheduler started", zap.Int("tick_interval_seconds", c.cfg.Scheduler.TickIntervalSeconds))

	waitForShutdown(c.logger)

	sched.Stop()
	c.logger.Info("✅ tokenmarket-core stopped gracefully")
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))
}

func newBootstrapCommand() *cobra.Command {
	var (
		tokenAddress    string
		pairAddress     string
		symbol          string
		name            string
		pairCreatedTime int64
		oldToken        bool
		addedBy         string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Onboard a token: full-history backfill for a new token, or a 48h window for an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			c, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			loader := bootstrap.New(c.db, c.tokens, c.catalog, c.candles, c.primary, c.secondary, c.logger)

			in := bootstrap.NewTokenInput{
				TokenAddress:    tokenAddress,
				PairAddress:     pairAddress,
				Symbol:          symbol,
				Name:            name,
				PairCreatedTime: pairCreatedTime,
				AdditionSource:  store.AdditionManual,
				AddedBy:         addedBy,
			}

			var token store.TrackedToken
			if oldToken {
				token, err = loader.AddOldToken(ctx, bootstrap.OldTokenInput{NewTokenInput: in})
			} else {
				token, err = loader.AddNewToken(ctx, in)
			}

			if err != nil {
				fmt.Printf(`{"success": false, "error": %q}`+"\n", err.Error())
				return nil
			}
			fmt.Printf(`{"success": true, "tokenAddress": %q, "status": %q}`+"\n", token.TokenAddress, token.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenAddress, "token-address", "", "on-chain token address (required)")
	cmd.Flags().StringVar(&pairAddress, "pair-address", "", "DEX pair address (required)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "token symbol")
	cmd.Flags().StringVar(&name, "name", "", "token name")
	cmd.Flags().Int64Var(&pairCreatedTime, "pair-created-time", 0, "unix seconds the pair was created (required for new tokens)")
	cmd.Flags().BoolVar(&oldToken, "old-token", false, "backfill a 48h window and skip full-history fetch, instead of a new-token full backfill")
	cmd.Flags().StringVar(&addedBy, "added-by", "operator", "identifier recorded as the token's addedBy")
	cmd.MarkFlagRequired("token-address")
	cmd.MarkFlagRequired("pair-address")

	return cmd
}
