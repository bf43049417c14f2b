package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fotonphotos/tokenmarket/internal/alerts"
	"github.com/fotonphotos/tokenmarket/internal/config"
	"github.com/fotonphotos/tokenmarket/internal/metrics"
	"github.com/fotonphotos/tokenmarket/internal/store"
	"github.com/fotonphotos/tokenmarket/internal/vendor"
)

// Scheduler is the composition root's cron-driven tick loop (C10). It owns
// the bounded worker pool, the two vendor clients, and the credential-reset
// job, and fires the full fetch/aggregate/indicator/alert chain described in
// spec.md §4.10 on every tick.
type Scheduler struct {
	cfg       config.SchedulerConfig
	alertsCfg config.AlertsConfig

	catalog     *store.TimeframeCatalog
	candles     *store.CandleStore
	credentials *store.CredentialRepo

	primary   vendor.Client
	secondary vendor.Client

	primaryPool   *vendor.KeyPool
	secondaryPool *vendor.KeyPool

	notifier  alerts.Notifier
	marketCap alerts.MarketCapLookup

	logger  *zap.Logger
	pool    *Pool
	cron    *cron.Cron
	metrics *metrics.PrometheusMetrics

	running sync.Mutex
}

// Deps bundles the Scheduler's collaborators, built once at process startup.
type Deps struct {
	SchedulerConfig config.SchedulerConfig
	AlertsConfig    config.AlertsConfig
	Catalog         *store.TimeframeCatalog
	Candles         *store.CandleStore
	Credentials     *store.CredentialRepo
	Primary         vendor.Client
	Secondary       vendor.Client
	PrimaryPool     *vendor.KeyPool
	SecondaryPool   *vendor.KeyPool
	Notifier        alerts.Notifier
	MarketCap       alerts.MarketCapLookup
	Logger          *zap.Logger
	// Metrics is optional; a nil value disables instrumentation entirely.
	Metrics *metrics.PrometheusMetrics
}

func New(d Deps) *Scheduler {
	return &Scheduler{
		cfg:           d.SchedulerConfig,
		alertsCfg:     d.AlertsConfig,
		catalog:       d.Catalog,
		candles:       d.Candles,
		credentials:   d.Credentials,
		primary:       d.Primary,
		secondary:     d.Secondary,
		primaryPool:   d.PrimaryPool,
		secondaryPool: d.SecondaryPool,
		notifier:      d.Notifier,
		marketCap:     d.MarketCap,
		logger:        d.Logger.Named("scheduler"),
		pool:          NewPool(d.SchedulerConfig.WorkerPoolSize, d.Logger),
		metrics:       d.Metrics,
	}
}

func (s *Scheduler) now() int64 {
	return time.Now().Unix()
}

// Start registers the trading tick and credential-reset cron entries and
// begins running them. Mirrors the teacher supervisor's single Start/Stop
// lifecycle, but driven by robfig/cron instead of free-running goroutines
// since the unit of work here is a scheduled tick, not a long-lived stream.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithSeconds())

	tickSpec := everySeconds(s.cfg.TickIntervalSeconds)
	if _, err := s.cron.AddFunc(tickSpec, func() {
		s.runTick(ctx)
	}); err != nil {
		return err
	}

	resetSpec := everySeconds(s.cfg.CredentialResetHours * 3600)
	if _, err := s.cron.AddFunc(resetSpec, func() {
		s.runCredentialReset(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Int("tickIntervalSeconds", s.cfg.TickIntervalSeconds),
		zap.Int("credentialResetHours", s.cfg.CredentialResetHours))
	return nil
}

// Stop drains the cron scheduler, waiting for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running.Lock()
	s.running.Unlock()
	s.logger.Info("scheduler stopped")
}

// everySeconds renders a robfig/cron seconds-field spec that fires once every
// n seconds, clamped to a sane minimum.
func everySeconds(n int) string {
	if n < 1 {
		n = 1
	}
	return fmt.Sprintf("@every %ds", n)
}

// runTick guards against overlap with a non-blocking mutex — if the previous
// tick is still running (a slow vendor fetch, a large due set), this firing
// is skipped rather than queued, mirroring the teacher's "started" guard.
func (s *Scheduler) runTick(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("tick skipped: previous tick still running")
		if s.metrics != nil {
			s.metrics.RecordTickSkipped()
		}
		return
	}
	defer s.running.Unlock()

	tickCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.TickTimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	due, err := s.catalog.DueSet(tickCtx, s.now(), int64(s.cfg.FetchBufferSeconds))
	if err != nil {
		s.logger.Error("due set query failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordTick("error", time.Since(start))
		}
		return
	}
	if s.metrics != nil {
		s.metrics.SetDueSetSize(len(due))
	}
	if len(due) == 0 {
		s.logger.Debug("tick: nothing due")
		if s.metrics != nil {
			s.metrics.RecordTick("empty", time.Since(start))
		}
		return
	}

	jobs := make([]Job, 0, len(due))
	byKey := map[string]store.DueRecord{}
	for _, d := range due {
		if d.Timeframe.Timeframe != "15m" {
			// Only 15m timeframes are independently scheduled; 1h/4h are
			// always derived via the aggregator within the 15m pipeline run.
			continue
		}
		job := Job{TokenAddress: d.Token.TokenAddress, PairAddress: d.Token.PairAddress, Timeframe: d.Timeframe.Timeframe}
		jobs = append(jobs, job)
		byKey[d.Token.TokenAddress] = d
	}

	results := s.pool.Run(tickCtx, jobs, func(ctx context.Context, job Job) error {
		due := byKey[job.TokenAddress]
		return s.runFetchPipeline(ctx, due)
	})

	failed := 0
	for _, r := range results {
		if r.Status == JobFailed {
			failed++
		}
	}
	s.logger.Info("tick complete",
		zap.Int("due", len(jobs)), zap.Int("failed", failed), zap.Duration("elapsed", time.Since(start)))
	if s.metrics != nil {
		outcome := "ok"
		if failed > 0 {
			outcome = "partial_failure"
		}
		s.metrics.RecordTick(outcome, time.Since(start))
	}
}

// runCredentialReset restores availableCredits for every key pool whose
// resetDue condition has passed, then reseeds the Redis counters so the next
// fetch session reflects the reset.
func (s *Scheduler) runCredentialReset(ctx context.Context) {
	interval := time.Duration(s.cfg.CredentialResetHours) * time.Hour
	reset, err := s.credentials.ResetDue(ctx, time.Now(), interval)
	if err != nil {
		s.logger.Error("credential reset failed", zap.Error(err))
		return
	}
	if reset == 0 {
		return
	}
	if err := s.primaryPool.SeedFromStore(ctx); err != nil {
		s.logger.Error("reseed primary pool failed", zap.Error(err))
	}
	if err := s.secondaryPool.SeedFromStore(ctx); err != nil {
		s.logger.Error("reseed secondary pool failed", zap.Error(err))
	}
	s.logger.Info("credential reset applied", zap.Int("keysReset", reset))
}
