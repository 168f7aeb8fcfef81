package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/maintenance"
	"stockwatch/services/marketdata"
	"stockwatch/services/notify"
	"stockwatch/services/predictor"
)

// Times holds the wall-clock trigger times, HH:MM in UTC.
type Times struct {
	RefreshAt string
	NotifyAt  string
	BackupAt  string
}

// Refresher is the slice of the market-data gateway the refresh job uses.
type Refresher interface {
	RefreshAll(ctx context.Context, symbols []string) []marketdata.Outcome
}

// Notifier is the slice of the dispatcher the notify job uses.
type Notifier interface {
	DailySummary() (string, error)
	Enqueue(message, typ string, symbol *string, sendNow bool) (*models.Notification, error)
	SendPending(ctx context.Context) (int, error)
}

// Backupper is the slice of the maintenance service the backup job uses.
type Backupper interface {
	Backup() (string, error)
}

var (
	_ Refresher = (*marketdata.Gateway)(nil)
	_ Notifier  = (*notify.Dispatcher)(nil)
	_ Backupper = (*maintenance.Service)(nil)
)

// Scheduler manages the recurring jobs.
type Scheduler struct {
	cron        *gocron.Scheduler
	db          *gorm.DB
	gateway     Refresher
	dispatcher  Notifier
	generator   predictor.Generator
	maintenance Backupper
	logger      *zap.Logger
	times       Times
}

func NewScheduler(db *gorm.DB, gateway Refresher, dispatcher Notifier, generator predictor.Generator, service Backupper, times Times, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:        gocron.NewScheduler(time.UTC),
		db:          db,
		gateway:     gateway,
		dispatcher:  dispatcher,
		generator:   generator,
		maintenance: service,
		logger:      logger,
		times:       times,
	}
}

// Start registers and launches all jobs. SingletonMode keeps a slow run
// from overlapping the next firing of the same job.
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(1).Day().At(s.times.RefreshAt).SingletonMode().Do(s.RunRefresh); err != nil {
		return err
	}
	if _, err := s.cron.Every(1).Day().At(s.times.NotifyAt).SingletonMode().Do(s.RunNotify); err != nil {
		return err
	}
	if _, err := s.cron.Every(1).Week().Sunday().At(s.times.BackupAt).SingletonMode().Do(s.RunBackup); err != nil {
		return err
	}

	s.cron.StartAsync()
	s.logger.Info("scheduler started",
		zap.String("refresh_at", s.times.RefreshAt),
		zap.String("notify_at", s.times.NotifyAt),
		zap.String("backup_at", s.times.BackupAt),
	)
	return nil
}

// Stop halts the scheduler, letting a running job finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// trackedSymbols lists every stock the refresh job should cover.
func (s *Scheduler) trackedSymbols() ([]string, error) {
	var symbols []string
	err := s.db.Model(&models.Stock{}).Order("symbol asc").Pluck("symbol", &symbols).Error
	return symbols, err
}

// RunRefresh fetches fresh data for every tracked symbol, then generates
// a prediction per symbol that refreshed cleanly. Failures are logged per
// item and never abort the batch.
func (s *Scheduler) RunRefresh() {
	ctx := context.Background()

	symbols, err := s.trackedSymbols()
	if err != nil {
		s.logger.Error("refresh job: load symbols", zap.Error(err))
		return
	}
	if len(symbols) == 0 {
		s.logger.Info("refresh job: no tracked symbols")
		return
	}

	outcomes := s.gateway.RefreshAll(ctx, symbols)
	refreshed := 0
	for _, outcome := range outcomes {
		if !outcome.Success {
			continue
		}
		refreshed++
		if _, err := s.generator.Generate(outcome.Symbol, predictor.TimeframeMedium); err != nil {
			s.logger.Warn("refresh job: prediction failed",
				zap.String("symbol", outcome.Symbol),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("refresh job done",
		zap.Int("symbols", len(symbols)),
		zap.Int("refreshed", refreshed),
	)
}

// RunNotify queues the morning summary and flushes everything pending.
func (s *Scheduler) RunNotify() {
	ctx := context.Background()

	summary, err := s.dispatcher.DailySummary()
	if err != nil {
		s.logger.Error("notify job: build summary", zap.Error(err))
	} else if _, err := s.dispatcher.Enqueue(summary, "daily_summary", nil, false); err != nil {
		s.logger.Error("notify job: enqueue summary", zap.Error(err))
	}

	sent, err := s.dispatcher.SendPending(ctx)
	if err != nil {
		s.logger.Warn("notify job: flush incomplete", zap.Int("sent", sent), zap.Error(err))
		return
	}
	s.logger.Info("notify job done", zap.Int("sent", sent))
}

// RunBackup snapshots the database file.
func (s *Scheduler) RunBackup() {
	path, err := s.maintenance.Backup()
	if err != nil {
		s.logger.Error("backup job failed", zap.Error(err))
		return
	}
	s.logger.Info("backup job done", zap.String("path", path))
}
