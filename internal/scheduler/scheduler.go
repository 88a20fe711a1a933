package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"gosha-bot/internal/logging"
)

// DefaultSpec is daily at 21:00 UTC.
const DefaultSpec = "0 21 * * *"

// Scheduler управляет запланированными задачами
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

// New создает новый планировщик с cron-выражением spec (UTC)
func New(spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetReportFunction устанавливает функцию для генерации отчетов
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start запускает планировщик
func (s *Scheduler) Start() error {
	l := logging.L()
	if s.reportFunc == nil {
		l.Warn().Msg("report function not set, scheduler will not generate reports")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		l.Info().Str("spec", s.spec).Msg("daily report triggered")
		if err := s.reportFunc(s.ctx); err != nil {
			l.Error().Err(err).Msg("daily report failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	l.Info().Str("spec", s.spec).Msg("scheduler started")
	return nil
}

// Run запускает планировщик и блокируется до отмены ctx
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	l := logging.L()
	l.Info().Msg("scheduler stopped")
}

// IsRunning проверяет, запущен ли планировщик
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
