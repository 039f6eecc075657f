package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/authorization"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	InvoiceSvc invoicedomain.Service
	AuthzSvc   authorization.Service
	Billing    *config.BillingConfigHolder
	Clock      clock.Clock                  `optional:"true"`
	Locker     Locker                       `optional:"true"`
	Metrics    *obsmetrics.SchedulerMetrics `optional:"true"`
	Config     Config                       `optional:"true"`
}

// Scheduler runs the periodic invoice sweeps: overdue marking and, when
// enabled in billing config, automatic late fees.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	invoiceSvc invoicedomain.Service
	authzSvc   authorization.Service
	billing    *config.BillingConfigHolder
	locker     Locker
	metrics    *obsmetrics.SchedulerMetrics
}

type job struct {
	name    string
	enabled bool
	object  string
	action  string
	sweep   func(ctx context.Context, limit int) (int, error)
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.InvoiceSvc == nil || p.AuthzSvc == nil || p.Billing == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	locker := p.Locker
	if locker == nil {
		locker = localLocker{}
	}
	m := p.Metrics
	if m == nil {
		m = obsmetrics.Scheduler()
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      clk,
		invoiceSvc: p.InvoiceSvc,
		authzSvc:   p.AuthzSvc,
		billing:    p.Billing,
		locker:     locker,
		metrics:    m,
	}, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{
			name:    JobMarkOverdue,
			enabled: s.isJobEnabled(JobMarkOverdue),
			object:  authorization.ObjectInvoice,
			action:  authorization.ActionInvoiceMarkOverdue,
			sweep:   s.invoiceSvc.MarkOverdue,
		},
		{
			// Runs after mark_overdue so invoices that just went overdue are
			// charged in the same tick.
			name:    JobApplyLateFees,
			enabled: s.isJobEnabled(JobApplyLateFees) && s.billing.Get().LateFee.AutoApply,
			object:  authorization.ObjectInvoice,
			action:  authorization.ActionInvoiceApplyLateFee,
			sweep:   s.invoiceSvc.ApplyLateFees,
		},
	}
}

// RunOnce executes one tick. Only the replica holding the tick lock runs;
// the others record a skip and return nil.
func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := s.jobs()

	token, acquired, err := s.locker.TryLock(parent, s.cfg.LockKey, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire scheduler lock: %w", err)
	}
	if !acquired {
		for _, j := range jobs {
			if j.enabled {
				s.metrics.IncJobSkipped(j.name)
			}
		}
		s.log.Debug("scheduler tick skipped, lock held elsewhere", zap.String("lock_key", s.cfg.LockKey))
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, s.cfg.LockKey, token); err != nil {
			s.log.Warn("release scheduler lock", zap.Error(err))
		}
	}()

	var runErr error
	for _, j := range jobs {
		if !j.enabled {
			continue
		}
		runErr = errors.Join(runErr, s.runJob(parent, j))
	}
	return runErr
}

// RunJob executes a single named job without taking the tick lock. It backs
// the "jobs run" command.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	for _, j := range s.jobs() {
		if strings.EqualFold(j.name, name) {
			if !j.enabled {
				return fmt.Errorf("job %s is disabled", j.name)
			}
			return s.runJob(ctx, j)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) runJob(parent context.Context, j job) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(withSystemActor(parent), s.cfg.JobTimeout)
	defer cancel()

	run := s.newJobRun(j.name, s.cfg.BatchSize)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(j.name)

	err := s.drain(ctx, run, j)
	s.metrics.ObserveJobDuration(j.name, s.clock.Now().Sub(start))
	s.metrics.AddBatchProcessed(j.name, "invoice", run.processedCount)
	if err != nil {
		s.logJobError(ctx, run, err)
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(j.name, err)
	// A deadline only ends this tick early; the next tick picks up the rest.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(j.name)
		return nil
	}
	return fmt.Errorf("%s: %w", j.name, err)
}

// drain repeats the sweep until a batch comes back short or the batch cap
// is reached.
func (s *Scheduler) drain(ctx context.Context, run *jobRun, j job) error {
	if err := s.authzSvc.Authorize(ctx, j.object, j.action); err != nil {
		return err
	}
	for run.batchCount < s.cfg.MaxBatches {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.sweep(ctx, s.cfg.BatchSize)
		run.batchCount++
		run.AddProcessed(n)
		if err != nil {
			return err
		}
		if n < s.cfg.BatchSize {
			return nil
		}
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if lag := time.Since(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

func (s *Scheduler) isJobEnabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, name) {
			return true
		}
	}
	return false
}
