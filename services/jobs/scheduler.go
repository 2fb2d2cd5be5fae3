package jobsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
)

const (
	ReconcileJob        = "reconcile-fees"
	OverdueRemindersJob = "overdue-reminders"
)

// LedgerJobs is the part of the ledger service run on a schedule.
type LedgerJobs interface {
	Reconcile(ctx context.Context) (ledger.ReconcileResult, error)
	SendOverdueReminders(ctx context.Context, asOf time.Time) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	ledger  LedgerJobs
	logger  core.Logger
	timeout time.Duration
	nowFunc func() time.Time
}

// NewScheduler registers the ledger jobs on their configured specs. The scheduler is not started.
func NewScheduler(conf core.JobsConfig, ledgerSvc LedgerJobs, logger core.Logger) (*Scheduler, error) {
	clog := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		ledger:  ledgerSvc,
		logger:  logger,
		timeout: 10 * time.Minute,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{name: ReconcileJob, spec: conf.ReconcileSpec, run: s.reconcile},
		{name: OverdueRemindersJob, spec: conf.OverdueRemindersSpec, run: s.sendOverdueReminders},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.Run(job.name, job.run) }); err != nil {
			return nil, errors.Wrapf(err, "scheduling %s", job.name)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to complete, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run runs a job once, logging its outcome.
func (s *Scheduler) Run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("job %s failed", name), err)
		return
	}
	s.logger.Info(fmt.Sprintf("job %s done in %s", name, time.Since(start)))
}

// RunByName runs a registered job once.
func (s *Scheduler) RunByName(name string) error {
	switch name {
	case ReconcileJob:
		s.Run(name, s.reconcile)
	case OverdueRemindersJob:
		s.Run(name, s.sendOverdueReminders)
	default:
		return errors.Errorf("unknown job: %s", name)
	}
	return nil
}

func (s *Scheduler) reconcile(ctx context.Context) error {
	res, err := s.ledger.Reconcile(ctx)
	if err != nil {
		return err
	}
	if res.Corrected > 0 {
		s.logger.Warn(
			fmt.Sprintf("reconcile corrected %d of %d fees", res.Corrected, res.Checked),
			map[string]interface{}{"fee_ids": res.CorrectedFeeIDs},
		)
	}
	return nil
}

func (s *Scheduler) sendOverdueReminders(ctx context.Context) error {
	sent, err := s.ledger.SendOverdueReminders(ctx, s.nowFunc().Truncate(24*time.Hour))
	if err != nil {
		return err
	}
	s.logger.Debug(fmt.Sprintf("%d overdue reminders sent", sent))
	return nil
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keyValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, keyValues(keysAndValues))
}

func keyValues(kv []interface{}) map[string]interface{} {
	extras := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		extras[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return extras
}
