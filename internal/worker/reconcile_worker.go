package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/service"
)

const reconcileTimeout = 10 * time.Minute

// Reconciler is the part of the reconcile service the worker drives.
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]*service.ReconcileReport, error)
}

// ReconcileWorker runs counter reconciliation on a cron schedule.
type ReconcileWorker struct {
	cron       *cron.Cron
	reconciler Reconciler
	logger     *zap.Logger
}

// ParseSchedule accepts five-field cron expressions and descriptors such as "@every 1h".
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// NewReconcileWorker schedules reconciler. Overlapping runs are skipped.
func NewReconcileWorker(spec string, reconciler Reconciler, logger *zap.Logger) (*ReconcileWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	cronLogger := zapCronLogger{logger: logger.Named("cron")}
	w := &ReconcileWorker{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		reconciler: reconciler,
		logger:     logger,
	}
	w.cron.Schedule(schedule, cron.FuncJob(w.RunOnce))
	return w, nil
}

// RunOnce reconciles every organization and logs a summary.
func (w *ReconcileWorker) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	started := time.Now()
	reports, err := w.reconciler.ReconcileAll(ctx)
	if err != nil {
		w.logger.Error("reconciliation aborted", zap.Error(err))
		return
	}
	drifts := 0
	for _, report := range reports {
		drifts += len(report.Drifts)
	}
	w.logger.Info("reconciliation finished",
		zap.Int("organizations", len(reports)),
		zap.Int("drifts", drifts),
		zap.Duration("duration", time.Since(started)),
	)
}

func (w *ReconcileWorker) Start() {
	w.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish or ctx to end.
func (w *ReconcileWorker) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
