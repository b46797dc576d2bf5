package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianYuDesign/balance-engine/internal/services/command"
	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"go.opentelemetry.io/otel/trace"
)

// sweepBatchLimit caps how many stuck rows one sweep pass claims.
const sweepBatchLimit = 100

// OutboxWorker periodically republishes outbox rows stuck in pending and
// escalates rows past the retry budget to the dead-letter topic.
type OutboxWorker struct {
	UseCase          *command.UseCase
	SweepInterval    time.Duration
	PendingOlderThan time.Duration
	Logger           mlog.Logger
	Tracer           trace.Tracer
}

// Run sweeps on a fixed interval until shutdown.
func (o *OutboxWorker) Run(_ *pkg.Launcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = pkg.ContextWithLogger(pkg.ContextWithTracer(ctx, o.Tracer), o.Logger)

	ticker := time.NewTicker(o.SweepInterval)
	defer ticker.Stop()

	o.Logger.Info("OutboxWorker started")

	for {
		select {
		case <-ctx.Done():
			o.Logger.Info("OutboxWorker: shutting down...")
			return nil

		case <-ticker.C:
			swept, err := o.UseCase.SweepOutbox(ctx, o.PendingOlderThan, sweepBatchLimit)
			if err != nil {
				o.Logger.Errorf("Outbox sweep failed: %v", err)
				continue
			}

			if swept > 0 {
				o.Logger.Infof("Outbox sweep handled %d record(s)", swept)
			}
		}
	}
}
