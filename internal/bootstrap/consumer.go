package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
)

// ConsumerManager runs one PartitionWorker per assigned partition of the
// balance-changes topic and drains them all on shutdown.
type ConsumerManager struct {
	Workers []*PartitionWorker
	Logger  mlog.Logger
}

// NewConsumerManager creates a new instance of ConsumerManager.
func NewConsumerManager(workers []*PartitionWorker, logger mlog.Logger) *ConsumerManager {
	return &ConsumerManager{
		Workers: workers,
		Logger:  logger,
	}
}

// Run starts every partition worker and blocks until shutdown.
func (m *ConsumerManager) Run(_ *pkg.Launcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m.Logger.Infof("Starting %d partition worker(s)", len(m.Workers))

	var wg sync.WaitGroup

	for _, worker := range m.Workers {
		wg.Add(1)

		go func(w *PartitionWorker) {
			defer wg.Done()

			if err := w.Run(ctx); err != nil {
				m.Logger.Errorf("Partition worker %d stopped with error: %v", w.Partition, err)
			}
		}(worker)
	}

	wg.Wait()

	m.Logger.Info("ConsumerManager: all workers drained")

	return nil
}
