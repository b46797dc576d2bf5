package bootstrap

import (
	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mkafka"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
)

// Service is the application glue where we put all top level components to be used.
type Service struct {
	Server          *Server
	ConsumerManager *ConsumerManager
	OutboxWorker    *OutboxWorker
	SnapshotUpdater *SnapshotUpdater
	KafkaConnection *mkafka.KafkaConnection
	Logger          mlog.Logger
}

// Run starts the app services and blocks until they all drained.
func (s *Service) Run() {
	pkg.NewLauncher(
		pkg.WithLogger(s.Logger),
		pkg.RunApp("HTTP Server", s.Server),
		pkg.RunApp("Partition Consumers", s.ConsumerManager),
		pkg.RunApp("Outbox Sweeper", s.OutboxWorker),
		pkg.RunApp("Snapshot Updater", s.SnapshotUpdater),
	).Run()

	s.KafkaConnection.Close()
}
