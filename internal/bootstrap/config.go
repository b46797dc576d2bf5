package bootstrap

import (
	"fmt"
	"os"
	"strings"
	"time"

	httpin "github.com/brianYuDesign/balance-engine/internal/adapters/http/in"
	kafkaadapter "github.com/brianYuDesign/balance-engine/internal/adapters/kafka"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/balance"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/batch"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/lease"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/ledger"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/offset"
	"github.com/brianYuDesign/balance-engine/internal/adapters/postgres/outbox"
	redisadapter "github.com/brianYuDesign/balance-engine/internal/adapters/redis"
	"github.com/brianYuDesign/balance-engine/internal/services/command"
	"github.com/brianYuDesign/balance-engine/internal/services/query"
	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mkafka"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mopentelemetry"
	"github.com/brianYuDesign/balance-engine/pkg/mpostgres"
	"github.com/brianYuDesign/balance-engine/pkg/mredis"
	"github.com/brianYuDesign/balance-engine/pkg/mzap"
	"go.opentelemetry.io/otel"
)

const ApplicationName = "balance-engine"

// Config is the top level configuration struct for the balance engine.
type Config struct {
	EnvName       string `env:"ENV_NAME"`
	LogLevel      string `env:"LOG_LEVEL"`
	Version       string `env:"VERSION"`
	ServerAddress string `env:"SERVER_ADDRESS"`

	PrimaryDBHost      string `env:"DB_HOST"`
	PrimaryDBUser      string `env:"DB_USER"`
	PrimaryDBPassword  string `env:"DB_PASSWORD"`
	PrimaryDBName      string `env:"DB_NAME"`
	PrimaryDBPort      string `env:"DB_PORT"`
	ReplicaDBHost      string `env:"DB_REPLICA_HOST"`
	ReplicaDBUser      string `env:"DB_REPLICA_USER"`
	ReplicaDBPassword  string `env:"DB_REPLICA_PASSWORD"`
	ReplicaDBName      string `env:"DB_REPLICA_NAME"`
	ReplicaDBPort      string `env:"DB_REPLICA_PORT"`
	MaxOpenConnections int    `env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConnections int    `env:"DB_MAX_IDLE_CONNS"`
	MigrationsPath     string `env:"DB_MIGRATIONS_PATH"`

	RedisURL string `env:"REDIS_URL"`

	KafkaBrokers    string `env:"KAFKA_BROKERS"`
	KafkaTopic      string `env:"KAFKA_TOPIC"`
	KafkaDLQTopic   string `env:"KAFKA_DLQ_TOPIC"`
	KafkaGroup      string `env:"KAFKA_GROUP"`
	KafkaPartitions int    `env:"KAFKA_PARTITIONS"`

	BatchMaxRecords   int `env:"BATCH_MAX_RECORDS"`
	BatchMaxLatencyMS int `env:"BATCH_MAX_LATENCY_MS"`
	BatchLongPollMS   int `env:"BATCH_LONG_POLL_MS"`
	BatchDeadlineMS   int `env:"BATCH_DEADLINE_MS"`

	LeaseTTLMS   int `env:"LEASE_TTL_MS"`
	LeaseRenewMS int `env:"LEASE_RENEW_MS"`

	RetryMaxRetries        int `env:"RETRY_MAX_RETRIES"`
	RetryInitialIntervalMS int `env:"RETRY_INITIAL_INTERVAL_MS"`
	RetryBackoffFactor     int `env:"RETRY_BACKOFF_FACTOR"`

	SnapshotWorkerCount     int    `env:"SNAPSHOT_WORKER_COUNT"`
	SnapshotFlushIntervalMS int    `env:"SNAPSHOT_FLUSH_INTERVAL_MS"`
	SnapshotNamespace       string `env:"SNAPSHOT_NAMESPACE"`
	SnapshotReadEnabled     bool   `env:"SNAPSHOT_READ_ENABLED"`

	WorkingSetSize int `env:"WORKING_SET_SIZE"`

	OutboxSweepIntervalMS    int `env:"OUTBOX_SWEEP_INTERVAL_MS"`
	OutboxPendingThresholdMS int `env:"OUTBOX_PENDING_THRESHOLD_MS"`

	OtelServiceName         string `env:"OTEL_RESOURCE_SERVICE_NAME"`
	OtelLibraryName         string `env:"OTEL_LIBRARY_NAME"`
	OtelServiceVersion      string `env:"OTEL_RESOURCE_SERVICE_VERSION"`
	OtelDeploymentEnv       string `env:"OTEL_RESOURCE_DEPLOYMENT_ENVIRONMENT"`
	OtelColExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTelemetry         bool   `env:"ENABLE_TELEMETRY"`
}

// ensureConfigDefaults fills the recognized options the environment left out.
func ensureConfigDefaults(cfg *Config) {
	if cfg.ServerAddress == "" {
		cfg.ServerAddress = ":3000"
	}

	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}

	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "balance-changes"
	}

	if cfg.KafkaDLQTopic == "" {
		cfg.KafkaDLQTopic = "balance-changes-dlq"
	}

	if cfg.KafkaGroup == "" {
		cfg.KafkaGroup = ApplicationName
	}

	if cfg.KafkaPartitions <= 0 {
		cfg.KafkaPartitions = 1
	}

	if cfg.MaxOpenConnections <= 0 {
		cfg.MaxOpenConnections = 15
	}

	if cfg.BatchMaxRecords <= 0 {
		cfg.BatchMaxRecords = 200
	}

	if cfg.BatchMaxLatencyMS <= 0 {
		cfg.BatchMaxLatencyMS = 100
	}

	if cfg.BatchLongPollMS <= 0 {
		cfg.BatchLongPollMS = 1000
	}

	if cfg.BatchDeadlineMS <= 0 {
		cfg.BatchDeadlineMS = 5000
	}

	if cfg.LeaseTTLMS <= 0 {
		cfg.LeaseTTLMS = 5000
	}

	if cfg.LeaseRenewMS <= 0 {
		cfg.LeaseRenewMS = 2000
	}

	if cfg.RetryMaxRetries <= 0 {
		cfg.RetryMaxRetries = 3
	}

	if cfg.RetryInitialIntervalMS <= 0 {
		cfg.RetryInitialIntervalMS = 1000
	}

	if cfg.RetryBackoffFactor <= 0 {
		cfg.RetryBackoffFactor = 200
	}

	if cfg.SnapshotWorkerCount <= 0 {
		cfg.SnapshotWorkerCount = 4
	}

	if cfg.SnapshotFlushIntervalMS <= 0 {
		cfg.SnapshotFlushIntervalMS = 100
	}

	if cfg.SnapshotNamespace == "" {
		cfg.SnapshotNamespace = "balance"
	}

	if cfg.WorkingSetSize <= 0 {
		cfg.WorkingSetSize = 10000
	}

	if cfg.OutboxSweepIntervalMS <= 0 {
		cfg.OutboxSweepIntervalMS = 5000
	}

	if cfg.OutboxPendingThresholdMS <= 0 {
		cfg.OutboxPendingThresholdMS = 10000
	}
}

// InitService initiates the balance engine: connections, repositories, use
// cases and the four launcher apps, all construction-injected from here.
func InitService() *Service {
	cfg := &Config{}

	if err := pkg.SetConfigFromEnvVars(cfg); err != nil {
		panic(err)
	}

	ensureConfigDefaults(cfg)

	logger := mzap.InitializeLogger()

	telemetry := &mopentelemetry.Telemetry{
		LibraryName:               cfg.OtelLibraryName,
		ServiceName:               cfg.OtelServiceName,
		ServiceVersion:            cfg.OtelServiceVersion,
		DeploymentEnv:             cfg.OtelDeploymentEnv,
		CollectorExporterEndpoint: cfg.OtelColExporterEndpoint,
		EnableTelemetry:           cfg.EnableTelemetry,
	}
	telemetry.InitializeTelemetry()

	tracer := otel.Tracer(cfg.OtelLibraryName)

	if cfg.ReplicaDBHost == "" {
		cfg.ReplicaDBHost = cfg.PrimaryDBHost
		cfg.ReplicaDBUser = cfg.PrimaryDBUser
		cfg.ReplicaDBPassword = cfg.PrimaryDBPassword
		cfg.ReplicaDBName = cfg.PrimaryDBName
		cfg.ReplicaDBPort = cfg.PrimaryDBPort
	}

	postgreSourcePrimary := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.PrimaryDBHost, cfg.PrimaryDBUser, cfg.PrimaryDBPassword, cfg.PrimaryDBName, cfg.PrimaryDBPort)

	postgreSourceReplica := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.ReplicaDBHost, cfg.ReplicaDBUser, cfg.ReplicaDBPassword, cfg.ReplicaDBName, cfg.ReplicaDBPort)

	postgresConnection := &mpostgres.PostgresConnection{
		ConnectionStringPrimary: postgreSourcePrimary,
		ConnectionStringReplica: postgreSourceReplica,
		PrimaryDBName:           cfg.PrimaryDBName,
		ReplicaDBName:           cfg.ReplicaDBName,
		MigrationsPath:          cfg.MigrationsPath,
		MaxOpenConnections:      cfg.MaxOpenConnections,
		MaxIdleConnections:      cfg.MaxIdleConnections,
		Logger:                  logger,
	}

	redisConnection := &mredis.RedisConnection{
		ConnectionStringSource: cfg.RedisURL,
		Logger:                 logger,
	}

	kafkaConnection := &mkafka.KafkaConnection{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		ClientID: ApplicationName,
		Logger:   logger,
	}

	balancePostgreSQLRepository := balance.NewBalancePostgreSQLRepository(postgresConnection)
	ledgerPostgreSQLRepository := ledger.NewLedgerPostgreSQLRepository(postgresConnection)
	outboxPostgreSQLRepository := outbox.NewOutboxPostgreSQLRepository(postgresConnection,
		time.Duration(cfg.RetryInitialIntervalMS)*time.Millisecond, cfg.RetryBackoffFactor)
	leasePostgreSQLRepository := lease.NewLeasePostgreSQLRepository(postgresConnection)
	offsetPostgreSQLRepository := offset.NewOffsetPostgreSQLRepository(postgresConnection)
	batchPostgreSQLRepository := batch.NewBatchPostgreSQLRepository(postgresConnection)

	producerKafkaRepository := kafkaadapter.NewKafkaProducerRepository(kafkaConnection, cfg.KafkaTopic, cfg.KafkaDLQTopic)
	snapshotRedisRepository := redisadapter.NewSnapshotRedisRepository(redisConnection, cfg.SnapshotNamespace)

	commandUseCase := &command.UseCase{
		OutboxRepo:   outboxPostgreSQLRepository,
		LedgerRepo:   ledgerPostgreSQLRepository,
		BalanceRepo:  balancePostgreSQLRepository,
		BatchRepo:    batchPostgreSQLRepository,
		ProducerRepo: producerKafkaRepository,
		Topic:        cfg.KafkaTopic,
		MaxRetries:   cfg.RetryMaxRetries,
	}

	queryUseCase := &query.UseCase{
		BalanceRepo:         balancePostgreSQLRepository,
		SnapshotRepo:        snapshotRedisRepository,
		SnapshotReadEnabled: cfg.SnapshotReadEnabled,
	}

	handler := &httpin.BalanceHandler{
		Command: commandUseCase,
		Query:   queryUseCase,
	}

	app := httpin.NewRouter(logger, tracer, handler)
	server := NewServer(cfg, app, logger, telemetry)

	snapshotUpdater := NewSnapshotUpdater(snapshotRedisRepository,
		cfg.SnapshotWorkerCount,
		time.Duration(cfg.SnapshotFlushIntervalMS)*time.Millisecond,
		logger)

	hostname, _ := os.Hostname()
	holderID := fmt.Sprintf("%s-%s", hostname, pkg.GenerateUUIDv7().String())

	workers := make([]*PartitionWorker, 0, cfg.KafkaPartitions)

	for partition := int32(0); partition < pkg.SafeInt64ToInt32(int64(cfg.KafkaPartitions)); partition++ {
		elector := &LeaderElector{
			LeaseRepo:     leasePostgreSQLRepository,
			Partition:     LeasePartition(cfg.KafkaTopic, partition),
			HolderID:      holderID,
			TTL:           time.Duration(cfg.LeaseTTLMS) * time.Millisecond,
			RenewInterval: time.Duration(cfg.LeaseRenewMS) * time.Millisecond,
			Logger:        logger,
		}

		topic := cfg.KafkaTopic
		p := partition

		workers = append(workers, &PartitionWorker{
			Group:     cfg.KafkaGroup,
			Topic:     topic,
			Partition: p,
			Policy: BatchPolicy{
				MaxRecords: cfg.BatchMaxRecords,
				MaxLatency: time.Duration(cfg.BatchMaxLatencyMS) * time.Millisecond,
				LongPoll:   time.Duration(cfg.BatchLongPollMS) * time.Millisecond,
				Deadline:   time.Duration(cfg.BatchDeadlineMS) * time.Millisecond,
			},
			Retry: RetryPolicy{
				MaxRetries:      cfg.RetryMaxRetries,
				InitialInterval: time.Duration(cfg.RetryInitialIntervalMS) * time.Millisecond,
				BackoffFactor:   cfg.RetryBackoffFactor,
			},
			UseCase:    commandUseCase,
			OffsetRepo: offsetPostgreSQLRepository,
			Elector:    elector,
			NewPoller: func(next int64) (kafkaadapter.PartitionPoller, error) {
				return kafkaadapter.NewKafkaPartitionPoller(kafkaConnection, topic, p, next)
			},
			SnapshotSink: func(entries []mmodel.SnapshotEntry) {
				snapshotUpdater.Submit(entries)
			},
			WorkingSetSize: cfg.WorkingSetSize,
			Logger:         logger,
		})
	}

	consumerManager := NewConsumerManager(workers, logger)

	outboxWorker := &OutboxWorker{
		UseCase:          commandUseCase,
		SweepInterval:    time.Duration(cfg.OutboxSweepIntervalMS) * time.Millisecond,
		PendingOlderThan: time.Duration(cfg.OutboxPendingThresholdMS) * time.Millisecond,
		Logger:           logger,
		Tracer:           tracer,
	}

	return &Service{
		Server:          server,
		ConsumerManager: consumerManager,
		OutboxWorker:    outboxWorker,
		SnapshotUpdater: snapshotUpdater,
		KafkaConnection: kafkaConnection,
		Logger:          logger,
	}
}
