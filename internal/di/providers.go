package di

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"HistPull/internal/domain/repository"
	"HistPull/internal/handler/api"
	"HistPull/internal/recorder"
	internalrepo "HistPull/internal/repository"
	"HistPull/internal/scheduler"
	"HistPull/internal/service/archiver"
	"HistPull/internal/service/export"
	"HistPull/internal/service/jobs"
	"HistPull/internal/service/ratelimit"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
	pkgch "HistPull/pkg/clickhouse"
	"HistPull/pkg/config"
	xhttp "HistPull/pkg/http"
	pkgkafka "HistPull/pkg/kafka"
	"HistPull/pkg/logger"
	"HistPull/pkg/metrics"
	"HistPull/pkg/queue"
	"HistPull/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideLocation resolves the archive timezone.
func ProvideLocation(cfg *config.Config) *time.Location {
	return cfg.Location()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the shared cache. A layered memory+Redis cache
// when Redis is enabled, otherwise an in-process cache so callers never
// see a nil Service.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}

	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideArchiveClient creates the REST gateway client.
func ProvideArchiveClient(cfg *config.Config, log *logger.Logger) *archiver.Client {
	return archiver.NewClient(
		cfg.Archive.BaseURL,
		cfg.Archive.Source,
		archiver.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Archive.Timeout))),
		archiver.WithPaths(cfg.Archive.SearchPath, cfg.Archive.QueryPath),
		archiver.WithLogger(log),
	)
}

// ProvideClickHouseClient creates a ClickHouse client for the low-level
// backend. Returns nil when the hdb backend is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.HDB.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHosts(cfg.HDB.Hosts...),
		pkgch.WithPort(cfg.HDB.Port),
		pkgch.WithDatabase(cfg.HDB.Database),
		pkgch.WithCredentials(cfg.HDB.User, cfg.HDB.Password),
		pkgch.WithAddressMap(cfg.HDB.AddressMap),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.HDB.DialTimeout, cfg.HDB.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.HDB.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideHDBStore creates the column-store reader on top of ClickHouse.
// Returns nil when the hdb backend is disabled.
func ProvideHDBStore(ch *pkgch.Client, cfg *config.Config, loc *time.Location, log *logger.Logger) *internalrepo.HDBStore {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewHDBStore(ch, loc, cfg.HDB.ConfTTL)
	store.SetLogger(log)
	return store
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when kafka
// export is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka dataset publisher. Nil when kafka
// is disabled; the export usecase then rejects the kafka target.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideRecorder creates the run history recorder. SQLite when
// enabled, otherwise a no-op sink.
func ProvideRecorder(cfg *config.Config, log *logger.Logger) (repository.Recorder, error) {
	if !cfg.Recorder.Enabled {
		return recorder.NewNoopRecorder(), nil
	}
	rec, err := recorder.NewSQLiteRecorder(cfg.Recorder.Path, log)
	if err != nil {
		return nil, fmt.Errorf("run recorder: %w", err)
	}
	return rec, nil
}

// ProvideResolveUseCase creates the pattern resolution use case with
// search caching when a TTL is configured.
func ProvideResolveUseCase(ac *archiver.Client, c cache.Service, cfg *config.Config, log *logger.Logger) *usecase.ResolveUseCase {
	uc := usecase.NewResolveUseCase(ac, log)
	if cfg.Redis.CacheTTL.Search > 0 {
		uc = uc.WithCache(c, cfg.Archive.Source, cfg.Redis.CacheTTL.Search)
	}
	return uc
}

// ProvideQueryUseCase creates the query orchestrator with one fetcher
// per backend. The hdb fetcher stays nil when ClickHouse is disabled
// and requests for it fail with a validation error.
func ProvideQueryUseCase(
	resolve *usecase.ResolveUseCase,
	ac *archiver.Client,
	hdb *internalrepo.HDBStore,
	m repository.Metrics,
	cfg *config.Config,
	log *logger.Logger,
) *usecase.QueryUseCase {
	rest := usecase.NewFetchUseCase(ac, m, string(repository.BackendREST), cfg.Fetch.Workers, cfg.Fetch.Timeout, log)

	var hdbFetch *usecase.FetchUseCase
	if hdb != nil {
		hdbFetch = usecase.NewFetchUseCase(hdb, m, string(repository.BackendHDB), cfg.Fetch.Workers, cfg.Fetch.Timeout, log)
	}

	return usecase.NewQueryUseCase(resolve, rest, hdbFetch, log)
}

// ProvideExportUseCase creates the export pipeline.
func ProvideExportUseCase(
	query *usecase.QueryUseCase,
	pub repository.Publisher,
	rec repository.Recorder,
	loc *time.Location,
	log *logger.Logger,
) *usecase.ExportUseCase {
	return usecase.NewExportUseCase(
		query,
		export.NewFormatter(loc),
		export.NewWriter(log),
		pub,
		rec,
		log,
	)
}

// ProvideQueue creates the Redis-backed job queue. The queue shares the
// cache's Redis connection; without Redis there is no queue and the
// async endpoints report unavailable.
func ProvideQueue(cfg *config.Config, c cache.Service, log *logger.Logger) *queue.RedisQueue {
	var rc *cache.RedisCache
	switch v := c.(type) {
	case *cache.LayeredCache:
		rc = v.Redis()
	case *cache.RedisCache:
		rc = v
	default:
		return nil
	}

	var opts []queue.RedisQueueOption
	if cfg.Jobs.Queue != "" {
		opts = append(opts, queue.WithKeyPrefix(cfg.Jobs.Queue))
	}

	return queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		RetryLimit: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, opts...)
}

// ProvideJobsService creates the async export service and registers its
// job handler on the queue. Nil when the queue is unavailable.
func ProvideJobsService(
	q *queue.RedisQueue,
	c cache.Service,
	exportUC *usecase.ExportUseCase,
	cfg *config.Config,
	log *logger.Logger,
) *jobs.Service {
	if q == nil {
		return nil
	}
	svc := jobs.NewService(q, c, cfg.Jobs.StatusTTL, log)
	q.RegisterJob(jobs.NewExportJob(exportUC, svc, log))
	return svc
}

// ProvideScheduler creates the recurring export scheduler. Nil when
// disabled.
func ProvideScheduler(
	exportUC *usecase.ExportUseCase,
	c cache.Service,
	loc *time.Location,
	cfg *config.Config,
	log *logger.Logger,
) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s := scheduler.New(exportUC, c, loc, log)
	if err := s.RegisterAll(cfg.Scheduler.Jobs); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideHandler assembles the HTTP handler with its optional
// collaborators.
func ProvideHandler(
	cfg *config.Config,
	log *logger.Logger,
	resolve *usecase.ResolveUseCase,
	query *usecase.QueryUseCase,
	exportUC *usecase.ExportUseCase,
	loc *time.Location,
	jobsSvc *jobs.Service,
	rec repository.Recorder,
	ac *archiver.Client,
	c cache.Service,
) xhttp.Handler {
	h := api.NewArchiveEchoHandler(log, resolve, query, exportUC, loc).
		WithRecorder(rec).
		WithRateLimiter(ratelimit.New()).
		WithArchiveProbe(ac)

	if jobsSvc != nil {
		h = h.WithJobs(jobsSvc)
	}
	if cfg.Redis.CacheTTL.Query > 0 {
		h = h.WithQueryCache(c, cfg.Redis.CacheTTL.Query)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	ac *archiver.Client,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	c cache.Service,
	rec repository.Recorder,
) *server.App {
	return server.New(cfg, log, handler, q, sched, ac, chClient, producer, c, rec)
}
