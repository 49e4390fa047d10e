package di

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"ClpWatch/internal/domain/repository"
	"ClpWatch/internal/handler/api"
	"ClpWatch/internal/handler/ws"
	internalrepo "ClpWatch/internal/repository"
	"ClpWatch/internal/service/binance"
	"ClpWatch/internal/service/cache"
	svcmetrics "ClpWatch/internal/service/metrics"
	"ClpWatch/internal/service/ratelimit"
	"ClpWatch/internal/services/risk"
	"ClpWatch/internal/services/scoring"
	"ClpWatch/internal/usecase"
	pkgch "ClpWatch/pkg/clickhouse"
	"ClpWatch/pkg/config"
	pkgkafka "ClpWatch/pkg/kafka"
	"ClpWatch/pkg/logger"
	"ClpWatch/pkg/metrics"
	"ClpWatch/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer when snapshots are published or
// error logs are collected, nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Snapshots.Publish && !cfg.Logger.Collect {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
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

// ProvideLogger builds the app logger and attaches the error collector when enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logger.Collect && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logger.FlushInterval,
			CountThreshold: 100,
			Topic:          cfg.Logger.CollectTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse when the snapshot log lives
// there, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Snapshots.Backend != "clickhouse" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSnapshotStore opens and initializes the configured snapshot log.
// Backend "none" yields a nil store.
func ProvideSnapshotStore(cfg *config.Config, ch *pkgch.Client) (repository.SnapshotStore, error) {
	var store repository.SnapshotStore
	switch cfg.Snapshots.Backend {
	case "csv":
		store = internalrepo.NewCSVSnapshotStore(cfg.Snapshots.CSVPath)
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse backend without client")
		}
		table := cfg.Snapshots.Table
		if cfg.ClickHouse.Database != "" && !strings.Contains(table, ".") {
			table = cfg.ClickHouse.Database + "." + table
		}
		store = internalrepo.NewClickHouseSnapshotStore(ch.DB(), table)
	default:
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("snapshot store init: %w", err)
	}
	return store, nil
}

// ProvideSnapshotPublisher publishes cycles to Kafka when enabled.
func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.SnapshotPublisher {
	if !cfg.Snapshots.Publish || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, cfg.Kafka.FlipsTopic)
}

// ProvideMarketDataSource creates the Binance futures client.
func ProvideMarketDataSource(cfg *config.Config, log *logger.Logger) (repository.MarketDataSource, error) {
	c, err := binance.New(binance.Config{
		BaseURL: cfg.Binance.BaseURL,
		Timeout: cfg.Binance.Timeout,
		Retries: cfg.Binance.Retries,
		Backoff: cfg.Binance.Backoff,
		RPS:     cfg.Binance.RPS,
		Burst:   cfg.Binance.Burst,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("binance client: %w", err)
	}
	return c, nil
}

// ProvideRunCache memoizes instrument runs in Redis when enabled, in process otherwise.
func ProvideRunCache(cfg *config.Config) cache.BytesCache {
	if cfg.Redis.Enabled {
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	}
	return cache.NewTTLCache(cache.WithMaxEntries(cfg.Monitor.CacheEntries))
}

// ProvideRunParams derives the watchlist run parameters from config. A
// sensitivity preset sets window, policy and thresholds; explicit non-zero
// values win.
func ProvideRunParams(cfg *config.Config) (usecase.RunParams, error) {
	m := cfg.Monitor
	p := usecase.DefaultRunParams()
	p.Interval = repository.Interval(m.Interval)
	p.Lookback = m.Lookback
	p.ShareLookback = m.ShareLookback
	// an absent weights section means the default blend
	if w := m.Weights; w.Funding != 0 || w.OI != 0 || w.AbsReturn != 0 {
		p.Weights = scoring.Weights{Funding: w.Funding, OI: w.OI, AbsReturn: w.AbsReturn}
	}
	p, err := p.Resolve(m.Sensitivity, usecase.Overrides{
		ZWindow:  m.ZWindow,
		Policy:   scoring.Policy(m.Policy),
		PStress:  nonZero(m.PStress),
		PExtreme: nonZero(m.PExtreme),
		KStress:  nonZero(m.KStress),
		KExtreme: nonZero(m.KExtreme),
	})
	if err != nil {
		return p, err
	}
	return p.Prepare()
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// ProvideWatchlistConfig resolves the symbol list from explicit symbols or a preset.
func ProvideWatchlistConfig(cfg *config.Config, p usecase.RunParams) (usecase.WatchlistConfig, error) {
	symbols := cfg.Monitor.Symbols
	if len(symbols) == 0 {
		wl, ok := usecase.LookupWatchlist(cfg.Monitor.Watchlist)
		if !ok {
			return usecase.WatchlistConfig{}, fmt.Errorf("unknown watchlist %q", cfg.Monitor.Watchlist)
		}
		symbols = wl.Symbols
	}
	cp := risk.DefaultCrowdingParams
	if cfg.Monitor.TopFraction > 0 {
		cp.TopFraction = cfg.Monitor.TopFraction
	}
	if cfg.Monitor.MinN > 0 {
		cp.MinN = cfg.Monitor.MinN
	}
	return usecase.WatchlistConfig{Symbols: symbols, Params: p, Crowding: cp}, nil
}

// ProvideInstrumentRunner creates the memoized single-instrument runner.
func ProvideInstrumentRunner(src repository.MarketDataSource, c cache.BytesCache, m repository.Metrics, log *logger.Logger, cfg *config.Config) *usecase.InstrumentRunner {
	return usecase.NewInstrumentRunner(src, c, cfg.Monitor.CacheTTL, m, log)
}

// ProvideFlipTracker creates the cross-cycle flip state.
func ProvideFlipTracker() *usecase.FlipTracker { return usecase.NewFlipTracker() }

// ProvideWatchlistMonitor creates the refresh loop use case.
func ProvideWatchlistMonitor(
	runner *usecase.InstrumentRunner,
	wcfg usecase.WatchlistConfig,
	store repository.SnapshotStore,
	pub repository.SnapshotPublisher,
	tracker *usecase.FlipTracker,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.WatchlistMonitor {
	return usecase.NewWatchlistMonitor(runner, wcfg, store, pub, tracker, m, log)
}

// ProvideHistoryUseCase reads the snapshot log.
func ProvideHistoryUseCase(store repository.SnapshotStore) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store)
}

// ProvideHub creates the websocket broadcast hub.
func ProvideHub(log *logger.Logger) *ws.Hub { return ws.NewHub(log) }

// ProvideClpHandler creates the HTTP API handler.
func ProvideClpHandler(log *logger.Logger, runner *usecase.InstrumentRunner, mon *usecase.WatchlistMonitor, history *usecase.HistoryUseCase) *api.ClpEchoHandler {
	return api.NewClpEchoHandler(log, runner, mon, history)
}

// ProvideRateLimiter limits API clients per IP, nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimitRPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
}

// ProvideKafkaConsumer creates a Kafka consumer when the snapshot sink is enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaSnapshotHandler sinks the snapshot topic into the snapshot store.
func ProvideKafkaSnapshotHandler(cfg *config.Config, store repository.SnapshotStore, m repository.Metrics) *usecase.KafkaSnapshotHandler {
	if !cfg.Kafka.Consumer.Enabled || store == nil {
		return nil
	}
	return usecase.NewKafkaSnapshotHandler(cfg.Kafka.Topic, store, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	mon *usecase.WatchlistMonitor,
	hub *ws.Hub,
	handler *api.ClpEchoHandler,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	sink *usecase.KafkaSnapshotHandler,
	store repository.SnapshotStore,
	pub repository.SnapshotPublisher,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	runCache cache.BytesCache,
) *server.App {
	app := server.New(cfg, log, mon, hub, handler)
	if limiter != nil {
		app.SetRateLimiter(limiter)
	}
	if consumer != nil && sink != nil {
		app.SetConsumer(consumer, sink)
	}
	app.AddCloser("snapshot store", store)
	// the publisher owns the producer when present
	if pub != nil {
		app.AddCloser("snapshot publisher", pub)
	} else if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	if c, ok := runCache.(io.Closer); ok {
		app.AddCloser("run cache", c)
	}
	return app
}
