package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis-developer/beats-by-redis/config"
	"github.com/redis-developer/beats-by-redis/internal/domain/repository"
	"github.com/redis-developer/beats-by-redis/internal/domain/service"
	ws "github.com/redis-developer/beats-by-redis/internal/handlers/websocket"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/cache"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/feed"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/queue"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/storage"
	"github.com/redis-developer/beats-by-redis/internal/infrastructure/stream"
	"github.com/redis-developer/beats-by-redis/pkg/utils"
)

// AppContext holds all app dependencies
type AppContext struct {
	Config       *config.Config
	Store        *cache.RedisRepository
	EventLog     repository.EventLog
	Archive      *storage.ClickHouseRepository
	Registry     *ws.Registry
	Broadcaster  *ws.WebSocketBroadcaster
	Materializer *service.Materializer
	Queries      *service.Queries
	Producer     *Producer
	Consumers    []*Consumer
	Aggregates   *AggregatesTask

	kafkaLog *queue.KafkaLog
	logger   *slog.Logger
}

// NewApp initializes the app context with all dependencies
func NewApp(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{Config: cfg, logger: logger}

	// Derived state lives in Redis Stack regardless of the log backend.
	app.Store = cache.NewRedisRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := app.Store.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure purchase index: %w", err)
	}
	logger.Info("redis repository initialized", "addr", cfg.RedisAddr)

	// Append log backend.
	switch cfg.EventLogBackend {
	case "kafka":
		app.kafkaLog = queue.NewKafkaLog(queue.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			DeadTopic:    cfg.KafkaDeadTopic,
			Group:        cfg.StreamGroup,
			BatchTimeout: cfg.KafkaBatchTimeout,
		})
		app.EventLog = app.kafkaLog
		logger.Info("using Kafka event log", "topic", cfg.KafkaTopic)
	default:
		app.EventLog = stream.NewRedisLog(app.Store.Client(), cfg.StreamKey, cfg.StreamMaxLen)
		logger.Info("using Redis Streams event log", "stream", cfg.StreamKey)
	}

	// Optional ClickHouse archive; the pipeline runs fine without it.
	if cfg.ClickhouseAddr != "" {
		archive, err := storage.NewClickHouseRepository(storage.ClickHouseConfig{
			Addr:     cfg.ClickhouseAddr,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
			Timeout:  cfg.ClickhouseTimeout,
		})
		if err != nil {
			logger.Warn("failed to connect to ClickHouse, continuing without archive", "error", err)
		} else {
			app.Archive = archive
			logger.Info("ClickHouse archive initialized")
		}
	}

	// Fan-out.
	app.Registry = ws.NewRegistry()
	app.Broadcaster = ws.NewWebSocketBroadcaster(app.Registry, logger)

	// Services.
	var archive repository.PurchaseArchive
	if app.Archive != nil {
		archive = app.Archive
	}
	app.Materializer = service.NewMaterializer(app.Store, app.Store, app.Store, archive, logger)
	app.Queries = service.NewQueries(app.Store, app.Store, app.Store)

	// Cold start with an intact archive: restore the derived state before the
	// producer primes from the live feed.
	if app.Archive != nil {
		count, err := app.Store.CountPurchases(ctx)
		if err != nil {
			logger.Warn("could not check purchase count for rebuild", "error", err)
		} else if count == 0 {
			restored, err := service.RebuildDerivedState(ctx, app.Archive, app.Store, app.Store, 0)
			if err != nil {
				logger.Warn("failed to rebuild derived state from archive", "error", err)
			} else if restored > 0 {
				logger.Info("restored derived state from archive", "purchases", restored)
			}
		}
	}

	// Feed source: the real feed, or the synthetic generator when no URL is
	// configured.
	var source feed.Source
	if cfg.FeedURL != "" {
		source = feed.NewClient(cfg.FeedURL)
		logger.Info("using sales feed", "url", cfg.FeedURL)
	} else {
		source = utils.NewPurchaseGenerator()
		logger.Info("no feed URL configured, using synthetic purchase generator")
	}

	app.Producer = NewProducer(
		source, app.EventLog, app.Store, app.Store, logger,
		cfg.FeedPollInterval, cfg.FeedReplay, cfg.FeedReplayMaxGap,
	)

	for i := 0; i < cfg.ConsumerCount; i++ {
		app.Consumers = append(app.Consumers, NewConsumer(
			app.EventLog, app.Materializer, app.Broadcaster, logger,
			ConsumerOptions{
				Group:         cfg.StreamGroup,
				BatchSize:     cfg.ConsumerBatchSize,
				Block:         cfg.ConsumerBlock,
				ClaimMinIdle:  cfg.ConsumerClaimMinIdle,
				MaxDeliveries: cfg.ConsumerMaxDeliveries,
			},
		))
	}

	app.Aggregates = NewAggregatesTask(
		app.Queries, app.Broadcaster, logger,
		cfg.AggregateInterval, cfg.HistoryWindow, cfg.TopSellersCount,
	)

	return app, nil
}

// Reset clears all derived state and, if the purchase index came up empty,
// re-primes the log with one immediate feed cycle.
func (a *AppContext) Reset(ctx context.Context) error {
	if err := a.Store.Reset(ctx); err != nil {
		return err
	}
	// The flush also removed the stream and its consumer group; recreate the
	// group so running consumers don't spin on missing-group errors.
	if err := a.EventLog.CreateGroup(ctx, a.Config.StreamGroup, "0"); err != nil {
		return err
	}
	count, err := a.Store.CountPurchases(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		a.Producer.Cycle(ctx)
	}
	return nil
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.kafkaLog != nil {
		a.logger.Info("closing Kafka event log")
		if err := a.kafkaLog.Close(); err != nil {
			a.logger.Error("error closing Kafka event log", "error", err)
		}
	}

	if a.Archive != nil {
		a.logger.Info("closing ClickHouse archive")
		if err := a.Archive.Close(); err != nil {
			a.logger.Error("error closing ClickHouse archive", "error", err)
		}
	}

	a.logger.Info("closing redis connection")
	if err := a.Store.Close(); err != nil {
		a.logger.Error("error closing redis connection", "error", err)
	}
}
