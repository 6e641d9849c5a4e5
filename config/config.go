package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all app configuration
type Config struct {
	// Server
	Env      string
	HTTPPort string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sales feed
	FeedURL          string
	FeedPollInterval time.Duration
	FeedReplay       bool          // replay fetched pages at feed cadence instead of bulk-appending
	FeedReplayMaxGap time.Duration // cap on the inter-event sleep in replay mode

	// Append log
	EventLogBackend string // "redis" or "kafka"
	StreamKey       string
	StreamMaxLen    int64

	// Consumer group
	StreamGroup           string
	ConsumerCount         int
	ConsumerBatchSize     int64
	ConsumerBlock         time.Duration
	ConsumerClaimMinIdle  time.Duration
	ConsumerMaxDeliveries int64

	// Aggregates push
	AggregateInterval time.Duration
	HistoryWindow     time.Duration
	TopSellersCount   int

	// Kafka (only used when EventLogBackend is "kafka")
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaDeadTopic    string
	KafkaBatchTimeout time.Duration

	// ClickHouse (optional archive)
	ClickhouseAddr     string
	ClickhouseUsername string
	ClickhousePassword string
	ClickhouseTimeout  int

	Debug bool
}

// LoadConfig loads configuration from environment variables, with optional .env file
func LoadConfig() *Config {
	// Load .env file if it exists; environment-only configuration is fine too.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := &Config{
		// Server
		Env:      getEnv("ENV", "local"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Sales feed. An empty FEED_URL switches the producer to the
		// synthetic generator.
		FeedURL:          getEnv("FEED_URL", "https://bandcamp.com/api/salesfeed/1/get"),
		FeedPollInterval: getEnvAsDuration("FEED_POLL_INTERVAL_MS", 60_000),
		FeedReplay:       getEnvAsBool("FEED_REPLAY", false),
		FeedReplayMaxGap: getEnvAsDuration("FEED_REPLAY_MAX_GAP_MS", 5_000),

		// Append log
		EventLogBackend: getEnv("EVENT_LOG_BACKEND", "redis"),
		StreamKey:       getEnv("STREAM_KEY", "purchases"),
		StreamMaxLen:    int64(getEnvAsInt("STREAM_MAXLEN", 100)),

		// Consumer group
		StreamGroup:           getEnv("STREAM_GROUP", "purchases-group"),
		ConsumerCount:         getEnvAsInt("CONSUMER_COUNT", 1),
		ConsumerBatchSize:     int64(getEnvAsInt("CONSUMER_BATCH_SIZE", 100)),
		ConsumerBlock:         getEnvAsDuration("CONSUMER_BLOCK_MS", 5_000),
		ConsumerClaimMinIdle:  getEnvAsDuration("CONSUMER_CLAIM_MIN_IDLE_MS", 30_000),
		ConsumerMaxDeliveries: int64(getEnvAsInt("CONSUMER_MAX_DELIVERIES", 5)),

		// Aggregates push
		AggregateInterval: getEnvAsDuration("AGGREGATE_INTERVAL_MS", 10_000),
		HistoryWindow:     getEnvAsDuration("HISTORY_WINDOW_MS", int(time.Hour/time.Millisecond)),
		TopSellersCount:   getEnvAsInt("TOP_SELLERS_COUNT", 5),

		// Kafka
		KafkaBrokers:      getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}, ","),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "purchases"),
		KafkaDeadTopic:    getEnv("KAFKA_DEAD_TOPIC", "purchases-dead"),
		KafkaBatchTimeout: getEnvAsDuration("KAFKA_BATCH_TIMEOUT_MS", 3_000),

		// ClickHouse
		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", ""),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseTimeout:  getEnvAsInt("CLICKHOUSE_TIMEOUT", 10),

		Debug: getEnvAsBool("DEBUG", false),
	}

	return cfg
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultMs)) * time.Millisecond
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}
