package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"vine-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"vine"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Tracing
	OtelEnabled  bool   `env:"OTEL_ENABLED" env-default:"false"`
	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	OtelProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	OtelInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Consumer (supplier import lines)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaLinesTopic      string   `env:"KAFKA_LINES_TOPIC" env-default:"vine-lines"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"vine-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer settings
	KafkaMatchEventsTopic string `env:"KAFKA_MATCH_EVENTS_TOPIC" env-default:"match-events"`
	KafkaBatchSize        int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout     int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks     int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression      string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Wine database client (canonical name suggestions)
	WineDBBaseURL        string        `env:"WINEDB_BASE_URL" env-default:""`
	WineDBEnabled        bool          `env:"WINEDB_ENABLED" env-default:"false"`
	WineDBTimeout        time.Duration `env:"WINEDB_TIMEOUT" env-default:"3s"`
	WineDBMaxRetries     int           `env:"WINEDB_MAX_RETRIES" env-default:"2"`
	WineDBRetryBackoff   time.Duration `env:"WINEDB_RETRY_BACKOFF" env-default:"250ms"`
	WineDBMaxBodyBytes   int64         `env:"WINEDB_MAX_BODY_BYTES" env-default:"1048576"`

	// Matching
	MatchWorkerCount       int      `env:"MATCH_WORKER_COUNT" env-default:"4"`
	MatchSKUNormalizers    []string `env:"MATCH_SKU_NORMALIZERS" env-separator:"," env-default:"trim"`
	AutoMatchThreshold     float64  `env:"AUTO_MATCH_THRESHOLD" env-default:"0.85"`
	SuggestThreshold       float64  `env:"SUGGEST_THRESHOLD" env-default:"0.60"`
	MaxCandidates          int      `env:"MAX_CANDIDATES" env-default:"5"`
	SamplingReviewRate     float64  `env:"SAMPLING_REVIEW_RATE" env-default:"0.05"`
	AutoCreateEnabled      bool     `env:"AUTO_CREATE_ENABLED" env-default:"true"`
	AutoCreateWindowDays   int      `env:"AUTO_CREATE_WINDOW_DAYS" env-default:"7"`
	AutoCreateMaxPerWindow int      `env:"AUTO_CREATE_MAX_PER_WINDOW" env-default:"500"`

	// Health reporting
	HealthWindowDays        int     `env:"HEALTH_WINDOW_DAYS" env-default:"7"`
	HealthMinSampleSize     int     `env:"HEALTH_MIN_SAMPLE_SIZE" env-default:"10"`
	HealthMinAutoMatchRate  float64 `env:"HEALTH_MIN_AUTO_MATCH_RATE" env-default:"0.30"`
	HealthMaxSuggestedRate  float64 `env:"HEALTH_MAX_SUGGESTED_RATE" env-default:"0.60"`
	HealthMinAvgConfidence  float64 `env:"HEALTH_MIN_AVG_CONFIDENCE" env-default:"0.75"`
	HealthMaxAutoCreateRate float64 `env:"HEALTH_MAX_AUTO_CREATE_RATE" env-default:"0.50"`
}
