package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost     string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"     envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"    validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"      envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"      envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"      envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"  envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"        envDefault:"auction_db"`
	PostgresMaxConns int    `env:"POSTGRES_MAX_CONNS" envDefault:"50" validate:"min=1"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
	LogFormat      string `env:"LOG_FORMAT"       envDefault:"console" validate:"oneof=console json"`

	// Virtual units granted per unit of real currency.
	VirtualMultiplier string `env:"LEDGER_VIRTUAL_MULTIPLIER" envDefault:"1" validate:"required,numeric"`
	Currency          string `env:"LEDGER_CURRENCY"           envDefault:"TRY" validate:"len=3"`

	BidLockTimeout   time.Duration `env:"BID_LOCK_TIMEOUT"    envDefault:"3s"`
	BidRetryAttempts int           `env:"BID_RETRY_ATTEMPTS"  envDefault:"3"     validate:"min=1,max=10"`
	BidRetryBackoff  time.Duration `env:"BID_RETRY_BACKOFF"   envDefault:"25ms"`
	BidBlockSelf     bool          `env:"BID_BLOCK_SELF_RAISE" envDefault:"false"`
	BidBlockSeller   bool          `env:"BID_BLOCK_SELLER"    envDefault:"true"`
	BidRateLimit     int           `env:"BID_RATE_LIMIT"      envDefault:"20"    validate:"min=0"`
	BidRateWindow    time.Duration `env:"BID_RATE_WINDOW"     envDefault:"10s"`

	ReservePolicy         string `env:"SETTLEMENT_RESERVE_POLICY" envDefault:"require" validate:"oneof=require ignore"`
	SettlementConcurrency int    `env:"SETTLEMENT_CONCURRENCY"    envDefault:"4"       validate:"min=1,max=64"`

	SchedulerEnabled  bool          `env:"SCHEDULER_ENABLED"  envDefault:"true"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"5s"`

	NotifyQueueSize   int    `env:"NOTIFY_QUEUE_SIZE"   envDefault:"1024" validate:"min=1"`
	NotifyWorkers     int    `env:"NOTIFY_WORKERS"      envDefault:"4"    validate:"min=1"`
	NotifyMaxAttempts int    `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"    validate:"min=1"`
	NotifyStream      string `env:"NOTIFY_STREAM"       envDefault:"notifications_stream"`
	NotifyGroup       string `env:"NOTIFY_GROUP"        envDefault:"notification_writers"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS"     envSeparator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"auction_audit"`
	KafkaRelayGroup string   `env:"KAFKA_RELAY_GROUP" envDefault:"audit_relay"`

	// Consumer name inside the stream groups; defaults to the hostname.
	InstanceName string `env:"INSTANCE_NAME"`
}

// Multiplier parses the validated virtual multiplier.
func (c *Config) Multiplier() decimal.Decimal {
	m, _ := decimal.NewFromString(c.VirtualMultiplier)
	return m
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	if err = validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	if !cfg.Multiplier().IsPositive() {
		err = fmt.Errorf("LEDGER_VIRTUAL_MULTIPLIER must be positive, got %q", cfg.VirtualMultiplier)
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
