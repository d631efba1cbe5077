// Package config loads process configuration from the environment, with
// an optional .env file underneath.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"lob/infra/logging"
)

// MustLoad loads cfg and panics on error.
func MustLoad[T any](cfg T, files ...string) {
	env.Must(cfg, Load(cfg, files...))
}

var validate = validator.New()

// Load reads the given .env files (".env" when none are named) into the
// environment, parses it into cfg and checks the validate tags. A missing
// file is not an error; variables already set win over file values.
func Load[T any](cfg T, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return errors.Wrap(err, "parse environment")
	}
	return errors.Wrap(validate.Struct(cfg), "invalid config")
}

type Config struct {
	Engine  EngineConfig   `envPrefix:"ENGINE_"`
	Log     logging.Config `envPrefix:"LOG_"`
	Outbox  OutboxConfig   `envPrefix:"OUTBOX_"`
	Kafka   KafkaConfig    `envPrefix:"KAFKA_"`
	NATS    NATSConfig     `envPrefix:"NATS_"`
	Metrics MetricsConfig  `envPrefix:"METRICS_"`
	Sim     SimConfig      `envPrefix:"SIM_"`
}

type EngineConfig struct {
	Symbol          string        `env:"SYMBOL" envDefault:"BTC-USD" validate:"required"`
	InboxSize       int           `env:"INBOX_SIZE" envDefault:"1024" validate:"gt=0"`
	CheckInvariants bool          `env:"CHECK_INVARIANTS" envDefault:"false"`
	DepthInterval   time.Duration `env:"DEPTH_INTERVAL" envDefault:"1s" validate:"gt=0"`
}

type OutboxConfig struct {
	Enabled      bool          `env:"ENABLED" envDefault:"true"`
	Dir          string        `env:"DIR" envDefault:"data/outbox" validate:"required_if=Enabled true"`
	ScanInterval time.Duration `env:"SCAN_INTERVAL" envDefault:"250ms" validate:"gt=0"`
	MaxRetries   uint32        `env:"MAX_RETRIES" envDefault:"5" validate:"gt=0"`
}

// KafkaConfig and NATSConfig select the report publisher: Kafka when
// brokers are set, else NATS when a URL is set, else the log.
type KafkaConfig struct {
	Brokers []string `env:"BROKERS"`
	Topic   string   `env:"TOPIC" envDefault:"execution-reports" validate:"required"`
	Client  string   `env:"CLIENT" envDefault:"sarama" validate:"oneof=sarama kafka-go"`
}

type NATSConfig struct {
	URL          string        `env:"URL"`
	Subject      string        `env:"SUBJECT" envDefault:"lob.reports" validate:"required"`
	FlushTimeout time.Duration `env:"FLUSH_TIMEOUT" envDefault:"2s"`
}

type MetricsConfig struct {
	Addr string `env:"ADDR" envDefault:":9090"`
}

type SimConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"true"`
	Orders      int     `env:"ORDERS" envDefault:"10000" validate:"gte=0"`
	Seed        int64   `env:"SEED" envDefault:"1"`
	MidPrice    float64 `env:"MID_PRICE" envDefault:"100" validate:"gt=0"`
	Spread      float64 `env:"SPREAD" envDefault:"5" validate:"gte=0"`
	Tick        float64 `env:"TICK" envDefault:"0.5" validate:"gt=0"`
	MaxQuantity float64 `env:"MAX_QUANTITY" envDefault:"10" validate:"gte=1"`
	MarketRatio float64 `env:"MARKET_RATIO" envDefault:"0.1" validate:"gte=0,lte=1"`
	CancelRatio float64 `env:"CANCEL_RATIO" envDefault:"0.2" validate:"gte=0,lte=1"`
}
