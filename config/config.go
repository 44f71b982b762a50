package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type TradingWindow struct {
	Start    string `yaml:"start" env:"GATE_WINDOW_START" env-default:"09:30" validate:"required"`
	End      string `yaml:"end" env:"GATE_WINDOW_END" env-default:"16:00" validate:"required"`
	Timezone string `yaml:"timezone" env:"GATE_WINDOW_TIMEZONE" env-default:"UTC" validate:"required"`
}

type RateLimit struct {
	OrdersPerSecond int `yaml:"orders_per_second" env:"GATE_ORDERS_PER_SECOND" env-default:"10" validate:"min=1"`
}

type Credentials struct {
	Username string `yaml:"username" env:"GATE_USERNAME" validate:"required"`
	Password string `yaml:"password" env:"GATE_PASSWORD"`
	Account  string `yaml:"account" env:"GATE_ACCOUNT"`
}

type Dispatcher struct {
	TickInterval         time.Duration `yaml:"tick_interval" env:"GATE_TICK_INTERVAL" env-default:"100ms" validate:"gt=0"`
	SessionCheckInterval time.Duration `yaml:"session_check_interval" env:"GATE_SESSION_CHECK_INTERVAL" env-default:"1s" validate:"gt=0"`
}

type HTTPServer struct {
	Addr string `yaml:"address" env:"GATE_HTTP_ADDRESS" env-default:":8080"`
}

type Metrics struct {
	CSVPath    string        `yaml:"csv_path" env:"GATE_METRICS_CSV"`
	AuditDir   string        `yaml:"audit_dir" env:"GATE_AUDIT_DIR"`
	StaleAfter time.Duration `yaml:"stale_after" env:"GATE_STALE_AFTER" env-default:"5s" validate:"gt=0"`
	// RingSize must be a power of 2.
	RingSize int64 `yaml:"ring_size" env:"GATE_RING_SIZE" env-default:"4096" validate:"min=2"`
}

type Kafka struct {
	Brokers       []string `yaml:"brokers" env:"GATE_KAFKA_BROKERS" env-separator:","`
	Topic         string   `yaml:"topic" env:"GATE_KAFKA_TOPIC" env-default:"order-gate.outbound"`
	ResponseTopic string   `yaml:"response_topic" env:"GATE_KAFKA_RESPONSE_TOPIC" env-default:"order-gate.responses"`
	ConsumerGroup string   `yaml:"consumer_group" env:"GATE_KAFKA_GROUP" env-default:"order-gate"`
}

type Log struct {
	Level string `yaml:"level" env:"GATE_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	File  string `yaml:"file" env:"GATE_LOG_FILE"`
}

type Config struct {
	Env           string        `yaml:"env" env:"GATE_ENV" env-default:"development"`
	TradingWindow TradingWindow `yaml:"trading_window"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	Credentials   Credentials   `yaml:"credentials"`
	Dispatcher    Dispatcher    `yaml:"dispatcher"`
	HTTPServer    HTTPServer    `yaml:"http"`
	Metrics       Metrics       `yaml:"metrics"`
	Kafka         Kafka         `yaml:"kafka"`
	Log           Log           `yaml:"log"`
}

// Load reads an optional .env file, then path (if set) and the environment.
// Environment variables win over the file.
func Load(path string, envFiles ...string) (*Config, error) {
	// a missing .env is not an error
	_ = godotenv.Load(envFiles...)

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gate.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags and parses the trading window.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", gate.ErrConfiguration, err)
	}

	if c.Metrics.RingSize&(c.Metrics.RingSize-1) != 0 {
		return fmt.Errorf("%w: metrics ring_size %d is not a power of 2", gate.ErrConfiguration, c.Metrics.RingSize)
	}

	if _, err := c.Window(); err != nil {
		return err
	}
	return nil
}

// Window builds the trading window. Errors match gate.ErrConfiguration.
func (c *Config) Window() (*gate.TradingWindow, error) {
	return gate.NewTradingWindow(c.TradingWindow.Start, c.TradingWindow.End, c.TradingWindow.Timezone)
}

// GateCredentials converts the credentials section.
func (c *Config) GateCredentials() gate.Credentials {
	return gate.Credentials{
		Username: c.Credentials.Username,
		Password: c.Credentials.Password,
		Account:  c.Credentials.Account,
	}
}

// KafkaEnabled reports whether outbound traffic should go to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// MustLoad loads the config from CONFIG_PATH or the -config flag and exits on failure.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "path to config file")
		flag.Parse()
		configPath = *flags
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Fatalf("Config file does not exist: %s", configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Unable to load config: %s", err.Error())
	}
	return cfg
}
