package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"http_server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	StatusAPI StatusAPIConfig `mapstructure:"status_api"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig is optional: an empty Source disables result persistence.
type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// RedisConfig is optional: an empty Addr keeps poll state in memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0"`
	PoolSize int           `mapstructure:"pool_size" validate:"min=0"`
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

type StatusAPIConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
}

type PollerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"min=0"`
}

// PaymentConfig is the default payment configuration used by the CLI and HTTP surface when the
// caller does not send one.
type PaymentConfig struct {
	Mode              string   `mapstructure:"mode" validate:"omitempty,oneof=mobile card"`
	Environment       string   `mapstructure:"environment" validate:"required"`
	SupportedGateways []string `mapstructure:"supported_gateways" validate:"dive,oneof=mpesa tigopesa none"`
	PhoneHint         string   `mapstructure:"phone_hint"`
	PhoneMask         string   `mapstructure:"phone_mask"`
}

type LoggingConfig struct {
	Level       string        `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format      string        `mapstructure:"format" validate:"required,oneof=json text"`
	Endpoint    string        `mapstructure:"endpoint" validate:"omitempty,url"`
	MaxWorkers  int           `mapstructure:"max_workers" validate:"min=0"`
	QueueSize   int           `mapstructure:"queue_size" validate:"min=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=0"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoadConfigFromEnv builds the configuration from plain environment variables for container
// deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 10*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
			StateTTL: getEnvAsDuration("REDIS_STATE_TTL", 24*time.Hour),
		},
		StatusAPI: StatusAPIConfig{
			BaseURL:         getEnv("STATUS_API_BASE_URL", ""),
			APIKey:          getEnv("STATUS_API_KEY", ""),
			Timeout:         getEnvAsDuration("STATUS_API_TIMEOUT", 10*time.Second),
			BreakerFailures: uint32(getEnvAsInt("STATUS_API_BREAKER_FAILURES", 5)),
			BreakerOpenFor:  getEnvAsDuration("STATUS_API_BREAKER_OPEN_FOR", 30*time.Second),
		},
		Poller: PollerConfig{
			Interval:     getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
			CheckTimeout: getEnvAsDuration("POLL_CHECK_TIMEOUT", 10*time.Second),
			MaxRetries:   getEnvAsInt("POLL_MAX_RETRIES", 0),
		},
		Payment: PaymentConfig{
			Mode:              getEnv("PAYMENT_MODE", ""),
			Environment:       getEnv("PAYMENT_ENVIRONMENT", payment.EnvironmentLive),
			SupportedGateways: getEnvAsList("PAYMENT_GATEWAYS"),
			PhoneHint:         getEnv("PAYMENT_PHONE_HINT", payment.DefaultPhoneHint),
			PhoneMask:         getEnv("PAYMENT_PHONE_MASK", payment.DefaultPhoneMask),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Endpoint:    getEnv("LOG_ENDPOINT", ""),
			MaxWorkers:  getEnvAsInt("LOG_MAX_WORKERS", 2),
			QueueSize:   getEnvAsInt("LOG_QUEUE_SIZE", 100),
			MaxAttempts: getEnvAsInt("LOG_MAX_ATTEMPTS", 3),
			Timeout:     getEnvAsDuration("LOG_TIMEOUT", 5*time.Second),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, fe := range validationErrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.MaxOpenConns < 1 {
		return errors.New("max_open_conns must be at least 1 when a source is set")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *DatabaseConfig) Enabled() bool {
	return c.Source != ""
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Validate only checks the environment literal. Credential rules belong to the request
// validator.
func (c *PaymentConfig) Validate() error {
	if !strings.EqualFold(c.Environment, payment.EnvironmentLive) && !strings.EqualFold(c.Environment, payment.EnvironmentSandbox) {
		return fmt.Errorf("environment must be %q or %q, got %q", payment.EnvironmentLive, payment.EnvironmentSandbox, c.Environment)
	}
	return nil
}

// Configuration converts the defaults into a payment configuration.
func (c *PaymentConfig) Configuration() (*payment.Configuration, error) {
	mode, err := payment.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}

	gateways := make([]payment.Gateway, 0, len(c.SupportedGateways))
	for _, raw := range c.SupportedGateways {
		g, err := payment.ParseGateway(raw)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}

	cfg := payment.NewConfiguration().
		WithMode(mode).
		WithEnvironment(c.Environment).
		WithGateways(gateways...)
	if c.PhoneHint != "" {
		cfg.WithPhoneHint(c.PhoneHint)
	}
	if c.PhoneMask != "" {
		cfg.WithPhoneMask(c.PhoneMask)
	}
	return cfg, nil
}
