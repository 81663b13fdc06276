package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/furahitechstudio/furahitechpay/internal"
	datamodel "github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/furahitechstudio/furahitechpay/internal/core/events"
	"github.com/furahitechstudio/furahitechpay/internal/payment"
	paymentPostgres "github.com/furahitechstudio/furahitechpay/internal/payment/postgres"
	"github.com/furahitechstudio/furahitechpay/internal/paymentgateway"
	"github.com/furahitechstudio/furahitechpay/internal/paymentlog"
	"github.com/furahitechstudio/furahitechpay/internal/poller"
	"github.com/furahitechstudio/furahitechpay/internal/pollstate"
)

// paymentStack holds everything a payment session needs. DB and Redis are nil when their
// config section is empty.
type paymentStack struct {
	Config   *internal.Config
	Logger   *slog.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Store    pollstate.Store
	Client   *paymentgateway.StatusClient
	Shipper  *paymentlog.HTTPShipper
	Events   *events.EventBus
	Service  *payment.PaymentService
	Defaults *datamodel.Configuration
}

func newPaymentStack(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (*paymentStack, error) {
	defaults, err := cfg.Payment.Configuration()
	if err != nil {
		return nil, fmt.Errorf("invalid payment defaults: %w", err)
	}

	stack := &paymentStack{
		Config:   cfg,
		Logger:   lg,
		Defaults: defaults,
		Store:    pollstate.NewMemoryStore(),
	}

	var repository payment.ResultRepository
	if cfg.Database.Enabled() {
		db, err := initDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		stack.DB = db
		repository = paymentPostgres.NewPaymentResultRepository(db)
	}

	if cfg.Redis.Enabled() {
		client, err := initRedis(ctx, cfg.Redis)
		if err != nil {
			stack.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		stack.Redis = client
		stack.Store = pollstate.NewRedisStore(client, cfg.Redis.StateTTL)
	}

	stack.Client = paymentgateway.NewStatusClient(paymentgateway.Config{
		BaseURL:         cfg.StatusAPI.BaseURL,
		APIKey:          cfg.StatusAPI.APIKey,
		Timeout:         cfg.StatusAPI.Timeout,
		BreakerFailures: cfg.StatusAPI.BreakerFailures,
		BreakerOpenFor:  cfg.StatusAPI.BreakerOpenFor,
	}, lg)

	stack.Shipper = paymentlog.NewHTTPShipper(paymentlog.Config{
		Endpoint:    cfg.Logging.Endpoint,
		Timeout:     cfg.Logging.Timeout,
		MaxWorkers:  cfg.Logging.MaxWorkers,
		QueueSize:   cfg.Logging.QueueSize,
		MaxAttempts: cfg.Logging.MaxAttempts,
	}, lg)

	stack.Events = events.NewEventBus(lg)
	stack.Events.Subscribe(func(ctx context.Context, event events.Event) error {
		lg.Debug("payment state changed",
			"state", event.EventType(),
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})

	statusPoller := poller.New(stack.Client, poller.Options{
		Interval:     cfg.Poller.Interval,
		CheckTimeout: cfg.Poller.CheckTimeout,
		MaxRetries:   cfg.Poller.MaxRetries,
	}, lg)

	stack.Service = payment.NewPaymentService(ctx, payment.Dependencies{
		Poller:      statusPoller,
		Events:      stack.Events,
		EventLogger: stack.Shipper,
		Store:       stack.Store,
		Repository:  repository,
		Logger:      lg,
	})

	return stack, nil
}

// Close stops the log shipper and releases the connections.
func (s *paymentStack) Close() {
	if s.Service != nil {
		_ = s.Service.CancelPolling(context.Background())
	}
	if s.Shipper != nil {
		s.Shipper.Shutdown()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Error("Redis close error", "error", err)
		}
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.Logger.Error("Database close error", "error", err)
			}
		}
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql db: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func initRedis(ctx context.Context, cfg internal.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
