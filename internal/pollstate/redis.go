package pollstate

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
)

const (
	keyPrefix  = "poll:"
	resultPart = ":result"
	DefaultTTL = 24 * time.Hour
)

type RedisStore struct {
	cache *redis.Client
	ttl   time.Duration
}

func NewRedisStore(cache *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		cache: cache,
		ttl:   ttl,
	}
}

func stateKey(transactionID string) string {
	return keyPrefix + transactionID
}

func resultKey(transactionID string) string {
	return keyPrefix + transactionID + resultPart
}

func (s *RedisStore) SaveState(ctx context.Context, state payment.PollState) error {
	key := stateKey(state.TransactionID)

	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"gateway", string(state.Gateway),
			"transaction_id", state.TransactionID,
			"retry_count", state.RetryCount,
			"is_running", strconv.FormatBool(state.IsRunning),
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save poll state: %w", err)
	}
	return nil
}

func (s *RedisStore) GetState(ctx context.Context, transactionID string) (payment.PollState, error) {
	fields, err := s.cache.HGetAll(ctx, stateKey(transactionID)).Result()
	if err != nil {
		return payment.PollState{}, fmt.Errorf("failed to load poll state: %w", err)
	}
	if len(fields) == 0 {
		return payment.PollState{}, ErrStateNotFound
	}

	retryCount, err := strconv.Atoi(fields["retry_count"])
	if err != nil {
		return payment.PollState{}, fmt.Errorf("invalid retry_count in poll state: %w", err)
	}
	isRunning, err := strconv.ParseBool(fields["is_running"])
	if err != nil {
		return payment.PollState{}, fmt.Errorf("invalid is_running in poll state: %w", err)
	}

	return payment.PollState{
		Gateway:       payment.Gateway(fields["gateway"]),
		TransactionID: fields["transaction_id"],
		RetryCount:    retryCount,
		IsRunning:     isRunning,
	}, nil
}

func (s *RedisStore) RecordResult(ctx context.Context, transactionID string, status payment.PaymentStatus) (bool, error) {
	payload, err := sonic.ConfigFastest.Marshal(status)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payment status: %w", err)
	}

	recorded, err := s.cache.SetNX(ctx, resultKey(transactionID), payload, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record payment result: %w", err)
	}
	return recorded, nil
}

func (s *RedisStore) GetResult(ctx context.Context, transactionID string) (payment.PaymentStatus, error) {
	payload, err := s.cache.Get(ctx, resultKey(transactionID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return payment.PaymentStatus{}, errors.ErrResultNotFound
	}
	if err != nil {
		return payment.PaymentStatus{}, fmt.Errorf("failed to load payment result: %w", err)
	}

	var status payment.PaymentStatus
	if err := sonic.ConfigFastest.Unmarshal(payload, &status); err != nil {
		return payment.PaymentStatus{}, fmt.Errorf("failed to unmarshal payment result: %w", err)
	}
	return status, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx).Err()
}
