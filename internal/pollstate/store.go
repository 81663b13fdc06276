package pollstate

import (
	"context"
	"sync"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
)

var ErrStateNotFound = errors.NewNotFoundError("poll state not found", errors.ErrCodeResultNotFound)

// Store keeps the latest poll snapshot per transaction and the first terminal status recorded
// for it.
type Store interface {
	SaveState(ctx context.Context, state payment.PollState) error
	GetState(ctx context.Context, transactionID string) (payment.PollState, error)
	// RecordResult stores status unless a result already exists. It reports whether this call
	// recorded it.
	RecordResult(ctx context.Context, transactionID string, status payment.PaymentStatus) (bool, error)
	GetResult(ctx context.Context, transactionID string) (payment.PaymentStatus, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	states  map[string]payment.PollState
	results map[string]payment.PaymentStatus
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  make(map[string]payment.PollState),
		results: make(map[string]payment.PaymentStatus),
	}
}

func (s *MemoryStore) SaveState(ctx context.Context, state payment.PollState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.TransactionID] = state
	return nil
}

func (s *MemoryStore) GetState(ctx context.Context, transactionID string) (payment.PollState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[transactionID]
	if !ok {
		return payment.PollState{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStore) RecordResult(ctx context.Context, transactionID string, status payment.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[transactionID]; exists {
		return false, nil
	}
	s.results[transactionID] = status
	return true, nil
}

func (s *MemoryStore) GetResult(ctx context.Context, transactionID string) (payment.PaymentStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.results[transactionID]
	if !ok {
		return payment.PaymentStatus{}, errors.ErrResultNotFound
	}
	return status, nil
}
