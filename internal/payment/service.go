package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/furahitechstudio/furahitechpay/internal/core/events"
	"github.com/furahitechstudio/furahitechpay/internal/paymentlog"
	"github.com/furahitechstudio/furahitechpay/internal/poller"
	"github.com/furahitechstudio/furahitechpay/internal/pollstate"
	"github.com/furahitechstudio/furahitechpay/pkg/logger"
)

const (
	logInstanceAcquired = "API instance acquired"
	persistTimeout      = 5 * time.Second
)

type ResultRepository interface {
	Save(ctx context.Context, result *payment.PaymentResult) error
	GetByTransactionID(ctx context.Context, transactionID string) (*payment.PaymentResult, error)
	List(ctx context.Context, gateway payment.Gateway, limit int) ([]*payment.PaymentResult, error)
}

type StatusPoller interface {
	Start(ctx context.Context, gateway payment.Gateway, transactionID string, listener poller.Listener)
	Cancel() bool
	State() payment.PollState
}

// ResultListener receives the presented terminal result of a poll.
type ResultListener func(result Presentation)

type ServiceAPI interface {
	SessionID() string
	Request(ctx context.Context, cfg *payment.Configuration, req *payment.Request, hasActivityContext bool) ValidationResult
	StartPolling(ctx context.Context, gateway payment.Gateway, transactionID string, listener ResultListener) error
	CancelPolling(ctx context.Context) error
	PollState() payment.PollState
	Result(ctx context.Context, transactionID string) (payment.PaymentStatus, error)
}

type Dependencies struct {
	Validator   *RequestValidator
	Poller      StatusPoller
	Events      *events.EventBus
	EventLogger paymentlog.EventLogger
	Store       pollstate.Store
	// Repository is optional. Without it terminal results live only in Store.
	Repository ResultRepository
	Logger     *slog.Logger
}

// PaymentService is one payment session: it validates requests, runs a single status poll at a
// time and broadcasts lifecycle states to the event bus.
type PaymentService struct {
	sessionID   string
	validator   *RequestValidator
	poller      StatusPoller
	events      *events.EventBus
	eventLogger paymentlog.EventLogger
	store       pollstate.Store
	repository  ResultRepository
	logger      *slog.Logger

	mu         sync.Mutex
	extraParam any
}

func NewPaymentService(ctx context.Context, deps Dependencies) *PaymentService {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}

	eventLogger := deps.EventLogger
	if eventLogger == nil {
		eventLogger = paymentlog.NewSlogLogger(lg)
	}

	validator := deps.Validator
	if validator == nil {
		validator = NewRequestValidator(eventLogger)
	}

	bus := deps.Events
	if bus == nil {
		bus = events.NewEventBus(lg)
	}

	store := deps.Store
	if store == nil {
		store = pollstate.NewMemoryStore()
	}

	s := &PaymentService{
		sessionID:   uuid.New().String(),
		validator:   validator,
		poller:      deps.Poller,
		events:      bus,
		eventLogger: eventLogger,
		store:       store,
		repository:  deps.Repository,
		logger:      lg,
	}
	s.logger = lg.With("session_id", s.sessionID)

	s.eventLogger.LogEvent(false, payment.GatewayNone, logInstanceAcquired)
	s.notify(ctx, events.StateInstanceAcquired, "", "", nil)

	return s
}

func (s *PaymentService) SessionID() string {
	return s.sessionID
}

// Request validates the payment and announces the selected flow.
func (s *PaymentService) Request(ctx context.Context, cfg *payment.Configuration, req *payment.Request, hasActivityContext bool) ValidationResult {
	result := s.validator.Validate(cfg, req, hasActivityContext)
	if !result.IsAccepted() {
		s.logger.Warn("payment request rejected",
			"code", result.Rejected.Code,
			"message", result.Rejected.Message)
		return result
	}

	s.mu.Lock()
	s.extraParam = req.ExtraParam
	s.mu.Unlock()

	s.logger.Info("payment request accepted",
		"flow", result.Accepted.Flow,
		"phone_hint", result.Accepted.DerivedPhoneHint,
		"amount", req.TransactionAmount.String())

	data := map[string]interface{}{"flow": string(result.Accepted.Flow)}
	s.notify(ctx, events.StateFlowSelected, "", "", data)
	if result.Accepted.Flow == payment.FlowMobile {
		s.notify(ctx, events.StateMobileSelected, "", "", data)
	} else {
		s.notify(ctx, events.StateCardSelected, "", "", data)
	}

	return result
}

// StartPolling begins polling transactionID, superseding any poll in progress. The poll
// outlives ctx's cancellation; use CancelPolling to stop it.
func (s *PaymentService) StartPolling(ctx context.Context, gateway payment.Gateway, transactionID string, listener ResultListener) error {
	if gateway != payment.GatewayMpesa && gateway != payment.GatewayTigoPesa {
		return internal.ErrInvalidGateway.WithDetails(map[string]string{"gateway": string(gateway)})
	}
	if transactionID == "" {
		return internal.NewValidationError("transaction id is required", internal.ErrCodeValidationFailed)
	}

	runCtx := logger.WithTransaction(context.WithoutCancel(ctx), string(gateway), transactionID)

	// Started is saved and announced before the first check can complete.
	s.saveState(ctx, payment.PollState{Gateway: gateway, TransactionID: transactionID, IsRunning: true})
	s.eventLogger.LogEvent(false, gateway, "Payment status polling started")
	s.notify(ctx, events.StatePollingStarted, string(gateway), transactionID, nil)

	s.poller.Start(runCtx, gateway, transactionID, func(status payment.PaymentStatus) {
		s.complete(runCtx, gateway, transactionID, status, listener)
	})

	return nil
}

func (s *PaymentService) CancelPolling(ctx context.Context) error {
	if !s.poller.Cancel() {
		return internal.ErrPollNotRunning
	}

	state := s.poller.State()
	s.saveState(ctx, state)
	s.notify(ctx, events.StatePollingCancelled, string(state.Gateway), state.TransactionID, map[string]interface{}{
		"retry_count": state.RetryCount,
	})

	return nil
}

func (s *PaymentService) PollState() payment.PollState {
	return s.poller.State()
}

// Result returns the recorded terminal status of transactionID.
func (s *PaymentService) Result(ctx context.Context, transactionID string) (payment.PaymentStatus, error) {
	status, err := s.store.GetResult(ctx, transactionID)
	if err == nil || s.repository == nil {
		return status, err
	}

	stored, repoErr := s.repository.GetByTransactionID(ctx, transactionID)
	if repoErr != nil {
		return payment.PaymentStatus{}, repoErr
	}

	status = payment.PaymentStatus{Status: payment.StatusKind(stored.Status)}
	if len(stored.ExtraParam) > 0 {
		var extra any
		if err := json.Unmarshal(stored.ExtraParam, &extra); err == nil {
			status.ExtraParam = extra
		}
	}
	return status, nil
}

func (s *PaymentService) complete(ctx context.Context, gateway payment.Gateway, transactionID string, status payment.PaymentStatus, listener ResultListener) {
	s.mu.Lock()
	extraParam := s.extraParam
	s.mu.Unlock()

	presentation := Present(status, extraParam)
	state := s.poller.State()

	persistCtx, cancel := internal.WithTimeout(ctx, persistTimeout)
	defer cancel()

	s.saveState(persistCtx, state)

	recorded, err := s.store.RecordResult(persistCtx, transactionID, presentation.Status)
	if err != nil {
		s.logger.Error("failed to record payment result", "transaction_id", transactionID, "error", err)
	} else if !recorded {
		s.logger.Warn("payment result already recorded", "transaction_id", transactionID)
	}

	s.persist(persistCtx, gateway, transactionID, state.RetryCount, presentation.Status)

	s.eventLogger.LogEvent(!presentation.Success, gateway, presentation.Message)
	s.notify(ctx, events.StatePaymentCompleted, string(gateway), transactionID, map[string]interface{}{
		"status":      string(presentation.Status.Status),
		"label":       presentation.Label,
		"retry_count": state.RetryCount,
	})

	if listener != nil {
		listener(presentation)
	}
}

func (s *PaymentService) persist(ctx context.Context, gateway payment.Gateway, transactionID string, retryCount int, status payment.PaymentStatus) {
	if s.repository == nil {
		return
	}

	var extra json.RawMessage
	if status.ExtraParam != nil {
		encoded, err := json.Marshal(status.ExtraParam)
		if err != nil {
			s.logger.Warn("failed to encode extra param", "transaction_id", transactionID, "error", err)
		} else {
			extra = encoded
		}
	}

	now := time.Now().UTC()
	result := &payment.PaymentResult{
		TransactionID: transactionID,
		Gateway:       string(gateway),
		Status:        string(status.Status),
		RetryCount:    retryCount,
		ExtraParam:    extra,
		CompletedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repository.Save(ctx, result); err != nil {
		s.logger.Error("failed to persist payment result",
			"transaction_id", transactionID,
			"status", status.Status,
			"error", err)
	}
}

func (s *PaymentService) saveState(ctx context.Context, state payment.PollState) {
	if state.TransactionID == "" {
		return
	}
	if err := s.store.SaveState(ctx, state); err != nil {
		s.logger.Warn("failed to save poll state",
			"transaction_id", state.TransactionID,
			"error", err)
	}
}

func (s *PaymentService) notify(ctx context.Context, state, gateway, transactionID string, data map[string]interface{}) {
	event := events.NewStateChangedEvent(state, s.sessionID, gateway, transactionID, data)
	if failed := s.events.Publish(ctx, event); failed > 0 {
		s.logger.Warn("state listeners failed", "state", state, "failed", failed)
	}
}
