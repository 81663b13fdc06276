package payment_test

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/furahitechstudio/furahitechpay/internal/core/events"
	paymentPkg "github.com/furahitechstudio/furahitechpay/internal/payment"
	"github.com/furahitechstudio/furahitechpay/internal/poller"
	"github.com/furahitechstudio/furahitechpay/internal/pollstate"
)

// Mock result repository for testing
type mockResultRepository struct {
	mu      sync.Mutex
	results map[string]*payment.PaymentResult
	saveErr error
}

func newMockResultRepository() *mockResultRepository {
	return &mockResultRepository{results: make(map[string]*payment.PaymentResult)}
}

func (m *mockResultRepository) Save(ctx context.Context, result *payment.PaymentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, exists := m.results[result.TransactionID]; !exists {
		m.results[result.TransactionID] = result
	}
	return nil
}

func (m *mockResultRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[transactionID]
	if !ok {
		return nil, errors.ErrResultNotFound
	}
	return result, nil
}

func (m *mockResultRepository) List(ctx context.Context, gateway payment.Gateway, limit int) ([]*payment.PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.PaymentResult
	for _, r := range m.results {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockResultRepository) Get(transactionID string) *payment.PaymentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[transactionID]
}

// Mock status checker for testing
type mockStatusChecker struct {
	mu       sync.Mutex
	statuses []payment.StatusKind
	calls    int
	onCheck  func(transactionID string)
}

func (m *mockStatusChecker) CheckStatus(ctx context.Context, gateway payment.Gateway, transactionID string) (payment.PaymentStatus, error) {
	if m.onCheck != nil {
		m.onCheck(transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.calls
	m.calls++
	if idx >= len(m.statuses) {
		idx = len(m.statuses) - 1
	}
	return payment.PaymentStatus{Status: m.statuses[idx]}, nil
}

type stateRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *stateRecorder) Handle(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, event.EventType())
	return nil
}

func (r *stateRecorder) States() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.states))
	copy(out, r.states)
	return out
}

func indexOf(states []string, state string) int {
	for i, s := range states {
		if s == state {
			return i
		}
	}
	return -1
}

var _ = Describe("PaymentService", func() {
	var (
		ctx         context.Context
		logger      *slog.Logger
		bus         *events.EventBus
		recorder    *stateRecorder
		eventLogger *mockEventLogger
		checker     *mockStatusChecker
		store       *pollstate.MemoryStore
		repo        *mockResultRepository
		service     *paymentPkg.PaymentService
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		bus = events.NewEventBus(logger)
		recorder = &stateRecorder{}
		bus.Subscribe(recorder.Handle)
		eventLogger = &mockEventLogger{}
		checker = &mockStatusChecker{statuses: []payment.StatusKind{payment.StatusPending, payment.StatusSuccess}}
		store = pollstate.NewMemoryStore()
		repo = newMockResultRepository()

		service = paymentPkg.NewPaymentService(ctx, paymentPkg.Dependencies{
			Poller:      poller.New(checker, poller.Options{Interval: 10 * time.Millisecond}, logger),
			Events:      bus,
			EventLogger: eventLogger,
			Store:       store,
			Repository:  repo,
			Logger:      logger,
		})
	})

	Describe("NewPaymentService", func() {
		It("should announce the acquired instance", func() {
			// Then
			Expect(service.SessionID()).NotTo(BeEmpty())
			Expect(recorder.States()).To(Equal([]string{events.StateInstanceAcquired}))
			Expect(eventLogger.Messages()).To(ContainElement("API instance acquired"))
		})
	})

	Describe("Request", func() {
		It("should notify the selected mobile flow", func() {
			// When
			result := service.Request(ctx, mobileConfig(payment.GatewayMpesa), validRequest(), true)

			// Then
			Expect(result.IsAccepted()).To(BeTrue())
			Expect(recorder.States()).To(Equal([]string{
				events.StateInstanceAcquired,
				events.StateFlowSelected,
				events.StateMobileSelected,
			}))
		})

		It("should notify the selected card flow", func() {
			// When
			result := service.Request(ctx, payment.NewConfiguration().WithMode(payment.ModeCard), validRequest(), true)

			// Then
			Expect(result.Accepted.Flow).To(Equal(payment.FlowCard))
			Expect(recorder.States()).To(ContainElement(events.StateCardSelected))
		})

		It("should not notify on rejection", func() {
			// When
			result := service.Request(ctx, nil, nil, false)

			// Then
			Expect(result.Rejected.Code).To(Equal(errors.ErrCodeMissingContext))
			Expect(recorder.States()).To(Equal([]string{events.StateInstanceAcquired}))
		})
	})

	Describe("StartPolling", func() {
		It("should present, record and persist the terminal result", func() {
			// Given
			req := validRequest()
			req.ExtraParam = "order-7"
			Expect(service.Request(ctx, mobileConfig(payment.GatewayMpesa), req, true).IsAccepted()).To(BeTrue())
			presented := make(chan paymentPkg.Presentation, 1)

			// When
			err := service.StartPolling(ctx, payment.GatewayMpesa, "tx-42", func(p paymentPkg.Presentation) {
				presented <- p
			})

			// Then
			Expect(err).NotTo(HaveOccurred())
			var p paymentPkg.Presentation
			Eventually(presented, time.Second).Should(Receive(&p))
			Expect(p.Label).To(Equal(paymentPkg.LabelSuccess))
			Expect(p.Status.ExtraParam).To(Equal("order-7"))

			stored, err := store.GetResult(ctx, "tx-42")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(payment.StatusSuccess))

			persisted := repo.Get("tx-42")
			Expect(persisted).NotTo(BeNil())
			Expect(persisted.Status).To(Equal("success"))
			Expect(persisted.RetryCount).To(Equal(2))
			Expect(string(persisted.ExtraParam)).To(Equal(`"order-7"`))

			state, err := store.GetState(ctx, "tx-42")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.IsRunning).To(BeFalse())

			Expect(recorder.States()).To(ContainElements(events.StatePollingStarted, events.StatePaymentCompleted))
		})

		It("should announce and save the started state before the first check", func() {
			// Given
			checker.statuses = []payment.StatusKind{payment.StatusSuccess}
			var (
				mu             sync.Mutex
				statesAtCheck  []string
				stateAtCheck   payment.PollState
				stateReadError error
			)
			checker.onCheck = func(transactionID string) {
				mu.Lock()
				defer mu.Unlock()
				statesAtCheck = recorder.States()
				stateAtCheck, stateReadError = store.GetState(ctx, transactionID)
			}
			presented := make(chan paymentPkg.Presentation, 1)

			// When
			Expect(service.StartPolling(ctx, payment.GatewayMpesa, "tx-fast", func(p paymentPkg.Presentation) {
				presented <- p
			})).To(Succeed())

			// Then
			Eventually(presented, time.Second).Should(Receive())

			mu.Lock()
			Expect(statesAtCheck).To(ContainElement(events.StatePollingStarted))
			Expect(statesAtCheck).NotTo(ContainElement(events.StatePaymentCompleted))
			Expect(stateReadError).NotTo(HaveOccurred())
			Expect(stateAtCheck.IsRunning).To(BeTrue())
			mu.Unlock()

			states := recorder.States()
			startedAt := indexOf(states, events.StatePollingStarted)
			completedAt := indexOf(states, events.StatePaymentCompleted)
			Expect(startedAt).To(BeNumerically(">=", 0))
			Expect(completedAt).To(BeNumerically(">", startedAt))

			state, err := store.GetState(ctx, "tx-fast")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.IsRunning).To(BeFalse())
			Expect(state.RetryCount).To(Equal(1))
		})

		It("should keep polling after the caller context is cancelled", func() {
			// Given
			callerCtx, cancel := context.WithCancel(ctx)
			presented := make(chan paymentPkg.Presentation, 1)

			// When
			Expect(service.StartPolling(callerCtx, payment.GatewayTigoPesa, "tx-detached", func(p paymentPkg.Presentation) {
				presented <- p
			})).To(Succeed())
			cancel()

			// Then
			Eventually(presented, time.Second).Should(Receive())
		})

		It("should still notify the listener when persistence fails", func() {
			// Given
			repo.saveErr = stderrors.New("database unavailable")
			presented := make(chan paymentPkg.Presentation, 1)

			// When
			Expect(service.StartPolling(ctx, payment.GatewayMpesa, "tx-db", func(p paymentPkg.Presentation) {
				presented <- p
			})).To(Succeed())

			// Then
			Eventually(presented, time.Second).Should(Receive())
		})

		It("should reject an unsupported gateway", func() {
			// When
			err := service.StartPolling(ctx, payment.GatewayNone, "tx", nil)

			// Then
			Expect(stderrors.Is(err, errors.ErrInvalidGateway)).To(BeTrue())
			Expect(service.PollState().IsRunning).To(BeFalse())
		})

		It("should reject an empty transaction id", func() {
			// When
			err := service.StartPolling(ctx, payment.GatewayMpesa, "", nil)

			// Then
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeValidationFailed))
		})
	})

	Describe("CancelPolling", func() {
		It("should stop a running poll without presenting a result", func() {
			// Given
			checker.statuses = []payment.StatusKind{payment.StatusPending}
			presented := make(chan paymentPkg.Presentation, 1)
			Expect(service.StartPolling(ctx, payment.GatewayMpesa, "tx-cancel", func(p paymentPkg.Presentation) {
				presented <- p
			})).To(Succeed())

			// When
			err := service.CancelPolling(ctx)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(service.PollState().IsRunning).To(BeFalse())
			Consistently(presented, 50*time.Millisecond).ShouldNot(Receive())
			Expect(recorder.States()).To(ContainElement(events.StatePollingCancelled))
		})

		It("should report when no poll is running", func() {
			// When
			err := service.CancelPolling(ctx)

			// Then
			Expect(stderrors.Is(err, errors.ErrPollNotRunning)).To(BeTrue())
		})
	})

	Describe("Result", func() {
		It("should fall back to the repository when the store has no result", func() {
			// Given
			Expect(repo.Save(ctx, &payment.PaymentResult{
				TransactionID: "tx-old",
				Gateway:       "mpesa",
				Status:        "failure",
				ExtraParam:    []byte(`{"order":"9"}`),
			})).To(Succeed())

			// When
			status, err := service.Result(ctx, "tx-old")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Status).To(Equal(payment.StatusFailure))
			Expect(status.ExtraParam).To(HaveKeyWithValue("order", "9"))
		})

		It("should report a missing result", func() {
			// When
			_, err := service.Result(ctx, "tx-none")

			// Then
			Expect(stderrors.Is(err, errors.ErrResultNotFound)).To(BeTrue())
		})
	})
})
