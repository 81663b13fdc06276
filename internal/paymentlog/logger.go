package paymentlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/sethvargo/go-retry"
)

// EventLogger accepts diagnostic events. Implementations must never block the caller or panic.
type EventLogger interface {
	LogEvent(isError bool, gateway payment.Gateway, message string)
}

type Entry struct {
	IsError   bool            `json:"is_error"`
	Gateway   payment.Gateway `json:"gateway"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// SlogLogger writes events to a structured logger only.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) LogEvent(isError bool, gateway payment.Gateway, message string) {
	if isError {
		l.logger.Error("payment event", "gateway", gateway, "message", message)
		return
	}
	l.logger.Info("payment event", "gateway", gateway, "message", message)
}

type Worker struct {
	ID         int
	WorkerPool chan chan Entry
	JobChannel chan Entry
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Entry, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Entry),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Entry)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("log worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case entry := <-w.JobChannel:
				processFunc(entry)
			case <-ctx.Done():
				w.Logger.Debug("log worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	Endpoint     string
	Timeout      time.Duration
	MaxWorkers   int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// HTTPShipper mirrors every event to slog and ships it asynchronously to a remote log endpoint.
type HTTPShipper struct {
	endpoint     string
	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	client       *http.Client
	local        *SlogLogger
	logger       *slog.Logger

	jobQueue   chan Entry
	workerPool chan chan Entry
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
	stopOnce   sync.Once
}

func NewHTTPShipper(config Config, logger *slog.Logger) *HTTPShipper {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 2
	}

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	shipper := &HTTPShipper{
		endpoint:     config.Endpoint,
		timeout:      timeout,
		maxAttempts:  maxAttempts,
		retryBackoff: backoff,
		client:       &http.Client{Timeout: timeout},
		local:        NewSlogLogger(logger),
		logger:       logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan Entry, queueSize),
		workerPool: make(chan chan Entry, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	shipper.startWorkerPool()

	return shipper
}

func (s *HTTPShipper) startWorkerPool() {
	s.once.Do(func() {
		for i := 0; i < s.maxWorkers; i++ {
			worker := NewWorker(i, s.workerPool, s.logger)
			worker.Start(s.ctx, &s.wg, s.ship)
		}

		s.wg.Add(1)
		go s.dispatch()

		s.logger.Debug("payment log shipper started",
			"max_workers", s.maxWorkers,
			"queue_size", cap(s.jobQueue),
			"endpoint", s.endpoint)
	})
}

func (s *HTTPShipper) dispatch() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.jobQueue:
			select {
			case jobChannel := <-s.workerPool:
				select {
				case jobChannel <- entry:
				case <-s.ctx.Done():
					return
				}
			case <-s.ctx.Done():
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// LogEvent records the event locally and enqueues it for shipping. It never blocks: when the
// queue is full or the shipper is shut down the remote copy is dropped.
func (s *HTTPShipper) LogEvent(isError bool, gateway payment.Gateway, message string) {
	s.local.LogEvent(isError, gateway, message)

	if s.endpoint == "" || s.ctx.Err() != nil {
		return
	}

	entry := Entry{
		IsError:   isError,
		Gateway:   gateway,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	select {
	case s.jobQueue <- entry:
	default:
		s.logger.Warn("payment log queue full, dropping event",
			"gateway", gateway,
			"queue_capacity", cap(s.jobQueue))
	}
}

func (s *HTTPShipper) ship(entry Entry) {
	body, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("failed to marshal payment log entry", "error", err)
		return
	}

	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewExponential(s.retryBackoff))

	err = retry.Do(s.ctx, backoff, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("log endpoint request failed: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("log endpoint returned status %d", resp.StatusCode))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("log endpoint rejected event with status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to ship payment log entry",
			"gateway", entry.Gateway,
			"endpoint", s.endpoint,
			"error", err)
	}
}

func (s *HTTPShipper) Shutdown() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.logger.Debug("payment log shipper shutdown complete")
	})
}
