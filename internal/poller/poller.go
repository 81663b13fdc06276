package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
)

const (
	DefaultInterval     = 5 * time.Second
	DefaultCheckTimeout = 10 * time.Second
)

// StatusChecker asks the backend for the current status of a transaction. An error is treated as
// a non-terminal result.
type StatusChecker interface {
	CheckStatus(ctx context.Context, gateway payment.Gateway, transactionID string) (payment.PaymentStatus, error)
}

// Listener receives the terminal status of a run. It is called at most once per Start.
type Listener func(status payment.PaymentStatus)

type Options struct {
	Interval     time.Duration
	CheckTimeout time.Duration
	// MaxRetries ends a run with a timeout status after that many non-terminal checks. Zero means
	// the run continues until a terminal status or Cancel.
	MaxRetries int
}

// Poller runs at most one status poll at a time. Ticks are serialized: the next check is
// scheduled only after the previous one returned.
type Poller struct {
	checker StatusChecker
	opts    Options
	logger  *slog.Logger

	mu         sync.Mutex
	generation uint64
	state      payment.PollState
	listener   Listener
	timer      *time.Timer
	cancelRun  context.CancelFunc
}

func New(checker StatusChecker, opts Options, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		checker: checker,
		opts:    opts,
		logger:  logger,
	}
}

// Start begins polling transactionID, superseding any run in progress. The superseded listener
// receives nothing further. The first check runs immediately.
func (p *Poller) Start(ctx context.Context, gateway payment.Gateway, transactionID string, listener Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.IsRunning {
		p.logger.Info("superseding running status poll",
			"gateway", p.state.Gateway,
			"transaction_id", p.state.TransactionID,
			"retry_count", p.state.RetryCount)
	}
	p.stopLocked()

	p.generation++
	gen := p.generation

	runCtx, cancel := context.WithCancel(ctx)
	p.cancelRun = cancel
	p.listener = listener
	p.state = payment.PollState{
		Gateway:       gateway,
		TransactionID: transactionID,
		IsRunning:     true,
	}

	p.logger.Info("status poll started",
		"gateway", gateway,
		"transaction_id", transactionID,
		"interval", p.opts.Interval,
		"max_retries", p.opts.MaxRetries)

	go p.tick(runCtx, gen)
}

// Cancel stops the running poll without notifying its listener. It reports whether a poll was
// running.
func (p *Poller) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.IsRunning {
		return false
	}

	p.stopLocked()
	p.generation++
	p.state.IsRunning = false

	p.logger.Info("status poll cancelled",
		"gateway", p.state.Gateway,
		"transaction_id", p.state.TransactionID,
		"retry_count", p.state.RetryCount)

	return true
}

func (p *Poller) State() payment.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancelRun != nil {
		p.cancelRun()
		p.cancelRun = nil
	}
	p.listener = nil
}

func (p *Poller) tick(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.generation || !p.state.IsRunning {
		p.mu.Unlock()
		return
	}
	if ctx.Err() != nil {
		p.logger.Info("status poll context done, stopping",
			"transaction_id", p.state.TransactionID,
			"error", ctx.Err())
		p.stopLocked()
		p.generation++
		p.state.IsRunning = false
		p.mu.Unlock()
		return
	}
	p.state.RetryCount++
	gateway := p.state.Gateway
	transactionID := p.state.TransactionID
	retryCount := p.state.RetryCount
	p.mu.Unlock()

	status := p.check(ctx, gateway, transactionID, retryCount)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		p.logger.Debug("discarding status of superseded poll",
			"transaction_id", transactionID,
			"status", status.Status)
		return
	}

	if !status.Status.IsTerminal() && p.opts.MaxRetries > 0 && retryCount >= p.opts.MaxRetries {
		p.logger.Warn("status poll reached retry ceiling",
			"gateway", gateway,
			"transaction_id", transactionID,
			"retry_count", retryCount)
		status = payment.PaymentStatus{Status: payment.StatusTimeout, ExtraParam: status.ExtraParam}
	}

	if !status.Status.IsTerminal() {
		p.timer = time.AfterFunc(p.opts.Interval, func() { p.tick(ctx, gen) })
		p.mu.Unlock()
		return
	}

	listener := p.listener
	p.stopLocked()
	p.state.IsRunning = false
	p.mu.Unlock()

	p.logger.Info("status poll finished",
		"gateway", gateway,
		"transaction_id", transactionID,
		"status", status.Status,
		"retry_count", retryCount)

	p.notify(listener, status)
}

func (p *Poller) check(ctx context.Context, gateway payment.Gateway, transactionID string, retryCount int) payment.PaymentStatus {
	checkCtx, cancel := context.WithTimeout(ctx, p.opts.CheckTimeout)
	defer cancel()

	status, err := p.checker.CheckStatus(checkCtx, gateway, transactionID)
	if err != nil {
		p.logger.Warn("status check failed, will retry",
			"gateway", gateway,
			"transaction_id", transactionID,
			"retry_count", retryCount,
			"error", err)
		return payment.PaymentStatus{Status: payment.StatusPending}
	}
	if status.Status == "" {
		status.Status = payment.StatusPending
	}
	return status
}

func (p *Poller) notify(listener Listener, status payment.PaymentStatus) {
	if listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("status listener panicked", "panic", r)
		}
	}()
	listener(status)
}
