package paymentgateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/furahitechstudio/furahitechpay/pkg/logger"
)

type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	BreakerName      string
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	BreakerHalfOpenN uint32
}

type statusResponse struct {
	Status     string `json:"status"`
	ExtraParam any    `json:"extra_param,omitempty"`
}

// StatusClient queries the payment backend for the status of a transaction.
type StatusClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *fasthttp.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewStatusClient(config Config, logger *slog.Logger) *StatusClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	name := config.BreakerName
	if name == "" {
		name = "payment-status"
	}

	failures := config.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	openFor := config.BreakerOpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}

	halfOpen := config.BreakerHalfOpenN
	if halfOpen == 0 {
		halfOpen = 1
	}

	c := &StatusClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		timeout: timeout,
		client:  &fasthttp.Client{},
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpen,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("status client circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return c
}

// CheckStatus performs GET {base}/payments/{gateway}/{transactionID}/status. Transport failures,
// non-2xx responses and an open breaker are all returned as errors.
func (c *StatusClient) CheckStatus(ctx context.Context, gateway payment.Gateway, transactionID string) (payment.PaymentStatus, error) {
	if gateway != payment.GatewayMpesa && gateway != payment.GatewayTigoPesa {
		return payment.PaymentStatus{}, errors.ErrInvalidGateway.WithDetails(map[string]string{"gateway": string(gateway)})
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, gateway, transactionID)
	})
	if err != nil {
		return payment.PaymentStatus{}, errors.NewExternalError("payment status check failed", errors.ErrCodeStatusCheckFailed, err)
	}

	return result.(payment.PaymentStatus), nil
}

func (c *StatusClient) fetch(ctx context.Context, gateway payment.Gateway, transactionID string) (payment.PaymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return payment.PaymentStatus{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	uri := fmt.Sprintf("%s/payments/%s/%s/status", c.baseURL, gateway, url.PathEscape(transactionID))
	req.SetRequestURI(uri)
	req.Header.SetMethod(http.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := c.client.DoTimeout(req, resp, timeout); err != nil {
		return payment.PaymentStatus{}, fmt.Errorf("failed to make status request: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return payment.PaymentStatus{}, fmt.Errorf("status request failed with status code: %d", statusCode)
	}

	var body statusResponse
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		return payment.PaymentStatus{}, fmt.Errorf("failed to decode status response: %w", err)
	}

	status := payment.PaymentStatus{
		Status:     payment.ParseStatusKind(body.Status),
		ExtraParam: body.ExtraParam,
	}

	logger.From(ctx).Debug("status check completed",
		"status_code", statusCode,
		"status", status.Status)

	return status, nil
}

func (c *StatusClient) BreakerState() string {
	return c.breaker.State().String()
}
