package payment

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
)

type ValidateRequest struct {
	// Configuration is layered over the server defaults; omitted fields keep the default value.
	Configuration json.RawMessage  `json:"configuration,omitempty"`
	Request       *payment.Request `json:"request"`
	// HasContext defaults to true; HTTP callers always act as the host context.
	HasContext *bool `json:"has_context,omitempty"`
}

// ResolveConfiguration decodes the request configuration over a copy of defaults.
func (r *ValidateRequest) ResolveConfiguration(defaults *payment.Configuration) (*payment.Configuration, error) {
	cfg := defaults.Clone()
	if len(r.Configuration) == 0 || bytes.Equal(bytes.TrimSpace(r.Configuration), []byte("null")) {
		return cfg, nil
	}
	if err := sonic.ConfigStd.Unmarshal(r.Configuration, cfg); err != nil {
		return nil, errors.NewValidationError("invalid payment configuration", errors.ErrCodeValidationFailed).
			WithDetails(map[string]string{"reason": err.Error()}).
			WithCause(err)
	}
	return cfg, nil
}

func (r *ValidateRequest) HostContext() bool {
	return r.HasContext == nil || *r.HasContext
}

type ValidateResponse struct {
	Flow      payment.Flow `json:"flow"`
	PhoneHint string       `json:"phone_hint"`
	PhoneMask string       `json:"phone_mask"`
	SessionID string       `json:"session_id"`
}

type StartPollingRequest struct {
	Gateway       string `json:"gateway"`
	TransactionID string `json:"transaction_id"`
}

func (r *StartPollingRequest) Validate() (payment.Gateway, error) {
	if r.TransactionID == "" {
		return "", errors.NewValidationError("transaction_id is required", errors.ErrCodeValidationFailed)
	}
	gateway, err := payment.ParseGateway(r.Gateway)
	if err != nil || gateway == payment.GatewayNone {
		return "", errors.ErrInvalidGateway.WithDetails(map[string]string{"gateway": r.Gateway})
	}
	return gateway, nil
}

type ResultResponse struct {
	TransactionID string                `json:"transaction_id"`
	Status        payment.PaymentStatus `json:"status"`
	Presentation  Presentation          `json:"presentation"`
}
