package payment

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	ModeUnset  PaymentMode = ""
	ModeMobile PaymentMode = "mobile"
	ModeCard   PaymentMode = "card"
)

type Gateway string

const (
	GatewayNone     Gateway = "none"
	GatewayMpesa    Gateway = "mpesa"
	GatewayTigoPesa Gateway = "tigopesa"
)

type StatusKind string

const (
	StatusPending   StatusKind = "pending"
	StatusSuccess   StatusKind = "success"
	StatusFailure   StatusKind = "failure"
	StatusTimeout   StatusKind = "timeout"
	StatusCancelled StatusKind = "cancelled"
)

type Flow string

const (
	FlowMobile Flow = "mobile_flow"
	FlowCard   Flow = "card_flow"
)

const (
	EnvironmentLive    = "live"
	EnvironmentSandbox = "sandbox"
)

const (
	DefaultPhoneHint = "7XXXXXXXX"
	DefaultPhoneMask = "[000] [000] [000]"

	MpesaSamplePhone    = "759000000"
	TigoPesaSamplePhone = "712000000"
)

// IsTerminal reports whether the status ends polling.
func (s StatusKind) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

func ParseMode(s string) (PaymentMode, error) {
	switch PaymentMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMobile:
		return ModeMobile, nil
	case ModeCard:
		return ModeCard, nil
	case ModeUnset:
		return ModeUnset, nil
	}
	return ModeUnset, fmt.Errorf("unknown payment mode %q", s)
}

// UnmarshalText accepts any casing of a known mode literal and rejects everything else.
func (m *PaymentMode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// IsKnown reports whether m is a selectable mode.
func (m PaymentMode) IsKnown() bool {
	return m == ModeMobile || m == ModeCard
}

func ParseGateway(s string) (Gateway, error) {
	switch Gateway(strings.ToLower(strings.TrimSpace(s))) {
	case GatewayMpesa:
		return GatewayMpesa, nil
	case GatewayTigoPesa:
		return GatewayTigoPesa, nil
	case GatewayNone:
		return GatewayNone, nil
	}
	return GatewayNone, fmt.Errorf("unknown payment gateway %q", s)
}

func (g *Gateway) UnmarshalText(text []byte) error {
	gateway, err := ParseGateway(string(text))
	if err != nil {
		return err
	}
	*g = gateway
	return nil
}

// ParseStatusKind maps a backend status literal to a StatusKind. Unknown literals are Pending.
func ParseStatusKind(s string) StatusKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "successful", "completed", "paid":
		return StatusSuccess
	case "failure", "failed", "error":
		return StatusFailure
	case "timeout", "timed_out", "expired":
		return StatusTimeout
	case "cancelled", "canceled":
		return StatusCancelled
	}
	return StatusPending
}

// Configuration is owned by the calling application for one payment attempt.
type Configuration struct {
	Mode              PaymentMode `json:"mode" mapstructure:"mode"`
	Environment       string      `json:"environment" mapstructure:"environment"`
	SupportedGateways []Gateway   `json:"supported_gateways" mapstructure:"supported_gateways"`
	CustomPhoneHint   string      `json:"custom_phone_hint" mapstructure:"custom_phone_hint"`
	CustomPhoneMask   string      `json:"custom_phone_mask" mapstructure:"custom_phone_mask"`
}

func NewConfiguration() *Configuration {
	return &Configuration{
		Environment:     EnvironmentLive,
		CustomPhoneHint: DefaultPhoneHint,
		CustomPhoneMask: DefaultPhoneMask,
	}
}

// Clone returns a copy that shares no backing arrays with c.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return NewConfiguration()
	}
	clone := *c
	clone.SupportedGateways = slices.Clone(c.SupportedGateways)
	return &clone
}

func (c *Configuration) WithMode(mode PaymentMode) *Configuration {
	c.Mode = mode
	return c
}

func (c *Configuration) WithEnvironment(environment string) *Configuration {
	c.Environment = environment
	return c
}

func (c *Configuration) WithGateways(gateways ...Gateway) *Configuration {
	c.SupportedGateways = gateways
	return c
}

func (c *Configuration) WithPhoneHint(hint string) *Configuration {
	c.CustomPhoneHint = hint
	return c
}

func (c *Configuration) WithPhoneMask(mask string) *Configuration {
	c.CustomPhoneMask = mask
	return c
}

func (c *Configuration) Supports(gateway Gateway) bool {
	return c != nil && slices.Contains(c.SupportedGateways, gateway)
}

type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CardCredentials struct {
	MerchantKey    string `json:"merchant_key"`
	MerchantSecret string `json:"merchant_secret"`
}

type MpesaCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	LogEndpoint  string `json:"log_endpoint"`
}

type TigoPesaCredentials struct {
	MerchantKey    string `json:"merchant_key"`
	MerchantName   string `json:"merchant_name"`
	MerchantNumber string `json:"merchant_number"`
	MerchantPin    string `json:"merchant_pin"`
	MerchantSecret string `json:"merchant_secret"`
}

// Request is treated as immutable once handed to the validator.
type Request struct {
	TransactionAmount decimal.Decimal      `json:"transaction_amount"`
	RequestEndpoint   string               `json:"request_endpoint"`
	Customer          Customer             `json:"customer"`
	Card              *CardCredentials     `json:"card,omitempty"`
	Mpesa             *MpesaCredentials    `json:"mpesa,omitempty"`
	TigoPesa          *TigoPesaCredentials `json:"tigopesa,omitempty"`
	ExtraParam        any                  `json:"extra_param,omitempty"`
}

// LogEndpoint returns the M-Pesa log endpoint, or "" when no M-Pesa credentials are set.
func (r *Request) LogEndpoint() string {
	if r == nil || r.Mpesa == nil {
		return ""
	}
	return r.Mpesa.LogEndpoint
}

type PaymentStatus struct {
	Status     StatusKind `json:"status"`
	ExtraParam any        `json:"extra_param,omitempty"`
}

type PollState struct {
	Gateway       Gateway `json:"gateway"`
	TransactionID string  `json:"transaction_id"`
	RetryCount    int     `json:"retry_count"`
	IsRunning     bool    `json:"is_running"`
}
