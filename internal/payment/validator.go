package payment

import (
	"github.com/shopspring/decimal"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/common/validation"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/furahitechstudio/furahitechpay/internal/paymentlog"
)

const (
	logMobileSelected = "Mobile payment selected"
	logCardSelected   = "Card payment selected"
)

// Accepted describes the flow to launch and the UI defaults derived from the request.
type Accepted struct {
	Flow             payment.Flow `json:"flow"`
	DerivedPhoneHint string       `json:"phone_hint"`
	PhoneMask        string       `json:"phone_mask"`
}

// ValidationResult holds exactly one of Accepted or Rejected.
type ValidationResult struct {
	Accepted *Accepted
	Rejected *errors.AppError
}

func (r ValidationResult) IsAccepted() bool {
	return r.Accepted != nil && r.Rejected == nil
}

type RequestValidator struct {
	eventLogger paymentlog.EventLogger
}

// NewRequestValidator returns a validator. eventLogger may be nil.
func NewRequestValidator(eventLogger paymentlog.EventLogger) *RequestValidator {
	return &RequestValidator{eventLogger: eventLogger}
}

type facts struct {
	mobile          bool
	mpesaSelected   bool
	tigoSelected    bool
	validMpesa      bool
	validTigoPesa   bool
	validCard       bool
	validGatewayLog bool
}

func evaluate(cfg *payment.Configuration, req *payment.Request) facts {
	f := facts{
		mobile:        cfg != nil && cfg.Mode == payment.ModeMobile,
		mpesaSelected: cfg.Supports(payment.GatewayMpesa),
		tigoSelected:  cfg.Supports(payment.GatewayTigoPesa),
	}
	if req == nil {
		return f
	}

	if req.Mpesa != nil {
		f.validMpesa = validation.NotEmpty(req.Mpesa.ClientID, req.Mpesa.ClientSecret, req.Mpesa.LogEndpoint)
	}
	if t := req.TigoPesa; t != nil {
		f.validTigoPesa = validation.NotEmpty(t.MerchantKey, t.MerchantName, t.MerchantNumber, t.MerchantPin, t.MerchantSecret)
	}
	if req.Card != nil {
		f.validCard = validation.NotEmpty(req.Card.MerchantKey, req.Card.MerchantSecret)
	}
	f.validGatewayLog = (f.mpesaSelected && req.LogEndpoint() != "") || f.tigoSelected

	return f
}

// Validate checks cfg and req and selects the payment flow. It never mutates its inputs.
func (v *RequestValidator) Validate(cfg *payment.Configuration, req *payment.Request, hasActivityContext bool) ValidationResult {
	f := evaluate(cfg, req)

	hasMode := cfg != nil && cfg.Mode.IsKnown()
	hasRequest := req != nil
	hasGateways := cfg != nil && len(cfg.SupportedGateways) > 0

	var (
		endpoint    string
		amountValid bool
		customer    payment.Customer
		environment string
	)
	if req != nil {
		endpoint = req.RequestEndpoint
		amountValid = req.TransactionAmount.GreaterThan(decimal.Zero)
		customer = req.Customer
	}
	if cfg != nil {
		environment = cfg.Environment
	}

	rules := validation.NewRuleSet().
		Require("context", hasActivityContext, errors.ErrMissingContext).
		Require("mode", hasMode, errors.ErrMissingPaymentMode).
		Require("request", hasRequest, errors.ErrMissingRequest).
		RequireWhen(f.mpesaSelected, "endpoint", endpoint != "", errors.ErrMissingEndpoint).
		Require("amount", amountValid, errors.ErrInvalidAmount).
		Require("customer", validation.NotEmpty(customer.Email, customer.FirstName, customer.LastName), errors.ErrMissingCustomerDetails).
		Require("environment", validation.EqualsAnyFold(environment, payment.EnvironmentLive, payment.EnvironmentSandbox), errors.ErrInvalidEnvironment).
		RequireWhen(f.mobile && hasGateways, "log_endpoint", f.validGatewayLog, errors.ErrMissingLoggingEndpoint).
		RequireWhen(f.mobile && f.mpesaSelected, "mpesa", f.validMpesa, errors.ErrMissingMpesaCredentials).
		RequireWhen(f.mobile && f.tigoSelected, "tigopesa", f.validTigoPesa, errors.ErrMissingTigoPesaCredentials).
		RequireWhen(hasMode && !f.mobile, "card", f.validCard, errors.ErrMissingCardCredentials)

	// Rejected is always a copy of the sentinel.
	if rejected := rules.First(); rejected != nil {
		return ValidationResult{Rejected: rejected.WithDetails(nil)}
	}

	accepted := &Accepted{
		Flow:             selectFlow(f),
		DerivedPhoneHint: DerivePhoneHint(cfg, req),
		PhoneMask:        cfg.CustomPhoneMask,
	}

	v.logFlow(accepted.Flow)

	return ValidationResult{Accepted: accepted}
}

func selectFlow(f facts) payment.Flow {
	if f.mobile && ((f.validTigoPesa && f.tigoSelected) || (f.validMpesa && f.mpesaSelected)) {
		return payment.FlowMobile
	}
	return payment.FlowCard
}

// DerivePhoneHint returns the sample number of the only gateway with valid credentials, or the
// configured hint otherwise.
func DerivePhoneHint(cfg *payment.Configuration, req *payment.Request) string {
	f := evaluate(cfg, req)

	switch {
	case f.validMpesa && !f.validTigoPesa:
		return payment.MpesaSamplePhone
	case f.validTigoPesa && !f.validMpesa:
		return payment.TigoPesaSamplePhone
	}

	if cfg == nil {
		return payment.DefaultPhoneHint
	}
	return cfg.CustomPhoneHint
}

func (v *RequestValidator) logFlow(flow payment.Flow) {
	if v.eventLogger == nil {
		return
	}

	message := logCardSelected
	if flow == payment.FlowMobile {
		message = logMobileSelected
	}

	defer func() { _ = recover() }()
	v.eventLogger.LogEvent(false, payment.GatewayNone, message)
}
