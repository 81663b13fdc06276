package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal   ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeMissingContext             ErrorCode = "MISSING_CONTEXT"
	ErrCodeMissingPaymentMode         ErrorCode = "MISSING_PAYMENT_MODE"
	ErrCodeMissingRequest             ErrorCode = "MISSING_REQUEST"
	ErrCodeMissingEndpoint            ErrorCode = "MISSING_ENDPOINT"
	ErrCodeInvalidAmount              ErrorCode = "INVALID_AMOUNT"
	ErrCodeMissingCustomerDetails     ErrorCode = "MISSING_CUSTOMER_DETAILS"
	ErrCodeInvalidEnvironment         ErrorCode = "INVALID_ENVIRONMENT"
	ErrCodeMissingLoggingEndpoint     ErrorCode = "MISSING_LOGGING_ENDPOINT"
	ErrCodeMissingMpesaCredentials    ErrorCode = "MISSING_MPESA_CREDENTIALS"
	ErrCodeMissingTigoPesaCredentials ErrorCode = "MISSING_TIGOPESA_CREDENTIALS"
	ErrCodeMissingCardCredentials     ErrorCode = "MISSING_CARD_CREDENTIALS"

	ErrCodeInvalidGateway    ErrorCode = "INVALID_GATEWAY"
	ErrCodeStatusCheckFailed ErrorCode = "STATUS_CHECK_FAILED"
	ErrCodePollNotRunning    ErrorCode = "POLL_NOT_RUNNING"
	ErrCodeResultNotFound    ErrorCode = "RESULT_NOT_FOUND"
)

type AppError struct {
	Type        ErrorType   `json:"type"`
	Code        ErrorCode   `json:"code"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     interface{} `json:"details,omitempty"`
	StatusCode  int         `json:"-"`
	Cause       error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// GetDetailedMessage joins the message with its remediation hint for display to a developer.
func (e *AppError) GetDetailedMessage() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Remediation)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Type and Code so that errors.Is works against the package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewRejection builds a validation error carrying a remediation hint.
func NewRejection(code ErrorCode, message, remediation string) *AppError {
	appErr := NewValidationError(message, code)
	appErr.Remediation = remediation
	return appErr
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewExternalError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

var (
	ErrMissingContext = NewRejection(ErrCodeMissingContext,
		"Missing application context", "Provide the host application context")
	ErrMissingPaymentMode = NewRejection(ErrCodeMissingPaymentMode,
		"Missing payment mode", "Provide payment mode")
	ErrMissingRequest = NewRejection(ErrCodeMissingRequest,
		"Missing payment request param", "Provide payment request param")
	ErrMissingEndpoint = NewRejection(ErrCodeMissingEndpoint,
		"Missing payment request HTTP base URL", "Provide base URL for payment request HTTP calls")
	ErrInvalidAmount = NewRejection(ErrCodeInvalidAmount,
		"Total amount must be greater than zero", "Make sure payable amount is greater than zero")
	ErrMissingCustomerDetails = NewRejection(ErrCodeMissingCustomerDetails,
		"Missing customer details", "Provide customer details required for transaction")
	ErrInvalidEnvironment = NewRejection(ErrCodeInvalidEnvironment,
		"Payment environment is neither live nor sandbox", "Set payment environment to live or sandbox")
	ErrMissingLoggingEndpoint = NewRejection(ErrCodeMissingLoggingEndpoint,
		"Missing payment logging endpoint", "Provide log endpoint")
	ErrMissingMpesaCredentials = NewRejection(ErrCodeMissingMpesaCredentials,
		"Missing M-Pesa client details", "Provide M-Pesa client credentials and payment log endpoint")
	ErrMissingTigoPesaCredentials = NewRejection(ErrCodeMissingTigoPesaCredentials,
		"Missing TigoPesa merchant details", "Provide all TigoPesa merchant details")
	ErrMissingCardCredentials = NewRejection(ErrCodeMissingCardCredentials,
		"Card merchant details can't be empty", "Make sure you provide card merchant details")

	ErrInvalidGateway = NewValidationError("unsupported payment gateway", ErrCodeInvalidGateway)
	ErrPollNotRunning = NewConflictError("no status poll is running", ErrCodePollNotRunning)
	ErrResultNotFound = NewNotFoundError("payment result not found", ErrCodeResultNotFound)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        ErrorType   `json:"type"`
		Code        ErrorCode   `json:"code"`
		Message     string      `json:"message"`
		Remediation string      `json:"remediation,omitempty"`
		Details     interface{} `json:"details,omitempty"`
	}{
		Type:        e.Type,
		Code:        e.Code,
		Message:     e.Message,
		Remediation: e.Remediation,
		Details:     e.Details,
	})
}
