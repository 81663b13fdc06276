package payment

import "github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"

const (
	LabelSuccess = "Success"
	LabelTimeout = "Timeout"
	LabelFailure = "Failure"
)

const (
	messageCancelled = "Payment was cancelled"
	messageReceived  = "Payment received successfully"
	messageTimedOut  = "Payment request timed out"
	messageNoPayment = "No payment was received"
)

// Presentation is what the UI collaborator shows for a terminal status.
type Presentation struct {
	Label   string                `json:"label"`
	Message string                `json:"message"`
	Success bool                  `json:"success"`
	Status  payment.PaymentStatus `json:"status"`
}

// Present maps a status to its user-facing label and message. extraParam from the original
// request is attached to the status handed on.
func Present(status payment.PaymentStatus, extraParam any) Presentation {
	if extraParam != nil {
		status.ExtraParam = extraParam
	}

	p := Presentation{Status: status}
	switch status.Status {
	case payment.StatusSuccess:
		p.Label, p.Message, p.Success = LabelSuccess, messageReceived, true
	case payment.StatusTimeout:
		p.Label, p.Message = LabelTimeout, messageTimedOut
	case payment.StatusCancelled:
		p.Label, p.Message = LabelFailure, messageCancelled
	default:
		p.Label, p.Message = LabelFailure, messageNoPayment
	}
	return p
}
