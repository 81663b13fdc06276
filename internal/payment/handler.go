package payment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	"github.com/furahitechstudio/furahitechpay/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	PaymentService ServiceAPI
	Defaults       *payment.Configuration
	Logger         *slog.Logger
}

func NewHandler(paymentService ServiceAPI, defaults *payment.Configuration, logger *slog.Logger) *Handler {
	if defaults == nil {
		defaults = payment.NewConfiguration()
	}
	return &Handler{
		BaseHandler:    *transport.NewBaseHandler(logger),
		PaymentService: paymentService,
		Defaults:       defaults,
		Logger:         logger,
	}
}

// Validate handles POST /api/v1/payments/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Logger.Error("Validate: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	cfg, err := req.ResolveConfiguration(h.Defaults)
	if err != nil {
		h.Logger.Warn("Validate: invalid payment configuration", "error", err)
		h.HandleError(w, err)
		return
	}

	result := h.PaymentService.Request(r.Context(), cfg, req.Request, req.HostContext())
	if !result.IsAccepted() {
		h.HandleError(w, result.Rejected)
		return
	}

	h.WriteJSON(w, http.StatusOK, ValidateResponse{
		Flow:      result.Accepted.Flow,
		PhoneHint: result.Accepted.DerivedPhoneHint,
		PhoneMask: result.Accepted.PhoneMask,
		SessionID: h.PaymentService.SessionID(),
	})
}

// StartPolling handles POST /api/v1/payments/poll
func (h *Handler) StartPolling(w http.ResponseWriter, r *http.Request) {
	var req StartPollingRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Logger.Error("StartPolling: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	gateway, err := req.Validate()
	if err != nil {
		h.HandleError(w, err)
		return
	}

	if err := h.PaymentService.StartPolling(r.Context(), gateway, req.TransactionID, nil); err != nil {
		h.Logger.Error("StartPolling: service error", "error", err, "transaction_id", req.TransactionID)
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, h.PaymentService.PollState())
}

// PollState handles GET /api/v1/payments/poll
func (h *Handler) PollState(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.PaymentService.PollState())
}

// CancelPolling handles DELETE /api/v1/payments/poll
func (h *Handler) CancelPolling(w http.ResponseWriter, r *http.Request) {
	if err := h.PaymentService.CancelPolling(r.Context()); err != nil {
		h.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Result handles GET /api/v1/payments/results/{transactionID}
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	status, err := h.PaymentService.Result(r.Context(), transactionID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ResultResponse{
		TransactionID: transactionID,
		Status:        status,
		Presentation:  Present(status, nil),
	})
}
