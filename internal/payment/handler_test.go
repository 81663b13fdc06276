package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/datamodel/payment"
	paymentPkg "github.com/furahitechstudio/furahitechpay/internal/payment"
)

// Mock payment service for testing
type mockPaymentService struct {
	lastConfig     *payment.Configuration
	lastRequest    *payment.Request
	lastHasContext bool
	validation     paymentPkg.ValidationResult

	startErr    error
	startedWith struct {
		gateway       payment.Gateway
		transactionID string
	}
	cancelErr error
	state     payment.PollState

	result    payment.PaymentStatus
	resultErr error
}

func (m *mockPaymentService) SessionID() string { return "session-1" }

func (m *mockPaymentService) Request(ctx context.Context, cfg *payment.Configuration, req *payment.Request, hasActivityContext bool) paymentPkg.ValidationResult {
	m.lastConfig = cfg
	m.lastRequest = req
	m.lastHasContext = hasActivityContext
	return m.validation
}

func (m *mockPaymentService) StartPolling(ctx context.Context, gateway payment.Gateway, transactionID string, listener paymentPkg.ResultListener) error {
	m.startedWith.gateway = gateway
	m.startedWith.transactionID = transactionID
	if m.startErr != nil {
		return m.startErr
	}
	m.state = payment.PollState{Gateway: gateway, TransactionID: transactionID, IsRunning: true}
	return nil
}

func (m *mockPaymentService) CancelPolling(ctx context.Context) error {
	return m.cancelErr
}

func (m *mockPaymentService) PollState() payment.PollState {
	return m.state
}

func (m *mockPaymentService) Result(ctx context.Context, transactionID string) (payment.PaymentStatus, error) {
	return m.result, m.resultErr
}

var _ = Describe("Handler", func() {
	var (
		handler     *paymentPkg.Handler
		mockService *mockPaymentService
		router      *chi.Mux
		defaults    *payment.Configuration
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mockService = &mockPaymentService{}
		defaults = payment.NewConfiguration().WithMode(payment.ModeCard)
		handler = paymentPkg.NewHandler(mockService, defaults, logger)

		router = chi.NewRouter()
		router.Post("/validate", handler.Validate)
		router.Post("/poll", handler.StartPolling)
		router.Get("/poll", handler.PollState)
		router.Delete("/poll", handler.CancelPolling)
		router.Get("/results/{transactionID}", handler.Result)
	})

	serve := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			if raw, ok := body.(string); ok {
				buf.WriteString(raw)
			} else {
				Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
			}
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	Describe("Validate", func() {
		Context("when the request is accepted", func() {
			It("should return the selected flow", func() {
				// Given
				mockService.validation = paymentPkg.ValidationResult{Accepted: &paymentPkg.Accepted{
					Flow:             payment.FlowMobile,
					DerivedPhoneHint: payment.MpesaSamplePhone,
					PhoneMask:        payment.DefaultPhoneMask,
				}}
				body := `{"configuration":{"mode":"mobile","environment":"sandbox","supported_gateways":["mpesa"]},
					"request":{"transaction_amount":"1500.50","request_endpoint":"https://api.example.com",
					"customer":{"email":"jane@example.com","first_name":"Jane","last_name":"Doe"},
					"mpesa":{"client_id":"c","client_secret":"s","log_endpoint":"https://logs.example.com"}}}`

				// When
				rec := serve(http.MethodPost, "/validate", body)

				// Then
				Expect(rec.Code).To(Equal(http.StatusOK))
				var resp paymentPkg.ValidateResponse
				Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.Flow).To(Equal(payment.FlowMobile))
				Expect(resp.PhoneHint).To(Equal(payment.MpesaSamplePhone))
				Expect(resp.SessionID).To(Equal("session-1"))

				Expect(mockService.lastHasContext).To(BeTrue())
				Expect(mockService.lastConfig.Mode).To(Equal(payment.ModeMobile))
				Expect(mockService.lastConfig.SupportedGateways).To(Equal([]payment.Gateway{payment.GatewayMpesa}))
				Expect(mockService.lastRequest.TransactionAmount.String()).To(Equal("1500.5"))
				Expect(mockService.lastRequest.Mpesa.ClientSecret).To(Equal("s"))
			})

			It("should fall back to the default configuration", func() {
				// Given
				mockService.validation = paymentPkg.ValidationResult{Accepted: &paymentPkg.Accepted{Flow: payment.FlowCard}}

				// When
				rec := serve(http.MethodPost, "/validate", `{"request":{"transaction_amount":10}}`)

				// Then
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(mockService.lastConfig).NotTo(BeIdenticalTo(defaults))
				Expect(mockService.lastConfig.Mode).To(Equal(payment.ModeCard))
			})

			It("should keep defaults for fields the configuration omits", func() {
				// Given
				mockService.validation = paymentPkg.ValidationResult{Accepted: &paymentPkg.Accepted{Flow: payment.FlowMobile}}
				body := `{"configuration":{"mode":"mobile","supported_gateways":["mpesa"]},"request":{"transaction_amount":10}}`

				// When
				rec := serve(http.MethodPost, "/validate", body)

				// Then
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(mockService.lastConfig.Mode).To(Equal(payment.ModeMobile))
				Expect(mockService.lastConfig.Environment).To(Equal(payment.EnvironmentLive))
				Expect(mockService.lastConfig.CustomPhoneHint).To(Equal(payment.DefaultPhoneHint))
				Expect(mockService.lastConfig.CustomPhoneMask).To(Equal(payment.DefaultPhoneMask))
				Expect(defaults.SupportedGateways).To(BeEmpty())
				Expect(defaults.Mode).To(Equal(payment.ModeCard))
			})

			It("should accept mode and gateway literals in any case", func() {
				// Given
				mockService.validation = paymentPkg.ValidationResult{Accepted: &paymentPkg.Accepted{Flow: payment.FlowMobile}}
				body := `{"configuration":{"mode":"Mobile","supported_gateways":["Mpesa","TIGOPESA"]},"request":{"transaction_amount":10}}`

				// When
				rec := serve(http.MethodPost, "/validate", body)

				// Then
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(mockService.lastConfig.Mode).To(Equal(payment.ModeMobile))
				Expect(mockService.lastConfig.SupportedGateways).To(Equal([]payment.Gateway{payment.GatewayMpesa, payment.GatewayTigoPesa}))
			})
		})

		Context("when the configuration carries unknown literals", func() {
			DescribeTable("should reject the request before validation",
				func(configuration string) {
					// When
					rec := serve(http.MethodPost, "/validate", `{"configuration":`+configuration+`,"request":{"transaction_amount":10}}`)

					// Then
					Expect(rec.Code).To(Equal(http.StatusBadRequest))
					Expect(rec.Body.String()).To(ContainSubstring("VALIDATION_FAILED"))
					Expect(mockService.lastConfig).To(BeNil())
				},
				Entry("unknown mode", `{"mode":"bitcoin"}`),
				Entry("unknown gateway", `{"mode":"mobile","supported_gateways":["paypal"]}`),
			)
		})

		Context("when the request is rejected", func() {
			It("should return the rejection kind and remediation", func() {
				// Given
				mockService.validation = paymentPkg.ValidationResult{Rejected: errors.ErrInvalidAmount}

				// When
				rec := serve(http.MethodPost, "/validate", `{"request":{"transaction_amount":0},"has_context":true}`)

				// Then
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				var resp map[string]map[string]interface{}
				Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp["error"]["code"]).To(Equal("INVALID_AMOUNT"))
				Expect(resp["error"]["remediation"]).NotTo(BeEmpty())
			})

			It("should pass an explicit missing host context through", func() {
				// Given
				mockService.validation = paymentPkg.ValidationResult{Rejected: errors.ErrMissingContext}

				// When
				rec := serve(http.MethodPost, "/validate", `{"request":null,"has_context":false}`)

				// Then
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(mockService.lastHasContext).To(BeFalse())
			})
		})

		Context("when the body is malformed", func() {
			It("should return a validation error", func() {
				// When
				rec := serve(http.MethodPost, "/validate", `{not json`)

				// Then
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(rec.Body.String()).To(ContainSubstring("VALIDATION_FAILED"))
			})
		})
	})

	Describe("StartPolling", func() {
		It("should start polling and return the state", func() {
			// When
			rec := serve(http.MethodPost, "/poll", paymentPkg.StartPollingRequest{Gateway: "TigoPesa", TransactionID: "tx-1"})

			// Then
			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(mockService.startedWith.gateway).To(Equal(payment.GatewayTigoPesa))
			Expect(mockService.startedWith.transactionID).To(Equal("tx-1"))

			var state payment.PollState
			Expect(json.Unmarshal(rec.Body.Bytes(), &state)).To(Succeed())
			Expect(state.IsRunning).To(BeTrue())
		})

		DescribeTable("should reject invalid requests",
			func(req paymentPkg.StartPollingRequest, code string) {
				// When
				rec := serve(http.MethodPost, "/poll", req)

				// Then
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(rec.Body.String()).To(ContainSubstring(code))
				Expect(mockService.startedWith.transactionID).To(BeEmpty())
			},
			Entry("missing transaction id", paymentPkg.StartPollingRequest{Gateway: "mpesa"}, "VALIDATION_FAILED"),
			Entry("unknown gateway", paymentPkg.StartPollingRequest{Gateway: "paypal", TransactionID: "tx"}, "INVALID_GATEWAY"),
			Entry("gateway none", paymentPkg.StartPollingRequest{Gateway: "none", TransactionID: "tx"}, "INVALID_GATEWAY"),
		)
	})

	Describe("PollState", func() {
		It("should return the current state", func() {
			// Given
			mockService.state = payment.PollState{Gateway: payment.GatewayMpesa, TransactionID: "tx-2", RetryCount: 3, IsRunning: true}

			// When
			rec := serve(http.MethodGet, "/poll", nil)

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"retry_count":3`))
		})
	})

	Describe("CancelPolling", func() {
		It("should return no content when a poll was cancelled", func() {
			// When
			rec := serve(http.MethodDelete, "/poll", nil)

			// Then
			Expect(rec.Code).To(Equal(http.StatusNoContent))
		})

		It("should return conflict when no poll is running", func() {
			// Given
			mockService.cancelErr = errors.ErrPollNotRunning

			// When
			rec := serve(http.MethodDelete, "/poll", nil)

			// Then
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("Result", func() {
		It("should return the presented result", func() {
			// Given
			mockService.result = payment.PaymentStatus{Status: payment.StatusTimeout}

			// When
			rec := serve(http.MethodGet, "/results/tx-9", nil)

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp paymentPkg.ResultResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.TransactionID).To(Equal("tx-9"))
			Expect(resp.Presentation.Label).To(Equal(paymentPkg.LabelTimeout))
		})

		It("should return not found for an unknown transaction", func() {
			// Given
			mockService.resultErr = errors.ErrResultNotFound

			// When
			rec := serve(http.MethodGet, "/results/tx-none", nil)

			// Then
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})
