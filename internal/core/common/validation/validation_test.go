package validation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/furahitechstudio/furahitechpay/internal"
	"github.com/furahitechstudio/furahitechpay/internal/core/common/validation"
)

var _ = Describe("RuleSet", func() {
	It("should return the first failing rule", func() {
		// Given
		rs := validation.NewRuleSet().
			Require("amount", true, errors.ErrInvalidAmount).
			Require("customer", false, errors.ErrMissingCustomerDetails).
			Require("endpoint", false, errors.ErrMissingEndpoint)

		// When
		first := rs.First()

		// Then
		Expect(first).To(Equal(errors.ErrMissingCustomerDetails))
		Expect(rs.Failing()).To(HaveLen(2))
		Expect(rs.Len()).To(Equal(3))
	})

	It("should return nil when every rule holds", func() {
		Expect(validation.NewRuleSet().Require("a", true, errors.ErrInvalidAmount).First()).To(BeNil())
	})

	It("should skip conditional rules whose precondition is false", func() {
		// Given
		rs := validation.NewRuleSet().
			RequireWhen(false, "card", false, errors.ErrMissingCardCredentials).
			RequireWhen(true, "tigopesa", false, errors.ErrMissingTigoPesaCredentials)

		// When
		first := rs.First()

		// Then
		Expect(first).To(Equal(errors.ErrMissingTigoPesaCredentials))
	})
})

var _ = Describe("helpers", func() {
	It("should detect empty values", func() {
		Expect(validation.NotEmpty("a", "b")).To(BeTrue())
		Expect(validation.NotEmpty("a", "")).To(BeFalse())
		Expect(validation.NotEmpty()).To(BeTrue())
	})

	It("should compare case-insensitively", func() {
		Expect(validation.EqualsAnyFold("LIVE", "live", "sandbox")).To(BeTrue())
		Expect(validation.EqualsAnyFold("Live ", "live", "sandbox")).To(BeFalse())
		Expect(validation.EqualsAnyFold("staging", "live", "sandbox")).To(BeFalse())
	})
})
