package magic

import "strings"

// SessionRequest describes a checkout session to create. Amount is in major
// currency units; the SDK converts to minor units on the wire. SuccessURL
// and CancelURL fall back to the configured defaults when empty.
type SessionRequest struct {
	Amount        float64
	Currency      string
	Description   string
	CustomerEmail string
	CustomerName  string
	Metadata      map[string]interface{}
	SuccessURL    string
	CancelURL     string
}

func (r SessionRequest) validate() error {
	if r.Amount <= 0 {
		return newValidationError("amount", "amount must be greater than zero")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return newValidationError("currency", "currency is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return newValidationError("description", "description is required")
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		return newValidationError("customerEmail", "customerEmail is required")
	}
	return nil
}

// SubscriptionRequest describes a recurring subscription to create against
// an existing plan. ChargeNow defaults to true when nil: the first invoice
// is issued immediately unless a trial or deferred start is wanted.
type SubscriptionRequest struct {
	PlanID        string
	CustomerEmail string
	CustomerName  string
	TrialDays     int
	Metadata      map[string]interface{}
	SuccessURL    string
	CancelURL     string
	ChargeNow     *bool
}

func (r SubscriptionRequest) validate() error {
	if strings.TrimSpace(r.PlanID) == "" {
		return newValidationError("planId", "planId is required")
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		return newValidationError("customerEmail", "customerEmail is required")
	}
	if r.TrialDays < 0 {
		return newValidationError("trialDays", "trialDays must not be negative")
	}
	return nil
}
