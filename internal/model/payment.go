// Package model defines the request and response payloads exchanged with
// callers and with the downstream payment and mail services.
// It keeps transport-level types in one place for reuse.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
)

// PaymentRequest is the input payload for a pay request.
// It is also the body sent to the payment service.
type PaymentRequest struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

// Validate reports whether the request can enter the orchestrator.
func (r PaymentRequest) Validate() error {
	if r.OrderID == "" {
		return fmt.Errorf("orderId is required: %w", apperr.ErrInvalidRequest)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", apperr.ErrInvalidRequest)
	}
	return nil
}

// PaymentResponse is what the payment service returned.
//
// Status is opaque to the orchestrator ("APPROVED", "DECLINED", ...).
// Any other field the payment service sends is kept in Extra and written
// back unchanged, so callers see the downstream body as it was.
type PaymentResponse struct {
	Status string                     `json:"status"`
	Extra  map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes status and keeps all other fields verbatim.
func (r *PaymentResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var status string
	if s, ok := raw["status"]; ok {
		if err := json.Unmarshal(s, &status); err != nil {
			return fmt.Errorf("status: %w", err)
		}
		delete(raw, "status")
	}

	r.Status = status
	r.Extra = nil
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON writes status followed by the pass-through fields.
func (r PaymentResponse) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+1)
	for k, v := range r.Extra {
		out[k] = v
	}
	status, err := json.Marshal(r.Status)
	if err != nil {
		return nil, err
	}
	out["status"] = status
	return json.Marshal(out)
}

// EmailRequest is the body sent to the mail service.
type EmailRequest struct {
	Email string `json:"email"`
}

// ErrorResponse is the body written when a pay request fails.
type ErrorResponse struct {
	Status  string        `json:"status"` // always "error"
	OrderID string        `json:"orderId,omitempty"`
	Error   *ErrorPayload `json:"error"`
}

// ErrorPayload describes an error response.
type ErrorPayload struct {
	Kind    string `json:"kind"`              // "payment_service", "mail_send", "timeout"
	Message string `json:"message,omitempty"` // human-readable, includes downstream detail
}
