package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/iliamunaev/payment-orchestration/internal/apperr"
)

func TestPaymentRequestJSONTags(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(PaymentRequest{OrderID: "order-1", Amount: 100.0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	if raw["orderId"] != "order-1" {
		t.Fatalf("expected orderId, got %v", raw["orderId"])
	}
	if raw["amount"] != float64(100) {
		t.Fatalf("expected amount, got %v", raw["amount"])
	}
}

func TestPaymentRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     PaymentRequest
		wantErr bool
	}{
		{name: "valid", req: PaymentRequest{OrderID: "order-1", Amount: 100}},
		{name: "missing_order_id", req: PaymentRequest{Amount: 100}, wantErr: true},
		{name: "zero_amount", req: PaymentRequest{OrderID: "order-1"}, wantErr: true},
		{name: "negative_amount", req: PaymentRequest{OrderID: "order-1", Amount: -1}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, apperr.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

// Fields other than status must survive a decode/encode cycle untouched.
func TestPaymentResponsePassThrough(t *testing.T) {
	t.Parallel()

	in := []byte(`{"status":"APPROVED","transactionId":"tx-9","fee":{"amount":1.5}}`)

	var resp PaymentResponse
	if err := json.Unmarshal(in, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "APPROVED" {
		t.Fatalf("expected APPROVED, got %q", resp.Status)
	}
	if len(resp.Extra) != 2 {
		t.Fatalf("expected 2 extra fields, got %d", len(resp.Extra))
	}

	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var want, got map[string]any
	_ = json.Unmarshal(in, &want)
	_ = json.Unmarshal(out, &got)
	if len(got) != len(want) || got["transactionId"] != "tx-9" || got["status"] != "APPROVED" {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPaymentResponseStatusOnly(t *testing.T) {
	t.Parallel()

	var resp PaymentResponse
	if err := json.Unmarshal([]byte(`{"status":"DECLINED"}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Extra != nil {
		t.Fatalf("expected no extra fields, got %v", resp.Extra)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"status":"DECLINED"}` {
		t.Fatalf("unexpected body %s", out)
	}
}

func TestPaymentResponseMalformed(t *testing.T) {
	t.Parallel()

	tests := []string{`not json`, `{"status":42}`, `[]`}
	for _, body := range tests {
		var resp PaymentResponse
		if err := json.Unmarshal([]byte(body), &resp); err == nil {
			t.Errorf("expected error for %q", body)
		}
	}
}

func TestErrorResponseShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(ErrorResponse{
		Status: "error",
		Error:  &ErrorPayload{Kind: "mail_send"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := raw["orderId"]; ok {
		t.Fatalf("expected orderId to be omitted")
	}
	if _, ok := raw["error"]; !ok {
		t.Fatalf("expected error to be present")
	}
}
