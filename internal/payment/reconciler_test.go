package payment

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGateway(t *testing.T, handler http.HandlerFunc) *Reconciler {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	reconciler := NewReconciler(server.URL)
	reconciler.client.SetRetryCount(0)

	return reconciler
}

func TestGetCheckoutStatusClassification(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		want          CheckoutStatus
	}{
		{"paid", CheckoutPaid},
		{"succeeded", CheckoutPaid},
		{"failed", CheckoutFailed},
		{"expired", CheckoutFailed},
		{"cancelled", CheckoutFailed},
		{"pending", CheckoutPending},
		{"processing", CheckoutPending},
		{"something-new", CheckoutUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.gatewayStatus, func(t *testing.T) {
			reconciler := newGateway(t, func(res http.ResponseWriter, req *http.Request) {
				res.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(res, `{"reference":"chk-1","status":%q}`, tt.gatewayStatus)
			})

			got, err := reconciler.GetCheckoutStatus("chk-1")
			if err != nil {
				t.Fatalf("GetCheckoutStatus returned error: %v", err)
			}

			if got != tt.want {
				t.Errorf("GetCheckoutStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCheckoutStatusUnknownReference(t *testing.T) {
	reconciler := newGateway(t, func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusNoContent)
	})

	got, err := reconciler.GetCheckoutStatus("chk-missing")
	if err != nil {
		t.Fatalf("GetCheckoutStatus returned error: %v", err)
	}

	if got != CheckoutUnknown {
		t.Errorf("GetCheckoutStatus = %v, want %v", got, CheckoutUnknown)
	}
}

func TestGetCheckoutStatusGatewayError(t *testing.T) {
	reconciler := newGateway(t, func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := reconciler.GetCheckoutStatus("chk-1"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("GetCheckoutStatus error = %v, want ErrGatewayUnavailable", err)
	}
}

func TestGetCheckoutStatusTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	reconciler := NewReconciler(server.URL)
	reconciler.client.SetRetryCount(0)

	if _, err := reconciler.GetCheckoutStatus("chk-1"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("GetCheckoutStatus error = %v, want ErrGatewayUnavailable", err)
	}
}
