// Package payment queries the external payment gateway and classifies
// checkout results for the order lifecycle engine.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

const getCheckoutPath = "/api/checkouts/"

// CheckoutStatus is the internal classification of a gateway checkout state.
type CheckoutStatus string

const (
	CheckoutPaid    CheckoutStatus = "PAID"
	CheckoutFailed  CheckoutStatus = "FAILED"
	CheckoutPending CheckoutStatus = "PENDING"
	CheckoutUnknown CheckoutStatus = "UNKNOWN"
)

// ErrGatewayUnavailable marks transport and gateway-side failures. It is
// never a payment verdict: callers must leave the order untouched and retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type checkoutResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type Reconciler struct {
	apiAddress string
	client     *resty.Client
}

func NewReconciler(apiAddress string) *Reconciler {
	client := resty.New()

	client.
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)

	return &Reconciler{
		apiAddress: apiAddress,
		client:     client,
	}
}

// GetCheckoutStatus asks the gateway for the state of one checkout reference.
// A reference the gateway does not know yet classifies as Unknown, not as a
// failure.
func (r *Reconciler) GetCheckoutStatus(reference string) (CheckoutStatus, error) {
	requestURL, err := url.JoinPath(r.apiAddress, getCheckoutPath, reference)
	if err != nil {
		return CheckoutUnknown, err
	}

	request := r.client.R().SetDoNotParseResponse(true)

	response, err := request.Get(requestURL)
	if err != nil {
		return CheckoutUnknown, fmt.Errorf("get checkout status: %w: %w", ErrGatewayUnavailable, err)
	}

	defer response.RawBody().Close()

	switch {
	case response.StatusCode() == http.StatusNotFound || response.StatusCode() == http.StatusNoContent:
		return CheckoutUnknown, nil
	case response.StatusCode() != http.StatusOK:
		return CheckoutUnknown, fmt.Errorf("get checkout status: %w: unexpected status %v", ErrGatewayUnavailable, response.Status())
	}

	var checkout checkoutResponse

	jsonDecoder := json.NewDecoder(response.RawBody())

	if err := jsonDecoder.Decode(&checkout); err != nil {
		return CheckoutUnknown, fmt.Errorf("cannot decode checkout status response: %w", err)
	}

	return classify(checkout.Status), nil
}

func classify(gatewayStatus string) CheckoutStatus {
	switch gatewayStatus {
	case "paid", "succeeded":
		return CheckoutPaid
	case "failed", "expired", "cancelled":
		return CheckoutFailed
	case "pending", "processing":
		return CheckoutPending
	default:
		return CheckoutUnknown
	}
}
