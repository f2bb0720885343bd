package verifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/payment"
	"github.com/dastarhan/backend/internal/storage/storagetest"
)

type fakeEngine struct {
	mu       sync.Mutex
	verified map[int64]int
	err      error
}

func (e *fakeEngine) VerifyPayment(_ context.Context, orderID int64) (entities.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.verified == nil {
		e.verified = make(map[int64]int)
	}
	e.verified[orderID]++

	return entities.Order{ID: orderID}, e.err
}

func seedAwaiting(store *storagetest.Fake, withRef bool) entities.Order {
	order := entities.Order{
		Status:      entities.StatusAwaitingPayment,
		Fulfillment: entities.FulfillmentPickup,
		Total:       900,
	}

	if withRef {
		order.CheckoutRef.String = "chk-1"
		order.CheckoutRef.Valid = true
	}

	return store.Seed(order)
}

func TestSweepVerifiesPendingOrders(t *testing.T) {
	store := storagetest.New()
	engine := &fakeEngine{}

	first := seedAwaiting(store, true)
	second := seedAwaiting(store, true)
	noRef := seedAwaiting(store, false)

	verifier := New(store, engine, time.Minute)

	if err := verifier.sweep(context.Background()); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}

	if engine.verified[first.ID] != 1 || engine.verified[second.ID] != 1 {
		t.Errorf("verified = %v, want one verification each for orders %d and %d", engine.verified, first.ID, second.ID)
	}

	if engine.verified[noRef.ID] != 0 {
		t.Errorf("order %d without checkout reference was verified", noRef.ID)
	}
}

func TestSweepToleratesGatewayOutage(t *testing.T) {
	store := storagetest.New()
	engine := &fakeEngine{err: payment.ErrGatewayUnavailable}

	seedAwaiting(store, true)

	verifier := New(store, engine, time.Minute)

	if err := verifier.sweep(context.Background()); err != nil {
		t.Fatalf("sweep returned error on gateway outage: %v", err)
	}
}
