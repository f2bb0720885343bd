package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/lifecycle"
	"github.com/dastarhan/backend/internal/notifier"
	"github.com/dastarhan/backend/internal/storage/storagetest"
)

type notification struct {
	userID int64
	kind   string
}

type recordingNotifier struct {
	sent []notification
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, kind string, _ any) {
	n.sent = append(n.sent, notification{userID: userID, kind: kind})
}

type fakeAwarder struct {
	calls []int64
	err   error
}

func (a *fakeAwarder) AwardLoyaltyPointsIfEligible(_ context.Context, orderID int64, _ int64) error {
	a.calls = append(a.calls, orderID)
	return a.err
}

func newTestDispatcher(store *storagetest.Fake) (*Dispatcher, *fakeAwarder, *recordingNotifier) {
	awarder := &fakeAwarder{}
	recorder := &recordingNotifier{}

	return NewDispatcher(store, awarder, recorder), awarder, recorder
}

func seedReadyDelivery(store *storagetest.Fake, owner int64, createdAt time.Time) entities.Order {
	order := entities.Order{
		Status:      entities.StatusReady,
		Fulfillment: entities.FulfillmentDelivery,
		Total:       2000,
		CreatedAt:   createdAt,
	}

	order.DeliveryAddress.String = "22 Dostyk Street"
	order.DeliveryAddress.Valid = true
	order.OrderCode.String = "ABC234"
	order.OrderCode.Valid = true
	order.UserID.Int64 = owner
	order.UserID.Valid = true

	return store.Seed(order)
}

func TestListReadyDeliveriesFIFO(t *testing.T) {
	store := storagetest.New()
	dispatcher, _, _ := newTestDispatcher(store)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newest := seedReadyDelivery(store, 1, base.Add(2*time.Hour))
	oldest := seedReadyDelivery(store, 2, base)
	middle := seedReadyDelivery(store, 3, base.Add(time.Hour))

	// pickup orders and orders in other statuses must not appear
	store.Seed(entities.Order{Status: entities.StatusReady, Fulfillment: entities.FulfillmentPickup, Total: 900, CreatedAt: base})
	store.Seed(entities.Order{Status: entities.StatusConfirmed, Fulfillment: entities.FulfillmentDelivery, Total: 900, CreatedAt: base})

	ready, err := dispatcher.ListReadyDeliveries(context.Background())
	if err != nil {
		t.Fatalf("ListReadyDeliveries returned error: %v", err)
	}

	wantOrder := []int64{oldest.ID, middle.ID, newest.ID}
	if len(ready) != len(wantOrder) {
		t.Fatalf("got %d ready deliveries, want %d", len(ready), len(wantOrder))
	}

	for i, want := range wantOrder {
		if ready[i].ID != want {
			t.Errorf("ready[%d].ID = %d, want %d (oldest first)", i, ready[i].ID, want)
		}
	}
}

func TestAcceptDelivery(t *testing.T) {
	store := storagetest.New()
	dispatcher, _, recorder := newTestDispatcher(store)

	order := seedReadyDelivery(store, 7, time.Now())

	const driverID = int64(99)

	assigned, err := dispatcher.AcceptDelivery(context.Background(), order.ID, driverID)
	if err != nil {
		t.Fatalf("AcceptDelivery returned error: %v", err)
	}

	if assigned.Status != entities.StatusOutForDelivery {
		t.Errorf("status = %s, want %s", assigned.Status, entities.StatusOutForDelivery)
	}

	if !assigned.DriverID.Valid || assigned.DriverID.Int64 != driverID {
		t.Errorf("driver = %+v, want %d", assigned.DriverID, driverID)
	}

	if len(recorder.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(recorder.sent))
	}

	// the customer gets notified, never the driver
	if recorder.sent[0].userID != 7 {
		t.Errorf("notification target = %d, want owner 7, not driver %d", recorder.sent[0].userID, driverID)
	}

	if recorder.sent[0].kind != notifier.KindOutForDelivery {
		t.Errorf("notification kind = %q, want %q", recorder.sent[0].kind, notifier.KindOutForDelivery)
	}
}

func TestAcceptDeliveryPickupOrder(t *testing.T) {
	store := storagetest.New()
	dispatcher, _, _ := newTestDispatcher(store)

	order := store.Seed(entities.Order{Status: entities.StatusReady, Fulfillment: entities.FulfillmentPickup, Total: 900})

	if _, err := dispatcher.AcceptDelivery(context.Background(), order.ID, 99); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("AcceptDelivery on pickup order error = %v, want ErrInvalidTransition", err)
	}

	stored, _ := store.GetOrder(context.Background(), order.ID)
	if stored.Status != entities.StatusReady {
		t.Errorf("status changed to %s, want unchanged %s", stored.Status, entities.StatusReady)
	}
}

func TestAcceptDeliveryWrongStatus(t *testing.T) {
	store := storagetest.New()
	dispatcher, _, _ := newTestDispatcher(store)

	order := entities.Order{Status: entities.StatusConfirmed, Fulfillment: entities.FulfillmentDelivery, Total: 900}
	order.DeliveryAddress.String = "22 Dostyk Street"
	order.DeliveryAddress.Valid = true
	seeded := store.Seed(order)

	if _, err := dispatcher.AcceptDelivery(context.Background(), seeded.ID, 99); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("AcceptDelivery error = %v, want ErrInvalidTransition", err)
	}
}

func TestAcceptDeliveryNotFound(t *testing.T) {
	store := storagetest.New()
	dispatcher, _, _ := newTestDispatcher(store)

	if _, err := dispatcher.AcceptDelivery(context.Background(), 404, 99); !errors.Is(err, lifecycle.ErrOrderNotFound) {
		t.Fatalf("AcceptDelivery error = %v, want ErrOrderNotFound", err)
	}
}

func TestMarkDelivered(t *testing.T) {
	store := storagetest.New()
	dispatcher, awarder, recorder := newTestDispatcher(store)

	order := seedReadyDelivery(store, 7, time.Now())

	const driverID = int64(99)

	if _, err := dispatcher.AcceptDelivery(context.Background(), order.ID, driverID); err != nil {
		t.Fatalf("AcceptDelivery returned error: %v", err)
	}

	delivered, err := dispatcher.MarkDelivered(context.Background(), order.ID, driverID)
	if err != nil {
		t.Fatalf("MarkDelivered returned error: %v", err)
	}

	if delivered.Status != entities.StatusDelivered {
		t.Errorf("status = %s, want %s", delivered.Status, entities.StatusDelivered)
	}

	if len(awarder.calls) != 1 || awarder.calls[0] != order.ID {
		t.Errorf("loyalty settlement calls = %v, want one for order %d", awarder.calls, order.ID)
	}

	last := recorder.sent[len(recorder.sent)-1]
	if last.userID != 7 || last.kind != notifier.KindDelivered {
		t.Errorf("last notification = %+v, want delivered notice to owner 7", last)
	}
}

func TestMarkDeliveredWrongDriver(t *testing.T) {
	store := storagetest.New()
	dispatcher, _, _ := newTestDispatcher(store)

	order := seedReadyDelivery(store, 7, time.Now())

	if _, err := dispatcher.AcceptDelivery(context.Background(), order.ID, 99); err != nil {
		t.Fatalf("AcceptDelivery returned error: %v", err)
	}

	if _, err := dispatcher.MarkDelivered(context.Background(), order.ID, 100); !errors.Is(err, lifecycle.ErrForbidden) {
		t.Fatalf("MarkDelivered by wrong driver error = %v, want ErrForbidden", err)
	}

	stored, _ := store.GetOrder(context.Background(), order.ID)
	if stored.Status != entities.StatusOutForDelivery {
		t.Errorf("status = %s, want unchanged %s", stored.Status, entities.StatusOutForDelivery)
	}
}

func TestMarkDeliveredAwardFailureDoesNotFailDelivery(t *testing.T) {
	store := storagetest.New()
	dispatcher, awarder, _ := newTestDispatcher(store)
	awarder.err = errors.New("loyalty store down")

	order := seedReadyDelivery(store, 7, time.Now())

	if _, err := dispatcher.AcceptDelivery(context.Background(), order.ID, 99); err != nil {
		t.Fatalf("AcceptDelivery returned error: %v", err)
	}

	delivered, err := dispatcher.MarkDelivered(context.Background(), order.ID, 99)
	if err != nil {
		t.Fatalf("MarkDelivered returned error despite loyalty being best-effort: %v", err)
	}

	if delivered.Status != entities.StatusDelivered {
		t.Errorf("status = %s, want %s", delivered.Status, entities.StatusDelivered)
	}
}

func TestListActiveDeliveries(t *testing.T) {
	store := storagetest.New()
	dispatcher, _, _ := newTestDispatcher(store)

	first := seedReadyDelivery(store, 1, time.Now())
	second := seedReadyDelivery(store, 2, time.Now())
	other := seedReadyDelivery(store, 3, time.Now())

	if _, err := dispatcher.AcceptDelivery(context.Background(), first.ID, 99); err != nil {
		t.Fatalf("AcceptDelivery returned error: %v", err)
	}
	if _, err := dispatcher.AcceptDelivery(context.Background(), second.ID, 99); err != nil {
		t.Fatalf("AcceptDelivery returned error: %v", err)
	}
	if _, err := dispatcher.AcceptDelivery(context.Background(), other.ID, 100); err != nil {
		t.Fatalf("AcceptDelivery returned error: %v", err)
	}

	active, err := dispatcher.ListActiveDeliveries(context.Background(), 99)
	if err != nil {
		t.Fatalf("ListActiveDeliveries returned error: %v", err)
	}

	if len(active) != 2 {
		t.Fatalf("driver 99 has %d active deliveries, want 2", len(active))
	}

	for _, order := range active {
		if order.DriverID.Int64 != 99 {
			t.Errorf("active delivery %d belongs to driver %d, want 99", order.ID, order.DriverID.Int64)
		}
	}
}
