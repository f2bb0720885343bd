package entities

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Status string

const (
	StatusAwaitingPayment  Status = "AWAITING_PAYMENT"
	StatusPaymentConfirmed Status = "PAYMENT_CONFIRMED"
	StatusConfirmed        Status = "CONFIRMED"
	StatusPreparing        Status = "PREPARING"
	StatusReady            Status = "READY"
	StatusOutForDelivery   Status = "OUT_FOR_DELIVERY"
	StatusDelivered        Status = "DELIVERED"
	StatusPaymentFailed    Status = "PAYMENT_FAILED"
	StatusCancelled        Status = "CANCELLED"
)

type Fulfillment string

const (
	FulfillmentPickup   Fulfillment = "PICKUP"
	FulfillmentDelivery Fulfillment = "DELIVERY"
)

// transitions is the single source of truth for the order state machine.
// Transition validation and the set of loyalty-eligible statuses are both
// derived from it, so the two cannot drift apart.
var transitions = map[Status][]Status{
	StatusAwaitingPayment:  {StatusPaymentConfirmed, StatusPaymentFailed},
	StatusPaymentConfirmed: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:        {StatusPreparing, StatusReady, StatusCancelled},
	StatusPreparing:        {StatusReady},
	StatusReady:            {StatusOutForDelivery},
	StatusOutForDelivery:   {StatusDelivered},
}

// paidStatuses holds every status reachable from StatusPaymentConfirmed,
// excluding CANCELLED: an order in any of these states has had its payment
// taken and may earn loyalty points.
var paidStatuses = func() map[Status]bool {
	paid := map[Status]bool{StatusPaymentConfirmed: true}

	queue := []Status{StatusPaymentConfirmed}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range transitions[current] {
			if next == StatusCancelled || paid[next] {
				continue
			}

			paid[next] = true
			queue = append(queue, next)
		}
	}

	return paid
}()

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Paid reports whether payment has been settled for an order in this status.
func (s Status) Paid() bool {
	return paidStatuses[s]
}

// Terminal reports whether no further transition is permitted from this status.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

type Order struct {
	ID               int64          `db:"id"`
	Status           Status         `db:"status"`
	Fulfillment      Fulfillment    `db:"fulfillment"`
	Total            int64          `db:"total"`
	DeliveryAddress  sql.NullString `db:"delivery_address"`
	OrderCode        sql.NullString `db:"order_code"`
	CheckoutRef      sql.NullString `db:"checkout_ref"`
	EstimatedReadyAt sql.NullTime   `db:"estimated_ready_at"`
	ReadyAt          sql.NullTime   `db:"ready_at"`
	DriverID         sql.NullInt64  `db:"driver_id"`
	UserID           sql.NullInt64  `db:"user_id"`
	CreatedAt        time.Time      `db:"created_at"`
}

// IsDelivery reports whether the order is fulfilled by delivery. Delivery
// orders always carry a delivery address and an order code; pickup orders
// never do.
func (o Order) IsDelivery() bool {
	return o.Fulfillment == FulfillmentDelivery
}

type OrderItem struct {
	ID             int64          `db:"id"`
	OrderID        int64          `db:"order_id"`
	MenuItemID     int64          `db:"menu_item_id"`
	Name           string         `db:"name"`
	Quantity       int            `db:"quantity"`
	UnitPrice      int64          `db:"unit_price"`
	Customizations types.JSONText `db:"customizations"`
}
