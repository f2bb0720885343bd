// Package dispatch covers the driver-facing slice of the order lifecycle:
// picking up ready deliveries and completing them.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/lifecycle"
	"github.com/dastarhan/backend/internal/notifier"
	"github.com/dastarhan/backend/internal/storage"
)

// PointsAwarder settles loyalty points exactly once per order. Dispatch calls
// it on delivery completion as a second, idempotent-safe settlement trigger.
type PointsAwarder interface {
	AwardLoyaltyPointsIfEligible(ctx context.Context, orderID int64, userID int64) error
}

type Dispatcher struct {
	storage  storage.Storage
	points   PointsAwarder
	notifier notifier.Notifier
}

func NewDispatcher(storage storage.Storage, points PointsAwarder, notifier notifier.Notifier) *Dispatcher {
	return &Dispatcher{
		storage:  storage,
		points:   points,
		notifier: notifier,
	}
}

// ListReadyDeliveries returns every READY delivery order with an address,
// oldest first, so drivers drain the queue fairly.
func (d *Dispatcher) ListReadyDeliveries(ctx context.Context) ([]entities.Order, error) {
	return d.storage.ListReadyDeliveries(ctx)
}

// ListActiveDeliveries returns the orders a driver is currently carrying.
func (d *Dispatcher) ListActiveDeliveries(ctx context.Context, driverID int64) ([]entities.Order, error) {
	return d.storage.ListActiveDeliveries(ctx, driverID)
}

// AcceptDelivery assigns the driver to a READY delivery order and moves it to
// OUT_FOR_DELIVERY. The customer notification is sent after the transition
// commits and its failure never rolls the transition back.
func (d *Dispatcher) AcceptDelivery(ctx context.Context, orderID int64, driverID int64) (entities.Order, error) {
	order, err := d.storage.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return order, lifecycle.ErrOrderNotFound
		}

		return order, err
	}

	if !order.IsDelivery() || !order.DeliveryAddress.Valid {
		return order, fmt.Errorf("order %d is not a delivery order: %w", orderID, lifecycle.ErrInvalidTransition)
	}

	assigned, err := d.storage.TransitionOrder(ctx, orderID, entities.StatusOutForDelivery, storage.OrderUpdate{
		DriverID: &driverID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrWrongStatus) {
			return assigned, fmt.Errorf("cannot accept delivery in status %s: %w", assigned.Status, lifecycle.ErrInvalidTransition)
		}

		return assigned, err
	}

	// The notification goes to the order's owner, never to the driver, even
	// though both are user records.
	if assigned.UserID.Valid {
		d.notifier.Notify(ctx, assigned.UserID.Int64, notifier.KindOutForDelivery, map[string]any{
			"order_id":   assigned.ID,
			"order_code": assigned.OrderCode.String,
		})
	}

	return assigned, nil
}

// MarkDelivered completes a delivery. The assigned driver must report it.
// Loyalty settlement runs again here in case the payment-time trigger was
// missed; the ledger guard keeps it single-shot.
func (d *Dispatcher) MarkDelivered(ctx context.Context, orderID int64, driverID int64) (entities.Order, error) {
	order, err := d.storage.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return order, lifecycle.ErrOrderNotFound
		}

		return order, err
	}

	if !order.DriverID.Valid || order.DriverID.Int64 != driverID {
		return order, lifecycle.ErrForbidden
	}

	delivered, err := d.storage.TransitionOrder(ctx, orderID, entities.StatusDelivered, storage.OrderUpdate{})
	if err != nil {
		if errors.Is(err, storage.ErrWrongStatus) {
			return delivered, fmt.Errorf("cannot complete delivery in status %s: %w", delivered.Status, lifecycle.ErrInvalidTransition)
		}

		return delivered, err
	}

	if delivered.UserID.Valid {
		if err := d.points.AwardLoyaltyPointsIfEligible(ctx, delivered.ID, delivered.UserID.Int64); err != nil {
			zap.L().Info("error award loyalty points on delivery",
				zap.Int64("order_id", delivered.ID),
				zap.Error(err),
			)
		}

		d.notifier.Notify(ctx, delivered.UserID.Int64, notifier.KindDelivered, map[string]any{
			"order_id": delivered.ID,
		})
	}

	return delivered, nil
}
