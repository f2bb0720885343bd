// Package lifecycle implements the order state machine: creation, payment
// reconciliation, staff acceptance, readiness and loyalty-point settlement.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/notifier"
	"github.com/dastarhan/backend/internal/payment"
	"github.com/dastarhan/backend/internal/services/money"
	"github.com/dastarhan/backend/internal/storage"
)

const (
	cardNumberLength   = 16
	createCodeAttempts = 3
)

// Catalog is the menu lookup collaborator. Item prices read from it are
// authoritative; client-submitted prices are never trusted.
type Catalog interface {
	GetMenuItem(ctx context.Context, itemID int64) (entities.MenuItem, error)
}

// Gateway queries the external payment processor for a checkout verdict.
type Gateway interface {
	GetCheckoutStatus(reference string) (payment.CheckoutStatus, error)
}

// CodeGenerator produces unique order codes for delivery orders.
type CodeGenerator interface {
	Generate(ctx context.Context) (string, error)
}

type Config struct {
	// AutoAccept chains the accept transition directly after payment
	// confirmation. Meant for unattended deployments where no staff member
	// works the acceptance queue.
	AutoAccept        bool
	AutoAcceptMinutes int
}

type Engine struct {
	storage  storage.Storage
	catalog  Catalog
	gateway  Gateway
	codes    CodeGenerator
	notifier notifier.Notifier
	config   Config
	now      func() time.Time
}

func NewEngine(
	storage storage.Storage,
	catalog Catalog,
	gateway Gateway,
	codes CodeGenerator,
	notifier notifier.Notifier,
	config Config,
) *Engine {
	return &Engine{
		storage:  storage,
		catalog:  catalog,
		gateway:  gateway,
		codes:    codes,
		notifier: notifier,
		config:   config,
		now:      time.Now,
	}
}

type OrderItemRequest struct {
	MenuItemID     int64
	Quantity       int
	UnitPrice      int64
	Customizations types.JSONText
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest
	Fulfillment     entities.Fulfillment
	DeliveryAddress string
	UserID          *int64
}

// CreateOrder validates every item against the live catalog, snapshots the
// authoritative catalog prices, and persists the order and its items in one
// transaction. Delivery orders get a unique order code before persisting.
func (e *Engine) CreateOrder(ctx context.Context, request CreateOrderRequest) (entities.Order, string, error) {
	if len(request.Items) == 0 {
		return entities.Order{}, "", fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}

	switch request.Fulfillment {
	case entities.FulfillmentPickup:
		if request.DeliveryAddress != "" {
			return entities.Order{}, "", fmt.Errorf("%w: pickup order with delivery address", ErrInvalidOrder)
		}
	case entities.FulfillmentDelivery:
		if request.DeliveryAddress == "" {
			return entities.Order{}, "", fmt.Errorf("%w: delivery order without address", ErrInvalidOrder)
		}
	default:
		return entities.Order{}, "", fmt.Errorf("%w: unknown fulfillment method %q", ErrInvalidOrder, request.Fulfillment)
	}

	var total int64

	items := make([]entities.OrderItem, 0, len(request.Items))
	for _, requested := range request.Items {
		if requested.Quantity <= 0 {
			return entities.Order{}, "", fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
		}

		menuItem, err := e.catalog.GetMenuItem(ctx, requested.MenuItemID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return entities.Order{}, "", fmt.Errorf("item %d: %w", requested.MenuItemID, ErrItemUnavailable)
			}

			return entities.Order{}, "", err
		}

		if !menuItem.Available {
			return entities.Order{}, "", fmt.Errorf("%s: %w", menuItem.Name, ErrItemUnavailable)
		}

		items = append(items, entities.OrderItem{
			MenuItemID:     menuItem.ID,
			Name:           menuItem.Name,
			Quantity:       requested.Quantity,
			UnitPrice:      menuItem.Price,
			Customizations: requested.Customizations,
		})

		total += menuItem.Price * int64(requested.Quantity)
	}

	order := entities.Order{
		Status:      entities.StatusAwaitingPayment,
		Fulfillment: request.Fulfillment,
		Total:       total,
	}

	if request.UserID != nil {
		order.UserID.Int64 = *request.UserID
		order.UserID.Valid = true
	}

	if request.Fulfillment == entities.FulfillmentDelivery {
		order.DeliveryAddress.String = request.DeliveryAddress
		order.DeliveryAddress.Valid = true
	}

	// The unique constraint on order_code is the backstop against two
	// creations racing past the generator's uniqueness check; on a conflict
	// we draw a fresh code and retry.
	for attempt := 0; attempt < createCodeAttempts; attempt++ {
		if order.IsDelivery() {
			code, err := e.codes.Generate(ctx)
			if err != nil {
				return entities.Order{}, "", err
			}

			order.OrderCode.String = code
			order.OrderCode.Valid = true
		}

		created, err := e.storage.CreateOrder(ctx, order, items)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) && order.IsDelivery() {
				continue
			}

			return entities.Order{}, "", err
		}

		return created, e.confirmationMessage(created), nil
	}

	return entities.Order{}, "", fmt.Errorf("create order: could not allocate a unique order code")
}

func (e *Engine) confirmationMessage(order entities.Order) string {
	if order.UserID.Valid {
		return fmt.Sprintf("Order %d received. Completing payment will also earn you loyalty points.", order.ID)
	}

	return fmt.Sprintf("Order %d received. Complete payment to get it cooking.", order.ID)
}

// GetOrderStatus is the polling read path. Orders still awaiting payment are
// lazily reconciled against the gateway first, so pollers observe up-to-date
// status even when a webhook delivery was missed. With auto-accept enabled it
// also repairs orders stalled in PAYMENT_CONFIRMED.
func (e *Engine) GetOrderStatus(ctx context.Context, orderID int64) (entities.Order, error) {
	order, err := e.storage.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return order, ErrOrderNotFound
		}

		return order, err
	}

	switch {
	case order.Status == entities.StatusAwaitingPayment && order.CheckoutRef.Valid:
		verified, err := e.VerifyPayment(ctx, orderID)
		if err != nil {
			// The poll itself answers with the last known status; the next
			// poll retries verification.
			zap.L().Info("error lazy payment verification",
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)

			return order, nil
		}

		return verified, nil

	case order.Status == entities.StatusPaymentConfirmed && e.config.AutoAccept:
		return e.autoAccept(ctx, order), nil
	}

	return order, nil
}

// VerifyPayment reconciles the gateway verdict for an order. It is idempotent
// and safely retriable: anything but an order sitting in AWAITING_PAYMENT
// with a checkout reference is a no-op, and reconciler errors leave the order
// unchanged.
func (e *Engine) VerifyPayment(ctx context.Context, orderID int64) (entities.Order, error) {
	order, err := e.storage.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return order, ErrOrderNotFound
		}

		return order, err
	}

	if order.Status != entities.StatusAwaitingPayment || !order.CheckoutRef.Valid {
		return order, nil
	}

	checkoutStatus, err := e.gateway.GetCheckoutStatus(order.CheckoutRef.String)
	if err != nil {
		return order, fmt.Errorf("verify payment for order %d: %w", orderID, err)
	}

	switch checkoutStatus {
	case payment.CheckoutPaid:
		return e.confirmPayment(ctx, order)

	case payment.CheckoutFailed:
		failed, err := e.storage.TransitionOrder(ctx, order.ID, entities.StatusPaymentFailed, storage.OrderUpdate{})
		if errors.Is(err, storage.ErrWrongStatus) {
			// a concurrent verifier got there first
			return failed, nil
		}

		return failed, err

	default:
		// Pending and Unknown leave the order untouched.
		return order, nil
	}
}

// confirmPayment is the confirm-and-autoaccept composite transition: apply
// PAYMENT_CONFIRMED, settle loyalty points for registered users, then chain
// the accept transition when auto-accept is configured.
func (e *Engine) confirmPayment(ctx context.Context, order entities.Order) (entities.Order, error) {
	confirmed, err := e.storage.TransitionOrder(ctx, order.ID, entities.StatusPaymentConfirmed, storage.OrderUpdate{})
	if err != nil {
		if errors.Is(err, storage.ErrWrongStatus) {
			// a concurrent verifier already applied the confirmation
			return confirmed, nil
		}

		return order, err
	}

	if confirmed.UserID.Valid {
		if err := e.AwardLoyaltyPointsIfEligible(ctx, confirmed.ID, confirmed.UserID.Int64); err != nil {
			zap.L().Info("error award loyalty points on payment confirmation",
				zap.Int64("order_id", confirmed.ID),
				zap.Error(err),
			)
		}

		e.notifier.Notify(ctx, confirmed.UserID.Int64, notifier.KindPaymentConfirmed, map[string]any{
			"order_id": confirmed.ID,
		})
	}

	if e.config.AutoAccept {
		return e.autoAccept(ctx, confirmed), nil
	}

	return confirmed, nil
}

// autoAccept runs the accept transition with the configured default estimate.
// It is best effort: the payment confirmation it follows has already
// committed, so failures are logged, not propagated.
func (e *Engine) autoAccept(ctx context.Context, order entities.Order) entities.Order {
	accepted, err := e.AcceptOrder(ctx, order.ID, e.config.AutoAcceptMinutes)
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			zap.L().Info("error auto-accept order",
				zap.Int64("order_id", order.ID),
				zap.Error(err),
			)
		}

		return order
	}

	return accepted
}

// AcceptOrder is the staff acceptance transition: PAYMENT_CONFIRMED to
// CONFIRMED, stamping the estimated ready-by time.
func (e *Engine) AcceptOrder(ctx context.Context, orderID int64, estimatedMinutes int) (entities.Order, error) {
	if estimatedMinutes <= 0 {
		return entities.Order{}, fmt.Errorf("%w: estimated minutes must be positive", ErrInvalidOrder)
	}

	readyBy := e.now().Add(time.Duration(estimatedMinutes) * time.Minute)

	order, err := e.storage.TransitionOrder(ctx, orderID, entities.StatusConfirmed, storage.OrderUpdate{
		EstimatedReadyAt: &readyBy,
	})

	return order, e.mapTransitionErr(err, order, "accept")
}

// DeclineOrder cancels an order that staff will not fulfill. Only permitted
// from PAYMENT_CONFIRMED or CONFIRMED.
func (e *Engine) DeclineOrder(ctx context.Context, orderID int64) (entities.Order, error) {
	order, err := e.storage.TransitionOrder(ctx, orderID, entities.StatusCancelled, storage.OrderUpdate{})

	return order, e.mapTransitionErr(err, order, "decline")
}

// MarkReady stamps ready-at and moves the order to READY. Calling it on an
// order that is already READY is a no-op.
func (e *Engine) MarkReady(ctx context.Context, orderID int64) (entities.Order, error) {
	readyAt := e.now()

	order, err := e.storage.TransitionOrder(ctx, orderID, entities.StatusReady, storage.OrderUpdate{
		ReadyAt: &readyAt,
	})
	if errors.Is(err, storage.ErrWrongStatus) && order.Status == entities.StatusReady {
		return order, nil
	}

	return order, e.mapTransitionErr(err, order, "mark ready")
}

type RepeatItem struct {
	MenuItemID int64
	Name       string
	Quantity   int
	UnitPrice  int64
}

type RepeatResult struct {
	Items       []RepeatItem
	Unavailable []string
}

// RepeatOrder reports which items of a past order are still purchasable, at
// current catalog prices, plus the names of those no longer available. It
// creates nothing. Only the order's owner may call it.
func (e *Engine) RepeatOrder(ctx context.Context, orderID int64, userID int64) (RepeatResult, error) {
	order, err := e.storage.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return RepeatResult{}, ErrOrderNotFound
		}

		return RepeatResult{}, err
	}

	if !order.UserID.Valid || order.UserID.Int64 != userID {
		return RepeatResult{}, ErrForbidden
	}

	items, err := e.storage.GetOrderItems(ctx, orderID)
	if err != nil {
		return RepeatResult{}, err
	}

	result := RepeatResult{}
	for _, item := range items {
		menuItem, err := e.catalog.GetMenuItem(ctx, item.MenuItemID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				result.Unavailable = append(result.Unavailable, item.Name)
				continue
			}

			return RepeatResult{}, err
		}

		if !menuItem.Available {
			result.Unavailable = append(result.Unavailable, menuItem.Name)
			continue
		}

		result.Items = append(result.Items, RepeatItem{
			MenuItemID: menuItem.ID,
			Name:       menuItem.Name,
			Quantity:   item.Quantity,
			UnitPrice:  menuItem.Price,
		})
	}

	return result, nil
}

// AwardLoyaltyPointsIfEligible settles loyalty points for a paid order at
// most once. It is invoked from every trigger that can learn about a settled
// payment; the ledger uniqueness check, not caller discipline, is what
// prevents double-awarding.
func (e *Engine) AwardLoyaltyPointsIfEligible(ctx context.Context, orderID int64, userID int64) error {
	order, err := e.storage.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return ErrOrderNotFound
		}

		return err
	}

	if !order.UserID.Valid || order.UserID.Int64 != userID {
		return ErrForbidden
	}

	if !order.Status.Paid() {
		return nil
	}

	cardNumber, err := newCardNumber()
	if err != nil {
		return err
	}

	points := money.LoyaltyPoints(order.Total)

	err = e.storage.AwardOrderPoints(ctx, userID, orderID, points, order.Total, cardNumber)
	if errors.Is(err, storage.ErrConflict) {
		// already settled by another trigger
		return nil
	}

	return err
}

// AttachCheckout records the gateway checkout reference on the order. At most
// one reference can ever attach; a second attempt reports ErrCheckoutAttached.
func (e *Engine) AttachCheckout(ctx context.Context, orderID int64, reference string) (entities.Order, error) {
	if reference == "" {
		return entities.Order{}, fmt.Errorf("%w: empty checkout reference", ErrInvalidOrder)
	}

	if err := e.storage.AttachCheckout(ctx, orderID, reference); err != nil {
		switch {
		case errors.Is(err, storage.ErrNoRows):
			return entities.Order{}, ErrOrderNotFound
		case errors.Is(err, storage.ErrConflict):
			return entities.Order{}, ErrCheckoutAttached
		}

		return entities.Order{}, err
	}

	return e.storage.GetOrder(ctx, orderID)
}

func (e *Engine) mapTransitionErr(err error, order entities.Order, operation string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNoRows):
		return ErrOrderNotFound
	case errors.Is(err, storage.ErrWrongStatus):
		return fmt.Errorf("cannot %s order in status %s: %w", operation, order.Status, ErrInvalidTransition)
	}

	return err
}

// newCardNumber draws a Luhn-valid loyalty card number for lazily created
// accounts.
func newCardNumber() (string, error) {
	return goluhn.Generate(cardNumberLength), nil
}
