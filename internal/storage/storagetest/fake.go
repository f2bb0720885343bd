// Package storagetest provides an in-memory storage.Storage for package
// tests. It mirrors the transactional semantics of the Postgres
// implementation: status transitions are validated against the state-machine
// table under a lock, and point awards are deduplicated per (order, user,
// reason).
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/storage"
)

type Fake struct {
	mu sync.Mutex

	nextOrderID int64
	nextUserID  int64
	nextTxID    int64

	Orders     map[int64]entities.Order
	Items      map[int64][]entities.OrderItem
	MenuItems  map[int64]entities.MenuItem
	Accounts   map[int64]entities.LoyaltyAccount
	Ledger     []entities.PointsTransaction
	UserLogins map[string]int64
	UserCreds  map[string]string
}

var _ storage.Storage = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Orders:     make(map[int64]entities.Order),
		Items:      make(map[int64][]entities.OrderItem),
		MenuItems:  make(map[int64]entities.MenuItem),
		Accounts:   make(map[int64]entities.LoyaltyAccount),
		UserLogins: make(map[string]int64),
		UserCreds:  make(map[string]string),
	}
}

func (f *Fake) AddMenuItem(item entities.MenuItem) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.MenuItems[item.ID] = item
}

// Seed inserts an order directly, bypassing lifecycle validation.
func (f *Fake) Seed(order entities.Order, items ...entities.OrderItem) entities.Order {
	f.mu.Lock()
	defer f.mu.Unlock()

	if order.ID == 0 {
		f.nextOrderID++
		order.ID = f.nextOrderID
	} else if order.ID > f.nextOrderID {
		f.nextOrderID = order.ID
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	f.Orders[order.ID] = order

	for i := range items {
		items[i].OrderID = order.ID
	}
	f.Items[order.ID] = items

	return order
}

func (f *Fake) CreateUser(_ context.Context, login string, passwordHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.UserLogins[login]; ok {
		return 0, storage.ErrConflict
	}

	f.nextUserID++
	f.UserLogins[login] = f.nextUserID
	f.UserCreds[login] = passwordHash

	return f.nextUserID, nil
}

func (f *Fake) GetUser(_ context.Context, login string, passwordHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	userID, ok := f.UserLogins[login]
	if !ok || f.UserCreds[login] != passwordHash {
		return 0, storage.ErrNoRows
	}

	return userID, nil
}

func (f *Fake) GetMenuItem(_ context.Context, itemID int64) (entities.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.MenuItems[itemID]
	if !ok {
		return entities.MenuItem{}, storage.ErrNoRows
	}

	return item, nil
}

func (f *Fake) CreateOrder(_ context.Context, order entities.Order, items []entities.OrderItem) (entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if order.OrderCode.Valid {
		for _, existing := range f.Orders {
			if existing.OrderCode.Valid && existing.OrderCode.String == order.OrderCode.String {
				return order, storage.ErrConflict
			}
		}
	}

	f.nextOrderID++
	order.ID = f.nextOrderID
	order.CreatedAt = time.Now()

	f.Orders[order.ID] = order

	stored := make([]entities.OrderItem, len(items))
	copy(stored, items)
	for i := range stored {
		stored[i].OrderID = order.ID
	}
	f.Items[order.ID] = stored

	return order, nil
}

func (f *Fake) GetOrder(_ context.Context, orderID int64) (entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.Orders[orderID]
	if !ok {
		return entities.Order{}, storage.ErrNoRows
	}

	return order, nil
}

func (f *Fake) GetOrderItems(_ context.Context, orderID int64) ([]entities.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]entities.OrderItem(nil), f.Items[orderID]...), nil
}

func (f *Fake) ListUserOrders(_ context.Context, userID int64) ([]entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var orders []entities.Order
	for _, order := range f.Orders {
		if order.UserID.Valid && order.UserID.Int64 == userID {
			orders = append(orders, order)
		}
	}

	return orders, nil
}

func (f *Fake) OrderCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, order := range f.Orders {
		if order.OrderCode.Valid && order.OrderCode.String == code {
			return true, nil
		}
	}

	return false, nil
}

func (f *Fake) AttachCheckout(_ context.Context, orderID int64, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.Orders[orderID]
	if !ok {
		return storage.ErrNoRows
	}

	if order.CheckoutRef.Valid {
		return storage.ErrConflict
	}

	order.CheckoutRef.String = reference
	order.CheckoutRef.Valid = true
	f.Orders[orderID] = order

	return nil
}

func (f *Fake) TransitionOrder(_ context.Context, orderID int64, to entities.Status, update storage.OrderUpdate) (entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.Orders[orderID]
	if !ok {
		return entities.Order{}, storage.ErrNoRows
	}

	if !entities.CanTransition(order.Status, to) {
		return order, storage.ErrWrongStatus
	}

	order.Status = to
	if update.EstimatedReadyAt != nil {
		order.EstimatedReadyAt.Time = *update.EstimatedReadyAt
		order.EstimatedReadyAt.Valid = true
	}
	if update.ReadyAt != nil {
		order.ReadyAt.Time = *update.ReadyAt
		order.ReadyAt.Valid = true
	}
	if update.DriverID != nil {
		order.DriverID.Int64 = *update.DriverID
		order.DriverID.Valid = true
	}

	f.Orders[orderID] = order

	return order, nil
}

func (f *Fake) ListAwaitingVerification(_ context.Context, offset int, limit int) ([]entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []entities.Order
	for _, order := range f.Orders {
		if order.Status == entities.StatusAwaitingPayment && order.CheckoutRef.Valid {
			matched = append(matched, order)
		}
	}

	sortByID(matched)

	if offset >= len(matched) {
		return nil, nil
	}

	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

func (f *Fake) ListReadyDeliveries(_ context.Context) ([]entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []entities.Order
	for _, order := range f.Orders {
		if order.Status == entities.StatusReady && order.IsDelivery() && order.DeliveryAddress.Valid {
			matched = append(matched, order)
		}
	}

	sortByCreatedAt(matched)

	return matched, nil
}

func (f *Fake) ListActiveDeliveries(_ context.Context, driverID int64) ([]entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []entities.Order
	for _, order := range f.Orders {
		if order.Status == entities.StatusOutForDelivery && order.DriverID.Valid && order.DriverID.Int64 == driverID {
			matched = append(matched, order)
		}
	}

	sortByCreatedAt(matched)

	return matched, nil
}

func (f *Fake) AwardOrderPoints(_ context.Context, userID int64, orderID int64, points int64, spent int64, cardNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, tx := range f.Ledger {
		if tx.OrderID == orderID && tx.UserID == userID && tx.Reason == entities.PointsReasonOrderEarned {
			return storage.ErrConflict
		}
	}

	account, ok := f.Accounts[userID]
	if !ok {
		account = entities.LoyaltyAccount{UserID: userID, CardNumber: cardNumber}
	}

	f.nextTxID++
	f.Ledger = append(f.Ledger, entities.PointsTransaction{
		ID:        f.nextTxID,
		UserID:    userID,
		OrderID:   orderID,
		Points:    points,
		Reason:    entities.PointsReasonOrderEarned,
		CreatedAt: time.Now(),
	})

	account.Balance += points
	account.PeriodSpent += spent
	f.Accounts[userID] = account

	return nil
}

func (f *Fake) GetLoyaltyAccount(_ context.Context, userID int64) (entities.LoyaltyAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.Accounts[userID]
	if !ok {
		return entities.LoyaltyAccount{}, storage.ErrNoRows
	}

	return account, nil
}

func sortByID(orders []entities.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
}

func sortByCreatedAt(orders []entities.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
}
