package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dastarhan/backend/internal/entities"
)

var (
	ErrConflict    = errors.New("conflict")
	ErrNoRows      = errors.New("no rows")
	ErrWrongStatus = errors.New("wrong order status")
)

// OrderUpdate carries the optional column writes applied together with a
// status transition. Nil fields keep the stored value.
type OrderUpdate struct {
	EstimatedReadyAt *time.Time
	ReadyAt          *time.Time
	DriverID         *int64
}

type Storage interface {
	CreateUser(context.Context, string, string) (int64, error)
	GetUser(context.Context, string, string) (int64, error)

	GetMenuItem(context.Context, int64) (entities.MenuItem, error)

	CreateOrder(context.Context, entities.Order, []entities.OrderItem) (entities.Order, error)
	GetOrder(context.Context, int64) (entities.Order, error)
	GetOrderItems(context.Context, int64) ([]entities.OrderItem, error)
	ListUserOrders(context.Context, int64) ([]entities.Order, error)
	OrderCodeExists(context.Context, string) (bool, error)
	AttachCheckout(context.Context, int64, string) error
	TransitionOrder(context.Context, int64, entities.Status, OrderUpdate) (entities.Order, error)

	ListAwaitingVerification(context.Context, int, int) ([]entities.Order, error)
	ListReadyDeliveries(context.Context) ([]entities.Order, error)
	ListActiveDeliveries(context.Context, int64) ([]entities.Order, error)

	AwardOrderPoints(context.Context, int64, int64, int64, int64, string) error
	GetLoyaltyAccount(context.Context, int64) (entities.LoyaltyAccount, error)
}

type PostgresStorage struct {
	db *sqlx.DB
}

func NewPostgresStorage(db *sqlx.DB) (*PostgresStorage, error) {
	storage := &PostgresStorage{db: db}

	err := storage.runMigrations(context.Background())
	if err != nil {
		return nil, err
	}

	return storage, nil
}

// CreateOrder persists the order and its items in a single transaction. A
// unique violation on the order code is reported as ErrConflict so the caller
// can regenerate the code and retry.
func (s *PostgresStorage) CreateOrder(ctx context.Context, order entities.Order, items []entities.OrderItem) (entities.Order, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return order, err
	}

	defer tx.Rollback()

	row := tx.QueryRowxContext(
		ctx,
		`INSERT INTO orders (status, fulfillment, total, delivery_address, order_code, user_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at;`,
		order.Status, order.Fulfillment, order.Total, order.DeliveryAddress, order.OrderCode, order.UserID,
	)

	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return order, mapConstraintViolation(err)
	}

	for _, item := range items {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, customizations)
			VALUES ($1, $2, $3, $4, $5, $6);`,
			order.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice, item.Customizations,
		); err != nil {
			return order, err
		}
	}

	if err := tx.Commit(); err != nil {
		return order, err
	}

	return order, nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, orderID int64) (entities.Order, error) {
	var order entities.Order

	row := s.db.QueryRowxContext(ctx, `SELECT * FROM orders WHERE id = $1;`, orderID)

	if err := row.StructScan(&order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order, ErrNoRows
		}

		return order, err
	}

	return order, nil
}

func (s *PostgresStorage) GetOrderItems(ctx context.Context, orderID int64) ([]entities.OrderItem, error) {
	var items []entities.OrderItem

	err := s.db.SelectContext(ctx, &items, `SELECT * FROM order_items WHERE order_id = $1 ORDER BY id ASC;`, orderID)
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (s *PostgresStorage) ListUserOrders(ctx context.Context, userID int64) ([]entities.Order, error) {
	var orders []entities.Order

	err := s.db.SelectContext(ctx, &orders, `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC;`, userID)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *PostgresStorage) OrderCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool

	row := s.db.QueryRowxContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_code = $1);`, code)

	if err := row.Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// AttachCheckout records the gateway checkout reference with a compare-and-
// swap on the nullable column: at most one in-flight checkout attempt can
// attach per order, regardless of how many server instances race on it.
func (s *PostgresStorage) AttachCheckout(ctx context.Context, orderID int64, reference string) error {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE orders SET checkout_ref = $1 WHERE id = $2 AND checkout_ref IS NULL;`,
		reference, orderID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected > 0 {
		return nil
	}

	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return err
	}

	return ErrConflict
}

// TransitionOrder moves the order to the given status as an atomic
// read-modify-write: the row is locked, the transition is validated against
// the state-machine table, and the update committed. On an invalid source
// status it returns the current row together with ErrWrongStatus so callers
// can decide between no-op and failure.
func (s *PostgresStorage) TransitionOrder(ctx context.Context, orderID int64, to entities.Status, update OrderUpdate) (entities.Order, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return entities.Order{}, err
	}

	defer tx.Rollback()

	var order entities.Order

	row := tx.QueryRowxContext(ctx, `SELECT * FROM orders WHERE id = $1 FOR UPDATE;`, orderID)

	if err := row.StructScan(&order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order, ErrNoRows
		}

		return order, err
	}

	if !entities.CanTransition(order.Status, to) {
		return order, ErrWrongStatus
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE orders SET
			status = $1,
			estimated_ready_at = COALESCE($2, estimated_ready_at),
			ready_at = COALESCE($3, ready_at),
			driver_id = COALESCE($4, driver_id)
		WHERE id = $5;`,
		to, update.EstimatedReadyAt, update.ReadyAt, update.DriverID, orderID,
	); err != nil {
		return order, err
	}

	if err := tx.Commit(); err != nil {
		return order, err
	}

	order.Status = to
	if update.EstimatedReadyAt != nil {
		order.EstimatedReadyAt = sql.NullTime{Time: *update.EstimatedReadyAt, Valid: true}
	}
	if update.ReadyAt != nil {
		order.ReadyAt = sql.NullTime{Time: *update.ReadyAt, Valid: true}
	}
	if update.DriverID != nil {
		order.DriverID = sql.NullInt64{Int64: *update.DriverID, Valid: true}
	}

	return order, nil
}

func (s *PostgresStorage) ListAwaitingVerification(ctx context.Context, offset int, limit int) ([]entities.Order, error) {
	var orders []entities.Order

	err := s.db.SelectContext(
		ctx,
		&orders,
		`SELECT * FROM orders
		WHERE status = $1 AND checkout_ref IS NOT NULL
		ORDER BY id ASC OFFSET $2 LIMIT $3;`,
		entities.StatusAwaitingPayment, offset, limit,
	)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *PostgresStorage) ListReadyDeliveries(ctx context.Context) ([]entities.Order, error) {
	var orders []entities.Order

	err := s.db.SelectContext(
		ctx,
		&orders,
		`SELECT * FROM orders
		WHERE status = $1 AND fulfillment = $2 AND delivery_address IS NOT NULL
		ORDER BY created_at ASC;`,
		entities.StatusReady, entities.FulfillmentDelivery,
	)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *PostgresStorage) ListActiveDeliveries(ctx context.Context, driverID int64) ([]entities.Order, error) {
	var orders []entities.Order

	err := s.db.SelectContext(
		ctx,
		&orders,
		`SELECT * FROM orders
		WHERE status = $1 AND driver_id = $2
		ORDER BY created_at ASC;`,
		entities.StatusOutForDelivery, driverID,
	)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// AwardOrderPoints appends the order-earned ledger entry and increments the
// account balance and period spend in one transaction. The account is created
// lazily. ErrConflict means the (order, user) pair was already awarded; the
// unique index on the ledger is the backstop for concurrent awarders.
func (s *PostgresStorage) AwardOrderPoints(ctx context.Context, userID int64, orderID int64, points int64, spent int64, cardNumber string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}

	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO loyalty_accounts (user_id, card_number)
		VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING;`,
		userID, cardNumber,
	); err != nil {
		return err
	}

	var exists bool

	row := tx.QueryRowxContext(
		ctx,
		`SELECT EXISTS(
			SELECT 1 FROM points_transactions
			WHERE order_id = $1 AND user_id = $2 AND reason = $3
		);`,
		orderID, userID, entities.PointsReasonOrderEarned,
	)

	if err := row.Scan(&exists); err != nil {
		return err
	}

	if exists {
		return ErrConflict
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO points_transactions (user_id, order_id, points, reason)
		VALUES ($1, $2, $3, $4);`,
		userID, orderID, points, entities.PointsReasonOrderEarned,
	); err != nil {
		return mapConstraintViolation(err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE loyalty_accounts SET balance = balance + $1, period_spent = period_spent + $2
		WHERE user_id = $3;`,
		points, spent, userID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStorage) GetLoyaltyAccount(ctx context.Context, userID int64) (entities.LoyaltyAccount, error) {
	var account entities.LoyaltyAccount

	row := s.db.QueryRowxContext(ctx, `SELECT * FROM loyalty_accounts WHERE user_id = $1;`, userID)

	if err := row.StructScan(&account); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account, ErrNoRows
		}

		return account, err
	}

	return account, nil
}

func (s *PostgresStorage) GetMenuItem(ctx context.Context, itemID int64) (entities.MenuItem, error) {
	var item entities.MenuItem

	row := s.db.QueryRowxContext(ctx, `SELECT * FROM menu_items WHERE id = $1;`, itemID)

	if err := row.StructScan(&item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, ErrNoRows
		}

		return item, err
	}

	return item, nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, login string, passwordHash string) (int64, error) {
	var userID int64

	row := s.db.QueryRowxContext(ctx, `SELECT id FROM users WHERE login = $1 AND password = $2;`, login, passwordHash)

	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoRows
		}

		return 0, err
	}

	return userID, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, login string, passwordHash string) (int64, error) {
	var userID int64

	row := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO users (login, password)
		VALUES ($1, $2) RETURNING id;`,
		login, passwordHash,
	)

	if err := row.Scan(&userID); err != nil {
		return 0, mapConstraintViolation(err)
	}

	return userID, nil
}

func mapConstraintViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pgerrcode.IsIntegrityConstraintViolation(string(pqErr.Code)) {
		return ErrConflict
	}

	return err
}

func (s *PostgresStorage) runMigrations(ctx context.Context) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}

	defer tx.Rollback()

	statements := []string{
		`
		CREATE TABLE IF NOT EXISTS users(
			id BIGSERIAL PRIMARY KEY,
			login TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS menu_items(
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			price BIGINT NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS orders(
			id BIGSERIAL PRIMARY KEY,
			status VARCHAR NOT NULL,
			fulfillment VARCHAR NOT NULL,
			total BIGINT NOT NULL,
			delivery_address TEXT,
			order_code VARCHAR UNIQUE,
			checkout_ref VARCHAR,
			estimated_ready_at TIMESTAMP,
			ready_at TIMESTAMP,
			driver_id BIGINT,
			user_id BIGINT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_driver FOREIGN KEY(driver_id) REFERENCES users(id),
			CONSTRAINT fk_user FOREIGN KEY(user_id) REFERENCES users(id)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS order_items(
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL,
			menu_item_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			quantity INT NOT NULL,
			unit_price BIGINT NOT NULL,
			customizations JSONB,
			CONSTRAINT fk_order FOREIGN KEY(order_id) REFERENCES orders(id) ON DELETE CASCADE
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS loyalty_accounts(
			user_id BIGINT PRIMARY KEY,
			card_number VARCHAR NOT NULL UNIQUE,
			balance BIGINT NOT NULL DEFAULT 0,
			period_spent BIGINT NOT NULL DEFAULT 0,
			CONSTRAINT fk_user FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS points_transactions(
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			order_id BIGINT NOT NULL,
			points BIGINT NOT NULL,
			reason VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_order_award UNIQUE(order_id, user_id, reason)
		);
		`,
		`
		INSERT INTO menu_items (name, price)
		SELECT name, price FROM (VALUES
			('Margherita', 900),
			('Pepperoni', 1100),
			('Beshbarmak', 2000),
			('Lagman', 1500),
			('Green tea', 300)
		) AS seed(name, price)
		WHERE NOT EXISTS (SELECT 1 FROM menu_items);
		`,
	}

	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return err
		}
	}

	return tx.Commit()
}
