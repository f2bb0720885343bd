package entities

import (
	"time"
)

const PointsReasonOrderEarned = "ORDER_EARNED"

type LoyaltyAccount struct {
	UserID      int64  `db:"user_id"`
	CardNumber  string `db:"card_number"`
	Balance     int64  `db:"balance"`
	PeriodSpent int64  `db:"period_spent"`
}

type PointsTransaction struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	OrderID   int64     `db:"order_id"`
	Points    int64     `db:"points"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}
