// Package notifier delivers customer-facing notifications. Delivery is
// fire-and-forget: failures are logged and never surface to the callers, so a
// broken notification channel cannot block or roll back order fulfillment.
package notifier

import (
	"context"

	"go.uber.org/zap"
)

const (
	KindPaymentConfirmed = "payment_confirmed"
	KindOutForDelivery   = "out_for_delivery"
	KindDelivered        = "delivered"
)

// Notifier sends a notification to one user. Implementations must swallow
// delivery errors.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, payload any)
}

// LogNotifier is the fallback used when no message broker is configured; it
// only records the notification in the log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, userID int64, kind string, payload any) {
	zap.L().Info("notification",
		zap.Int64("user_id", userID),
		zap.String("kind", kind),
		zap.Any("payload", payload),
	)
}
