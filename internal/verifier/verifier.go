// Package verifier periodically re-checks orders stuck in AWAITING_PAYMENT
// against the payment gateway. Together with the lazy verification on the
// status read path it makes missed webhook deliveries harmless.
package verifier

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dastarhan/backend/internal/entities"
	"github.com/dastarhan/backend/internal/payment"
	"github.com/dastarhan/backend/internal/storage"
)

const (
	ordersLimit   = 200
	workersNumber = 4
)

// Engine is the slice of the lifecycle engine the sweep needs.
type Engine interface {
	VerifyPayment(ctx context.Context, orderID int64) (entities.Order, error)
}

type Verifier struct {
	storage  storage.Storage
	engine   Engine
	interval time.Duration
}

func New(storage storage.Storage, engine Engine, interval time.Duration) *Verifier {
	return &Verifier{
		storage:  storage,
		engine:   engine,
		interval: interval,
	}
}

func (v *Verifier) Start(ctx context.Context) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	if err := v.sweep(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ticker.C:
			if err := v.sweep(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (v *Verifier) sweep(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < workersNumber; i++ {
		offset := ordersLimit * i

		eg.Go(func() error {
			orders, err := v.storage.ListAwaitingVerification(ctx, offset, ordersLimit)
			if err != nil {
				return err
			}

			for _, order := range orders {
				if _, err := v.engine.VerifyPayment(ctx, order.ID); err != nil {
					if errors.Is(err, payment.ErrGatewayUnavailable) {
						// the gateway will be retried on the next sweep
						zap.L().Info("payment gateway unavailable during sweep", zap.Int64("order_id", order.ID))
						continue
					}

					zap.L().Info("error verify payment during sweep",
						zap.Int64("order_id", order.ID),
						zap.Error(err),
					)
				}
			}

			return nil
		})
	}

	return eg.Wait()
}
