package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dastarhan/backend/internal/config"
	"github.com/dastarhan/backend/internal/dispatch"
	"github.com/dastarhan/backend/internal/lifecycle"
	"github.com/dastarhan/backend/internal/notifier"
	"github.com/dastarhan/backend/internal/ordercode"
	"github.com/dastarhan/backend/internal/payment"
	"github.com/dastarhan/backend/internal/server"
	"github.com/dastarhan/backend/internal/storage"
	"github.com/dastarhan/backend/internal/verifier"
)

func main() {
	os.Exit(start())
}

func start() int {
	logger, err := zap.NewProduction()
	if err != nil {
		return 1
	}
	zap.ReplaceGlobals(logger)

	defer zap.L().Sync()

	config, err := config.NewConfig(os.Args[1:])
	if err != nil {
		zap.L().Info("error create config", zap.Error(err))
		return 1
	}

	db, err := sqlx.Connect("postgres", config.DatabaseURI)
	if err != nil {
		zap.L().Info("error failed to connect to db: %w", zap.Error(err))
		return 1
	}

	defer db.Close()

	postgresStorage, err := storage.NewPostgresStorage(db)
	if err != nil {
		zap.L().Info("error failed to create postgres storage: %w", zap.Error(err))
		return 1
	}

	var orderNotifier notifier.Notifier = notifier.LogNotifier{}

	if config.AMQPURI != "" {
		amqpNotifier, err := notifier.NewAMQPNotifier(config.AMQPURI)
		if err != nil {
			zap.L().Info("error failed to connect to amqp broker: %w", zap.Error(err))
			return 1
		}

		defer amqpNotifier.Close()

		orderNotifier = amqpNotifier
	}

	var (
		reconciler = payment.NewReconciler(config.PaymentGatewayAddress)
		codes      = ordercode.NewGenerator(postgresStorage)

		engine = lifecycle.NewEngine(
			postgresStorage,
			postgresStorage,
			reconciler,
			codes,
			orderNotifier,
			lifecycle.Config{
				AutoAccept:        config.AutoAccept,
				AutoAcceptMinutes: config.AutoAcceptMinutes,
			},
		)

		dispatcher = dispatch.NewDispatcher(postgresStorage, engine, orderNotifier)
		verifier   = verifier.New(postgresStorage, engine, config.VerifyInterval)
	)

	server := server.NewServer(config, postgresStorage, engine, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := server.Start(); err != nil {
			zap.L().Info("error starting server", zap.Error(err))
			return err
		}

		return nil
	})

	eg.Go(func() error {
		if err := verifier.Start(ctx); err != nil {
			zap.L().Info("error starting payment verifier", zap.Error(err))
			return err
		}

		return nil
	})

	<-ctx.Done()

	eg.Go(func() error {
		if err := server.Stop(); err != nil {
			zap.L().Info("error stopping server", zap.Error(err))
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return 1
	}

	return 0
}
