package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/keyline/license-backoffice/internal/config"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/tasks"
	"github.com/keyline/license-backoffice/pkg/clock"
	"go.uber.org/zap"
)

// RunWorkers starts the asynq server and scheduler. The returned channel
// delivers fatal errors; the shutdown func drains both components.
func RunWorkers(cfg *config.Config, st store.Store, cache tasks.ValidationInvalidator, clk clock.Clock, logger *zap.Logger) (<-chan error, func(context.Context)) {
	errChan := make(chan error, 2)

	redisConnOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log := logger.Named("AsynqServerErrorHandler")
				log.Error("Asynq task processing failed",
					zap.String("task_id", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	mux := asynq.NewServeMux()

	expireHandler := tasks.NewLicenseExpireHandler(st, cache, clk, logger)
	mux.HandleFunc(tasks.TypeLicenseExpire, expireHandler.ProcessTask)

	notifyHandler := tasks.NewExpiryNotifyHandler(st, clk, logger)
	mux.HandleFunc(tasks.TypeExpiryNotify, notifyHandler.ProcessTask)

	go func() {
		logger.Info("Starting Asynq Server...")
		if err := srv.Run(mux); err != nil {
			logger.Error("Asynq Server run failed", zap.Error(err))
			errChan <- fmt.Errorf("asynq server error: %w", err)
		}
		logger.Info("Asynq Server stopped.")
	}()

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	registerPeriodic := func(spec string, task *asynq.Task, err error, what string) {
		if err != nil {
			logger.Error("Failed to create periodic task", zap.String("task", what), zap.Error(err))
			errChan <- fmt.Errorf("scheduler task creation error: %w", err)
			return
		}
		entryID, err := scheduler.Register(spec, task)
		if err != nil {
			logger.Error("Could not register periodic task", zap.String("task", what), zap.Error(err))
			errChan <- fmt.Errorf("scheduler registration error: %w", err)
			return
		}
		logger.Info("Registered periodic task",
			zap.String("task", what), zap.String("entry_id", entryID), zap.String("schedule", spec))
	}

	expireTask, err := tasks.NewLicenseExpireTask()
	registerPeriodic("@every 1h", expireTask, err, tasks.TypeLicenseExpire)

	notifyTask, err := tasks.NewExpiryNotifyTask()
	registerPeriodic("@every 24h", notifyTask, err, tasks.TypeExpiryNotify)

	go func() {
		logger.Info("Starting Asynq Scheduler...")
		if err := scheduler.Run(); err != nil {
			logger.Error("Asynq Scheduler run failed", zap.Error(err))
			errChan <- fmt.Errorf("asynq scheduler error: %w", err)
		}
		logger.Info("Asynq Scheduler stopped.")
	}()

	shutdownFunc := func(ctx context.Context) {
		logger.Info("Shutting down Asynq Scheduler...")
		scheduler.Shutdown()
		logger.Info("Shutting down Asynq Server...")
		srv.Shutdown()
	}

	return errChan, shutdownFunc
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

func NewAsynqLoggerAdapter(logger *zap.Logger) asynq.Logger {
	return &asynqLoggerAdapter{logger: logger}
}

func (l *asynqLoggerAdapter) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
