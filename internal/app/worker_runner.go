package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"

	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/service/dispatch"
	"github.com/rufatasadov/sober-driver-backend/internal/transport/kafka"
)

// WorkerRunner runs the location telemetry consumer
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun consumes until the context is cancelled and panics on any other error.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type positionRecorder interface {
	RecordPosition(ctx context.Context, r dispatch.PositionReport) (*domain.Driver, error)
}

// positionHandler feeds telemetry into the driver index. Validation and
// unknown-driver errors are permanent for the consumer and get skipped.
func positionHandler(svc positionRecorder) kafka.HandleFunc {
	return func(ctx context.Context, r dispatch.PositionReport) error {
		_, err := svc.RecordPosition(ctx, r)
		return err
	}
}

func newLocationConsumer(cfg *config.Config, logger logx.Logger, svc *dispatch.Service) (*kafka.Consumer, error) {
	k := cfg.Kafka
	if cfg.Geo != config.GeoRedis {
		logger.Warn("location worker uses an in-process driver index; the API will not see its updates",
			logx.String("geo", cfg.Geo))
	}
	return kafka.NewConsumer(logger, k.Brokers, k.GroupID, k.LocationTopic, positionHandler(svc))
}

func registerWorker(container *dig.Container) error {
	return provideAll(container, newLocationConsumer)
}

type workerIn struct {
	dig.In

	Ctx       context.Context
	Logger    logx.Logger
	Consumer  *kafka.Consumer
	Resources resources
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(in workerIn) error {
		return workerRun(in.Ctx, in.Logger, in.Consumer, in.Resources)
	})
}

func workerRun(ctx context.Context, logger logx.Logger, consumer *kafka.Consumer, res resources) error {
	if consumer == nil {
		closeResources(res, logger)
		return fmt.Errorf("kafka consumer is nil: KAFKA_BROKERS not configured")
	}
	defer closeWorker(logger, consumer, res)

	logger.Info("location-worker started")
	return consumer.Run(ctx)
}

func closeWorker(logger logx.Logger, consumer *kafka.Consumer, res resources) {
	if err := consumer.Close(); err != nil {
		logger.Error("kafka close error", logx.Err(err))
	}
	closeResources(res, logger)
}
