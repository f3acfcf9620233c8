package matrixwkr

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/dlock"
	"animebingo.dev/backend-next/internal/service"
)

const lockName = "matrixwkr"

type WorkerDeps struct {
	fx.In
	CardService       *service.Card
	PopularityService *service.Popularity
	Locker            dlock.Locker
}

type Worker struct {
	// count counts batches worker has completed so far
	count int

	// interval describes the interval in-between different batches of job running
	interval time.Duration

	// timeout bounds a single batch, lock included
	timeout time.Duration

	heartbeatURL string

	// deps
	WorkerDeps
}

func Start(conf *appconfig.Config, deps WorkerDeps, lc fx.Lifecycle) {
	if !conf.WorkerEnabled {
		log.Info().Str("evt.name", "worker.matrix.disabled").Msg("matrix worker disabled")
		return
	}

	w := &Worker{
		interval:     conf.WorkerInterval,
		timeout:      conf.WorkerTimeout,
		heartbeatURL: conf.WorkerHeartbeatURL,
		WorkerDeps:   deps,
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cancel = w.do()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

func (w *Worker) do() context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			log.Info().
				Str("evt.name", "worker.matrix.batch").
				Int("count", w.count).
				Msg("worker batch started")

			if err := w.Batch(ctx); err != nil {
				log.Error().Err(err).Str("evt.name", "worker.matrix.failed").Int("count", w.count).Msg("worker batch failed")
			} else {
				log.Info().Str("evt.name", "worker.matrix.batch").Int("count", w.count).Msg("worker batch finished")
			}
			w.count++

			select {
			case <-ctx.Done():
				return
			case <-time.After(w.interval):
			}
		}
	}()

	return cancel
}

// Batch rebuilds the matrix of the current window, which moves on by itself when the year rolls over.
// Only one instance runs a batch at a time; the others skip it.
func (w *Worker) Batch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	release, err := w.Locker.Lock(ctx, lockName, w.timeout)
	if err != nil {
		if errors.Is(err, dlock.ErrNotAcquired) {
			log.Info().Str("evt.name", "worker.matrix.skipped").Msg("another instance is rebuilding the matrix")
			return nil
		}
		return err
	}
	defer release()

	window := w.CardService.Window()
	var matrix *model.PopularityMatrix
	err = observeCalcDuration("PopularityService", func() error {
		matrix, err = w.PopularityService.RefreshMatrix(ctx, window)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "refresh matrix of window %s", window)
	}

	log.Info().
		Str("evt.name", "worker.matrix.refreshed").
		Stringer("window", window).
		Str("digest", matrix.Digest).
		Msg("popularity matrix refreshed")

	w.heartbeat()
	return nil
}

func (w *Worker) heartbeat() {
	if w.heartbeatURL == "" {
		return
	}

	code, _, errs := fiber.Get(w.heartbeatURL).Timeout(10 * time.Second).Bytes()
	if len(errs) > 0 || code >= fiber.StatusBadRequest {
		log.Warn().Errs("errs", errs).Int("status", code).Str("evt.name", "worker.matrix.heartbeat").Msg("heartbeat ping failed")
	}
}

func (w *Worker) Count() int {
	return w.count
}
