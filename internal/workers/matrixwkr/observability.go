package matrixwkr

import (
	"time"

	"animebingo.dev/backend-next/internal/pkg/observability"
)

func observeCalcDuration(service string, f func() error) error {
	start := time.Now()
	defer func() {
		observability.WorkerCalcDuration.WithLabelValues(service).Set(time.Since(start).Seconds())
	}()
	return f()
}
