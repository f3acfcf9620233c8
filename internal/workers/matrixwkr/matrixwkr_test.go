package matrixwkr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/model/cache"
	"animebingo.dev/backend-next/internal/pkg/dlock"
	"animebingo.dev/backend-next/internal/service"
)

type topItems struct {
	calls atomic.Int32
	fail  bool
}

func (s *topItems) TopByYear(ctx context.Context, year, subjectType, limit int, credential null.String) ([]*model.Item, error) {
	s.calls.Add(1)
	if s.fail {
		return nil, errors.New("upstream down")
	}
	return []*model.Item{{ID: year * 100, Name: "top"}}, nil
}

type busyLocker struct{}

func (busyLocker) Lock(ctx context.Context, name string, expiry time.Duration) (dlock.Release, error) {
	return nil, errors.Wrap(dlock.ErrNotAcquired, name)
}

func newWorker(t *testing.T, source *topItems, locker dlock.Locker, heartbeatURL string) *Worker {
	t.Helper()
	require.NoError(t, cache.CurrentPopularityMatrix.Delete())

	conf := &appconfig.Config{ConfigSpec: appconfig.ConfigSpec{
		WindowSize:        2,
		RanksPerYear:      3,
		YearConcurrency:   2,
		YearFailurePolicy: model.YearFailureStrict,
	}}
	popularity := service.NewPopularity(conf, source)
	card := service.NewCard(conf, nil, popularity, nil, nil, locker)
	card.Now = func() time.Time { return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC) }

	return &Worker{
		timeout:      time.Second * 5,
		heartbeatURL: heartbeatURL,
		WorkerDeps: WorkerDeps{
			CardService:       card,
			PopularityService: popularity,
			Locker:            locker,
		},
	}
}

func TestBatchRefreshesCurrentWindow(t *testing.T) {
	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
	}))
	defer srv.Close()

	source := &topItems{}
	w := newWorker(t, source, dlock.NewLocal(), srv.URL)

	require.NoError(t, w.Batch(context.Background()))
	assert.Equal(t, int32(2), source.calls.Load())
	assert.Equal(t, int32(1), pings.Load())

	var matrix model.PopularityMatrix
	require.NoError(t, cache.CurrentPopularityMatrix.Get(&matrix))
	// the window follows the clock when no end year is configured
	assert.Equal(t, model.Window{End: 2031, Size: 2}, matrix.Window)
	assert.Equal(t, 203000, matrix.At(2030, 1).ID)
}

func TestBatchFailureSkipsHeartbeat(t *testing.T) {
	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
	}))
	defer srv.Close()

	w := newWorker(t, &topItems{fail: true}, dlock.NewLocal(), srv.URL)

	assert.Error(t, w.Batch(context.Background()))
	assert.Equal(t, int32(0), pings.Load())

	var matrix model.PopularityMatrix
	assert.Error(t, cache.CurrentPopularityMatrix.Get(&matrix))
}

func TestBatchSkipsWhenLockIsHeld(t *testing.T) {
	source := &topItems{}
	w := newWorker(t, source, busyLocker{}, "")

	assert.NoError(t, w.Batch(context.Background()))
	assert.Equal(t, int32(0), source.calls.Load())
}
