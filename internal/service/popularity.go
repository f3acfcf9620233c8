package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/model/cache"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/pkg/fetcherr"
	"animebingo.dev/backend-next/internal/pkg/observability"
	"animebingo.dev/backend-next/internal/util/cardutil"
)

type Popularity struct {
	Source      PopularitySource
	Ranks       int
	Concurrency int
	Policy      model.YearFailurePolicy
	CacheTTL    time.Duration
	// DefaultCredential is used for requests that carry no credential of their own.
	DefaultCredential null.String
}

func NewPopularity(conf *appconfig.Config, source PopularitySource) *Popularity {
	ranks := conf.RanksPerYear
	if ranks <= 0 {
		ranks = model.DefaultRanksPerYear
	}
	return &Popularity{
		Source:            source,
		Ranks:             ranks,
		Concurrency:       conf.YearConcurrency,
		Policy:            conf.YearFailurePolicy,
		CacheTTL:          conf.MatrixCacheTTL,
		DefaultCredential: null.NewString(conf.BangumiAccessToken, conf.BangumiAccessToken != ""),
	}
}

// BuildMatrix queries every year of the window and assembles a matrix where each year holds
// exactly Ranks cells. Years run concurrently, each writing only its own row.
func (s *Popularity) BuildMatrix(ctx context.Context, conf model.FetchConfig) (*model.PopularityMatrix, error) {
	if err := conf.Window.Validate(); err != nil {
		return nil, bgerr.ErrInvalidReq.Msg("invalid window: %s", err)
	}

	start := time.Now()
	years := conf.Window.Years()
	matrix := model.NewPopularityMatrix(conf.Window, s.Ranks)
	failures := make([]*fetcherr.FetchFailure, len(years))

	eg, ectx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		eg.SetLimit(s.Concurrency)
	}

	for i, year := range years {
		i, year := i, year
		row := matrix.Rows[year]
		eg.Go(func() error {
			items, err := s.Source.TopByYear(ectx, year, model.SubjectTypeAnime, s.Ranks, conf.Credential)
			if err != nil {
				ff := &fetcherr.FetchFailure{Op: fetcherr.OpTopByYear, Year: year, Err: err}
				if s.Policy != model.YearFailureDegrade {
					return &fetcherr.IncompleteMatrix{Cause: ff}
				}
				failures[i] = ff
				return nil
			}
			fillRow(row, items)
			return nil
		})
	}

	err := eg.Wait()
	if ctx.Err() != nil {
		observability.MatrixBuildDuration.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
		return nil, ctx.Err()
	}
	if err != nil {
		observability.FetchFailures.WithLabelValues(fetcherr.OpTopByYear, "true").Inc()
		observability.MatrixBuildDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		return nil, err
	}

	for _, ff := range failures {
		if ff == nil {
			continue
		}
		observability.FetchFailures.WithLabelValues(fetcherr.OpTopByYear, "false").Inc()
		log.Warn().
			Str("evt.name", "popularity.year.degraded").
			Err(ff.Err).
			Int("year", ff.Year).
			Msg("year could not be fetched and is left empty")
		matrix.DegradedYears = append(matrix.DegradedYears, ff.Year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(matrix.DegradedYears)))

	matrix.Digest = cardutil.Digest(matrix)

	outcome := "success"
	if len(matrix.DegradedYears) > 0 {
		outcome = "degraded"
	}
	observability.MatrixBuildDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return matrix, nil
}

// fillRow copies the first len(row) items into row, ranking them by position.
// Slots past the end of items keep the empty sentinel.
func fillRow(row []*model.Item, items []*model.Item) {
	rank := 0
	for _, item := range items {
		if rank == len(row) {
			return
		}
		if item == nil {
			continue
		}
		copied := *item
		copied.PopularityRank = null.IntFrom(int64(rank + 1))
		row[rank] = &copied
		rank++
	}
}

// Cache: popularityMatrix#window|policy|ranks:{window}|{policy}|{ranks}, MatrixCacheTTL
//
// GetMatrix serves requests without a credential from the cache, built with the default credential.
// Requests carrying a credential may see different results and are always built directly.
// Degraded matrices are returned but never cached.
func (s *Popularity) GetMatrix(ctx context.Context, conf model.FetchConfig) (*model.PopularityMatrix, error) {
	if !conf.Anonymous() {
		return s.BuildMatrix(ctx, conf)
	}
	conf.Credential = s.DefaultCredential

	key := s.cacheKey(conf.Window)
	var matrix model.PopularityMatrix
	calculated, err := cache.PopularityMatrixByWindow.MutexGetSet(ctx, key, &matrix, func(ctx context.Context) (*model.PopularityMatrix, error) {
		return s.BuildMatrix(ctx, conf)
	}, s.CacheTTL)
	if err != nil {
		return nil, err
	}
	if calculated && len(matrix.DegradedYears) > 0 {
		if err := cache.PopularityMatrixByWindow.Delete(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to evict degraded matrix")
		}
	}
	return &matrix, nil
}

// Cache: currentPopularityMatrix, MatrixCacheTTL
//
// GetCurrentMatrix returns the anonymous matrix of window, served from process memory
// when window is the one the worker keeps warm.
func (s *Popularity) GetCurrentMatrix(ctx context.Context, window model.Window) (*model.PopularityMatrix, error) {
	var matrix model.PopularityMatrix
	if err := cache.CurrentPopularityMatrix.Get(&matrix); err == nil && matrix.Window == window && matrix.Ranks == s.Ranks {
		return &matrix, nil
	}
	return s.GetMatrix(ctx, model.FetchConfig{Window: window})
}

// RefreshMatrix rebuilds the anonymous matrix of window regardless of the cache and stores it in both
// the shared and the in-process cache.
func (s *Popularity) RefreshMatrix(ctx context.Context, window model.Window) (*model.PopularityMatrix, error) {
	matrix, err := s.BuildMatrix(ctx, model.FetchConfig{Credential: s.DefaultCredential, Window: window})
	if err != nil {
		return nil, err
	}
	if len(matrix.DegradedYears) > 0 {
		return matrix, errors.Errorf("matrix for window %s degraded in years %v, not caching", window, matrix.DegradedYears)
	}

	if err := cache.PopularityMatrixByWindow.Set(s.cacheKey(window), matrix, s.CacheTTL); err != nil {
		return nil, err
	}
	if err := cache.CurrentPopularityMatrix.Set(matrix, s.CacheTTL); err != nil {
		return nil, err
	}
	return matrix, nil
}

func (s *Popularity) cacheKey(window model.Window) string {
	return window.String() + "|" + string(s.Policy) + "|" + strconv.Itoa(s.Ranks)
}
