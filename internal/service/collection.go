package service

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/async"
	"animebingo.dev/backend-next/internal/pkg/bangumi"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/pkg/fetcherr"
	"animebingo.dev/backend-next/internal/pkg/observability"
)

type Collection struct {
	Source      CollectionSource
	PageSize    int
	Concurrency int
}

func NewCollection(conf *appconfig.Config, source CollectionSource) *Collection {
	pageSize := conf.CollectionPageSize
	if pageSize <= 0 || pageSize > bangumi.MaxCollectionPageSize {
		pageSize = bangumi.MaxCollectionPageSize
	}
	return &Collection{
		Source:      source,
		PageSize:    pageSize,
		Concurrency: conf.CollectionConcurrency,
	}
}

// FetchWatchedIDs walks every page of the collection of userID and returns the union of the ids found.
// A failure on the first page is fatal since the total is unknown without it; failures on later
// pages are recorded in FailedOffsets and the result is built from the pages that succeeded.
func (s *Collection) FetchWatchedIDs(ctx context.Context, userID string, credential null.String) (*model.CollectionFetch, error) {
	if userID == "" {
		return nil, bgerr.ErrInvalidReq.Msg("user id is required")
	}

	first, err := s.Source.CollectionPage(ctx, userID, credential, s.PageSize, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.FetchFailures.WithLabelValues(fetcherr.OpCollectionPage, "true").Inc()
		return nil, &fetcherr.IncompleteCollection{
			Cause: &fetcherr.FetchFailure{Op: fetcherr.OpCollectionPage, UserID: userID, Err: err},
		}
	}

	result := &model.CollectionFetch{
		UserID: userID,
		IDs:    model.NewWatchedIDSet(),
		Total:  first.Total,
		Pages:  1,
	}
	addEntries(result.IDs, first.Entries)

	limit := first.Limit
	if limit <= 0 {
		limit = s.PageSize
	}
	offsets := make([]int, 0, max(first.Total/limit, 0))
	for offset := limit; offset < first.Total; offset += limit {
		offsets = append(offsets, offset)
	}
	result.Pages += len(offsets)

	pages, err := async.Map(ctx, offsets, s.Concurrency, func(ctx context.Context, offset int) (*model.CollectionPage, error) {
		page, err := s.Source.CollectionPage(ctx, userID, credential, limit, offset)
		if err != nil {
			return nil, &fetcherr.FetchFailure{
				Op:     fetcherr.OpCollectionPage,
				UserID: userID,
				Page:   offset / limit,
				Offset: offset,
				Err:    err,
			}
		}
		return page, nil
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for _, page := range pages {
		addEntries(result.IDs, page.Entries)
	}

	if err != nil {
		var errs async.Errors
		if !errors.As(err, &errs) {
			return nil, err
		}
		for _, e := range errs.E {
			var ff *fetcherr.FetchFailure
			if !errors.As(e, &ff) {
				return nil, e
			}
			observability.FetchFailures.WithLabelValues(fetcherr.OpCollectionPage, "false").Inc()
			log.Warn().
				Str("evt.name", "collection.page.failed").
				Err(ff.Err).
				Str("userId", userID).
				Int("offset", ff.Offset).
				Msg("skipping collection page that could not be fetched")
			result.FailedOffsets = append(result.FailedOffsets, ff.Offset)
		}
		sort.Ints(result.FailedOffsets)
	}

	observability.CollectionSize.Observe(float64(result.IDs.Len()))

	return result, nil
}

func addEntries(ids model.WatchedIDSet, entries []model.CollectionEntry) {
	for _, entry := range entries {
		ids.Add(entry.ItemID)
	}
}
