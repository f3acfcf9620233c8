package service

import (
	"context"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/pkg/dlock"
	"animebingo.dev/backend-next/internal/pkg/observability"
	"animebingo.dev/backend-next/internal/util/cardutil"
)

var errSuperseded = errors.New("card search superseded by a newer one")

type CardSearch struct {
	UserID     string
	Credential null.String
	Mode       model.RefreshMode
}

type Card struct {
	Config            *appconfig.Config
	CollectionService *Collection
	PopularityService *Popularity
	ProfileService    *Profile
	Store             ProfileStore
	Locker            dlock.Locker

	// Now is the clock the window is resolved against.
	Now func() time.Time

	mu       sync.Mutex
	seq      uint64
	inflight map[string]*inflightSearch
}

type inflightSearch struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

func NewCard(
	conf *appconfig.Config,
	collectionService *Collection,
	popularityService *Popularity,
	profileService *Profile,
	store ProfileStore,
	locker dlock.Locker,
) *Card {
	return &Card{
		Config:            conf,
		CollectionService: collectionService,
		PopularityService: popularityService,
		ProfileService:    profileService,
		Store:             store,
		Locker:            locker,
		Now:               time.Now,
		inflight:          make(map[string]*inflightSearch),
	}
}

func (s *Card) Window() model.Window {
	return s.Config.Window(s.Now())
}

// begin registers a search for userID, cancelling the one already in flight for the same user.
func (s *Card) begin(ctx context.Context, userID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	if prev, ok := s.inflight[userID]; ok {
		prev.cancel(errSuperseded)
	}
	s.seq++
	seq := s.seq
	s.inflight[userID] = &inflightSearch{seq: seq, cancel: cancel}
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if cur, ok := s.inflight[userID]; ok && cur.seq == seq {
			delete(s.inflight, userID)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

func searchAborted(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), errSuperseded) {
		return bgerr.ErrSuperseded
	}
	return ctx.Err()
}

// Search fetches the collection, the popularity matrix and the user profile of req.UserID, aggregates
// them and reconciles the result into the stored watch state. A newer search for the same user
// cancels this one; a cancelled or failed search leaves the stored state untouched.
func (s *Card) Search(ctx context.Context, req CardSearch) (*model.Card, error) {
	if req.UserID == "" {
		return nil, bgerr.ErrInvalidReq.Msg("user id is required")
	}
	if req.Mode == "" {
		req.Mode = model.RefreshMerge
	}
	if !req.Mode.Valid() {
		return nil, bgerr.ErrInvalidReq.Msg("invalid refresh mode %q", req.Mode)
	}

	ctx, done := s.begin(ctx, req.UserID)
	defer done()

	runID := ulid.Make().String()
	window := s.Window()
	l := log.With().Str("runId", runID).Str("userId", req.UserID).Logger()

	var (
		info    *model.UserInfo
		avatar  null.String
		fetched *model.CollectionFetch
		matrix  *model.PopularityMatrix
	)

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		info, err = s.ProfileService.FetchUser(ectx, req.UserID, req.Credential)
		if err != nil {
			return err
		}
		avatar = s.ProfileService.ResolveAvatar(ectx, info)
		return nil
	})
	eg.Go(func() error {
		var err error
		fetched, err = s.CollectionService.FetchWatchedIDs(ectx, req.UserID, req.Credential)
		return err
	})
	eg.Go(func() error {
		var err error
		matrix, err = s.PopularityService.GetMatrix(ectx, model.FetchConfig{Credential: req.Credential, Window: window})
		return err
	})

	err := eg.Wait()
	if ctx.Err() != nil {
		observability.CardRuns.WithLabelValues(string(req.Mode), "aborted").Inc()
		return nil, searchAborted(ctx)
	}
	if err != nil {
		observability.CardRuns.WithLabelValues(string(req.Mode), "failure").Inc()
		l.Warn().Err(err).Str("evt.name", "card.search.failed").Msg("card search failed before aggregation")
		return nil, err
	}

	annotated := cardutil.Aggregate(matrix, fetched.IDs)

	release, err := lockUser(ctx, s.Locker, req.UserID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, searchAborted(ctx)
		}
		return nil, err
	}
	defer release()

	// a newer search may have started while this one waited for the lock
	if ctx.Err() != nil {
		observability.CardRuns.WithLabelValues(string(req.Mode), "aborted").Inc()
		return nil, searchAborted(ctx)
	}

	now := s.Now()
	profile, err := s.Store.Update(ctx, req.UserID, func(p *model.Profile, exists bool) error {
		if !exists || !p.Customized || req.Mode == model.RefreshReplace {
			p.DisplayName = info.DisplayName()
			p.Avatar = avatar
			p.Customized = false
		}
		p.WatchState = cardutil.Reconcile(req.Mode, p.WatchState, annotated)
		p.WatchedIDs = fetched.IDs.IDs()
		p.MatrixDigest = matrix.Digest
		p.LastRunID = runID
		p.LastAggregatedAt = &now
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, searchAborted(ctx)
		}
		observability.CardRuns.WithLabelValues(string(req.Mode), "failure").Inc()
		return nil, err
	}

	observability.CardRuns.WithLabelValues(string(req.Mode), "success").Inc()
	l.Info().
		Str("evt.name", "card.search.done").
		Str("mode", string(req.Mode)).
		Int("watched", fetched.IDs.Len()).
		Int("matched", annotated.WatchedCount()).
		Ints("failedOffsets", fetched.FailedOffsets).
		Ints("degradedYears", matrix.DegradedYears).
		Msg("card aggregated")

	return &model.Card{
		Profile:       profile,
		Matrix:        cardutil.Overlay(annotated, profile.WatchState),
		RunID:         runID,
		Mode:          req.Mode,
		Partial:       fetched.Partial(),
		FailedOffsets: fetched.FailedOffsets,
		DegradedYears: matrix.DegradedYears,
	}, nil
}

// Get returns the stored card of userID, re-annotating the current matrix with the stored
// collection and overlaying the stored watch state.
func (s *Card) Get(ctx context.Context, userID string) (*model.Card, error) {
	profile, err := s.Store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	matrix, err := s.PopularityService.GetCurrentMatrix(ctx, s.Window())
	if err != nil {
		return nil, err
	}
	annotated := cardutil.Aggregate(matrix, model.NewWatchedIDSet(profile.WatchedIDs...))

	return &model.Card{
		Profile:       profile,
		Matrix:        cardutil.Overlay(annotated, profile.WatchState),
		RunID:         profile.LastRunID,
		DegradedYears: matrix.DegradedYears,
	}, nil
}

// SetCell marks (year, rank) of the stored card as watched or not. The edit survives merge refreshes.
func (s *Card) SetCell(ctx context.Context, userID string, year, rank int, watched bool) (*model.Profile, error) {
	return s.editCell(ctx, userID, func(state model.WatchState) (model.WatchState, error) {
		return cardutil.Set(state, s.Window(), s.PopularityService.Ranks, year, rank, watched)
	})
}

// ToggleCell flips (year, rank) of the stored card. The edit survives merge refreshes.
func (s *Card) ToggleCell(ctx context.Context, userID string, year, rank int) (*model.Profile, error) {
	return s.editCell(ctx, userID, func(state model.WatchState) (model.WatchState, error) {
		return cardutil.Toggle(state, s.Window(), s.PopularityService.Ranks, year, rank)
	})
}

func (s *Card) editCell(ctx context.Context, userID string, edit func(model.WatchState) (model.WatchState, error)) (*model.Profile, error) {
	release, err := lockUser(ctx, s.Locker, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.Store.Update(ctx, userID, func(p *model.Profile, exists bool) error {
		if !exists {
			return bgerr.ErrNotFound.Msg("no card for user %q yet", userID)
		}
		state := p.WatchState
		if state == nil {
			state = model.EmptyWatchState(s.Window(), s.PopularityService.Ranks)
		}
		next, err := edit(state)
		if err != nil {
			if errors.Is(err, cardutil.ErrCellOutOfRange) {
				return bgerr.ErrInvalidReq.Msg("%s", err)
			}
			return err
		}
		p.WatchState = next
		return nil
	})
}

// Snapshot returns a deep copy of the stored card for exporters.
func (s *Card) Snapshot(ctx context.Context, userID string) (*model.Snapshot, error) {
	card, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &model.Snapshot{GeneratedAt: s.Now()}
	opt := copier.Option{DeepCopy: true}
	if err := copier.CopyWithOption(&snapshot.Profile, card.Profile, opt); err != nil {
		return nil, errors.Wrap(err, "copy profile")
	}
	if err := copier.CopyWithOption(&snapshot.Matrix, card.Matrix, opt); err != nil {
		return nil, errors.Wrap(err, "copy matrix")
	}
	snapshot.WatchState = card.Profile.WatchState.Clone()

	return snapshot, nil
}
