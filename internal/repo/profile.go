package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/repo/selector"
)

type Profile struct {
	db  *bun.DB
	sel selector.S[model.Profile]
}

func NewProfile(db *bun.DB) *Profile {
	return &Profile{
		db:  db,
		sel: selector.New[model.Profile](db),
	}
}

// EnsureSchema creates the profiles table when it does not exist yet.
func (r *Profile) EnsureSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*model.Profile)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (r *Profile) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return r.sel.SelectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ?", userID)
	})
}

// Update reads the profile of userID with a row lock, hands it to fn and writes the result back
// within the same transaction. A missing profile is handed to fn as a fresh one with exists false.
func (r *Profile) Update(ctx context.Context, userID string, fn func(p *model.Profile, exists bool) error) (*model.Profile, error) {
	var result *model.Profile

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists := true
		profile, err := r.sel.In(tx).SelectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("user_id = ?", userID).For("UPDATE")
		})
		if errors.Is(err, bgerr.ErrNotFound) {
			exists = false
			profile = &model.Profile{UserID: userID, CreatedAt: time.Now()}
		} else if err != nil {
			return err
		}

		if err := fn(profile, exists); err != nil {
			return err
		}
		profile.UserID = userID
		profile.UpdatedAt = time.Now()

		_, err = tx.NewInsert().
			Model(profile).
			On("CONFLICT (user_id) DO UPDATE").
			Set("display_name = EXCLUDED.display_name").
			Set("avatar = EXCLUDED.avatar").
			Set("customized = EXCLUDED.customized").
			Set("watch_state = EXCLUDED.watch_state").
			Set("watched_ids = EXCLUDED.watched_ids").
			Set("matrix_digest = EXCLUDED.matrix_digest").
			Set("last_run_id = EXCLUDED.last_run_id").
			Set("last_aggregated_at = EXCLUDED.last_aggregated_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}

		result = profile
		return nil
	})
	if err != nil {
		if l := log.Debug(); l.Enabled() {
			l.Err(err).Str("evt.name", "profile.update.failed").Str("userId", userID).Msg("profile update rolled back")
		}
		return nil, err
	}

	return result, nil
}
