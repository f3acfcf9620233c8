package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/constant"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/model/cache"
	"animebingo.dev/backend-next/internal/pkg/bangumi"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/pkg/dlock"
	"animebingo.dev/backend-next/internal/pkg/fetcherr"
	"animebingo.dev/backend-next/internal/pkg/observability"
)

type Profile struct {
	Users        UserSource
	Store        ProfileStore
	Locker       dlock.Locker
	InlineAvatar bool
	CacheTTL     time.Duration
}

func NewProfile(conf *appconfig.Config, users UserSource, store ProfileStore, locker dlock.Locker) *Profile {
	return &Profile{
		Users:        users,
		Store:        store,
		Locker:       locker,
		InlineAvatar: conf.InlineAvatar,
		CacheTTL:     conf.UserCacheTTL,
	}
}

// Cache: userInfo#username:{username}, UserCacheTTL, only for requests without a credential
func (s *Profile) FetchUser(ctx context.Context, username string, credential null.String) (*model.UserInfo, error) {
	valueFunc := func(ctx context.Context) (*model.UserInfo, error) {
		info, err := s.Users.User(ctx, username, credential)
		if err != nil {
			if bangumi.IsNotFound(err) {
				return nil, bgerr.ErrNotFound.Msg("user %q does not exist upstream", username)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.FetchFailures.WithLabelValues(fetcherr.OpUser, "true").Inc()
			return nil, &fetcherr.FetchFailure{Op: fetcherr.OpUser, UserID: username, Err: err}
		}
		return info, nil
	}

	if credential.Valid {
		return valueFunc(ctx)
	}

	var info model.UserInfo
	if _, err := cache.UserInfoByUsername.MutexGetSet(ctx, username, &info, valueFunc, s.CacheTTL); err != nil {
		return nil, err
	}
	return &info, nil
}

// ResolveAvatar returns the avatar reference to store for info: a data URI when inlining is enabled
// and the download succeeds, the upstream URL otherwise.
func (s *Profile) ResolveAvatar(ctx context.Context, info *model.UserInfo) null.String {
	if !info.AvatarURL.Valid || !s.InlineAvatar {
		return info.AvatarURL
	}

	uri, err := s.Users.Avatar(ctx, info.AvatarURL.String)
	if err != nil {
		observability.FetchFailures.WithLabelValues(fetcherr.OpAvatar, "false").Inc()
		log.Warn().
			Str("evt.name", "profile.avatar.failed").
			Err(err).
			Str("userId", info.Username).
			Msg("failed to inline avatar, keeping the upstream url")
		return info.AvatarURL
	}
	return null.StringFrom(uri)
}

func (s *Profile) Get(ctx context.Context, userID string) (*model.Profile, error) {
	return s.Store.GetByUserID(ctx, userID)
}

// Patch applies the set fields of patch to the stored profile and marks it customized.
func (s *Profile) Patch(ctx context.Context, userID string, patch *model.ProfilePatch) (*model.Profile, error) {
	if !patch.DisplayName.Valid && !patch.Avatar.Valid {
		return nil, bgerr.ErrInvalidReq.Msg("nothing to update")
	}

	release, err := lockUser(ctx, s.Locker, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.Store.Update(ctx, userID, func(p *model.Profile, exists bool) error {
		if !exists {
			return bgerr.ErrNotFound.Msg("no card for user %q yet", userID)
		}
		if patch.DisplayName.Valid {
			p.DisplayName = patch.DisplayName.String
		}
		if patch.Avatar.Valid {
			p.Avatar = null.NewString(patch.Avatar.String, patch.Avatar.String != "")
		}
		p.Customized = true
		return nil
	})
}

func lockUser(ctx context.Context, locker dlock.Locker, userID string) (dlock.Release, error) {
	release, err := locker.Lock(ctx, "card:"+userID, constant.CardLockExpiry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, bgerr.ErrInternalError.Msg("card of user %q is being written by another request", userID)
	}
	return release, nil
}
