package service

import (
	"context"

	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/bangumi"
	"animebingo.dev/backend-next/internal/pkg/dlock"
)

// CollectionSource serves one page of a user's anime collection.
type CollectionSource interface {
	CollectionPage(ctx context.Context, username string, credential null.String, limit, offset int) (*model.CollectionPage, error)
}

// PopularitySource serves the most popular items of a year, most popular first.
type PopularitySource interface {
	TopByYear(ctx context.Context, year, subjectType, limit int, credential null.String) ([]*model.Item, error)
}

type UserSource interface {
	User(ctx context.Context, username string, credential null.String) (*model.UserInfo, error)
	// Avatar returns the image at avatarURL as a data URI.
	Avatar(ctx context.Context, avatarURL string) (string, error)
}

// ProfileStore persists profiles. Update runs fn on the stored profile, or on a fresh one
// with exists false, and saves the result atomically; an error from fn aborts the write.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, fn func(p *model.Profile, exists bool) error) (*model.Profile, error)
}

var (
	_ CollectionSource = (*bangumi.Client)(nil)
	_ PopularitySource = (*bangumi.Client)(nil)
	_ UserSource       = (*bangumi.Client)(nil)
)

func provideSources(c *bangumi.Client) (CollectionSource, PopularitySource, UserSource) {
	return c, c, c
}

func provideLocker(l *dlock.Redsync) dlock.Locker {
	return l
}
