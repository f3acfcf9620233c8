package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/bangumi"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
)

var errUpstream = errors.New("upstream unavailable")

func testConfig() *appconfig.Config {
	return &appconfig.Config{ConfigSpec: appconfig.ConfigSpec{
		WindowEnd:             2025,
		WindowSize:            30,
		RanksPerYear:          20,
		YearConcurrency:       4,
		CollectionPageSize:    50,
		CollectionConcurrency: 3,
		YearFailurePolicy:     model.YearFailureStrict,
	}}
}

// fakeCollections serves a collection of ids in pages of the requested limit.
type fakeCollections struct {
	mu       sync.Mutex
	ids      []int
	limit    int
	failAt   map[int]error
	requests []int
	// total, when set, overrides the reported collection size.
	total *int
	// block, when set, is waited on before serving any page but the first.
	block chan struct{}
}

func (f *fakeCollections) CollectionPage(ctx context.Context, username string, credential null.String, limit, offset int) (*model.CollectionPage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, offset)
	err := f.failAt[offset]
	f.mu.Unlock()

	if f.block != nil && offset > 0 {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	if f.limit > 0 {
		limit = f.limit
	}
	page := &model.CollectionPage{Total: len(f.ids), Limit: limit, Offset: offset}
	if f.total != nil {
		page.Total = *f.total
	}
	for i := offset; i < offset+limit && i < len(f.ids); i++ {
		page.Entries = append(page.Entries, model.CollectionEntry{ItemID: f.ids[i]})
	}
	return page, nil
}

func (f *fakeCollections) offsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int(nil), f.requests...)
	sort.Ints(out)
	return out
}

// fakePopularity returns count items per year with ids year*100+position.
type fakePopularity struct {
	mu     sync.Mutex
	count  map[int]int
	def    int
	failAt map[int]error
	calls  int
	creds  []null.String
}

func (f *fakePopularity) TopByYear(ctx context.Context, year, subjectType, limit int, credential null.String) ([]*model.Item, error) {
	f.mu.Lock()
	f.calls++
	f.creds = append(f.creds, credential)
	err := f.failAt[year]
	n, ok := f.count[year]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		n = f.def
	}
	if n > limit {
		n = limit
	}
	items := make([]*model.Item, n)
	for i := range items {
		id := year*100 + i + 1
		items[i] = &model.Item{ID: id, Name: fmt.Sprintf("item %d", id)}
	}
	return items, nil
}

type fakeUsers struct {
	info      *model.UserInfo
	err       error
	avatar    string
	avatarErr error
	delay     time.Duration
}

func (f *fakeUsers) User(ctx context.Context, username string, credential null.String) (*model.UserInfo, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.info != nil {
		return f.info, nil
	}
	return &model.UserInfo{Username: username}, nil
}

func (f *fakeUsers) Avatar(ctx context.Context, avatarURL string) (string, error) {
	return f.avatar, f.avatarErr
}

type memoryStore struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
	writes   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{profiles: make(map[string]model.Profile)}
}

func (m *memoryStore) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, bgerr.ErrNotFound
	}
	p.WatchState = p.WatchState.Clone()
	return &p, nil
}

func (m *memoryStore) Update(ctx context.Context, userID string, fn func(p *model.Profile, exists bool) error) (*model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.profiles[userID]
	if !exists {
		p = model.Profile{UserID: userID}
	}
	p.WatchState = p.WatchState.Clone()
	if err := fn(&p, exists); err != nil {
		return nil, err
	}
	m.profiles[userID] = p
	m.writes++
	out := p
	return &out, nil
}

func notFoundUsers() *fakeUsers {
	return &fakeUsers{err: &bangumi.StatusError{StatusCode: 404}}
}

func sequence(from, n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = from + i
	}
	return ids
}
