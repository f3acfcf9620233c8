package cache

import (
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/cache"
)

type Flusher func() error

var (
	// PopularityMatrixByWindow holds anonymous matrices keyed by window|policy|ranks.
	PopularityMatrixByWindow *cache.Set[model.PopularityMatrix]

	// CurrentPopularityMatrix is the in-process copy of the matrix the worker keeps warm.
	CurrentPopularityMatrix *cache.Singular[model.PopularityMatrix]

	UserInfoByUsername *cache.Set[model.UserInfo]

	once sync.Once

	SetMap             map[string]Flusher
	SingularFlusherMap map[string]Flusher
)

func init() {
	initializeCaches()
}

// Initialize connects the named Sets to redis. Before it is called every Set lookup misses.
func Initialize(client *redis.Client) {
	once.Do(func() {
		cache.Initialize(client)
	})
}

// Delete flushes the named cache. Sets are flushed as a whole even when key is given since
// their keys are composite.
func Delete(name string, key null.String) error {
	if key.Valid {
		if flusher, ok := SetMap[name]; ok {
			return flusher()
		}
		return nil
	}
	if flusher, ok := SingularFlusherMap[name]; ok {
		return flusher()
	}
	if flusher, ok := SetMap[name]; ok {
		return flusher()
	}
	return nil
}

// Names lists every flushable cache.
func Names() []string {
	names := append(lo.Keys(SetMap), lo.Keys(SingularFlusherMap)...)
	sort.Strings(names)
	return names
}

func initializeCaches() {
	SetMap = make(map[string]Flusher)
	SingularFlusherMap = make(map[string]Flusher)

	// popularity matrix
	PopularityMatrixByWindow = cache.NewSet[model.PopularityMatrix]("popularityMatrix#window|policy|ranks")
	CurrentPopularityMatrix = cache.NewSingular[model.PopularityMatrix]("currentPopularityMatrix")

	SetMap["popularityMatrix#window|policy|ranks"] = PopularityMatrixByWindow.Flush
	SingularFlusherMap["currentPopularityMatrix"] = CurrentPopularityMatrix.Delete

	// user
	UserInfoByUsername = cache.NewSet[model.UserInfo]("userInfo#username")

	SetMap["userInfo#username"] = UserInfoByUsername.Flush
}
