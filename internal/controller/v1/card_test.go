package v1

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/model/cache"
	"animebingo.dev/backend-next/internal/pkg/bangumi"
	"animebingo.dev/backend-next/internal/pkg/bgerr"
	"animebingo.dev/backend-next/internal/pkg/dlock"
	"animebingo.dev/backend-next/internal/server/httpserver"
	"animebingo.dev/backend-next/internal/server/svr"
	"animebingo.dev/backend-next/internal/service"
)

type memoryStore struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
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
	out := p
	return &out, nil
}

// upstream fakes the anime database: every year holds 20 items with ids year*100+rank,
// alice has watched 202005, ghost does not exist and broken cannot list its collection.
type upstream struct {
	mu          sync.Mutex
	credentials []string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.credentials = append(u.credentials, r.Header.Get("Authorization"))
	u.mu.Unlock()

	switch {
	case r.URL.Path == "/v0/search/subjects":
		var body struct {
			Filter struct {
				AirDate []string `json:"air_date"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		year, _ := strconv.Atoi(strings.TrimPrefix(body.Filter.AirDate[0], ">=")[:4])
		items := make([]string, 20)
		for i := range items {
			id := year*100 + i + 1
			items[i] = fmt.Sprintf(`{"id":%d,"name":"item %d","name_cn":""}`, id, id)
		}
		_, _ = io.WriteString(w, `{"data":[`+strings.Join(items, ",")+`],"total":20}`)
	case r.URL.Path == "/v0/users/ghost":
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"title":"Not Found"}`)
	case strings.HasSuffix(r.URL.Path, "/collections"):
		if strings.Contains(r.URL.Path, "broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"subject_id":202005,"type":2}],"total":1,"limit":50,"offset":0}`)
	case strings.HasPrefix(r.URL.Path, "/v0/users/"):
		_, _ = io.WriteString(w, `{"username":"alice","nickname":"Alice","avatar":{"large":"https://a/l.jpg"}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (u *upstream) sawCredential(v string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, c := range u.credentials {
		if c == v {
			return true
		}
	}
	return false
}

func newTestApp(t *testing.T) (*fiber.App, *upstream) {
	t.Helper()
	require.NoError(t, cache.CurrentPopularityMatrix.Delete())

	up := &upstream{}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	conf := &appconfig.Config{ConfigSpec: appconfig.ConfigSpec{
		WindowEnd:             2025,
		WindowSize:            30,
		RanksPerYear:          20,
		YearConcurrency:       8,
		CollectionPageSize:    50,
		CollectionConcurrency: 2,
		YearFailurePolicy:     model.YearFailureStrict,
	}}
	client := bangumi.New(bangumi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	store := &memoryStore{profiles: make(map[string]model.Profile)}
	locker := dlock.NewLocal()

	popularity := service.NewPopularity(conf, client)
	profile := service.NewProfile(conf, client, store, locker)
	card := service.NewCard(conf, service.NewCollection(conf, client), popularity, profile, store, locker)

	app := fiber.New(fiber.Config{ErrorHandler: httpserver.ErrorHandler})
	v1, _, _ := svr.CreateEndpointGroups(app, conf)
	RegisterMatrix(v1, Matrix{CardService: card, PopularityService: popularity})
	RegisterCard(v1, Card{CardService: card, ProfileService: profile})

	return app, up
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

func TestGetMatrixRevalidates(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/matrix", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get(fiber.HeaderETag)
	require.NotEmpty(t, etag)
	assert.Contains(t, resp.Header.Get(fiber.HeaderCacheControl), "max-age=")

	var matrix model.PopularityMatrix
	require.NoError(t, json.Unmarshal(body, &matrix))
	assert.Equal(t, model.Window{End: 2025, Size: 30}, matrix.Window)
	assert.Equal(t, 600, matrix.Cells())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/matrix", nil)
	req.Header.Set(fiber.HeaderIfNoneMatch, etag)
	resp, _ = do(t, app, req)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestSearchCard(t *testing.T) {
	app, up := newTestApp(t)

	req := jsonRequest(http.MethodPost, "/api/v1/users/alice/card", `{"mode":"replace"}`)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer tok")
	resp, body := do(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, up.sawCredential("Bearer tok"))

	var card model.Card
	require.NoError(t, json.Unmarshal(body, &card))
	assert.Equal(t, model.RefreshReplace, card.Mode)
	assert.Equal(t, "Alice", card.Profile.DisplayName)
	cell, ok := card.Matrix.At(2020, 5)
	require.True(t, ok)
	assert.True(t, cell.Watched)
	assert.Equal(t, 1, card.Matrix.WatchedCount())

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/card", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &card))
	assert.True(t, card.Profile.WatchState.Get(2020, 5).Watched)
}

func TestSearchCardErrors(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/ghost/card", ""))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, bgerr.CodeNotFound, errorCode(t, body))

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/not%20valid/card", ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, bgerr.CodeInvalidRequest, errorCode(t, body))

	resp, _ = do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/alice/card?mode=overwrite", ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/broken/card", ""))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var e struct {
		Code      string `json:"code"`
		Retryable bool   `json:"retryable"`
		Op        string `json:"op"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, bgerr.CodeUpstreamUnavailable, e.Code)
	assert.True(t, e.Retryable)
	assert.Equal(t, "collection_page", e.Op)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/users/bob/card", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditCells(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, jsonRequest(http.MethodPut, "/api/v1/users/alice/cells/2020/5", `{"watched":true}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/alice/card", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, app, jsonRequest(http.MethodPut, "/api/v1/users/alice/cells/2020/5", `{"watched":false}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var profile model.Profile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, model.WatchCell{Watched: false, Manual: true}, profile.WatchState.Get(2020, 5))

	resp, body = do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/alice/cells/2019/1/toggle", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, model.WatchCell{Watched: true, Manual: true}, profile.WatchState.Get(2019, 1))

	// a merge refresh keeps both edits
	resp, _ = do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/alice/card", `{"mode":"merge"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/card", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var card model.Card
	require.NoError(t, json.Unmarshal(body, &card))
	cell, _ := card.Matrix.At(2020, 5)
	assert.False(t, cell.Watched)
	cell, _ = card.Matrix.At(2019, 1)
	assert.True(t, cell.Watched)

	resp, body = do(t, app, jsonRequest(http.MethodPut, "/api/v1/users/alice/cells/2020/5", `{}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "violations")

	resp, _ = do(t, app, jsonRequest(http.MethodPut, "/api/v1/users/alice/cells/1990/5", `{"watched":true}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/alice/cells/2020/x/toggle", ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatchProfileAndSnapshot(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, jsonRequest(http.MethodPost, "/api/v1/users/alice/card", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, app, jsonRequest(http.MethodPatch, "/api/v1/users/alice/profile", `{"displayName":"Bingo Master"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var profile model.Profile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "Bingo Master", profile.DisplayName)
	assert.True(t, profile.Customized)

	resp, _ = do(t, app, jsonRequest(http.MethodPatch, "/api/v1/users/alice/profile", `{"displayName":"`+strings.Repeat("x", 65)+`"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/snapshot", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot model.Snapshot
	require.NoError(t, json.Unmarshal(body, &snapshot))
	assert.Equal(t, "Bingo Master", snapshot.Profile.DisplayName)
	assert.True(t, snapshot.WatchState.Get(2020, 5).Watched)
	assert.False(t, snapshot.GeneratedAt.IsZero())
}
