package bangumi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model"
)

type collectionPayload struct {
	Data []struct {
		SubjectID int `json:"subject_id"`
		Type      int `json:"type"`
	} `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// CollectionPage fetches one page of the anime collections of username.
func (c *Client) CollectionPage(ctx context.Context, username string, credential null.String, limit, offset int) (*model.CollectionPage, error) {
	if limit <= 0 || limit > MaxCollectionPageSize {
		limit = MaxCollectionPageSize
	}

	q := url.Values{}
	q.Set("subject_type", strconv.Itoa(model.SubjectTypeAnime))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var payload collectionPayload
	err := c.do(ctx, request{
		op:         "collection_page",
		method:     http.MethodGet,
		path:       "/v0/users/" + url.PathEscape(username) + "/collections?" + q.Encode(),
		credential: credential,
	}, &payload)
	if err != nil {
		return nil, err
	}

	page := &model.CollectionPage{
		Entries: make([]model.CollectionEntry, 0, len(payload.Data)),
		Total:   payload.Total,
		Limit:   payload.Limit,
		Offset:  offset,
	}
	for _, entry := range payload.Data {
		page.Entries = append(page.Entries, model.CollectionEntry{ItemID: entry.SubjectID, Type: entry.Type})
	}
	return page, nil
}
