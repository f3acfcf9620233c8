package bangumi

import (
	"context"
	"net/http"
	"strconv"

	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model"
)

const SortHeat = "heat"

type searchFilter struct {
	Type     []int    `json:"type"`
	AirDate  []string `json:"air_date"`
	MetaTags []string `json:"meta_tags,omitempty"`
}

type searchRequest struct {
	Keyword string       `json:"keyword"`
	Sort    string       `json:"sort"`
	Filter  searchFilter `json:"filter"`
}

type subjectPayload struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	NameCN string `json:"name_cn"`
	Date   string `json:"date"`
	Images struct {
		Large  string `json:"large"`
		Common string `json:"common"`
		Medium string `json:"medium"`
	} `json:"images"`
}

type searchPayload struct {
	Data  []subjectPayload `json:"data"`
	Total int              `json:"total"`
}

// TopByYear returns up to limit subjects of subjectType aired within year, most popular first.
// Items come back without PopularityRank; the caller assigns it from the position.
func (c *Client) TopByYear(ctx context.Context, year, subjectType, limit int, credential null.String) ([]*model.Item, error) {
	y := strconv.Itoa(year)
	body := searchRequest{
		Keyword: "",
		Sort:    SortHeat,
		Filter: searchFilter{
			Type:     []int{subjectType},
			AirDate:  []string{">=" + y + "-01-01", "<=" + y + "-12-31"},
			MetaTags: c.conf.MetaTags,
		},
	}

	var payload searchPayload
	err := c.do(ctx, request{
		op:         "top_by_year",
		method:     http.MethodPost,
		path:       "/v0/search/subjects?limit=" + strconv.Itoa(limit),
		body:       body,
		credential: credential,
	}, &payload)
	if err != nil {
		return nil, err
	}

	items := make([]*model.Item, 0, len(payload.Data))
	for _, s := range payload.Data {
		items = append(items, s.toItem())
	}
	return items, nil
}

func (s *subjectPayload) toItem() *model.Item {
	item := &model.Item{
		ID:            s.ID,
		Name:          s.Name,
		LocalizedName: null.NewString(s.NameCN, s.NameCN != ""),
		AirDate:       null.NewString(s.Date, s.Date != ""),
	}
	for _, image := range []string{s.Images.Large, s.Images.Common, s.Images.Medium} {
		if image != "" {
			item.Image = null.StringFrom(image)
			break
		}
	}
	return item
}
