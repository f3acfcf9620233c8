package model

import "gopkg.in/guregu/null.v3"

// SubjectTypeAnime is the upstream subject type code for anime.
const SubjectTypeAnime = 2

type Item struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	LocalizedName null.String `json:"nameCn"`
	// PopularityRank is the 1-based position of the item inside its year bucket.
	PopularityRank null.Int    `json:"popularityRank,omitempty"`
	AirDate        null.String `json:"airDate,omitempty"`
	Image          null.String `json:"image,omitempty"`
}

// DisplayTitle prefers the localized title and falls back to the original one.
func (i *Item) DisplayTitle() string {
	if i == nil {
		return ""
	}
	if i.LocalizedName.Valid && i.LocalizedName.String != "" {
		return i.LocalizedName.String
	}
	return i.Name
}

type CollectionEntry struct {
	ItemID int `json:"subjectId"`
	// Type is the upstream collection type (wish, done, doing, on hold, dropped). Not used for aggregation.
	Type int `json:"type,omitempty"`
}

type CollectionPage struct {
	Entries []CollectionEntry `json:"entries"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}
