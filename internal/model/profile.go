package model

import (
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/guregu/null.v3"
)

type Profile struct {
	bun.BaseModel `bun:"profiles,alias:p"`

	UserID      string      `bun:",pk" json:"userId"`
	DisplayName string      `json:"displayName"`
	Avatar      null.String `json:"avatar"`
	// Customized is set once the user edits the display name or avatar; a merge refresh then leaves them alone.
	Customized bool       `bun:",notnull,default:false" json:"customized"`
	WatchState WatchState `bun:"type:jsonb" json:"watchState"`
	// WatchedIDs is the collection fetched by the last aggregation run, ascending.
	WatchedIDs       []int      `bun:"type:jsonb" json:"-"`
	MatrixDigest     string     `json:"matrixDigest,omitempty"`
	LastRunID        string     `json:"lastRunId,omitempty"`
	LastAggregatedAt *time.Time `json:"lastAggregatedAt,omitempty"`
	CreatedAt        time.Time  `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time  `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// UserInfo is the subset of the upstream user payload a card needs.
type UserInfo struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	// AvatarURL is the largest avatar the upstream reported, if any.
	AvatarURL null.String `json:"avatarUrl"`
}

// DisplayName prefers the nickname and falls back to the username.
func (u *UserInfo) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

type Card struct {
	Profile *Profile         `json:"profile"`
	Matrix  *AnnotatedMatrix `json:"matrix"`
	RunID   string           `json:"runId"`
	Mode    RefreshMode      `json:"mode"`
	// Partial is set when some collection pages beyond the first failed.
	Partial       bool  `json:"partial"`
	FailedOffsets []int `json:"failedOffsets,omitempty"`
	DegradedYears []int `json:"degradedYears,omitempty"`
}

// Snapshot is a deep, read-only copy handed to exporters.
type Snapshot struct {
	Profile     Profile         `json:"profile"`
	Matrix      AnnotatedMatrix `json:"matrix"`
	WatchState  WatchState      `json:"watchState"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// ProfilePatch edits the displayed identity of a card. Unset fields are left alone.
type ProfilePatch struct {
	DisplayName null.String `json:"displayName" validate:"omitempty,min=1,max=64"`
	Avatar      null.String `json:"avatar" validate:"omitempty,max=2097152"`
}
