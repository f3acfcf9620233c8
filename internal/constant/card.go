package constant

import "time"

const (
	// MatrixCacheMaxAge is the Cache-Control max-age of the public matrix endpoint.
	MatrixCacheMaxAge = 24 * time.Hour

	// CardLockExpiry bounds how long a single user's card write may hold its lock.
	CardLockExpiry = 30 * time.Second
)
