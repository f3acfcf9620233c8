package model

import "gopkg.in/guregu/null.v3"

// FetchConfig is passed explicitly into the collection fetcher and the popularity matrix builder,
// so neither ever reads ambient credentials or the wall clock.
type FetchConfig struct {
	// Credential is an opaque bearer token forwarded to upstream unmodified.
	Credential null.String
	Window     Window
}

func (c FetchConfig) Anonymous() bool {
	return !c.Credential.Valid || c.Credential.String == ""
}
