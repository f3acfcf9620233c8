package model

import "strings"

// YearFailurePolicy decides how a matrix build treats a year whose query failed.
type YearFailurePolicy string

const (
	// YearFailureStrict aborts the whole build.
	YearFailureStrict YearFailurePolicy = "strict"
	// YearFailureDegrade fills the year with empty cells and records it on the matrix.
	YearFailureDegrade YearFailurePolicy = "degrade"
)

func (p YearFailurePolicy) Valid() bool {
	return p == YearFailureStrict || p == YearFailureDegrade
}

// Decode implements envconfig.Decoder.
func (p *YearFailurePolicy) Decode(value string) error {
	*p = YearFailurePolicy(strings.ToLower(strings.TrimSpace(value)))
	return nil
}
