package card

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/util/cardutil"
)

func TestRender(t *testing.T) {
	matrix := model.NewPopularityMatrix(model.Window{End: 2021, Size: 2}, 2)
	matrix.Rows[2021][0] = &model.Item{ID: 1, Name: "Original", LocalizedName: null.StringFrom("Localized")}
	matrix.Rows[2021][1] = &model.Item{ID: 2, Name: "Second"}
	matrix.Rows[2020][0] = &model.Item{ID: 3, Name: "Third"}
	matrix.DegradedYears = []int{2020}

	annotated := cardutil.Aggregate(matrix, model.NewWatchedIDSet(1, 3))
	info := &model.UserInfo{Username: "sai"}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, info, annotated, renderOptions{DegradedYears: matrix.DegradedYears}))
	assert.Equal(t, `sai: 2/4 watched, window 2021-2

2021 (1/2)
   1 ● Localized
   2 ○ Second

2020 (1/2) unavailable
   1 ● Third
   2 ○ -
`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, info, annotated, renderOptions{WatchedOnly: true, FailedOffsets: []int{50}}))
	assert.Equal(t, `sai: 2/4 watched, window 2021-2
warning: collection pages at offsets [50] could not be fetched

2021 (1/2)
   1 ● Localized

2020 (1/2)
   1 ● Third
`, buf.String())
}
