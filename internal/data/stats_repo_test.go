package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillChartData(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	chart := fillChartData([]dayCount{
		{Day: "2026-03-04", Count: 2},
		{Day: "2026-03-10", Count: 5},
	}, today, 7)

	require.Len(t, chart, 7)
	assert.Equal(t, "2026-03-04", chart[0].Date)
	assert.Equal(t, int64(2), chart[0].Orders)
	assert.Equal(t, int64(0), chart[3].Orders)
	assert.Equal(t, "2026-03-10", chart[6].Date)
	assert.Equal(t, int64(5), chart[6].Orders)
}

func TestSummarizeFulfillment(t *testing.T) {
	counts, delivered := summarizeFulfillment([]fulfillmentCount{
		{FulfillmentStatus: "pending", Count: 3},
		{FulfillmentStatus: "delivered", Count: 4},
		{FulfillmentStatus: "failed", Count: 1},
		{FulfillmentStatus: "unknown", Count: 9},
	})
	assert.Equal(t, int64(3), counts.Pending)
	assert.Equal(t, int64(4), counts.Completed)
	assert.Equal(t, int64(1), counts.Failed)
	assert.Equal(t, int64(4), delivered)
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	got := startOfDay(time.Date(2026, 3, 10, 23, 59, 1, 5, loc))
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, loc), got)
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 10.01, roundMoney(10.005))
	assert.Equal(t, 0.3, roundMoney(0.1+0.2))
}
