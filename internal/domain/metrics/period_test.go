package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-06")
	require.NoError(t, err)
	assert.Equal(t, 2025, p.Year)
	assert.Equal(t, time.June, p.Month)
	assert.Equal(t, "2025-06", p.String())

	_, err = ParsePeriod("June 2025")
	assert.Error(t, err)
	_, err = ParsePeriod("2025-13")
	assert.Error(t, err)
}

func TestPeriodBounds(t *testing.T) {
	p := Period{Year: 2025, Month: time.June}

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), p.End())
}

func TestPreviousCrossesYearBoundary(t *testing.T) {
	p := Period{Year: 2025, Month: time.January}
	assert.Equal(t, Period{Year: 2024, Month: time.December}, p.Previous())
}

func TestPeriodJSONRoundTrip(t *testing.T) {
	p := Period{Year: 2025, Month: time.June}

	data, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-06"`, string(data))

	var parsed Period
	require.NoError(t, parsed.UnmarshalJSON(data))
	assert.Equal(t, p, parsed)
}

func TestTrendOf(t *testing.T) {
	trend := TrendOf(200000, 160000)
	require.True(t, trend.Defined)
	assert.InDelta(t, 0.25, trend.Pct, 1e-9)

	trend = TrendOf(100, 0)
	assert.False(t, trend.Defined)

	trend = TrendOf(80, 100)
	require.True(t, trend.Defined)
	assert.InDelta(t, -0.2, trend.Pct, 1e-9)
}

func TestMetricSetDerivations(t *testing.T) {
	set := MetricSet{
		AppointmentsTotal:     40,
		AppointmentsCompleted: 36,
		RatingSum:             180,
		RatingCount:           40,
	}
	assert.InDelta(t, 0.9, set.CompletionRate(), 1e-9)
	assert.InDelta(t, 4.5, set.AvgRating(), 1e-9)

	var empty MetricSet
	assert.Zero(t, empty.CompletionRate())
	assert.Zero(t, empty.AvgRating())
}
