package aggregator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAggregator_SingleObservationIsBare(t *testing.T) {
	a := NewValueAggregator()
	a.Append(3.5)

	assert.Equal(t, 3.5, a.Value())

	a.Append(4.0)
	assert.Equal(t, []any{3.5, 4.0}, a.Value())
}

func TestRingAggregator_KeepsLastN(t *testing.T) {
	a := NewRingAggregator(3)
	for i := 0; i < 5; i++ {
		a.Append(i)
	}

	assert.Equal(t, []any{2, 3, 4}, a.Value())
}

func TestRingAggregator_PartialFill(t *testing.T) {
	a := NewRingAggregator(4)
	a.Append("a")
	a.Append("b")

	assert.Equal(t, []any{"a", "b"}, a.Value())
}

func TestTimeSeriesAggregator_ShortCutsTail(t *testing.T) {
	a := NewTimeSeriesAggregator()
	for i := 0; i < 25; i++ {
		a.Append(i)
	}

	short, ok := a.Short().([]any)
	require.True(t, ok)
	assert.Len(t, short, shortSeriesLen)
	assert.Equal(t, 15, short[0])
	assert.Equal(t, 24, short[len(short)-1])

	full, ok := a.Value().([]any)
	require.True(t, ok)
	assert.Len(t, full, 25)
}

func TestStatStream_MatchesDirectComputation(t *testing.T) {
	vals := []float64{12.1, 11.8, 12.4, 12.0, 11.9, 12.2}

	s := NewStatStream(0)
	for _, v := range vals {
		s.Update(v)
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sqr float64
	for _, v := range vals {
		sqr += (v - mean) * (v - mean)
	}
	variance := sqr / float64(len(vals))

	assert.InDelta(t, mean, s.Avg(), 1e-9)
	assert.InDelta(t, variance, s.Var(), 1e-9)
	assert.InDelta(t, math.Sqrt(variance), s.SD(), 1e-9)
	assert.InDelta(t, 11.8, s.Min(), 1e-9)
	assert.InDelta(t, 12.4, s.Max(), 1e-9)
	assert.InDelta(t, sum, s.Total(), 1e-9)
	assert.Equal(t, len(vals), s.Count())
}

func TestStatStream_DropsWarmupObservations(t *testing.T) {
	s := NewStatStream(2)
	for _, v := range []float64{100, 200, 1, 2, 3} {
		s.Update(v)
	}

	assert.Equal(t, 3, s.Count())
	assert.InDelta(t, 2.0, s.Avg(), 1e-9)
	assert.InDelta(t, 1.0, s.Min(), 1e-9)
	assert.InDelta(t, 3.0, s.Max(), 1e-9)
	assert.InDelta(t, 3.0, s.Val(), 1e-9)
}

func TestStatStream_EmptyStreamStaysDefined(t *testing.T) {
	s := NewStatStream(10)
	s.Update(5)

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 0.0, s.Avg())
	assert.Equal(t, 0.0, s.Min())
	assert.Equal(t, 0.0, s.Max())
	assert.Equal(t, 0.0, s.SD())
	assert.InDelta(t, 5.0, s.Val(), 1e-9)
}

func TestStatAggregator_SerializesStatistics(t *testing.T) {
	a := NewStatAggregator(0)
	a.Unit = "s"
	for _, v := range []float64{1, 2, 3} {
		a.Append(v)
	}
	a.Append("not a number")

	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.InDelta(t, 2.0, got["avg"].(float64), 1e-9)
	assert.InDelta(t, 1.0, got["min"].(float64), 1e-9)
	assert.InDelta(t, 3.0, got["max"].(float64), 1e-9)
	assert.Equal(t, 3.0, got["count"])
	assert.Equal(t, "s", got["unit"])
}
