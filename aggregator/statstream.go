package aggregator

import (
	"encoding/json"
	"math"
)

// StatStream keeps streaming statistics without storing observations.
// Sums accumulate the offset from the first kept observation, which keeps
// the squared sum small when observations hover around a large value, as
// timer readings do. The first dropFirst observations only warm the stream
// up and are excluded from every statistic.
type StatStream struct {
	sum       float64
	sumSqr    float64
	firstObs  float64
	min       float64
	max       float64
	last      float64
	kept      int
	seen      int
	dropFirst int
}

func NewStatStream(dropFirst int) *StatStream {
	if dropFirst < 0 {
		dropFirst = 0
	}
	return &StatStream{
		min:       math.Inf(1),
		max:       math.Inf(-1),
		dropFirst: dropFirst,
	}
}

func (s *StatStream) Update(val float64) {
	s.seen++
	s.last = val
	if s.seen <= s.dropFirst {
		return
	}
	if s.kept == 0 {
		s.firstObs = val
	}
	s.kept++
	d := val - s.firstObs
	s.sum += d
	s.sumSqr += d * d
	if val < s.min {
		s.min = val
	}
	if val > s.max {
		s.max = val
	}
}

// Count reports the number of kept observations, never less than one so the
// derived statistics stay defined on an empty stream.
func (s *StatStream) Count() int {
	if s.kept < 1 {
		return 1
	}
	return s.kept
}

// Val reports the most recent observation, dropped or not.
func (s *StatStream) Val() float64 {
	return s.last
}

func (s *StatStream) Total() float64 {
	return s.sum + float64(s.kept)*s.firstObs
}

func (s *StatStream) Avg() float64 {
	return s.sum/float64(s.Count()) + s.firstObs
}

// Var reports the population variance, clamped at zero against the rounding
// drift the offset trick does not fully remove.
func (s *StatStream) Var() float64 {
	n := float64(s.Count())
	m := s.sum / n
	v := s.sumSqr/n - m*m
	if v < 0 {
		return 0
	}
	return v
}

func (s *StatStream) SD() float64 {
	return math.Sqrt(s.Var())
}

func (s *StatStream) Min() float64 {
	if s.kept == 0 {
		return 0
	}
	return s.min
}

func (s *StatStream) Max() float64 {
	if s.kept == 0 {
		return 0
	}
	return s.max
}

// StatAggregator folds observations into a StatStream. Non-numeric
// observations are ignored.
type StatAggregator struct {
	stream *StatStream

	// Unit annotates the reported statistics, "s" for timer streams.
	Unit string
}

func NewStatAggregator(dropFirst int) *StatAggregator {
	return &StatAggregator{stream: NewStatStream(dropFirst)}
}

func (a *StatAggregator) Append(v any) {
	if f, ok := asFloat(v); ok {
		a.stream.Update(f)
	}
}

func (a *StatAggregator) Stream() *StatStream {
	return a.stream
}

func (a *StatAggregator) Value() any {
	out := map[string]any{
		"avg":   a.stream.Avg(),
		"min":   a.stream.Min(),
		"max":   a.stream.Max(),
		"sd":    a.stream.SD(),
		"count": a.stream.Count(),
	}
	if a.Unit != "" {
		out["unit"] = a.Unit
	}
	return out
}

func (a *StatAggregator) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
