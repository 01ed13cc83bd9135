// Package aggregator provides the containers metric observations accumulate
// into: plain value lists, fixed-size rings, time series, and streaming
// statistics. Containers marshal to the JSON shape their Value() reports, so
// trials serialize without any per-container handling.
package aggregator

import "encoding/json"

// Aggregator accumulates observations and reports a JSON-serializable view.
type Aggregator interface {
	Append(v any)
	Value() any
}

// Shorter is implemented by aggregators that have a compact form for digest
// printing. Containers without one are printed in full.
type Shorter interface {
	Short() any
}

// ValueAggregator keeps every observation. With a single observation it
// reports the bare value rather than a one-element list.
type ValueAggregator struct {
	values []any
}

func NewValueAggregator() *ValueAggregator {
	return &ValueAggregator{}
}

func (a *ValueAggregator) Append(v any) {
	a.values = append(a.values, v)
}

func (a *ValueAggregator) Value() any {
	if len(a.values) == 1 {
		return a.values[0]
	}
	return a.values
}

func (a *ValueAggregator) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// RingAggregator keeps the last N observations in arrival order.
type RingAggregator struct {
	values []any
	next   int
	full   bool
}

func NewRingAggregator(n int) *RingAggregator {
	if n <= 0 {
		n = 1
	}
	return &RingAggregator{values: make([]any, n)}
}

func (a *RingAggregator) Append(v any) {
	a.values[a.next] = v
	a.next++
	if a.next == len(a.values) {
		a.next = 0
		a.full = true
	}
}

func (a *RingAggregator) Value() any {
	if !a.full {
		out := make([]any, a.next)
		copy(out, a.values[:a.next])
		return out
	}
	out := make([]any, 0, len(a.values))
	out = append(out, a.values[a.next:]...)
	out = append(out, a.values[:a.next]...)
	return out
}

func (a *RingAggregator) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// shortSeriesLen bounds how much of a time series the short digest prints.
const shortSeriesLen = 10

// TimeSeriesAggregator keeps the full append-ordered series. It is the
// default container for un-stepped metrics because its short form cuts the
// series for printing.
type TimeSeriesAggregator struct {
	values []any
}

func NewTimeSeriesAggregator() *TimeSeriesAggregator {
	return &TimeSeriesAggregator{values: []any{}}
}

func (a *TimeSeriesAggregator) Append(v any) {
	a.values = append(a.values, v)
}

func (a *TimeSeriesAggregator) Value() any {
	return a.values
}

// Short reports the tail of the series.
func (a *TimeSeriesAggregator) Short() any {
	if len(a.values) <= shortSeriesLen {
		return a.values
	}
	return a.values[len(a.values)-shortSeriesLen:]
}

func (a *TimeSeriesAggregator) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}
