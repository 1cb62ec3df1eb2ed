package pipeline

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motionfit/internal/timeseries"
)

// Weighting selects how window contributions are combined per event.
type Weighting string

const (
	// WeightUniform takes the arithmetic mean of all contributions.
	WeightUniform Weighting = "uniform"
	// WeightInverseCost weights each contribution by the inverse of its
	// window's final objective.
	WeightInverseCost Weighting = "inverse_cost"
)

// inverseCostFloor keeps the weight of a perfect fit finite.
const inverseCostFloor = 1e-9

// ParseWeighting validates a weighting name.
func ParseWeighting(s string) (Weighting, error) {
	switch w := Weighting(s); w {
	case WeightUniform, WeightInverseCost:
		return w, nil
	case "":
		return WeightUniform, nil
	default:
		return "", fmt.Errorf("pipeline: unknown window weighting %q", s)
	}
}

// WindowWeight returns the contribution weight of a window with the given
// final objective.
func (w Weighting) WindowWeight(objective float64) float64 {
	if w == WeightInverseCost {
		return 1 / (objective + inverseCostFloor)
	}
	return 1
}

// Estimate is one window's speed estimate for a merged event.
type Estimate struct {
	Value  float64
	Weight float64
}

// Pool collects speed estimates per merged event index. It is filled during
// the sliding pass and only read afterwards.
type Pool struct {
	estimates map[int][]Estimate
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{estimates: make(map[int][]Estimate)}
}

// Add appends an estimate for merged index idx.
func (p *Pool) Add(idx int, e Estimate) {
	p.estimates[idx] = append(p.estimates[idx], e)
}

// Len returns the number of merged indices with at least one estimate.
func (p *Pool) Len() int { return len(p.estimates) }

// Estimates returns the contributions recorded for idx in insertion order.
func (p *Pool) Estimates(idx int) []Estimate { return p.estimates[idx] }

// Keys returns the pooled merged indices in ascending order.
func (p *Pool) Keys() []int {
	keys := make([]int, 0, len(p.estimates))
	for k := range p.estimates {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Aggregate returns one weighted mean per pooled index, in ascending index
// order, stamped with the merged event time.
func (p *Pool) Aggregate(merged *timeseries.MergedTimes) []timeseries.TimedScalar {
	keys := p.Keys()
	out := make([]timeseries.TimedScalar, len(keys))
	var values, weights []float64
	for i, k := range keys {
		values, weights = values[:0], weights[:0]
		for _, e := range p.estimates[k] {
			values = append(values, e.Value)
			weights = append(weights, e.Weight)
		}
		out[i] = timeseries.TimedScalar{
			Value:    stat.Mean(values, weights),
			TimeUsec: merged.MergedEventTimeUsec(k),
		}
	}
	return out
}
