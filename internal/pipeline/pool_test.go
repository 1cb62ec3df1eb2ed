package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motionfit/internal/timeseries"
)

func poolMerged() *timeseries.MergedTimes {
	rot := []timeseries.TimedVec3{{TimeUsec: 100}, {TimeUsec: 300}}
	acc := []timeseries.TimedVec3{{TimeUsec: 200}, {TimeUsec: 400}}
	return timeseries.NewMergedTimes(rot, acc)
}

func TestPoolAggregateUniform(t *testing.T) {
	pool := NewPool()
	w := WeightUniform.WindowWeight(123)
	pool.Add(2, Estimate{Value: 4, Weight: w})
	pool.Add(0, Estimate{Value: 9.5, Weight: w})
	pool.Add(2, Estimate{Value: 6, Weight: w})
	pool.Add(2, Estimate{Value: 11, Weight: w})

	require.Equal(t, 2, pool.Len())
	assert.Equal(t, []int{0, 2}, pool.Keys())
	assert.Len(t, pool.Estimates(2), 3)

	got := pool.Aggregate(poolMerged())
	want := []timeseries.TimedScalar{
		{Value: 9.5, TimeUsec: 100},
		{Value: 7, TimeUsec: 300},
	}
	assert.Equal(t, want, got)
}

func TestPoolAggregateInverseCost(t *testing.T) {
	pool := NewPool()
	pool.Add(1, Estimate{Value: 10, Weight: WeightInverseCost.WindowWeight(0.01)})
	pool.Add(1, Estimate{Value: 20, Weight: WeightInverseCost.WindowWeight(0.04)})

	got := pool.Aggregate(poolMerged())
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].TimeUsec)
	// Weights 100 and 25.
	assert.InDelta(t, 12.0, got[0].Value, 1e-6)
}

func TestPoolAggregateEmpty(t *testing.T) {
	assert.Empty(t, NewPool().Aggregate(poolMerged()))
}

func TestParseWeighting(t *testing.T) {
	tests := []struct {
		in      string
		want    Weighting
		wantErr bool
	}{
		{in: "uniform", want: WeightUniform},
		{in: "inverse_cost", want: WeightInverseCost},
		{in: "", want: WeightUniform},
		{in: "median", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeighting(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
