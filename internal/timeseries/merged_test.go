package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecs(times ...int64) []TimedVec3 {
	out := make([]TimedVec3, len(times))
	for i, t := range times {
		out[i] = TimedVec3{Value: r3.Vec{X: float64(i)}, TimeUsec: t}
	}
	return out
}

func TestNewMergedTimes(t *testing.T) {
	t.Parallel()

	rotations := vecs(10, 20, 20, 40)
	accelerations := vecs(5, 20, 30)
	m := NewMergedTimes(rotations, accelerations)

	require.Equal(t, len(rotations)+len(accelerations), m.Len())

	t.Run("timestamps never decrease", func(t *testing.T) {
		t.Parallel()
		for i := 1; i < m.Len(); i++ {
			assert.LessOrEqual(t, m.MergedEventTimeUsec(i-1), m.MergedEventTimeUsec(i), "index %d", i)
		}
	})

	t.Run("every sample appears exactly once", func(t *testing.T) {
		t.Parallel()
		seenRot := make(map[int]int)
		seenAcc := make(map[int]int)
		for i := 0; i < m.Len(); i++ {
			ev := m.Event(i)
			switch ev.Kind {
			case KindRotation:
				seenRot[ev.Source]++
			case KindAcceleration:
				seenAcc[ev.Source]++
			}
		}
		assert.Len(t, seenRot, len(rotations))
		assert.Len(t, seenAcc, len(accelerations))
		for _, c := range seenRot {
			assert.Equal(t, 1, c)
		}
		for _, c := range seenAcc {
			assert.Equal(t, 1, c)
		}
	})

	t.Run("rotations win ties", func(t *testing.T) {
		t.Parallel()
		// Events at 20us: rotation 1, rotation 2, then acceleration 1.
		var kinds []Kind
		for i := 0; i < m.Len(); i++ {
			if m.MergedEventTimeUsec(i) == 20 {
				kinds = append(kinds, m.Event(i).Kind)
			}
		}
		assert.Equal(t, []Kind{KindRotation, KindRotation, KindAcceleration}, kinds)
	})

	t.Run("latest samples are tracked", func(t *testing.T) {
		t.Parallel()
		first := m.Event(0)
		assert.Equal(t, KindAcceleration, first.Kind)
		assert.Equal(t, -1, first.LastRotation)
		assert.Equal(t, 0, first.LastAcceleration)

		last := m.Event(m.Len() - 1)
		assert.Equal(t, 3, last.LastRotation)
		assert.Equal(t, 2, last.LastAcceleration)
	})
}

func TestMergedTimesEmptyStream(t *testing.T) {
	m := NewMergedTimes(vecs(1, 2, 3), nil)
	require.Equal(t, 3, m.Len())
	for i := 0; i < m.Len(); i++ {
		assert.Equal(t, KindRotation, m.Event(i).Kind)
		assert.Equal(t, -1, m.Event(i).LastAcceleration)
	}
}

func TestMergedTimesBounds(t *testing.T) {
	m := NewMergedTimes(vecs(10, 20, 30), vecs(15, 25))
	// times: 10 15 20 25 30

	tests := []struct {
		name  string
		t     int64
		lower int
		upper int
	}{
		{"before start", 0, 0, 0},
		{"exact first", 10, 0, 1},
		{"between", 17, 2, 2},
		{"exact middle", 20, 2, 3},
		{"exact last", 30, 4, 5},
		{"after end", 99, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.lower, m.LowerBound(tt.t))
			assert.Equal(t, tt.upper, m.UpperBound(tt.t))
		})
	}
}

func TestMergedTimesNearest(t *testing.T) {
	m := NewMergedTimes(vecs(10, 20, 30), vecs(15, 25))

	assert.Equal(t, 0, m.Nearest(0, 0, m.Len()))
	assert.Equal(t, 4, m.Nearest(1000, 0, m.Len()))
	assert.Equal(t, 1, m.Nearest(16, 0, m.Len()))
	assert.Equal(t, 2, m.Nearest(19, 0, m.Len()))
	assert.Equal(t, 2, m.Nearest(22, 0, m.Len()))
	// Equidistant: earlier event wins.
	pair := NewMergedTimes(vecs(10), vecs(20))
	assert.Equal(t, 0, pair.Nearest(15, 0, pair.Len()))
	// Range restriction.
	assert.Equal(t, 2, m.Nearest(0, 2, 4))
	assert.Equal(t, 3, m.Nearest(99, 2, 4))
	assert.Equal(t, -1, m.Nearest(20, 3, 3))
}
