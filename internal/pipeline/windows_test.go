package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanWindows(t *testing.T) {
	got, err := PlanWindows(12, 5, 3)
	require.NoError(t, err)
	want := []Window{
		{Index: 0, Start: 0, End: 5},
		{Index: 1, Start: 3, End: 8},
		{Index: 2, Start: 6, End: 11},
		{Index: 3, Start: 9, End: 12},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PlanWindows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "window 3 [9, 12)", got[3].String())
	assert.Equal(t, 3, got[3].Len())
}

func TestPlanWindowsCoversEveryLocation(t *testing.T) {
	for n := 1; n <= 30; n++ {
		for batch := 1; batch <= n; batch++ {
			for shift := 1; shift <= batch; shift++ {
				windows, err := PlanWindows(n, batch, shift)
				require.NoError(t, err)

				covered := make([]bool, n)
				for _, w := range windows {
					require.LessOrEqual(t, w.Len(), batch)
					require.Positive(t, w.Len())
					for i := w.Start; i < w.End; i++ {
						covered[i] = true
					}
				}
				for i, c := range covered {
					if !c {
						t.Fatalf("n=%d batch=%d shift=%d: location %d not covered", n, batch, shift, i)
					}
				}
			}
		}
	}
}

func TestPlanWindowsDisjointWhenShiftEqualsBatch(t *testing.T) {
	windows, err := PlanWindows(50, 10, 10)
	require.NoError(t, err)
	require.Len(t, windows, 5)
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].End, windows[i].Start)
	}
}

func TestPlanWindowsEdgeCases(t *testing.T) {
	windows, err := PlanWindows(0, 5, 1)
	require.NoError(t, err)
	assert.Empty(t, windows)

	windows, err = PlanWindows(3, 40, 5)
	require.NoError(t, err)
	assert.Equal(t, []Window{{Index: 0, Start: 0, End: 3}}, windows)

	_, err = PlanWindows(10, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidWindowing)
	_, err = PlanWindows(10, 5, -1)
	assert.ErrorIs(t, err, ErrInvalidWindowing)

	// A shift beyond the batch would skip samples between windows.
	_, err = PlanWindows(50, 2, 10)
	assert.ErrorIs(t, err, ErrInvalidWindowing)
}
