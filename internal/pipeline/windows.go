package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidWindowing is returned for a non-positive batch size or shift,
// or a shift larger than the batch, which would leave GPS samples between
// windows unfitted.
var ErrInvalidWindowing = errors.New("pipeline: invalid windowing")

// Window is a half-open range [Start, End) over the GPS stream.
type Window struct {
	Index      int
	Start, End int
}

// Len returns the number of GPS samples in w.
func (w Window) Len() int { return w.End - w.Start }

func (w Window) String() string {
	return fmt.Sprintf("window %d [%d, %d)", w.Index, w.Start, w.End)
}

// PlanWindows cuts n GPS samples into windows of at most batchSize samples,
// each starting shiftStep samples after the previous one. The last windows
// are truncated at n. shiftStep must not exceed batchSize, so every sample
// belongs to at least one window.
func PlanWindows(n, batchSize, shiftStep int) ([]Window, error) {
	if batchSize <= 0 || shiftStep <= 0 {
		return nil, fmt.Errorf("%w: batch %d, shift %d", ErrInvalidWindowing, batchSize, shiftStep)
	}
	if shiftStep > batchSize {
		return nil, fmt.Errorf("%w: shift %d exceeds batch %d", ErrInvalidWindowing, shiftStep, batchSize)
	}
	var out []Window
	for start := 0; start < n; start += shiftStep {
		out = append(out, Window{
			Index: len(out),
			Start: start,
			End:   min(start+batchSize, n),
		})
	}
	return out, nil
}
