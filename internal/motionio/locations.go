package motionio

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/banshee-data/motionfit/internal/fsutil"
	"github.com/banshee-data/motionfit/internal/timeseries"
)

type locationRecord struct {
	SpeedMPS  *float64 `json:"speed_m_s,omitempty"`
	TimeUsec  int64    `json:"time_usec"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (r locationRecord) point() (orb.Point, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return orb.Point{}, false
	}
	return orb.Point{*r.Longitude, *r.Latitude}, true
}

// ReadLocations reads GPS speed references stored under "locations".
//
// A fix without speed_m_s but with coordinates gets the great-circle
// distance to the previous fix divided by the elapsed time; the first fix
// uses the following one instead.
func ReadLocations(fsys fsutil.FileSystem, path string) ([]timeseries.TimedScalar, error) {
	var records []locationRecord
	if err := readList(fsys, path, KeyLocations, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w %q", path, ErrEmptyList, KeyLocations)
	}

	out := make([]timeseries.TimedScalar, len(records))
	for i, r := range records {
		out[i].TimeUsec = r.TimeUsec
		if r.SpeedMPS != nil {
			out[i].Value = *r.SpeedMPS
			continue
		}
		speed, err := derivedSpeed(records, i)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out[i].Value = speed
	}
	if err := timeseries.CheckSorted(out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func derivedSpeed(records []locationRecord, i int) (float64, error) {
	j := i - 1
	if j < 0 {
		j = i + 1
	}
	if j >= len(records) {
		return 0, fmt.Errorf("location %d: no speed_m_s and no neighbouring fix", i)
	}
	a, okA := records[i].point()
	b, okB := records[j].point()
	if !okA || !okB {
		return 0, fmt.Errorf("location %d: no speed_m_s and missing coordinates", i)
	}
	dt := float64(records[i].TimeUsec-records[j].TimeUsec) * 1e-6
	if dt < 0 {
		dt = -dt
	}
	if dt == 0 {
		return 0, fmt.Errorf("location %d: no speed_m_s and duplicate timestamp %d", i, records[i].TimeUsec)
	}
	return geo.Distance(a, b) / dt, nil
}
