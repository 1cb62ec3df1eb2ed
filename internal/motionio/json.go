package motionio

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motionfit/internal/fsutil"
	"github.com/banshee-data/motionfit/internal/timeseries"
)

// Top-level keys of the recorder JSON files.
const (
	KeyRotations     = "rotations"
	KeyAccelerations = "accelerations"
	KeyLocations     = "locations"
	KeySteering      = "steering"
	KeyVelocities    = "velocities"
)

// ErrEmptyList is returned when an input file holds no samples.
var ErrEmptyList = errors.New("motionio: empty sample list")

type vec3Record struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	TimeUsec int64   `json:"time_usec"`
}

type steeringRecord struct {
	TimeUsec        int64   `json:"time_usec"`
	AngularVelocity float64 `json:"angular_velocity"`
}

type velocityRecord struct {
	TimeUsec int64   `json:"time_usec"`
	SpeedMPS float64 `json:"speed_m_s"`
}

// ReadRotations reads gyroscope samples (rad/s) stored under "rotations".
func ReadRotations(fsys fsutil.FileSystem, path string) ([]timeseries.TimedVec3, error) {
	return readVec3(fsys, path, KeyRotations)
}

// ReadAccelerations reads raw accelerometer samples (m/s²) stored under
// "accelerations".
func ReadAccelerations(fsys fsutil.FileSystem, path string) ([]timeseries.TimedVec3, error) {
	return readVec3(fsys, path, KeyAccelerations)
}

func readVec3(fsys fsutil.FileSystem, path, key string) ([]timeseries.TimedVec3, error) {
	var records []vec3Record
	if err := readList(fsys, path, key, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w %q", path, ErrEmptyList, key)
	}
	out := make([]timeseries.TimedVec3, len(records))
	for i, r := range records {
		out[i] = timeseries.TimedVec3{Value: r3.Vec{X: r.X, Y: r.Y, Z: r.Z}, TimeUsec: r.TimeUsec}
	}
	if err := timeseries.CheckSorted(out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// readList decodes the array stored under key into dst.
func readList(fsys fsutil.FileSystem, path, key string, dst any) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	raw, ok := root[key]
	if !ok {
		return fmt.Errorf("%s: missing %q list", path, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to parse %q in %s: %w", key, path, err)
	}
	return nil
}

// WriteSteering writes horizontal turn rates under "steering".
func WriteSteering(fsys fsutil.FileSystem, path string, steering []timeseries.TimedScalar) error {
	records := make([]steeringRecord, len(steering))
	for i, s := range steering {
		records[i] = steeringRecord{TimeUsec: s.TimeUsec, AngularVelocity: s.Value}
	}
	return writeList(fsys, path, KeySteering, records)
}

// WriteVelocities writes speed magnitudes (m/s) under "velocities".
func WriteVelocities(fsys fsutil.FileSystem, path string, velocities []timeseries.TimedScalar) error {
	records := make([]velocityRecord, len(velocities))
	for i, v := range velocities {
		records[i] = velocityRecord{TimeUsec: v.TimeUsec, SpeedMPS: v.Value}
	}
	return writeList(fsys, path, KeyVelocities, records)
}

func writeList(fsys fsutil.FileSystem, path, key string, records any) error {
	data, err := json.MarshalIndent(map[string]any{key: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	data = append(data, '\n')
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
