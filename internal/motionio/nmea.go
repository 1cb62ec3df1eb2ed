package motionio

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/banshee-data/motionfit/internal/fsutil"
	"github.com/banshee-data/motionfit/internal/monitoring"
	"github.com/banshee-data/motionfit/internal/timeseries"
	"github.com/banshee-data/motionfit/internal/units"
)

// ReadNMEALocations reads speed references from an NMEA-0183 log. Only
// valid RMC sentences with both date and time are used; other sentences and
// lines that fail to parse are skipped.
func ReadNMEALocations(fsys fsutil.FileSystem, path string) ([]timeseries.TimedScalar, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var (
		out     []timeseries.TimedScalar
		skipped int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			skipped++
			continue
		}
		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC || !m.Date.Valid || !m.Time.Valid {
			skipped++
			continue
		}
		out = append(out, timeseries.TimedScalar{
			Value:    units.KnotsToMPS(m.Speed),
			TimeUsec: rmcTime(m).UnixMicro(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	if skipped > 0 {
		monitoring.Diagf("%s: skipped %d unusable NMEA sentences", path, skipped)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w: no valid RMC sentences", path, ErrEmptyList)
	}
	if err := timeseries.CheckSorted(out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// rmcTime combines the RMC date and time. Two-digit years are taken to be
// in the 2000s.
func rmcTime(m nmea.RMC) time.Time {
	return time.Date(2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
		m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond), time.UTC)
}
