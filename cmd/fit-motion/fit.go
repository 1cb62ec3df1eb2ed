package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/motionfit/internal/calibration"
	"github.com/banshee-data/motionfit/internal/config"
	"github.com/banshee-data/motionfit/internal/db"
	"github.com/banshee-data/motionfit/internal/fsutil"
	"github.com/banshee-data/motionfit/internal/monitoring"
	"github.com/banshee-data/motionfit/internal/motionio"
	"github.com/banshee-data/motionfit/internal/pipeline"
	"github.com/banshee-data/motionfit/internal/report"
	"github.com/banshee-data/motionfit/internal/timeseries"
	"github.com/banshee-data/motionfit/internal/timeutil"
	"github.com/banshee-data/motionfit/internal/version"
)

func runFit(ctx context.Context, ff *fitFlags, out io.Writer) error {
	if err := ff.validate(); err != nil {
		return err
	}
	cfg, err := ff.loadConfig()
	if err != nil {
		return err
	}
	ff.configureLogging()
	return fitMotion(ctx, ff, cfg, fsutil.OSFileSystem{}, timeutil.RealClock{}, out)
}

// pipelineOptions maps the effective configuration onto pipeline options.
func pipelineOptions(cfg *config.FitConfig) (pipeline.Options, error) {
	weighting, err := pipeline.ParseWeighting(cfg.GetWindowWeighting())
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		BatchSize:          cfg.GetLocationsBatchSize(),
		ShiftStep:          cfg.GetLocationsShiftStep(),
		SmoothingSigma:     cfg.GetPostSmoothingSigmaSec(),
		MinWindowLocations: cfg.GetMinWindowLocations(),
		Weighting:          weighting,
		Workers:            cfg.GetWorkers(),
		Minimizer: calibration.NewLBFGS(calibration.LBFGSSettings{
			MaxIterations:     cfg.GetOptimizationIters(),
			GradientTolerance: cfg.GetGradientTolerance(),
			Memory:            cfg.GetLBFGSMemory(),
		}),
	}, nil
}

// readInputs loads the three streams and returns the path the locations
// came from.
func readInputs(fsys fsutil.FileSystem, ff *fitFlags) (pipeline.Inputs, string, error) {
	var in pipeline.Inputs
	var err error
	if in.Rotations, err = motionio.ReadRotations(fsys, ff.rotations); err != nil {
		return in, "", err
	}
	if in.Accelerations, err = motionio.ReadAccelerations(fsys, ff.accelerations); err != nil {
		return in, "", err
	}
	if ff.nmea != "" {
		in.Locations, err = motionio.ReadNMEALocations(fsys, ff.nmea)
		return in, ff.nmea, err
	}
	in.Locations, err = motionio.ReadLocations(fsys, ff.locations)
	return in, ff.locations, err
}

// fitMotion runs one calibration end to end. Outputs are written only after
// every computation has succeeded.
func fitMotion(ctx context.Context, ff *fitFlags, cfg *config.FitConfig, fsys fsutil.FileSystem, clock timeutil.Clock, out io.Writer) error {
	started := clock.Now()

	opts, err := pipelineOptions(cfg)
	if err != nil {
		return err
	}
	in, locationsPath, err := readInputs(fsys, ff)
	if err != nil {
		return err
	}
	monitoring.Diagf("read %d rotations, %d accelerations, %d locations",
		len(in.Rotations), len(in.Accelerations), len(in.Locations))

	steering, err := pipeline.Steering(in.Rotations, cfg.GetPCAMaxSamples())
	if err != nil {
		return fmt.Errorf("steering: %w", err)
	}
	res, err := pipeline.Run(ctx, in, opts)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	summary, err := report.Summarize(res.Velocities, steering, res.Windows, ff.units)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	if err := motionio.WriteSteering(fsys, ff.steeringOut, steering); err != nil {
		return err
	}
	if err := motionio.WriteVelocities(fsys, ff.velocitiesOut, res.Velocities); err != nil {
		return err
	}
	monitoring.Logf("%s", summary)

	if ff.plotDir != "" {
		paths, err := report.WritePlots(fsys, ff.plotDir, res.Velocities, steering, ff.units)
		if err != nil {
			return err
		}
		monitoring.Diagf("wrote plots %v", paths)
	}
	if ff.reportHTML != "" {
		err := report.WriteHTML(fsys, ff.reportHTML, report.Input{
			Title:      ff.title,
			Velocities: res.Velocities,
			Steering:   steering,
			Windows:    res.Windows,
			Summary:    summary,
		})
		if err != nil {
			return err
		}
	}

	elapsed := clock.Since(started)
	finished := started.Add(elapsed)
	if ff.dbPath != "" {
		rec, err := newRunRecord(ff, cfg, in, locationsPath, res, steering, summary, started, finished)
		if err != nil {
			return err
		}
		runID, err := recordRun(ctx, ff.dbPath, rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "recorded run %s\n", runID)
	}

	fmt.Fprintf(out, "fitted %d of %d windows in %s: %d velocities, %d steering samples\n",
		res.Fitted(), len(res.Windows), elapsed.Round(time.Millisecond),
		len(res.Velocities), len(steering))
	return nil
}

func newRunRecord(ff *fitFlags, cfg *config.FitConfig, in pipeline.Inputs, locationsPath string,
	res *pipeline.Result, steering []timeseries.TimedScalar, summary report.Summary,
	started, finished time.Time) (*db.RunRecord, error) {
	configJSON, err := cfg.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	summaryJSON, err := summary.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	return &db.RunRecord{
		Run: db.Run{
			Version:            version.String(),
			StartedAt:          started,
			FinishedAt:         finished,
			ConfigJSON:         configJSON,
			RotationsPath:      ff.rotations,
			AccelerationsPath:  ff.accelerations,
			LocationsPath:      locationsPath,
			RotationsCount:     len(in.Rotations),
			AccelerationsCount: len(in.Accelerations),
			LocationsCount:     len(in.Locations),
			WindowsCount:       len(res.Windows),
			FittedWindows:      res.Fitted(),
			SummaryJSON:        summaryJSON,
		},
		Windows:    windowRecords(res.Windows),
		Velocities: res.Velocities,
		Steering:   steering,
	}, nil
}

func windowRecords(reports []pipeline.WindowReport) []db.WindowRecord {
	recs := make([]db.WindowRecord, 0, len(reports))
	for _, w := range reports {
		rec := db.WindowRecord{
			Index:         w.Window.Index,
			StartLocation: w.Window.Start,
			EndLocation:   w.Window.End,
			Locations:     w.Locations,
			Events:        w.Events,
			Iterations:    w.Iterations,
			Objective:     w.Objective,
			Converged:     w.Converged,
			Skipped:       w.Skipped,
			Status:        w.Status,
		}
		if w.Skipped {
			rec.Status = w.SkipReason
		} else {
			rec.Params = w.Params.Vector()
		}
		recs = append(recs, rec)
	}
	return recs
}

func recordRun(ctx context.Context, path string, rec *db.RunRecord) (string, error) {
	database, err := db.OpenMigrated(path)
	if err != nil {
		return "", err
	}
	defer database.Close()
	return database.RecordRun(ctx, rec)
}
