package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/motionfit/internal/config"
	"github.com/banshee-data/motionfit/internal/db"
	"github.com/banshee-data/motionfit/internal/monitoring"
	"github.com/banshee-data/motionfit/internal/units"
	"github.com/banshee-data/motionfit/internal/version"
)

// errUsage is returned after usage has already been printed.
var errUsage = errors.New("invalid usage")

// fitFlags holds the parsed command line of a fit run.
type fitFlags struct {
	rotations     string
	accelerations string
	locations     string
	nmea          string
	velocitiesOut string
	steeringOut   string

	configPath string
	overrides  *config.FitConfig

	dbPath     string
	plotDir    string
	reportHTML string
	title      string
	units      string

	trace   bool
	quiet   bool
	version bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		log.Fatalf("fit-motion: %v", err)
	}
}

// run dispatches subcommands. Anything that is not a known subcommand is
// parsed as the flags of a fit.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			return runMigrate(args[1:], out)
		case "runs":
			return runRuns(ctx, args[1:], out)
		case "version":
			fmt.Fprintln(out, version.String())
			return nil
		case "help":
			args = []string{"-h"}
		}
	}

	ff, err := parseFitFlags(args, out)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if ff.version {
		fmt.Fprintln(out, version.String())
		return nil
	}
	return runFit(ctx, ff, out)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// parseFitFlags parses the fit flags. Tuning flags only override the config
// file when given explicitly.
func parseFitFlags(args []string, out io.Writer) (*fitFlags, error) {
	ff := &fitFlags{}
	fs := newFlagSet("fit-motion", out)
	fs.Usage = func() {
		printUsage(out)
		fs.PrintDefaults()
	}

	fs.StringVar(&ff.rotations, "rotations", "", "rotations JSON file (rad/s)")
	fs.StringVar(&ff.accelerations, "accelerations", "", "accelerations JSON file (m/s^2)")
	fs.StringVar(&ff.locations, "locations", "", "locations JSON file with GPS speeds")
	fs.StringVar(&ff.nmea, "nmea", "", "NMEA-0183 log to read GPS speeds from instead of --locations")
	fs.StringVar(&ff.velocitiesOut, "velocities-out", "", "output JSON file for fitted speeds")
	fs.StringVar(&ff.steeringOut, "steering-out", "", "output JSON file for steering rates")

	fs.StringVar(&ff.configPath, "config", "", "fit configuration JSON (defaults built in)")
	fs.StringVar(&ff.dbPath, "db", "", "record the run in this SQLite database")
	fs.StringVar(&ff.plotDir, "plot-dir", "", "write PNG plots into this directory")
	fs.StringVar(&ff.reportHTML, "report-html", "", "write an HTML report to this file")
	fs.StringVar(&ff.title, "title", "fit-motion report", "title of the HTML report")
	fs.StringVar(&ff.units, "units", units.MPS, "speed units for reports: "+units.GetValidUnitsString())

	fs.BoolVar(&ff.trace, "trace", false, "log every objective evaluation")
	fs.BoolVar(&ff.quiet, "quiet", false, "suppress ops and diag logging")
	fs.BoolVar(&ff.version, "version", false, "print version and exit")

	batch := fs.Int("locations-batch-size", 0, "GPS fixes per window")
	shift := fs.Int("locations-shift-step", 0, "GPS fixes between window starts")
	minLocs := fs.Int("min-window-locations", 0, "skip windows with fewer GPS fixes")
	iters := fs.Int("optimization-iters", 0, "optimizer iteration cap per window")
	gradTol := fs.Float64("gradient-tolerance", 0, "optimizer gradient norm tolerance")
	memory := fs.Int("lbfgs-memory", 0, "L-BFGS history length")
	weighting := fs.String("window-weighting", "", "window weighting: uniform or inverse_cost")
	sigma := fs.Float64("post-smoothing-sigma-sec", 0, "Gaussian smoothing width in seconds")
	pcaMax := fs.Int("pca-max-samples", 0, "rotation samples used for the principal axis")
	workers := fs.Int("workers", 0, "windows fitted concurrently")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, errUsage
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	ov := config.EmptyFitConfig()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "locations-batch-size":
			ov.LocationsBatchSize = batch
		case "locations-shift-step":
			ov.LocationsShiftStep = shift
		case "min-window-locations":
			ov.MinWindowLocations = minLocs
		case "optimization-iters":
			ov.OptimizationIters = iters
		case "gradient-tolerance":
			ov.GradientTolerance = gradTol
		case "lbfgs-memory":
			ov.LBFGSMemory = memory
		case "window-weighting":
			ov.WindowWeighting = weighting
		case "post-smoothing-sigma-sec":
			ov.PostSmoothingSigmaSec = sigma
		case "pca-max-samples":
			ov.PCAMaxSamples = pcaMax
		case "workers":
			ov.Workers = workers
		}
	})
	ff.overrides = ov
	return ff, nil
}

// validate checks the flags that do not belong to the fit configuration.
func (ff *fitFlags) validate() error {
	switch {
	case ff.rotations == "":
		return errors.New("--rotations is required")
	case ff.accelerations == "":
		return errors.New("--accelerations is required")
	case ff.locations == "" && ff.nmea == "":
		return errors.New("one of --locations or --nmea is required")
	case ff.locations != "" && ff.nmea != "":
		return errors.New("--locations and --nmea are mutually exclusive")
	case ff.velocitiesOut == "":
		return errors.New("--velocities-out is required")
	case ff.steeringOut == "":
		return errors.New("--steering-out is required")
	}
	if _, err := units.Parse(ff.units); err != nil {
		return err
	}
	return nil
}

// loadConfig returns the effective configuration: defaults, then the
// config file, then explicit flags.
func (ff *fitFlags) loadConfig() (*config.FitConfig, error) {
	cfg := config.DefaultFitConfig()
	if ff.configPath != "" {
		fileCfg, err := config.LoadFitConfig(ff.configPath)
		if err != nil {
			return nil, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	cfg = cfg.Merge(ff.overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// configureLogging applies --quiet and --trace to the monitoring streams.
func (ff *fitFlags) configureLogging() {
	var ops, diag, trace io.Writer = os.Stderr, os.Stderr, nil
	if ff.quiet {
		ops, diag = nil, nil
		monitoring.SetLogger(nil)
	}
	if ff.trace {
		trace = os.Stderr
	}
	monitoring.SetLogWriters(ops, diag, trace)
}

func runMigrate(args []string, out io.Writer) error {
	fs := newFlagSet("fit-motion migrate", out)
	dbPath := fs.String("db", "", "path to the SQLite run database")
	fs.Usage = func() { db.PrintMigrateHelp(out) }
	positional, err := parseInterspersed(fs, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return errUsage
	}
	if *dbPath == "" {
		db.PrintMigrateHelp(out)
		return errors.New("--db is required")
	}
	return db.RunMigrateCommand(positional, *dbPath, out)
}

// parseInterspersed parses flags that may appear before or after the
// positional arguments, returning the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `fit-motion - offline IMU calibration against GPS speed

Usage:
  fit-motion --rotations r.json --accelerations a.json --locations l.json \
             --velocities-out v.json --steering-out s.json [options]
  fit-motion migrate <up|status|help> --db runs.db
  fit-motion runs --db runs.db [--limit n] [--run id]
  fit-motion version

Options:`)
}
