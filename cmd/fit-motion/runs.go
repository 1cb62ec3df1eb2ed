package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/motionfit/internal/db"
)

// runRuns lists recorded runs, or shows the windows of one run.
func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("fit-motion runs", out)
	dbPath := fs.String("db", "", "path to the SQLite run database")
	limit := fs.Int("limit", 20, "maximum number of runs to list (0 for all)")
	runID := fs.String("run", "", "show the windows of this run")
	deleteID := fs.String("delete", "", "delete this run")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if *dbPath == "" {
		return errors.New("--db is required")
	}

	database, err := db.OpenMigrated(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch {
	case *deleteID != "":
		if err := database.DeleteRun(ctx, *deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted run %s\n", *deleteID)
		return nil
	case *runID != "":
		return printRun(ctx, database, *runID, out)
	}

	runs, err := database.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tLOCATIONS\tWINDOWS\tFITTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond),
			r.LocationsCount, r.WindowsCount, r.FittedWindows)
	}
	return tw.Flush()
}

func printRun(ctx context.Context, database *db.DB, runID string, out io.Writer) error {
	r, err := database.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	windows, err := database.RunWindows(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s (%s)\n", r.ID, r.Version)
	fmt.Fprintf(out, "started %s, took %s\n", r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "inputs: %s (%d), %s (%d), %s (%d)\n",
		r.RotationsPath, r.RotationsCount, r.AccelerationsPath, r.AccelerationsCount,
		r.LocationsPath, r.LocationsCount)
	fmt.Fprintf(out, "config: %s\n", r.ConfigJSON)
	fmt.Fprintf(out, "summary: %s\n\n", r.SummaryJSON)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tLOCATIONS\tEVENTS\tITERS\tOBJECTIVE\tCONVERGED\tSTATUS")
	for _, w := range windows {
		objective := fmt.Sprintf("%.4g", w.Objective)
		if w.Skipped {
			objective = "-"
		}
		fmt.Fprintf(tw, "%d [%d,%d)\t%d\t%d\t%d\t%s\t%v\t%s\n",
			w.Index, w.StartLocation, w.EndLocation, w.Locations, w.Events,
			w.Iterations, objective, w.Converged, w.Status)
	}
	return tw.Flush()
}
