package db

import (
	"fmt"
	"io"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}

	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	// Open without running migrations; the actions manage the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch action {
	case "up":
		return handleMigrateUp(database, out)
	case "status":
		return handleMigrateStatus(database, out)
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

// handleMigrateUp applies all pending migrations
func handleMigrateUp(database *DB, out io.Writer) error {
	if err := database.MigrateUp(); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "All migrations applied. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// handleMigrateStatus displays the current migration status
func handleMigrateStatus(database *DB, out io.Writer) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Latest version: %d\n", latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)

	switch {
	case dirty:
		fmt.Fprintln(out, "WARNING: a migration failed mid-execution; inspect the database before retrying.")
	case version < latest:
		fmt.Fprintf(out, "Outstanding migrations: %d (run 'fit-motion migrate up')\n", latest-version)
	default:
		fmt.Fprintln(out, "Schema is up to date.")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, `Usage: fit-motion migrate <action> --db <path>

Actions:
  up       Apply all pending migrations
  status   Show current and latest schema version
  help     Show this help`)
}
