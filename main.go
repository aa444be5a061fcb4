package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/firefart/dmarcimport/internal/config"
	"github.com/firefart/dmarcimport/internal/database"
	"github.com/firefart/dmarcimport/internal/dmarc"
	"github.com/firefart/dmarcimport/internal/importer"
	"github.com/firefart/dmarcimport/internal/storage"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	log = logrus.New()
)

func usage() string {
	return "please supply a command: import [dir], import-file <path>, cleanup or stats"
}

func main() {
	debug := flag.Bool("debug", false, "Print debug output")
	configFile := flag.String("config", "", "Config File to use")
	dryRun := flag.Bool("dry-run", false, "only list the files an import would pick up")
	maxAgeDays := flag.Int("max-age-days", 0, "retention age for cleanup, 0 uses the configured value")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	// optional .env for database credentials
	_ = godotenv.Load()

	if *configFile == "" {
		log.Error("please supply a config file")
		os.Exit(1)
	}

	// set some defaults
	defaults := config.Configuration{
		ReportsDirectory: "dmarc_reports",
		MaxFileSize:      10 * 1024 * 1024,
		RetentionDays:    importer.DefaultMaxAgeDays,
		Database: config.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "dmarc",
			SSLMode:  "disable",
			MaxConns: 5,
			MaxIdle:  2,
		},
	}

	settings, err := config.GetConfig(defaults, *configFile)
	if err != nil {
		log.Errorf("could not read %s: %v", *configFile, err)
		os.Exit(1)
	}

	// trap Ctrl+C and cancel the context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, settings, flag.Args(), *dryRun, *maxAgeDays); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, settings *config.Configuration, args []string, dryRun bool, maxAgeDays int) error {
	if len(args) == 0 {
		return errors.New(usage())
	}
	command := args[0]

	if command == "import" && dryRun {
		dir := settings.ReportsDirectory
		if len(args) > 1 {
			dir = args[1]
		}
		return dryRunImport(dir)
	}

	db, err := database.New(ctx, &settings.Database)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	imp := importer.New(database.NewReportsRepository(db), settings, log)

	switch command {
	case "import":
		dir := settings.ReportsDirectory
		if len(args) > 1 {
			dir = args[1]
		}
		summary, err := imp.ImportDirectory(ctx, dir)
		if err != nil {
			return err
		}
		printSummary(summary)
		return printStatistics(ctx, imp)
	case "import-file":
		if len(args) < 2 {
			return errors.New("import-file needs a path")
		}
		return imp.ImportSingleFile(ctx, args[1])
	case "cleanup":
		result := imp.CleanupStorage(maxAgeDays)
		log.Infof("deleted %d files (%d bytes)", result.DeletedFiles, result.DeletedBytes)
		for _, msg := range result.Errors {
			log.Errorf("cleanup error: %s", msg)
		}
		return nil
	case "stats":
		return printStatistics(ctx, imp)
	default:
		return fmt.Errorf("unknown command %q: %s", command, usage())
	}
}

// dryRunImport only lists the candidate files, nothing is parsed or written.
func dryRunImport(dir string) error {
	store := storage.New(dir)
	if !store.Exists() {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	files, err := store.ListXML()
	if err != nil {
		return err
	}
	log.Infof("found %d candidate files in %s", len(files), dir)
	for _, file := range files {
		log.Infof("  %s (%d bytes, modified %s)", file.Name, file.Size, file.ModTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printSummary(summary *importer.Summary) {
	log.Infof("processed: %d, skipped: %d, errors: %d", summary.Processed, summary.Skipped, summary.Errors)
	for _, detail := range summary.ErrorDetails {
		log.Errorf("  %s: %s", detail.File, detail.Message)
	}
}

func printStatistics(ctx context.Context, imp *importer.Importer) error {
	stats, err := imp.GetImportStatistics(ctx)
	if err != nil {
		return fmt.Errorf("could not read statistics: %w", err)
	}
	printStats(stats)
	return nil
}

func printStats(stats *dmarc.Statistics) {
	log.Infof("total reports: %d", stats.TotalReports)
	log.Infof("total records: %d", stats.TotalRecords)
	log.Infof("total emails: %d", stats.TotalEmails)
	log.Infof("auth success: %d", stats.AuthSuccessCount)
	log.Infof("auth failure: %d", stats.AuthFailureCount)
	for policy, count := range stats.PolicyBreakdown {
		log.Infof("policy %s: %d reports", policy, count)
	}
}
