package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/analytics"
	"github.com/andresuchdata/restock/backend-go/internal/app"
	"github.com/andresuchdata/restock/backend-go/internal/config"
	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/pipeline"
	"github.com/andresuchdata/restock/backend-go/internal/repository"
	"github.com/andresuchdata/restock/backend-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

type appKey struct{}

func eventsFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "events-file",
		Usage:   "Read usage from a CSV or XLSX export instead of the database",
		EnvVars: []string{"USAGE_EVENTS_FILE"},
	}
}

func ingredientFlag() *cli.Int64Flag {
	return &cli.Int64Flag{
		Name:     "ingredient",
		Aliases:  []string{"i"},
		Usage:    "Ingredient id",
		Required: true,
	}
}

// initApp wires the pipeline over the events file when one is given, and
// over Postgres otherwise.
func initApp(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(c.String("log-level"))

	if path := c.String("events-file"); path != "" {
		src, err := repository.OpenUsageFile(path)
		if err != nil {
			return err
		}
		if n := src.Unrouted(); n > 0 {
			logger.Log.Warn().Int("rows", n).Str("file", path).Msg("ignored rows without a valid ingredient_id")
		}
		c.Context = context.WithValue(c.Context, appKey{}, app.NewOffline(cfg, src))
		return nil
	}

	application, err := app.New(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	c.Context = context.WithValue(c.Context, appKey{}, application)
	return nil
}

func closeApp(c *cli.Context) error {
	if application, ok := c.Context.Value(appKey{}).(*app.App); ok && application != nil {
		application.Close()
	}
	return nil
}

func fromContext(c *cli.Context) *app.App {
	return c.Context.Value(appKey{}).(*app.App)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cliApp := &cli.App{
		Name:  "restock",
		Usage: "Forecast ingredient usage and advise on restocking",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "Analyze one ingredient and print the result as JSON",
				Flags: []cli.Flag{
					ingredientFlag(),
					&cli.Float64Flag{
						Name:  "stock",
						Usage: "Current stock on hand; derived from the inventory when omitted",
					},
					&cli.IntFlag{
						Name:    "horizon",
						Usage:   "Forecast horizon in days",
						EnvVars: []string{"FORECAST_HORIZON_DAYS"},
					},
					eventsFileFlag(),
				},
				Before: initApp,
				After:  closeApp,
				Action: runAnalyze,
			},
			{
				Name:   "stats",
				Usage:  "Print descriptive usage statistics of one ingredient",
				Flags:  []cli.Flag{ingredientFlag(), eventsFileFlag()},
				Before: initApp,
				After:  closeApp,
				Action: runStats,
			},
			{
				Name:  "report",
				Usage: "Build the inventory-wide restock report",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "archive",
						Usage: "Store the report in object storage",
					},
				},
				Before: initApp,
				After:  closeApp,
				Action: runReport,
			},
			{
				Name:  "archives",
				Usage: "Inspect archived reports",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List the reports archived on a date",
						Flags: []cli.Flag{
							&cli.TimestampFlag{
								Name:   "date",
								Layout: domain.DateLayout,
								Usage:  "Archive date (YYYY-MM-DD), defaults to today",
							},
						},
						Before: initApp,
						After:  closeApp,
						Action: runListArchives,
					},
					{
						Name:  "get",
						Usage: "Download one archived report to a local file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "key",
								Usage:    "Archive key as printed by 'archives list'",
								Required: true,
							},
							&cli.PathFlag{
								Name:     "out",
								Aliases:  []string{"o"},
								Usage:    "Destination file",
								Required: true,
							},
						},
						Before: initApp,
						After:  closeApp,
						Action: runGetArchive,
					},
				},
			},
			{
				Name:  "ingest",
				Usage: "Append a CSV or XLSX usage export to the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Usage export to load",
						Required: true,
					},
				},
				Before: initApp,
				After:  closeApp,
				Action: runIngest,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("restock command failed")
	}
}

func runAnalyze(c *cli.Context) error {
	if c.IsSet("horizon") && !pipeline.ValidHorizon(c.Int("horizon")) {
		return fmt.Errorf("--horizon must be between 1 and %d days", pipeline.MaxHorizonDays)
	}

	var stock *float64
	if c.IsSet("stock") {
		v := c.Float64("stock")
		stock = &v
	}

	analysis, err := fromContext(c).Restock.Analyze(c.Context, c.Int64("ingredient"), stock, c.Int("horizon"))
	if err != nil {
		return err
	}
	return printJSON(c, analysis)
}

func runStats(c *cli.Context) error {
	stats, err := fromContext(c).Restock.Stats(c.Context, c.Int64("ingredient"))
	if err != nil {
		return err
	}
	return printJSON(c, stats)
}

func runReport(c *cli.Context) error {
	application := fromContext(c)
	report, summary, err := application.Report.Build(c.Context)
	if err != nil {
		return err
	}

	if c.Bool("archive") {
		key, err := application.Report.Archive(c.Context, report)
		if err != nil {
			return err
		}
		logger.Log.Info().Str("key", key).Msg("report archived")
	}

	logger.Log.Info().
		Int("completed", summary.Completed).
		Int("no_data", summary.NoData).
		Int("failed", summary.Failed).
		Int("fallbacks", summary.Fallbacks).
		Dur("duration", summary.Duration).
		Msg("report summary")
	return printJSON(c, report)
}

func runListArchives(c *cli.Context) error {
	date := time.Now().UTC()
	if ts := c.Timestamp("date"); ts != nil {
		date = *ts
	}

	objects, err := fromContext(c).Report.ListArchives(c.Context, date)
	if err != nil {
		return err
	}
	return printJSON(c, objects)
}

func runGetArchive(c *cli.Context) error {
	key, dest := c.String("key"), c.Path("out")
	if err := fromContext(c).Report.DownloadArchive(c.Context, key, dest); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, dest)
	return nil
}

func runIngest(c *cli.Context) error {
	application := fromContext(c)
	src, err := repository.OpenUsageFile(c.String("file"))
	if err != nil {
		return err
	}

	records, malformed := analytics.ValidRecords(src.All())
	for _, bad := range malformed {
		logger.Log.Warn().Err(bad).Msg("skipping malformed usage row")
	}

	inserted, err := application.Writer.InsertUsage(c.Context, records)
	if err != nil {
		return err
	}
	application.InvalidateCaches(c.Context)

	logger.Log.Info().
		Int("inserted", inserted).
		Int("skipped", len(malformed)).
		Int("unrouted", src.Unrouted()).
		Str("file", c.String("file")).
		Msg("usage ingested")
	return nil
}
