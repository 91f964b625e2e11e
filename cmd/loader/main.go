// Package main is the batch loader CLI: it applies one JSON load plan to the roster
// database and prints the load report.
//
// Usage:
//
//	loader -plan export.json [-skip-refresh] [-strict] [-kpis]
//	loader -plan - < export.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/correlator-io/roster/internal/aliasing"
	"github.com/correlator-io/roster/internal/config"
	"github.com/correlator-io/roster/internal/events"
	"github.com/correlator-io/roster/internal/records"
	"github.com/correlator-io/roster/internal/search"
	"github.com/correlator-io/roster/internal/storage"
)

const name = "roster-loader"

// Set at build time via -ldflags "-X main.Version=...".
var Version = "1.0.0-dev"

var errNoPlan = errors.New("no load plan given, use -plan <file> or -plan - for stdin")

type (
	options struct {
		planPath    string
		skipRefresh bool
		strict      bool
		printKPIs   bool
	}

	kpiQuerier interface {
		QueryKPIs(ctx context.Context) (*search.KPISummary, error)
	}

	// output is what the loader prints on stdout.
	output struct {
		Report *records.LoadReport `json:"report"`
		KPIs   *search.KPISummary  `json:"kpis,omitempty"`
	}
)

func main() {
	opts := options{}

	flag.StringVar(&opts.planPath, "plan", "", "path to the JSON load plan, or - for stdin")
	flag.BoolVar(&opts.skipRefresh, "skip-refresh", false, "do not refresh the search views after commit")
	flag.BoolVar(&opts.strict, "strict", false, "fail the run on the first invalid record")
	flag.BoolVar(&opts.printKPIs, "kpis", false, "print the KPI summary after the load")
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", name, Version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runLoader(ctx, opts, logger); err != nil {
		logger.Error("Load failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func runLoader(ctx context.Context, opts options, logger *slog.Logger) error {
	in, closeInput, err := openPlan(opts.planPath)
	if err != nil {
		return err
	}
	defer closeInput()

	storageConfig := storage.LoadConfig()
	storageConfig.SkipViewRefresh = storageConfig.SkipViewRefresh || opts.skipRefresh
	storageConfig.StrictValidation = storageConfig.StrictValidation || opts.strict

	conn, err := storage.NewConnection(storageConfig)
	if err != nil {
		return err
	}

	defer func() { _ = conn.Close() }()

	aliasConfig, err := aliasing.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	publisher := events.NewPublisher(events.LoadConfig(), logger)
	defer func() { _ = publisher.Close() }()

	store, err := storage.NewLoadStore(conn,
		storage.WithConfig(storageConfig),
		storage.WithLogger(logger),
		storage.WithAliasResolver(aliasing.NewResolver(aliasConfig)),
		storage.WithNotifier(publisher),
	)
	if err != nil {
		return err
	}

	var kpis kpiQuerier
	if opts.printKPIs {
		kpis = store
	}

	return execute(ctx, store, kpis, in, os.Stdout)
}

// openPlan opens path, or stdin for "-".
func openPlan(path string) (io.Reader, func(), error) {
	switch path {
	case "":
		return nil, nil, errNoPlan
	case "-":
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path) //nolint: gosec // operator-supplied path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open load plan: %w", err)
	}

	return f, func() { _ = f.Close() }, nil
}

// execute decodes the plan, runs it and writes the report (and optionally the KPIs) as JSON to out.
// A nil kpis skips the KPI query.
func execute(ctx context.Context, loader records.Loader, kpis kpiQuerier, in io.Reader, out io.Writer) error {
	plan, err := records.DecodePlan(in)
	if err != nil {
		return err
	}

	report, err := loader.Run(ctx, plan)
	if err != nil {
		return err
	}

	result := output{Report: report}

	if kpis != nil {
		summary, err := kpis.QueryKPIs(ctx)
		if err != nil {
			return fmt.Errorf("load committed but KPI query failed: %w", err)
		}

		result.KPIs = summary
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}
