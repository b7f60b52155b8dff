package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/atlasgraph/atlas/internal/ai"
	"github.com/atlasgraph/atlas/internal/db"
	"github.com/atlasgraph/atlas/internal/util"
	"github.com/atlasgraph/atlas/pkg/common"
	"github.com/atlasgraph/atlas/pkg/graph"
	"github.com/atlasgraph/atlas/pkg/leaselock"
	"github.com/atlasgraph/atlas/pkg/logger"
	"github.com/atlasgraph/atlas/pkg/logger/console"
	"github.com/atlasgraph/atlas/pkg/ner"
	pgxstore "github.com/atlasgraph/atlas/pkg/store/pgx"
)

var (
	flagScope     string
	flagProject   int64
	flagDocument  int64
	flagDryRun    bool
	flagThreshold float64
	flagLanguages string
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rebuild the knowledge graph for a scope",
	Long: `Rebuild the knowledge graph from stored chunks.

The selected scope is cleared and re-extracted from scratch. A dry run
stages the rebuild in memory and prints the report without touching the
database.

Examples:
  migrate --scope all
  migrate --scope project --project 42
  migrate --scope document --project 42 --document 7 --dry-run
  migrate --scope project --project 42 --threshold 0.9`,
	RunE:          runMigrate,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&flagScope, "scope", "", "migration scope: all, project or document")
	rootCmd.Flags().Int64Var(&flagProject, "project", 0, "project id (required for project and document scope)")
	rootCmd.Flags().Int64Var(&flagDocument, "document", 0, "document id (required for document scope)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "stage the rebuild in memory and report without writing")
	rootCmd.Flags().Float64Var(&flagThreshold, "threshold", 0, "similarity threshold override in (0,1]")
	rootCmd.Flags().StringVar(&flagLanguages, "language", "", "comma-separated language codes served by the model (overrides NER_LANGUAGES)")
	rootCmd.MarkFlagRequired("scope")
}

func buildScope() (common.Scope, error) {
	switch flagScope {
	case "all":
		return common.Scope{Kind: common.ScopeAll}, nil
	case "project":
		if flagProject == 0 {
			return common.Scope{}, errors.New("--project is required for project scope")
		}
		return common.Scope{Kind: common.ScopeProject, ProjectID: flagProject}, nil
	case "document":
		if flagProject == 0 || flagDocument == 0 {
			return common.Scope{}, errors.New("--project and --document are required for document scope")
		}
		return common.Scope{Kind: common.ScopeDocument, ProjectID: flagProject, DocumentID: flagDocument}, nil
	default:
		return common.Scope{}, fmt.Errorf("unknown scope %q", flagScope)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	scope, err := buildScope()
	if err != nil {
		return err
	}
	if flagThreshold < 0 || flagThreshold > 1 {
		return errors.New("--threshold must be in (0,1]")
	}

	if flagLanguages != "" {
		os.Setenv("NER_LANGUAGES", flagLanguages)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.RunMigrations(databaseURL); err != nil {
		return fmt.Errorf("schema migrations: %w", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close()

	storage := pgxstore.NewGraphDBStorageWithConnection(conn)
	engine, err := graph.NewEngine(graph.NewEngineParams{
		Store:          storage,
		Extractor:      ner.NewExtractor(ai.BuildRegistry()),
		ParallelChunks: int(util.GetEnvNumeric("PARALLEL_CHUNKS", 4)),
		MaxRetries:     int(util.GetEnvNumeric("EXTRACT_MAX_RETRIES", 3)),
	})
	if err != nil {
		return err
	}

	mode := graph.ModeApply
	if flagDryRun {
		mode = graph.ModeDryRun
	}
	params := graph.MigrationParams{
		Scope:     scope,
		Mode:      mode,
		Threshold: flagThreshold,
	}

	var report *graph.Report
	run := func(ctx context.Context) error {
		var err error
		report, err = engine.Migrate(ctx, params)
		return err
	}

	if flagDryRun {
		// Dry runs stage into memory and never write, no lease needed.
		err = run(ctx)
	} else {
		lockClient := leaselock.New(conn)
		err = lockClient.WithLease(ctx, leaselock.ScopeKey(scope), leaselock.Options{
			TTL:         10 * time.Minute,
			TokenPrefix: "cli-",
		}, run)
	}
	if errors.Is(err, leaselock.ErrBusy) {
		return fmt.Errorf("another migration holds the lease for this scope: %w", err)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if report.ChunksSkipped > 0 {
		logger.Warn("Migration finished with skipped chunks", "skipped", report.ChunksSkipped)
	}
	return nil
}

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
