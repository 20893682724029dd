package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/audit"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/config"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/executor"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/generator"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/ollama"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/report"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/retry"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/rewriter"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/schema"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/validator"
)

// pipeline bundles the components every query command needs.
type pipeline struct {
	cfg        config.Config
	schema     *schema.Service
	generator  *generator.OllamaGenerator
	controller *retry.Controller
}

func buildPipeline(logOutput io.Writer) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("no database configured; set database.path or DQC_DATABASE_PATH")
	}
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("database %s: %w", cfg.Database.Path, err)
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel(cfg)}))

	p := cfg.QueryPolicy()
	svc := schema.NewService(cfg.Database.Path, 0, schema.LoadOptions{})
	gen := generator.NewOllama(ollama.New(cfg.Ollama.BaseURL), cfg.Ollama.Model, svc, p)
	exec := executor.New(cfg.Database.Path, cfg.Executor.TimeoutMs, cfg.Executor.MaxRows)
	ctrl := retry.New(gen, exec, p, cfg.Retry.MaxAttempts, cfg.Retry.StopOnRepeatSQL, logger)

	return &pipeline{cfg: cfg, schema: svc, generator: gen, controller: ctrl}, nil
}

func logLevel(cfg config.Config) slog.Level {
	if strings.EqualFold(cfg.Log.Level, "debug") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with generated, vetted SQL",
	Long: `Answer a natural-language question against the configured database.

Examples:
  dqc ask "how many charging stations per state?"
  dqc ask --dry-run "top 10 cities by station count"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		printPrompt, _ := cmd.Flags().GetBool("print-prompt")

		pl, err := buildPipeline(os.Stderr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if dryRun {
			return runDry(ctx, pl, question, printPrompt)
		}

		res := pl.controller.Run(ctx, question)

		runID := uuid.New().String()
		if store, err := audit.Open(pl.cfg.Storage.DataDir); err == nil {
			version, _ := pl.schema.Version(ctx)
			if err := store.SaveRun(audit.FromResult(runID, question, version, res)); err != nil {
				printWarning("could not persist run: %v", err)
			}
			store.Close()
		} else {
			printWarning("could not open run history: %v", err)
		}

		if !res.OK {
			printError("no answer after %d attempts (%s)", len(res.Attempts), res.StopReason)
			for _, a := range res.Attempts {
				if a.Feedback != nil {
					printStatus(fmt.Sprintf("attempt %d", a.Number), "%s: %s", a.Feedback.Category, a.Feedback.Message)
				}
			}
			return fmt.Errorf("run %s failed", runID)
		}

		printSuccess("answered in %d attempt(s), run %s", len(res.Attempts), runID)
		fmt.Println(colorize(colorCyan, res.FinalSQL))
		fmt.Println()
		fmt.Print(report.RenderTable(res.Execution, 50))
		return nil
	},
}

// runDry generates, validates, and rewrites once without touching the
// database.
func runDry(ctx context.Context, pl *pipeline, question string, printPrompt bool) error {
	gen, err := pl.generator.GenerateSQL(ctx, question, "")
	if err != nil {
		return fmt.Errorf("generating SQL: %w", err)
	}
	if printPrompt {
		fmt.Fprintln(os.Stderr, gen.Prompt)
	}

	p := pl.cfg.QueryPolicy()
	dec := validator.Validate(gen.SQL, p)
	if !dec.OK {
		printError("candidate rejected: %s", strings.Join(dec.Reasons, ", "))
		fmt.Println(gen.SQL)
		return fmt.Errorf("validation failed")
	}

	rw := rewriter.Rewrite(gen.SQL, p)
	if len(rw.AppliedTransforms) > 0 {
		printStep("applied: %s", strings.Join(rw.AppliedTransforms, ", "))
	}
	printSuccess("candidate passed validation (not executed)")
	fmt.Println(rw.SQL)
	return nil
}

func init() {
	askCmd.Flags().Bool("dry-run", false, "generate and vet SQL without executing it")
	askCmd.Flags().Bool("print-prompt", false, "print the generation prompt to stderr (with --dry-run)")
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		withStats, _ := cmd.Flags().GetBool("stats")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		opts := schema.LoadOptions{WithRowCounts: withStats, WithColumnStats: withStats}
		s, err := schema.Load(cmd.Context(), cfg.Database.Path, opts)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}

		printStatus("Version", "%s", s.Version)
		fmt.Println(schema.SerializeForPrompt(s, 0))
		return nil
	},
}

func init() {
	schemaCmd.Flags().Bool("stats", false, "include row counts and per-column stats")
	schemaCmd.Flags().Bool("json", false, "print the snapshot as JSON")
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run a batch of questions and write a markdown report",
	Long: `Run every question from a JSON file through the pipeline and write
report.md plus run_log.json to the output directory.

Example:
  dqc report --questions questions.json --out ./out --title "Fuel stations"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		questionsPath, _ := cmd.Flags().GetString("questions")
		outDir, _ := cmd.Flags().GetString("out")
		title, _ := cmd.Flags().GetString("title")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		if questionsPath == "" {
			return fmt.Errorf("--questions is required")
		}

		items, err := report.LoadItems(questionsPath)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("no questions in %s", questionsPath)
		}

		pl, err := buildPipeline(os.Stderr)
		if err != nil {
			return err
		}

		printStep("running %d questions...", len(items))
		runner := report.NewRunner(pl.controller, concurrency)
		results, err := runner.RunAll(cmd.Context(), items)
		if err != nil {
			return err
		}

		if err := report.WriteReport(outDir, title, results); err != nil {
			return err
		}

		s := report.Summarize(results)
		printSuccess("%d/%d questions answered; report written to %s", s.Succeeded, s.Total, outDir)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("questions", "", "path to a JSON file of questions")
	reportCmd.Flags().String("out", "./report", "output directory")
	reportCmd.Flags().String("title", "Query Report", "report title")
	reportCmd.Flags().Int("concurrency", 4, "questions run in parallel")
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := audit.Open(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs yet")
			return nil
		}

		for _, r := range runs {
			status := colorize(colorGreen, "ok")
			if !r.OK {
				status = colorize(colorRed, r.StopReason)
			}
			fmt.Printf("%s  %s  %-12s  %s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), status, r.Question)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := audit.Open(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum runs to list")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
