// Package report runs a batch of questions through the query pipeline and
// renders the outcome as a markdown report plus a machine-readable run log.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/retry"
)

// Item is one question in a batch.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Question string `json:"question"`
}

// ItemResult pairs an Item with its pipeline outcome.
type ItemResult struct {
	Item   Item         `json:"item"`
	Result retry.Result `json:"result"`
}

// QueryRunner is the pipeline dependency of the batch runner.
type QueryRunner interface {
	Run(ctx context.Context, question string) retry.Result
}

// Runner executes batches with bounded concurrency, preserving item order
// in the output regardless of completion order.
type Runner struct {
	pipeline    QueryRunner
	concurrency int
}

// NewRunner creates a Runner. concurrency below 1 is clamped to 4.
func NewRunner(pipeline QueryRunner, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Runner{pipeline: pipeline, concurrency: concurrency}
}

// RunAll runs every item and returns results in input order. Individual
// question failures are recorded in their results, not returned as errors;
// only context cancellation aborts the batch.
func (r *Runner) RunAll(ctx context.Context, items []Item) ([]ItemResult, error) {
	results := make([]ItemResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ItemResult{Item: item, Result: r.pipeline.Run(ctx, item.Question)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runLog is the top-level structure of run_log.json.
type runLog struct {
	Title       string       `json:"title"`
	GeneratedAt string       `json:"generated_at"`
	Summary     Summary      `json:"summary"`
	Results     []ItemResult `json:"results"`
}

// WriteReport renders results into outDir as report.md and run_log.json.
func WriteReport(outDir, title string, results []ItemResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	md := RenderReport(title, results)
	if err := os.WriteFile(filepath.Join(outDir, "report.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("writing report.md: %w", err)
	}

	log := runLog{
		Title:       title,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Summary:     Summarize(results),
		Results:     results,
	}
	b, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run log: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "run_log.json"), b, 0o644); err != nil {
		return fmt.Errorf("writing run_log.json: %w", err)
	}
	return nil
}

// LoadItems reads a batch definition from a JSON file: either a bare array
// of items or an object with an "items" field.
func LoadItems(path string) ([]Item, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(b, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing questions file: %w", err)
	}
	return wrapped.Items, nil
}
