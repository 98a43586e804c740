// Package pipeline runs a bank export through ingestion, deduplication,
// classification and enrichment into the store.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/ingest"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID   string
	Source   string // gs:// URI or local path
	Filename string
	Bank     string // pinned bank format, empty for detection
	Data     []byte

	Ingest       ingest.Result
	Transactions []*domain.Transaction
	Duplicates   int

	Engine     *categorize.Engine
	Classified int
	Enrichment categorize.EnrichResult

	Insert domain.InsertResult
}

// Report is the user-facing summary of one import. Skipped counts every
// parsed row that was not inserted: Duplicates were dropped by fingerprint
// before the insert and Conflicts were rejected by the store's unique key.
type Report struct {
	Filename   string   `json:"filename"`
	Format     string   `json:"format,omitempty"`
	Parsed     int      `json:"parsed"`
	Inserted   int      `json:"inserted"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
	Conflicts  int      `json:"conflicts"`
	Classified int      `json:"classified"`
	Enriched   int      `json:"enriched"`
	Warnings   []string `json:"warnings"`
	Info       []string `json:"info"`
	Errors     []string `json:"errors"`
}

// Report summarises the state after a run.
func (s *PipelineState) Report() Report {
	r := Report{
		Filename:   s.Filename,
		Format:     s.Ingest.Mapping.Source,
		Parsed:     len(s.Ingest.Transactions),
		Inserted:   s.Insert.Success,
		Skipped:    s.Duplicates + s.Insert.Skipped,
		Duplicates: s.Duplicates,
		Conflicts:  s.Insert.Skipped,
		Classified: s.Classified,
		Enriched:   s.Enrichment.Enriched,
		Warnings:   append([]string{}, s.Ingest.Warnings...),
		Info:       append([]string{}, s.Ingest.Info...),
		Errors:     append([]string{}, s.Insert.Errors...),
	}
	r.Info = append(r.Info, s.Enrichment.Notices...)
	return r
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially and stops at the first error.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s): %w", i+1, step.Name(), err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}
