package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/columnmap"
	"github.com/dvloznov/budget-tracker/internal/dedup"
	"github.com/dvloznov/budget-tracker/internal/gcs"
	"github.com/dvloznov/budget-tracker/internal/oracle"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Deps are the collaborators of the import pipeline.
type Deps struct {
	Store            store.Store
	Storage          gcs.StorageService // optional
	Oracle           oracle.Oracle      // optional
	Registry         *columnmap.Registry
	FingerprintLimit int
	Fallback         string
	Log              zerolog.Logger
}

// NewImportPipeline creates the standard import pipeline:
// fetch, ingest, dedup, classify, enrich, resolve-categories, insert.
func NewImportPipeline(d Deps) *Pipeline {
	o := d.Oracle
	if o == nil {
		o = oracle.Disabled{}
	}
	registry := d.Registry
	if registry == nil {
		registry = columnmap.DefaultRegistry()
	}
	return NewPipeline(
		&FetchStep{Storage: d.Storage},
		&IngestStep{Registry: registry, Oracle: o, Log: d.Log},
		&DedupStep{Deduper: dedup.NewDeduper(d.Store, d.FingerprintLimit, d.Log)},
		&ClassifyStep{Categories: d.Store, Fallback: d.Fallback},
		&EnrichStep{Enricher: categorize.NewEnricher(o, d.Log)},
		&ResolveCategoriesStep{Categories: d.Store},
		&InsertStep{Transactions: d.Store},
	)
}

// Request describes one import.
type Request struct {
	UserID   string
	Source   string
	Filename string
	Bank     string
	Data     []byte
}

// Importer runs requests through an import pipeline.
type Importer struct {
	pipeline *Pipeline
	log      zerolog.Logger
}

// NewImporter returns an importer over the standard pipeline.
func NewImporter(d Deps) *Importer {
	return &Importer{pipeline: NewImportPipeline(d), log: d.Log}
}

// Import runs req and returns the report. The report is filled as far as the
// pipeline got, also when err is non-nil.
func (im *Importer) Import(ctx context.Context, req Request) (Report, error) {
	state := &PipelineState{
		UserID:   req.UserID,
		Source:   req.Source,
		Filename: req.Filename,
		Bank:     req.Bank,
		Data:     req.Data,
	}
	err := im.pipeline.Execute(ctx, state)
	report := state.Report()

	ev := im.log.Info()
	if err != nil {
		ev = im.log.Error().Err(err)
	}
	ev.Str("user_id", req.UserID).
		Str("file", report.Filename).
		Int("parsed", report.Parsed).
		Int("duplicates", report.Duplicates).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Int("conflicts", report.Conflicts).
		Msg("import finished")

	return report, err
}
