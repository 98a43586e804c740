package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/columnmap"
	"github.com/dvloznov/budget-tracker/internal/dedup"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/gcs"
	"github.com/dvloznov/budget-tracker/internal/ingest"
	"github.com/dvloznov/budget-tracker/internal/oracle"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Step 1: FetchStep loads the export bytes unless the caller already supplied them.
type FetchStep struct {
	Storage gcs.StorageService // nil disables gs:// sources
}

func (s *FetchStep) Name() string { return "fetch" }

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Data != nil {
		if state.Filename == "" {
			state.Filename = filepath.Base(state.Source)
		}
		return nil
	}

	switch {
	case strings.HasPrefix(state.Source, "gs://"):
		if s.Storage == nil {
			return fmt.Errorf("FetchStep: no storage configured for %s", state.Source)
		}
		data, err := s.Storage.FetchFromGCS(ctx, state.Source)
		if err != nil {
			return fmt.Errorf("FetchStep: %w", err)
		}
		state.Data = data
		if state.Filename == "" {
			state.Filename = s.Storage.ExtractFilenameFromGCSURI(state.Source)
		}
	case state.Source != "":
		data, err := os.ReadFile(state.Source)
		if err != nil {
			return fmt.Errorf("FetchStep: %w", err)
		}
		state.Data = data
		if state.Filename == "" {
			state.Filename = filepath.Base(state.Source)
		}
	default:
		return fmt.Errorf("FetchStep: no data and no source")
	}
	return nil
}

// Step 2: IngestStep parses the export into candidate transactions.
type IngestStep struct {
	Registry *columnmap.Registry
	Oracle   oracle.Oracle
	Log      zerolog.Logger
}

func (s *IngestStep) Name() string { return "ingest" }

func (s *IngestStep) Execute(ctx context.Context, state *PipelineState) error {
	mapper := columnmap.Default(s.Registry, state.Bank, s.Oracle, s.Log)
	res := ingest.New(mapper, s.Registry, s.Log).Ingest(ctx, state.Data, state.Filename)
	state.Ingest = res
	if res.Err != nil {
		return res.Err
	}
	state.Transactions = res.Transactions
	return nil
}

// Step 3: DedupStep drops transactions whose fingerprint is already stored
// or repeated earlier in the file.
type DedupStep struct {
	Deduper *dedup.Deduper
}

func (s *DedupStep) Name() string { return "dedup" }

func (s *DedupStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Deduper.Filter(ctx, state.UserID, state.Transactions)
	if err != nil {
		return err
	}
	state.Transactions = res.Unique
	state.Duplicates = res.Duplicates
	return nil
}

// Step 4: ClassifyStep applies the rule engine built from the user's categories.
type ClassifyStep struct {
	Categories store.CategoryStore
	Fallback   string
}

func (s *ClassifyStep) Name() string { return "classify" }

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	user, err := s.Categories.ListCategories(ctx, state.UserID)
	if err != nil {
		return fmt.Errorf("ClassifyStep: listing categories: %w", err)
	}
	state.Engine = categorize.NewDefaultEngine(user, categorize.WithFallback(s.Fallback))
	state.Classified = state.Engine.ClassifyBatch(state.Transactions)
	return nil
}

// Step 5: EnrichStep asks the oracle about transactions the rules left in the fallback.
type EnrichStep struct {
	Enricher *categorize.Enricher
}

func (s *EnrichStep) Name() string { return "enrich" }

func (s *EnrichStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Engine == nil {
		return nil
	}
	pending := state.Engine.Uncategorized(state.Transactions)
	state.Enrichment = s.Enricher.Enrich(ctx, pending, state.Engine.Categories())
	return nil
}

// Step 6: ResolveCategoriesStep stores built-in categories the batch uses so
// every transaction carries a category id.
type ResolveCategoriesStep struct {
	Categories store.CategoryStore
}

func (s *ResolveCategoriesStep) Name() string { return "resolve-categories" }

func (s *ResolveCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	ids := map[string]string{}
	if state.Engine != nil {
		ids = state.Engine.NameToID()
	}

	for _, tx := range state.Transactions {
		if tx.CategoryID != "" || tx.Category == "" {
			continue
		}
		if id, ok := ids[tx.Category]; ok {
			tx.CategoryID = id
			continue
		}

		cat := domain.Category{Name: tx.Category}
		if state.Engine != nil {
			if c, ok := state.Engine.Category(tx.Category); ok {
				cat = c
			}
		}
		cat.UserID = state.UserID
		id, err := s.Categories.UpsertCategory(ctx, &cat)
		if err != nil {
			return fmt.Errorf("ResolveCategoriesStep: storing %q: %w", tx.Category, err)
		}
		ids[tx.Category] = id
		tx.CategoryID = id
	}
	return nil
}

// Step 7: InsertStep writes the surviving transactions.
type InsertStep struct {
	Transactions store.TransactionStore
}

func (s *InsertStep) Name() string { return "insert" }

func (s *InsertStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Transactions) == 0 {
		state.Insert = domain.InsertResult{Errors: []string{}}
		return nil
	}
	res, err := s.Transactions.InsertTransactions(ctx, state.UserID, state.Transactions)
	if err != nil {
		return fmt.Errorf("InsertStep: %w", err)
	}
	state.Insert = res
	return nil
}
