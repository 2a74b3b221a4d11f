package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/autolane/search-service/internal/domain"
	"github.com/autolane/search-service/internal/indexer"
	"github.com/autolane/search-service/internal/upstream"
)

// reindexPageSize is the page size used when walking an upstream read API.
const reindexPageSize = 100

// ReindexReport summarizes a completed full reindex.
type ReindexReport struct {
	Indexed int            `json:"indexed"`
	Skipped int            `json:"skipped"`
	ByType  map[string]int `json:"byType"`
}

// Reindex rebuilds the whole index by paging through every upstream
// service's read API and upserting each row as a fresh document. It runs
// concurrently with the live event stream; because every write is a full
// replace keyed by the same document id, whichever write lands last wins
// and the next event for that entity converges the document again.
//
// Rows that cannot be converted are counted and skipped rather than
// aborting the walk. An unreachable upstream aborts with an error: a
// partial rebuild that silently dropped a whole store would look complete
// while missing every document from it.
func (s *SearchService) Reindex(ctx context.Context) (*ReindexReport, error) {
	report := &ReindexReport{ByType: make(map[string]int)}

	for _, source := range s.sources {
		if err := s.reindexSource(ctx, source, report); err != nil {
			return nil, fmt.Errorf("reindex %s: %w", source.EntityType(), err)
		}
	}

	s.logger.InfoContext(ctx, "full reindex complete",
		slog.Int("indexed", report.Indexed),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (s *SearchService) reindexSource(ctx context.Context, source upstream.Source, report *ReindexReport) error {
	entityType := source.EntityType()

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		listing, err := source.ListPage(ctx, page, reindexPageSize)
		if err != nil {
			return fmt.Errorf("list page %d: %w", page, err)
		}

		docs := make([]domain.SearchDocument, 0, len(listing.Data))
		for _, raw := range listing.Data {
			doc, err := s.documentFromRow(entityType, raw)
			if err != nil {
				report.Skipped++
				s.logger.WarnContext(ctx, "skipping unconvertible row",
					slog.String("entity_type", entityType),
					slog.String("error", err.Error()),
				)
				continue
			}
			docs = append(docs, *doc)
		}

		if len(docs) > 0 {
			if err := s.indexer.BulkIndex(ctx, docs); err != nil {
				return fmt.Errorf("bulk index page %d: %w", page, err)
			}
			report.Indexed += len(docs)
			report.ByType[entityType] += len(docs)
		}

		s.logger.InfoContext(ctx, "reindexed page",
			slog.String("entity_type", entityType),
			slog.Int("page", page),
			slog.Int("documents", len(docs)),
		)

		if page >= listing.TotalPages || len(listing.Data) == 0 {
			return nil
		}
	}
}

func (s *SearchService) documentFromRow(entityType string, raw json.RawMessage) (*domain.SearchDocument, error) {
	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	if row.ID == "" {
		return nil, fmt.Errorf("row has no id")
	}
	return indexer.BuildDocument(entityType, row.ID, raw)
}
