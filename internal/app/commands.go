package app

import (
	"context"
	"fmt"

	"stayfinder/internal/domain"
)

// RecordReader yields raw catalog rows keyed by header name.
type RecordReader interface {
	ReadRecords(ctx context.Context) ([]map[string]string, error)
}

// RecordCatalog adapts a RecordReader (e.g. a CSV file) into a CatalogSource.
type RecordCatalog struct{ r RecordReader }

func NewRecordCatalog(r RecordReader) *RecordCatalog { return &RecordCatalog{r: r} }

func (c *RecordCatalog) LoadCatalog(ctx context.Context) ([]domain.Property, error) {
	recs, err := c.r.ReadRecords(ctx)
	if err != nil {
		return nil, err
	}
	return mapProperties(recs), nil
}

type IngestionService struct {
	src   RecordReader
	repo  domain.PropertyRepository
	cache domain.Cache
}

func NewIngestionService(src RecordReader, r domain.PropertyRepository, cache domain.Cache) *IngestionService {
	return &IngestionService{src: src, repo: r, cache: cache}
}

// Prepare reads and maps the whole source and splits it into batches of at
// most batchSize rows, ready to be upserted concurrently.
func (s *IngestionService) Prepare(ctx context.Context, batchSize int) ([][]domain.Property, error) {
	recs, err := s.src.ReadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	props := mapProperties(recs)
	if batchSize <= 0 {
		batchSize = 200
	}
	var batches [][]domain.Property
	for start := 0; start < len(props); start += batchSize {
		end := start + batchSize
		if end > len(props) {
			end = len(props)
		}
		batches = append(batches, props[start:end])
	}
	return batches, nil
}

// IngestBatch upserts one batch and evicts the cached copies of its rows.
func (s *IngestionService) IngestBatch(ctx context.Context, batch []domain.Property) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.repo.UpsertProperties(ctx, batch); err != nil {
		// do not swallow; the caller decides whether the run failed
		return fmt.Errorf("upsert %d properties (first id %s): %w", len(batch), batch[0].ID, err)
	}
	if s.cache != nil {
		for _, p := range batch {
			_ = s.cache.Del(ctx, propertyKey(p.ID))
		}
	}
	return nil
}
