package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/54b3r/desfrut-go/internal/logging"
	"github.com/54b3r/desfrut-go/internal/rag"
)

// ProductConfig holds the configuration for the product pipeline.
type ProductConfig struct {
	// Collection is the vector collection products are written to.
	Collection string
	// BatchSize is the number of products embedded per request.
	BatchSize int
}

// ProductResult summarises a product ingestion run.
type ProductResult struct {
	Rows    int
	Skipped int
	Indexed int
}

// ProductPipeline turns a CSV catalog into one embedded document per product.
type ProductPipeline struct {
	embedder rag.Embedder
	store    rag.VectorStore
	cfg      ProductConfig
}

// NewProductPipeline constructs a ProductPipeline.
func NewProductPipeline(embedder rag.Embedder, store rag.VectorStore, cfg ProductConfig) (*ProductPipeline, error) {
	if err := validateDeps(embedder, store, cfg.Collection); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("ingestion: batch size must be positive, got %d", cfg.BatchSize)
	}
	return &ProductPipeline{embedder: embedder, store: store, cfg: cfg}, nil
}

// Ingest indexes the catalog at path. Rows with neither name nor description
// are skipped. Each product is stored under id prod-<row> (1-based data row
// number) with metadata {sku, nome}. Products are embedded in batches; the
// first failing batch aborts the run.
//
// Once every batch is stored, records left by earlier runs under the ids of
// rows skipped in this run are deleted.
func (p *ProductPipeline) Ingest(ctx context.Context, path string, progress ProgressFunc) (*ProductResult, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	log := logging.FromContext(ctx)

	if err := checkSource(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadCatalog(f)
	if err != nil {
		return nil, err
	}

	res := &ProductResult{Rows: len(rows)}
	docs := make([]rag.Document, 0, len(rows))
	var stale []string
	for _, row := range rows {
		prod := ProductFromRow(row.Fields)
		if prod.Empty() {
			res.Skipped++
			stale = append(stale, productID(row.Number))
			log.Debug("ingestion: skipping product row without name or description", slog.Int("row", row.Number))
			continue
		}
		docs = append(docs, rag.Document{
			ID:      productID(row.Number),
			Content: prod.Document(),
			Metadata: map[string]string{
				"sku":  prod.SKU,
				"nome": prod.Name,
			},
		})
	}

	log.Info("ingestion: catalog parsed",
		slog.String("file", path),
		slog.Int("rows", res.Rows),
		slog.Int("skipped", res.Skipped),
	)

	for start := 0; start < len(docs); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(docs))
		if err := embedAndUpsert(ctx, p.embedder, p.store, p.cfg.Collection, docs[start:end]); err != nil {
			return res, err
		}
		res.Indexed = end
		progress(end, len(docs))
	}

	if len(stale) > 0 {
		if err := p.store.Delete(ctx, p.cfg.Collection, stale); err != nil {
			return res, fmt.Errorf("ingestion: failed to clear skipped rows from %q: %w", p.cfg.Collection, err)
		}
	}

	return res, nil
}

func productID(row int) string {
	return fmt.Sprintf("prod-%06d", row)
}
