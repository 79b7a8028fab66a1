package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/54b3r/desfrut-go/internal/logging"
	"github.com/54b3r/desfrut-go/internal/rag"
)

// PageExtractor returns the raw text of every page of a document, in order.
type PageExtractor interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// ManualConfig holds the configuration for the manual pipeline.
type ManualConfig struct {
	// Collection is the vector collection the chunks are written to.
	Collection string
	// ChunkSize is the maximum number of characters per chunk.
	ChunkSize int
	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int
}

// ManualResult summarises a manual ingestion run.
type ManualResult struct {
	Pages        int
	SkippedPages int
	Chunks       int
}

// ManualPipeline orchestrates extract → normalise → chunk → embed → upsert
// for the shop manual. Chunks are embedded one per request.
type ManualPipeline struct {
	extractor PageExtractor
	embedder  rag.Embedder
	store     rag.VectorStore
	cfg       ManualConfig
}

// manualChunk is one chunk awaiting embedding.
type manualChunk struct {
	page int
	doc  rag.Document
}

// NewManualPipeline constructs a ManualPipeline.
func NewManualPipeline(extractor PageExtractor, embedder rag.Embedder, store rag.VectorStore, cfg ManualConfig) (*ManualPipeline, error) {
	if extractor == nil {
		return nil, fmt.Errorf("ingestion: page extractor must not be nil")
	}
	if err := validateDeps(embedder, store, cfg.Collection); err != nil {
		return nil, err
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("ingestion: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("ingestion: chunk overlap must be in [0, %d), got %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return &ManualPipeline{extractor: extractor, embedder: embedder, store: store, cfg: cfg}, nil
}

// Ingest indexes the PDF at path. Pages are numbered from 1; pages with no
// text after normalisation are skipped with a warning. Each chunk is stored
// under id p<page>-c<index> with metadata {file, page}. The first embedding
// or store failure aborts the run.
func (p *ManualPipeline) Ingest(ctx context.Context, path string, progress ProgressFunc) (*ManualResult, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	log := logging.FromContext(ctx)

	if err := checkSource(path); err != nil {
		return nil, err
	}

	pages, err := p.extractor.Pages(ctx, path)
	if err != nil {
		return nil, err
	}

	file := filepath.Base(path)
	res := &ManualResult{Pages: len(pages)}
	var pending []manualChunk
	for i, raw := range pages {
		page := i + 1
		text := Normalize(raw)
		if text == "" {
			res.SkippedPages++
			log.Warn("ingestion: page has no extractable text, skipping (scanned image?)",
				slog.String("file", file),
				slog.Int("page", page),
			)
			continue
		}
		for j, chunk := range Chunk(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap) {
			pending = append(pending, manualChunk{
				page: page,
				doc: rag.Document{
					ID:      fmt.Sprintf("p%03d-c%03d", page, j),
					Content: chunk,
					Metadata: map[string]string{
						"file": file,
						"page": strconv.Itoa(page),
					},
				},
			})
		}
	}

	log.Info("ingestion: manual chunked",
		slog.String("file", file),
		slog.Int("pages", res.Pages),
		slog.Int("skipped_pages", res.SkippedPages),
		slog.Int("chunks", len(pending)),
	)

	for i, c := range pending {
		if err := embedAndUpsert(ctx, p.embedder, p.store, p.cfg.Collection, []rag.Document{c.doc}); err != nil {
			return res, fmt.Errorf("ingestion: page %d: %w", c.page, err)
		}
		res.Chunks++
		progress(i+1, len(pending))
	}

	return res, nil
}
