// Package ingestion implements the two offline pipelines that populate the
// vector store: the manual pipeline (PDF → pages → overlapping chunks) and
// the product pipeline (CSV catalog → one document per product). Both embed
// their documents and upsert them under deterministic ids, so re-running a
// pipeline over the same source overwrites records in place.
// The pipelines are invoked by the `desfrut ingest` CLI commands.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/54b3r/desfrut-go/internal/rag"
)

// ErrSourceNotFound is returned when the manual or catalog file is missing.
// Nothing is written to the store in that case.
var ErrSourceNotFound = errors.New("ingestion: source file not found")

// ProgressFunc receives the number of documents indexed so far and the total
// expected for the run. It is called after every successful upsert.
type ProgressFunc func(done, total int)

// checkSource returns ErrSourceNotFound (wrapped with the path) when path
// does not name a readable regular file.
func checkSource(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("ingestion: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, path)
	}
	return nil
}

// embedAndUpsert embeds the contents of docs in one request and upserts
// them into collection. The embedder must return exactly one vector per
// document, in order.
func embedAndUpsert(ctx context.Context, embedder rag.Embedder, store rag.VectorStore, collection string, docs []rag.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingestion: embedding %s..%s failed: %w", docs[0].ID, docs[len(docs)-1].ID, err)
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("ingestion: embedder returned %d vectors for %d documents", len(embeddings), len(docs))
	}

	if err := store.Upsert(ctx, collection, docs, embeddings); err != nil {
		return fmt.Errorf("ingestion: upsert %s..%s failed: %w", docs[0].ID, docs[len(docs)-1].ID, err)
	}
	return nil
}

// validateDeps rejects nil dependencies shared by both pipelines.
func validateDeps(embedder rag.Embedder, store rag.VectorStore, collection string) error {
	if embedder == nil {
		return fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return fmt.Errorf("ingestion: store must not be nil")
	}
	if collection == "" {
		return fmt.Errorf("ingestion: collection must not be empty")
	}
	return nil
}
