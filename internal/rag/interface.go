// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (local bbolt files, Qdrant) satisfy these
// interfaces so the assistant never depends on a specific backend.
//
// Every store operation names the collection it targets. The manual and
// the product catalog live in separate collections of the same store.
package rag

import (
	"context"
)

// Document represents a unit of retrieved or stored knowledge.
type Document struct {
	// ID is the unique identifier of the record within its collection.
	ID string

	// Content is the text that was embedded.
	Content string

	// Metadata holds flat key-value pairs describing the origin of the
	// text (file and page for the manual, sku and nome for products).
	Metadata map[string]string

	// Score is the cosine similarity assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or replaces a batch of documents with their pre-computed
	// embeddings. embeddings[i] is the vector for docs[i]. A document whose
	// ID already exists in the collection is overwritten.
	Upsert(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error

	// Search returns at most topK documents of the collection ordered by
	// cosine similarity to queryEmbedding, most similar first. A collection
	// that was never written returns no documents and no error.
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of documents stored in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the documents of one collection that are most relevant
// to a question. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents of collection.
	Retrieve(ctx context.Context, collection, query string, topK int) ([]Document, error)
}
