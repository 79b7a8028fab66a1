// Package assistant answers shop questions from two knowledge collections:
// the staff manual and the product catalog. ContextBuilder gathers evidence
// from both, Answerer turns that evidence into a model answer with sources.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/desfrut-go/internal/logging"
	"github.com/54b3r/desfrut-go/internal/rag"
)

const (
	manualHeader   = "=== MANUAL ==="
	productsHeader = "\n=== PRODUCTS ==="
)

// Context is the evidence assembled for one question.
type Context struct {
	// Text is the context block handed to the model. Empty when neither
	// collection returned anything.
	Text string

	// Citations lists a human-readable source per retrieved document,
	// de-duplicated in first-seen order.
	Citations []string
}

// BuilderConfig holds the dependencies for a ContextBuilder.
type BuilderConfig struct {
	// Retriever queries a named collection. Required.
	Retriever rag.Retriever

	// ManualCollection and ProductCollection name the two collections.
	ManualCollection  string
	ProductCollection string

	// TopK is the number of documents requested from each collection.
	// Zero defers to the retriever's default.
	TopK int

	// OnRetrievalError, when set, is called for every collection whose
	// retrieval failed. Used for metrics.
	OnRetrievalError func(collection string, err error)
}

// ContextBuilder retrieves from the manual and product collections and
// merges the results into a single Context. A failure in one collection
// never prevents the other from being queried.
type ContextBuilder struct {
	retriever        rag.Retriever
	manual           string
	products         string
	topK             int
	onRetrievalError func(collection string, err error)
}

// NewContextBuilder validates cfg and returns a ContextBuilder.
func NewContextBuilder(cfg BuilderConfig) (*ContextBuilder, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("assistant: retriever must not be nil")
	}
	if cfg.ManualCollection == "" || cfg.ProductCollection == "" {
		return nil, errors.New("assistant: both collection names are required")
	}
	return &ContextBuilder{
		retriever:        cfg.Retriever,
		manual:           cfg.ManualCollection,
		products:         cfg.ProductCollection,
		topK:             cfg.TopK,
		onRetrievalError: cfg.OnRetrievalError,
	}, nil
}

// retrieval is the outcome of querying one collection: either docs or err.
type retrieval struct {
	docs []rag.Document
	err  error
}

// section describes how one collection is rendered into the context.
type section struct {
	collection  string
	header      string
	unavailable string
	cite        func(map[string]string) string
}

// Build gathers evidence for question. It never fails: retrieval errors
// become placeholder lines in the context text.
func (b *ContextBuilder) Build(ctx context.Context, question string) *Context {
	sections := []section{
		{collection: b.manual, header: manualHeader, unavailable: "Apostila indisponível", cite: manualCitation},
		{collection: b.products, header: productsHeader, unavailable: "Produtos indisponíveis", cite: productCitation},
	}

	var parts, citations []string
	for _, s := range sections {
		res := b.retrieve(ctx, s.collection, question)
		switch {
		case res.err != nil:
			parts = append(parts, fmt.Sprintf("(%s: %v)", s.unavailable, res.err))
		case len(res.docs) > 0:
			parts = append(parts, s.header)
			for _, doc := range res.docs {
				parts = append(parts, doc.Content)
				citations = append(citations, s.cite(doc.Metadata))
			}
		}
	}

	return &Context{
		Text:      strings.Join(parts, "\n\n"),
		Citations: dedupe(citations),
	}
}

// retrieve queries one collection and captures its outcome.
func (b *ContextBuilder) retrieve(ctx context.Context, collection, question string) retrieval {
	docs, err := b.retriever.Retrieve(ctx, collection, question, b.topK)
	if err != nil {
		logging.FromContext(ctx).Warn("retrieval failed, continuing with placeholder",
			slog.String("collection", collection),
			slog.Any("error", err),
		)
		if b.onRetrievalError != nil {
			b.onRetrievalError(collection, err)
		}
		return retrieval{err: err}
	}
	return retrieval{docs: docs}
}

// manualCitation renders "<file> pág. <page>".
func manualCitation(meta map[string]string) string {
	return fmt.Sprintf("%s pág. %s", orDefault(meta["file"], "apostila.pdf"), orDefault(meta["page"], "?"))
}

// productCitation renders "<nome> (<sku>)".
func productCitation(meta map[string]string) string {
	name := meta["nome"]
	if name == "" {
		name = meta["name"]
	}
	return fmt.Sprintf("%s (%s)", orDefault(name, "Produto"), orDefault(meta["sku"], "SKU?"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// dedupe drops repeated entries, keeping the first occurrence.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
