package rag

import (
	"context"
	"errors"
	"testing"
)

// fakeEmbedder returns a fixed vector or error and records its inputs.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// fakeStore records the last search and returns canned documents.
type fakeStore struct {
	docs       []Document
	err        error
	collection string
	topK       int
}

func (f *fakeStore) Upsert(context.Context, string, []Document, [][]float32) error { return nil }
func (f *fakeStore) Delete(context.Context, string, []string) error                { return nil }
func (f *fakeStore) Count(context.Context, string) (int, error)                     { return len(f.docs), nil }
func (f *fakeStore) Close() error                                                   { return nil }

func (f *fakeStore) Search(_ context.Context, collection string, _ []float32, topK int) ([]Document, error) {
	f.collection = collection
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &fakeStore{}, 5); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 5); err == nil {
		t.Error("expected error for nil store")
	}
	r, err := NewRetriever(&fakeEmbedder{}, &fakeStore{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.defaultTopK != 5 {
		t.Errorf("defaultTopK = %d, want 5", r.defaultTopK)
	}
}

func TestRetrieve_PassesCollectionAndTopK(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vec: []float32{1, 0}}
	store := &fakeStore{docs: []Document{{ID: "a"}, {ID: "b"}}}
	r, _ := NewRetriever(emb, store, 3)

	docs, err := r.Retrieve(context.Background(), "manual", "qual o horário?", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if store.collection != "manual" {
		t.Errorf("collection = %q, want manual", store.collection)
	}
	if store.topK != 3 {
		t.Errorf("topK = %d, want default 3", store.topK)
	}
	if len(emb.calls) != 1 || emb.calls[0][0] != "qual o horário?" {
		t.Errorf("unexpected embed calls: %v", emb.calls)
	}

	if _, err := r.Retrieve(context.Background(), "products", "q", 9); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if store.topK != 9 {
		t.Errorf("explicit topK = %d, want 9", store.topK)
	}
}

func TestRetrieve_PropagatesErrors(t *testing.T) {
	t.Parallel()

	embedErr := errors.New("embedding service down")
	r, _ := NewRetriever(&fakeEmbedder{err: embedErr}, &fakeStore{}, 5)
	if _, err := r.Retrieve(context.Background(), "c", "q", 0); !errors.Is(err, embedErr) {
		t.Errorf("expected wrapped embed error, got %v", err)
	}

	storeErr := errors.New("store unreachable")
	r, _ = NewRetriever(&fakeEmbedder{vec: []float32{1}}, &fakeStore{err: storeErr}, 5)
	if _, err := r.Retrieve(context.Background(), "c", "q", 0); !errors.Is(err, storeErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
