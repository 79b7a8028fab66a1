package assistant

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/54b3r/desfrut-go/internal/rag"
)

// keywordEmbedder maps text onto a small vocabulary so related texts share
// direction. Every text gets a bias term so no vector is zero.
type keywordEmbedder struct{ vocab []string }

func (e keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(e.vocab)+1)
		vec[len(e.vocab)] = 0.1
		for j, word := range e.vocab {
			if strings.Contains(lower, word) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

func TestAnswer_EndToEndWithLocalStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := rag.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	emb := keywordEmbedder{vocab: []string{"horário", "funcionamento", "vela", "entrega"}}

	seed := func(collection string, docs []rag.Document) {
		t.Helper()
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
		}
		vecs, err := emb.Embed(ctx, texts)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Upsert(ctx, collection, docs, vecs); err != nil {
			t.Fatal(err)
		}
	}
	seed(testManual, []rag.Document{
		{ID: "p003-c000", Content: "Horário de funcionamento: seg a sáb, 10h às 20h.", Metadata: map[string]string{"file": "apostila.pdf", "page": "3"}},
		{ID: "p007-c000", Content: "Política de entrega na cidade.", Metadata: map[string]string{"file": "apostila.pdf", "page": "7"}},
	})
	seed(testProducts, []rag.Document{
		{ID: "prod-000001", Content: "Produto: Vela Aromática | Horário de funcionamento da loja física", Metadata: map[string]string{"sku": "A1", "nome": "Vela Aromática"}},
	})

	retriever, err := rag.NewRetriever(emb, store, 1)
	if err != nil {
		t.Fatal(err)
	}
	builder, err := NewContextBuilder(BuilderConfig{
		Retriever:         retriever,
		ManualCollection:  testManual,
		ProductCollection: testProducts,
		TopK:              1,
	})
	if err != nil {
		t.Fatal(err)
	}
	chat := &mockChatModel{reply: "Funcionamos de segunda a sábado."}
	a, err := New(&Config{ChatModel: chat, Builder: builder})
	if err != nil {
		t.Fatal(err)
	}

	ans, err := a.Answer(ctx, "horário de funcionamento")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != chat.reply {
		t.Errorf("Text = %q", ans.Text)
	}
	for _, want := range []string{"apostila.pdf pág. 3", "Vela Aromática (A1)"} {
		if !slices.Contains(ans.Sources, want) {
			t.Errorf("Sources %v missing %q", ans.Sources, want)
		}
	}
	if slices.Contains(ans.Sources, "apostila.pdf pág. 7") {
		t.Errorf("Sources %v should not include the unrelated page", ans.Sources)
	}
}
