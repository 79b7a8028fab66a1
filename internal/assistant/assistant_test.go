package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/desfrut-go/internal/rag"
)

const (
	testManual   = "manual"
	testProducts = "products"
)

// mockRetriever returns canned results per collection.
type mockRetriever struct {
	docs  map[string][]rag.Document
	errs  map[string]error
	mu    sync.Mutex
	calls []string
}

func (m *mockRetriever) Retrieve(_ context.Context, collection, _ string, _ int) ([]rag.Document, error) {
	m.mu.Lock()
	m.calls = append(m.calls, collection)
	m.mu.Unlock()
	if err := m.errs[collection]; err != nil {
		return nil, err
	}
	return m.docs[collection], nil
}

// mockChatModel records the messages it receives and replies with reply.
type mockChatModel struct {
	reply    string
	err      error
	messages []*schema.Message
	opts     *model.Options
}

func (m *mockChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.messages = input
	m.opts = model.GetCommonOptions(nil, opts...)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *mockChatModel) Stream(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.messages = input
	m.opts = model.GetCommonOptions(nil, opts...)
	if m.err != nil {
		return nil, m.err
	}
	var chunks []*schema.Message
	for _, word := range strings.SplitAfter(m.reply, " ") {
		chunks = append(chunks, schema.AssistantMessage(word, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func newBuilder(t *testing.T, r rag.Retriever, onErr func(string, error)) *ContextBuilder {
	t.Helper()
	b, err := NewContextBuilder(BuilderConfig{
		Retriever:         r,
		ManualCollection:  testManual,
		ProductCollection: testProducts,
		TopK:              5,
		OnRetrievalError:  onErr,
	})
	if err != nil {
		t.Fatalf("NewContextBuilder: %v", err)
	}
	return b
}

func manualDoc(content, file, page string) rag.Document {
	return rag.Document{Content: content, Metadata: map[string]string{"file": file, "page": page}}
}

func productDoc(content, sku, nome string) rag.Document {
	return rag.Document{Content: content, Metadata: map[string]string{"sku": sku, "nome": nome}}
}

func TestNewContextBuilder_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewContextBuilder(BuilderConfig{ManualCollection: "a", ProductCollection: "b"}); err == nil {
		t.Error("expected error for nil retriever")
	}
	if _, err := NewContextBuilder(BuilderConfig{Retriever: &mockRetriever{}, ManualCollection: "a"}); err == nil {
		t.Error("expected error for missing product collection")
	}
}

func TestBuild_BothCollections(t *testing.T) {
	t.Parallel()

	r := &mockRetriever{docs: map[string][]rag.Document{
		testManual:   {manualDoc("Abrimos às 10h.", "apostila.pdf", "3")},
		testProducts: {productDoc("Produto: Vela", "A1", "Vela Aromática")},
	}}
	got := newBuilder(t, r, nil).Build(context.Background(), "horário")

	want := "=== MANUAL ===\n\nAbrimos às 10h.\n\n\n=== PRODUCTS ===\n\nProduto: Vela"
	if got.Text != want {
		t.Errorf("Text =\n%q\nwant\n%q", got.Text, want)
	}
	wantCites := []string{"apostila.pdf pág. 3", "Vela Aromática (A1)"}
	if strings.Join(got.Citations, "|") != strings.Join(wantCites, "|") {
		t.Errorf("Citations = %v, want %v", got.Citations, wantCites)
	}
	if strings.Join(r.calls, ",") != "manual,products" {
		t.Errorf("retrieval order = %v, want manual then products", r.calls)
	}
}

func TestBuild_Isolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failing      string
		wantContains []string
		wantCites    []string
	}{
		{
			name:         "manual fails",
			failing:      testManual,
			wantContains: []string{"(Apostila indisponível: store offline)", "=== PRODUCTS ===", "Produto: Vela"},
			wantCites:    []string{"Vela Aromática (A1)"},
		},
		{
			name:         "products fail",
			failing:      testProducts,
			wantContains: []string{"=== MANUAL ===", "Abrimos às 10h.", "(Produtos indisponíveis: store offline)"},
			wantCites:    []string{"apostila.pdf pág. 3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &mockRetriever{
				docs: map[string][]rag.Document{
					testManual:   {manualDoc("Abrimos às 10h.", "apostila.pdf", "3")},
					testProducts: {productDoc("Produto: Vela", "A1", "Vela Aromática")},
				},
				errs: map[string]error{tt.failing: errors.New("store offline")},
			}
			var failed []string
			got := newBuilder(t, r, func(c string, _ error) { failed = append(failed, c) }).
				Build(context.Background(), "q")

			for _, s := range tt.wantContains {
				if !strings.Contains(got.Text, s) {
					t.Errorf("Text missing %q:\n%s", s, got.Text)
				}
			}
			if strings.Join(got.Citations, "|") != strings.Join(tt.wantCites, "|") {
				t.Errorf("Citations = %v, want %v", got.Citations, tt.wantCites)
			}
			if len(failed) != 1 || failed[0] != tt.failing {
				t.Errorf("OnRetrievalError calls = %v, want [%s]", failed, tt.failing)
			}
			if len(r.calls) != 2 {
				t.Errorf("expected both collections queried, got %v", r.calls)
			}
		})
	}
}

func TestBuild_CitationDefaultsAndDedup(t *testing.T) {
	t.Parallel()

	r := &mockRetriever{docs: map[string][]rag.Document{
		testManual: {
			manualDoc("a", "apostila.pdf", "3"),
			manualDoc("b", "apostila.pdf", "3"),
			{Content: "c"},
		},
		testProducts: {
			{Content: "d"},
			{Content: "e", Metadata: map[string]string{"sku": "B2", "name": "Óleo"}},
			productDoc("f", "A1", "Vela"),
			productDoc("g", "A1", "Vela"),
		},
	}}
	got := newBuilder(t, r, nil).Build(context.Background(), "q")

	want := []string{"apostila.pdf pág. 3", "apostila.pdf pág. ?", "Produto (SKU?)", "Óleo (B2)", "Vela (A1)"}
	if strings.Join(got.Citations, "|") != strings.Join(want, "|") {
		t.Errorf("Citations = %v, want %v", got.Citations, want)
	}
}

func TestBuild_EmptyCollections(t *testing.T) {
	t.Parallel()

	got := newBuilder(t, &mockRetriever{}, nil).Build(context.Background(), "q")
	if got.Text != "" {
		t.Errorf("Text = %q, want empty", got.Text)
	}
	if len(got.Citations) != 0 {
		t.Errorf("Citations = %v, want none", got.Citations)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	t.Parallel()

	r := &mockRetriever{}
	chat := &mockChatModel{reply: "unused"}
	a, err := New(&Config{ChatModel: chat, Builder: newBuilder(t, r, nil)})
	if err != nil {
		t.Fatal(err)
	}

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := a.Answer(context.Background(), q); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Answer(%q) error = %v, want ErrEmptyQuestion", q, err)
		}
	}
	if len(r.calls) != 0 || chat.messages != nil {
		t.Error("blank question must not reach retrieval or the model")
	}
}

func TestAnswer_WithContext(t *testing.T) {
	t.Parallel()

	r := &mockRetriever{docs: map[string][]rag.Document{
		testManual: {manualDoc("Abrimos às 10h.", "apostila.pdf", "3")},
	}}
	chat := &mockChatModel{reply: "Abrimos às 10h."}
	a, err := New(&Config{ChatModel: chat, Builder: newBuilder(t, r, nil)})
	if err != nil {
		t.Fatal(err)
	}

	ans, err := a.Answer(context.Background(), "  Qual o horário?  ")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "Abrimos às 10h." {
		t.Errorf("Text = %q", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "apostila.pdf pág. 3" {
		t.Errorf("Sources = %v", ans.Sources)
	}

	if len(chat.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(chat.messages))
	}
	if chat.messages[0].Role != schema.System || !strings.Contains(chat.messages[0].Content, "Desfrut") {
		t.Errorf("unexpected system message: %+v", chat.messages[0])
	}
	user := chat.messages[1].Content
	if !strings.HasPrefix(user, "Pergunta: Qual o horário?\n\n") {
		t.Errorf("user message should start with the trimmed question: %q", user)
	}
	if !strings.Contains(user, "Contexto (use com prioridade, cite quando útil):\n=== MANUAL ===") {
		t.Errorf("user message missing context block: %q", user)
	}
	if chat.opts.Temperature == nil || *chat.opts.Temperature != DefaultTemperature {
		t.Errorf("temperature option = %v, want %v", chat.opts.Temperature, DefaultTemperature)
	}
}

func TestAnswer_EmptyContextMessage(t *testing.T) {
	t.Parallel()

	chat := &mockChatModel{reply: "Não encontrei."}
	a, err := New(&Config{ChatModel: chat, Builder: newBuilder(t, &mockRetriever{}, nil), Temperature: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	ans, err := a.Answer(context.Background(), "oi")
	if err != nil {
		t.Fatal(err)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("Sources = %v, want none", ans.Sources)
	}
	if !strings.Contains(chat.messages[1].Content, "Contexto (vazio).") {
		t.Errorf("expected empty-context instruction, got %q", chat.messages[1].Content)
	}
	if *chat.opts.Temperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", *chat.opts.Temperature)
	}
}

func TestAnswer_ChatErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("rate limited")
	a, err := New(&Config{ChatModel: &mockChatModel{err: boom}, Builder: newBuilder(t, &mockRetriever{}, nil)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Answer(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestStream_WritesChunks(t *testing.T) {
	t.Parallel()

	r := &mockRetriever{docs: map[string][]rag.Document{
		testProducts: {productDoc("Produto: Vela", "A1", "Vela Aromática")},
	}}
	chat := &mockChatModel{reply: "Temos a Vela Aromática."}
	a, err := New(&Config{ChatModel: chat, Builder: newBuilder(t, r, nil)})
	if err != nil {
		t.Fatal(err)
	}

	var out strings.Builder
	ans, err := a.Stream(context.Background(), "vela", &out)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if out.String() != chat.reply || ans.Text != chat.reply {
		t.Errorf("streamed %q, answer %q, want %q", out.String(), ans.Text, chat.reply)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "Vela Aromática (A1)" {
		t.Errorf("Sources = %v", ans.Sources)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, &mockRetriever{}, nil)
	if _, err := New(&Config{Builder: b}); err == nil {
		t.Error("expected error for nil chat model")
	}
	if _, err := New(&Config{ChatModel: &mockChatModel{}}); err == nil {
		t.Error("expected error for nil builder")
	}
}
