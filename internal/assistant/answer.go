package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/desfrut-go/internal/logging"
)

// ErrEmptyQuestion is returned when the question is blank after trimming.
var ErrEmptyQuestion = errors.New("assistant: empty question")

// systemPrompt fixes the assistant persona for every answer.
const systemPrompt = "Você é a assistente da Desfrut (sexshop em Manaus). " +
	"Responda acolhedor, objetivo e educativo. Priorize as evidências do contexto. " +
	"Se não houver no contexto, diga isso e dê orientação geral breve. " +
	"Evite conteúdo explícito. Para compras, direcione ao site/Tray."

// DefaultTemperature is used when Config.Temperature is zero.
const DefaultTemperature float32 = 0.2

// Answer is a model answer plus the sources its context came from.
type Answer struct {
	Text    string
	Sources []string
}

// Config holds the dependencies for an Answerer.
type Config struct {
	// ChatModel generates the answer. Required.
	ChatModel model.BaseChatModel

	// Builder assembles the retrieval context. Required.
	Builder *ContextBuilder

	// Temperature is the sampling temperature sent with each request.
	Temperature float32
}

// Answerer answers a question from retrieved context with a single chat
// model call. It holds no per-request state and is safe for concurrent use.
type Answerer struct {
	chat        model.BaseChatModel
	builder     *ContextBuilder
	temperature float32
}

// New constructs an Answerer from cfg.
func New(cfg *Config) (*Answerer, error) {
	if cfg.ChatModel == nil {
		return nil, errors.New("assistant: ChatModel must not be nil")
	}
	if cfg.Builder == nil {
		return nil, errors.New("assistant: Builder must not be nil")
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}
	return &Answerer{chat: cfg.ChatModel, builder: cfg.Builder, temperature: temp}, nil
}

// Answer builds the context for question and returns the model's reply
// verbatim together with the context citations.
func (a *Answerer) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	bc := a.builder.Build(ctx, question)
	messages := buildMessages(question, bc.Text)

	start := time.Now()
	resp, err := a.chat.Generate(a.callbackScope(ctx), messages, model.WithTemperature(a.temperature))
	if err != nil {
		return nil, fmt.Errorf("assistant: chat completion failed: %w", err)
	}
	if resp == nil {
		return nil, errors.New("assistant: chat model returned no message")
	}

	logging.FromContext(ctx).Debug("answer generated",
		slog.Int("sources", len(bc.Citations)),
		slog.Duration("duration", time.Since(start)),
	)
	return &Answer{Text: resp.Content, Sources: bc.Citations}, nil
}

// Stream behaves like Answer but writes the reply to w as it is generated.
// The returned Answer carries the full text once the stream ends.
func (a *Answerer) Stream(ctx context.Context, question string, w io.Writer) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	bc := a.builder.Build(ctx, question)
	messages := buildMessages(question, bc.Text)

	sr, err := a.chat.Stream(a.callbackScope(ctx), messages, model.WithTemperature(a.temperature))
	if err != nil {
		return nil, fmt.Errorf("assistant: stream failed: %w", err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("assistant: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return nil, fmt.Errorf("assistant: write error: %w", err)
		}
	}

	return &Answer{Text: buf.String(), Sources: bc.Citations}, nil
}

// callbackScope attaches an eino callback manager so globally registered
// handlers (Langfuse) observe the chat call.
func (a *Answerer) callbackScope(ctx context.Context) context.Context {
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "desfrut-answer",
		Type:      "Answerer",
		Component: components.ComponentOfChatModel,
	})
}

// buildMessages returns the system instruction and the user turn. An empty
// context asks the model to say nothing was found.
func buildMessages(question, contextText string) []*schema.Message {
	var user string
	if strings.TrimSpace(contextText) == "" {
		user = "Pergunta: " + question + "\n\n" +
			"Contexto (vazio). Diga que não encontrou na base e ofereça uma orientação geral breve."
	} else {
		user = "Pergunta: " + question + "\n\n" +
			"Contexto (use com prioridade, cite quando útil):\n" + contextText
	}
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user),
	}
}
