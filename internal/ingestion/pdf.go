package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrPDFToolNotFound is returned when the pdftotext binary is not installed.
var ErrPDFToolNotFound = errors.New("ingestion: pdftotext not found (install poppler: brew install poppler / apt install poppler-utils)")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner is the CommandRunner backed by os/exec.
type execRunner struct{}

// Run executes name with args, folding stderr into the error on failure.
func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrPDFToolNotFound
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Pdftotext extracts page text with poppler's pdftotext. Pages are separated
// by form feeds in its output.
type Pdftotext struct {
	// Binary is the pdftotext executable (default "pdftotext").
	Binary string
	// Runner executes the binary; nil uses os/exec.
	Runner CommandRunner
}

// Pages returns the text of every page of the PDF at path, in page order.
// Pages without extractable text are returned as empty strings so page
// numbers stay aligned.
func (p *Pdftotext) Pages(ctx context.Context, path string) ([]string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftotext"
	}
	runner := p.Runner
	if runner == nil {
		runner = execRunner{}
	}

	out, err := runner.Run(ctx, bin, "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ingestion: pdftotext %s: %w", path, err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output on form feeds, dropping the empty
// element after the trailing separator.
func splitPages(out string) []string {
	if out == "" {
		return nil
	}
	pages := strings.Split(out, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
