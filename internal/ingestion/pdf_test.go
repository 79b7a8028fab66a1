package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name, m.args = name, args
	return m.output, m.err
}

func TestPdftotext_Pages(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{output: []byte("page one\f\fpage three\f")}
	p := &Pdftotext{Runner: runner}

	pages, err := p.Pages(context.Background(), "/data/apostila.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"page one", "", "page three"}, pages)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-enc", "UTF-8", "/data/apostila.pdf", "-"}, runner.args)
}

func TestPdftotext_CustomBinaryAndErrors(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{err: ErrPDFToolNotFound}
	p := &Pdftotext{Binary: "/opt/poppler/bin/pdftotext", Runner: runner}
	_, err := p.Pages(context.Background(), "a.pdf")
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
	assert.Equal(t, "/opt/poppler/bin/pdftotext", runner.name)

	boom := errors.New("Syntax Error: Couldn't find trailer dictionary")
	_, err = (&Pdftotext{Runner: &mockRunner{err: boom}}).Pages(context.Background(), "a.pdf")
	assert.ErrorIs(t, err, boom)
}

func TestSplitPages(t *testing.T) {
	t.Parallel()

	assert.Nil(t, splitPages(""))
	assert.Equal(t, []string{"only"}, splitPages("only"))
	assert.Equal(t, []string{"a", "b"}, splitPages("a\fb\f\n"))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := execRunner{}.Run(context.Background(), "definitely-not-a-real-pdftotext-binary")
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}
