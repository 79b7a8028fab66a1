package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/54b3r/desfrut-go/internal/embedder"
	"github.com/54b3r/desfrut-go/internal/ingestion"
	"github.com/54b3r/desfrut-go/internal/rag"
)

// NewIngestCmd constructs the `desfrut ingest` command group. Each source
// has its own subcommand so they can be re-run independently.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the manual or the product catalog into the vector store",
		Long: `Index a knowledge source into the vector store.

Re-running an ingestion overwrites existing records in place: record ids are
derived from page and chunk numbers (manual) or row numbers (products).

Relevant environment variables:
  PDF_FILENAME        manual PDF (default: data/apostila.pdf)
  CSV_PATH            product catalog CSV (default: data/produtos.csv)
  COL_APOSTILA        manual collection (default: desfrut_apostila)
  COL_PRODUTOS        product collection (default: desfrut_produtos)
  CHROMA_DIR          local store directory (default: chroma)
  VECTOR_BACKEND      local or qdrant (default: local)
  EMBED_MODEL         embedding model (default: text-embedding-3-small)`,
	}

	cmd.AddCommand(newIngestManualCmd(), newIngestProductsCmd())
	return cmd
}

func newIngestManualCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manual",
		Short: "Extract, chunk and index the manual PDF",
		Long: `Extract the text of every page of the manual PDF with pdftotext, split each
page into overlapping chunks, and index them with {file, page} metadata.

Requires poppler's pdftotext on PATH (or PDFTOTEXT_PATH).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log := appConfig, appLog

			emb, err := embedder.New(cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			vs, err := openVectorStore(cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer vs.Close()

			pipeline, err := ingestion.NewManualPipeline(
				&ingestion.Pdftotext{Binary: cfg.Ingest.Pdftotext},
				emb, vs,
				ingestion.ManualConfig{
					Collection:   cfg.Collections.Manual,
					ChunkSize:    cfg.Ingest.ChunkSize,
					ChunkOverlap: cfg.Ingest.ChunkOverlap,
				},
			)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("starting manual ingestion",
				slog.String("file", cfg.Ingest.PDF),
				slog.String("collection", cfg.Collections.Manual),
			)
			res, err := pipeline.Ingest(ctx, cfg.Ingest.PDF, newProgress(os.Stdout, "Indexando apostila"))
			if err != nil {
				return fmt.Errorf("ingest manual: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Apostila indexada: %d chunks de %d páginas (%d sem texto) em %q.\n",
				res.Chunks, res.Pages, res.SkippedPages, cfg.Collections.Manual)
			printCollectionSize(cmd, vs, cfg.Collections.Manual)
			return nil
		},
	}
}

func newIngestProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "Index the product catalog CSV",
		Long: `Read the product catalog CSV (delimiter and BOM are detected automatically),
render one document per product, and index them in batches with {sku, nome}
metadata. Rows with neither a name nor a description are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log := appConfig, appLog

			emb, err := embedder.New(cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			vs, err := openVectorStore(cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer vs.Close()

			pipeline, err := ingestion.NewProductPipeline(emb, vs, ingestion.ProductConfig{
				Collection: cfg.Collections.Products,
				BatchSize:  cfg.Ingest.BatchSize,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("starting product ingestion",
				slog.String("file", cfg.Ingest.CSV),
				slog.String("collection", cfg.Collections.Products),
			)
			res, err := pipeline.Ingest(ctx, cfg.Ingest.CSV, newProgress(os.Stdout, "Indexando produtos"))
			if err != nil {
				return fmt.Errorf("ingest products: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Produtos indexados: %d de %d linhas (%d ignoradas) em %q.\n",
				res.Indexed, res.Rows, res.Skipped, cfg.Collections.Products)
			printCollectionSize(cmd, vs, cfg.Collections.Products)
			return nil
		},
	}
}

// printCollectionSize reports how many records the collection holds after a
// run. Records from earlier runs that were not overwritten are included.
func printCollectionSize(cmd *cobra.Command, vs rag.VectorStore, collection string) {
	n, err := vs.Count(cmd.Context(), collection)
	if err != nil {
		appLog.Warn("ingest: failed to count collection", slog.String("collection", collection), slog.Any("error", err))
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Total na coleção %q: %d registros.\n", collection, n)
}

// newProgress returns an ingestion.ProgressFunc that draws a progress bar on
// f, created on the first report once the total is known. When f is not a
// terminal it returns nil and the structured logs are the only output.
func newProgress(f *os.File, description string) ingestion.ProgressFunc {
	if !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return progressOn(f, description)
}

// progressOn is newProgress without the terminal check.
func progressOn(w io.Writer, description string) ingestion.ProgressFunc {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}
		_ = bar.Set(done)
	}
}
