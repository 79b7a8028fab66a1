package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/desfrut-go/internal/tracing"
)

// NewAskCmd constructs the `desfrut ask` command, which answers a single
// question from the indexed manual and catalog and prints the sources.
func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the command line",
		Long: `Answer a question exactly as the web front end would, streaming the reply
to stdout followed by the list of sources. The answer is added to the
answer log unless HISTORY_DB=disabled.

Examples:
  desfrut ask "qual o horário de funcionamento?"
  desfrut ask "vocês têm velas aromáticas?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log := appConfig, appLog

			flush, _ := tracing.Install(cfg.Tracing)
			defer flush()

			deps, err := buildAssistant(ctx, cfg, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer deps.store.Close()

			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			ans, err := deps.answerer.Stream(ctx, question, out)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			if hist := openHistory(cfg, log); hist != nil {
				if err := hist.Record(ctx, strings.TrimSpace(question), ans.Text, ans.Sources); err != nil {
					log.Warn("history: failed to record answer", slog.Any("error", err))
				}
				_ = hist.Close()
			}
			fmt.Fprintln(out)
			if len(ans.Sources) > 0 {
				fmt.Fprintf(out, "\nFontes: %s\n", strings.Join(ans.Sources, "; "))
			}
			return nil
		},
	}
}
