package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/desfrut-go/internal/store"
)

// NewHistoryCmd constructs the `desfrut history` command, which prints the
// most recent answered questions from the answer log.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently answered questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := appConfig
			if !cfg.HistoryEnabled() {
				return errors.New("history: answer log is disabled (HISTORY_DB=disabled)")
			}

			l, err := store.Open(cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Nenhuma pergunta registrada.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "[%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Question)
				fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(e.Answer, "\n", "\n  "))
				if len(e.Sources) > 0 {
					fmt.Fprintf(out, "  Fontes: %s\n", strings.Join(e.Sources, "; "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries to show")
	return cmd
}
