package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chapter-cli/internal/archive"
	"github.com/sells-group/chapter-cli/internal/console"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search archived chapters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := archive.Open(ctx, cfg.Archive)
		if err != nil {
			return eris.Wrap(err, "open archive")
		}
		defer a.Close() //nolint:errcheck

		hits, err := a.Search(ctx, strings.Join(args, " "), searchLimit)
		if err != nil {
			return eris.Wrap(err, "search archive")
		}
		formatHits(cmd.OutOrStdout(), hits)
		return nil
	},
}

func formatHits(w io.Writer, hits []archive.Hit) {
	if len(hits) == 0 {
		console.Info(w, "No matching chapters.")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(w, "%d. %s  (relevance %.3f)\n", i+1, h.ID, h.Relevance)
		if url := h.Metadata["url"]; url != "" {
			fmt.Fprintf(w, "   %s\n", url)
		}
		fmt.Fprintf(w, "   %s\n", console.Excerpt(strings.Join(strings.Fields(h.Text), " "), 160))
	}
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", archive.DefaultSearchLimit, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
