package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/store"
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Inspect tracked pipeline attempts",
	Long:  "Commands for listing and viewing attempts recorded in the attempt store.",
}

// -- attempts list --

var attemptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attempts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		locator, _ := cmd.Flags().GetString("locator")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:  model.RunStatus(status),
			Locator: locator,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "attempts list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No attempts found.")
			return nil
		}
		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- attempts show --

var attemptsShowCmd = &cobra.Command{
	Use:   "show <attempt-id>",
	Short: "Show an attempt and its stages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "attempts show")
		}
		stages, err := st.ListStages(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "attempts show stages")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(attemptDetail{Run: run, Stages: stages})
	},
}

type attemptDetail struct {
	*model.Run
	Stages []model.RunStage `json:"stages"`
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tVERDICT\tSCORE\tCREATED\tLOCATOR")
	for _, r := range runs {
		verdict, score := "-", "-"
		if r.Result != nil {
			if r.Result.Verdict != "" {
				verdict = string(r.Result.Verdict)
			}
			score = fmt.Sprintf("%.2f", r.Result.TotalScore)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, verdict, score, r.CreatedAt.Local().Format(time.DateTime), r.Locator)
	}
	_ = tw.Flush()
}

func init() {
	attemptsListCmd.Flags().String("status", "", "filter by status")
	attemptsListCmd.Flags().String("locator", "", "filter by chapter URL")
	attemptsListCmd.Flags().Int("limit", 20, "maximum number of attempts")

	attemptsCmd.AddCommand(attemptsListCmd, attemptsShowCmd)
	rootCmd.AddCommand(attemptsCmd)
}
