package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/console"
	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/pipeline"
)

var runVoice bool

var runCmd = &cobra.Command{
	Use:   "run [locator]",
	Short: "Rewrite, review and approve a single chapter",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in := bufio.NewReader(os.Stdin)
		out := cmd.OutOrStdout()

		var locator string
		if len(args) == 1 {
			locator = args[0]
		} else {
			l, err := promptLocator(in, out)
			if err != nil {
				return err
			}
			locator = l
		}

		env, err := initPipeline(ctx, in, out, runVoice)
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Pipeline.Run(ctx, locator)
		printOutcome(out, outcome)
		if err == nil {
			return nil
		}
		explainFailure(out, err)
		if !pipeline.IsFatal(err) {
			zap.L().Warn("pipeline run finished with error", zap.Error(err))
			return nil
		}
		return eris.Wrap(err, "pipeline run")
	},
}

// promptLocator asks for a chapter URL until one starting with http:// or
// https:// is entered.
func promptLocator(in io.Reader, out io.Writer) (string, error) {
	r, ok := in.(*bufio.Reader)
	if !ok {
		r = bufio.NewReader(in)
	}
	for {
		fmt.Fprint(out, "Enter chapter URL: ")
		line, err := r.ReadString('\n')
		locator := strings.TrimSpace(line)
		if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
			return locator, nil
		}
		if err != nil {
			return "", eris.Wrap(err, "read locator")
		}
		console.Warn(out, "Please enter a valid URL starting with http:// or https://")
	}
}

func printOutcome(w io.Writer, o *pipeline.Outcome) {
	if o == nil {
		return
	}
	fmt.Fprintln(w)
	switch o.State {
	case model.StageDone:
		console.Success(w, "Attempt complete: %s", o.Attempt.Verdict.Status)
	default:
		console.Error(w, "Attempt failed at %s", o.FailedStage)
	}
	if o.Record != nil {
		console.Info(w, "Record: %s", o.Record.Path)
	}
	if o.Archived {
		console.Info(w, "Archived as %s", model.ArchiveID(o.Attempt.Locator))
	}
	if o.AudioPath != "" {
		console.Info(w, "Audio: %s", o.AudioPath)
	}
	for _, warn := range o.Warnings {
		console.Warn(w, "%s", warn)
	}
	zap.L().Debug("run outcome",
		zap.String("state", string(o.State)),
		zap.Int("warnings", len(o.Warnings)),
	)
}

// explainFailure tells the user what to do about a failed run.
func explainFailure(w io.Writer, err error) {
	switch {
	case pipeline.Cancelled(err):
		console.Warn(w, "Run interrupted")
	case pipeline.StageOf(err) == model.StageAcquire:
		console.Info(w, "Could not acquire the chapter; check the URL and try again")
	case model.IsKind(err, model.KindPersistence):
		console.Info(w, "The version record was not saved; check data.versions_dir")
	}
}

func init() {
	runCmd.Flags().BoolVar(&runVoice, "voice", false, "narrate the approved chapter to an audio file")
	rootCmd.AddCommand(runCmd)
}
