package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/chapter-cli/internal/console"
	"github.com/sells-group/chapter-cli/internal/version"
)

const verifyConcurrency = 8

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect version records",
	Long:  "Commands for listing, viewing and verifying the immutable version records written for every attempt.",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List version records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		chapter, _ := cmd.Flags().GetString("chapter")
		status, _ := cmd.Flags().GetString("status")

		list, err := version.List(cfg.Data.VersionsDir, version.Filter{ChapterID: chapter, Status: status})
		if err != nil {
			return eris.Wrap(err, "records list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}
		formatRecordsList(cmd.OutOrStdout(), list)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a version record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		doc, err := version.Load(resolveRecord(cfg.Data.VersionsDir, args[0]))
		if err != nil {
			return eris.Wrap(err, "records show")
		}
		return writeDocument(cmd.OutOrStdout(), doc, format)
	},
}

// -- records verify --

var recordsVerifyCmd = &cobra.Command{
	Use:   "verify [name...]",
	Short: "Verify record schemas and digests",
	Long:  "Checks every named record, or every record in the versions directory, against the record schema and its stored digest.",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := recordPaths(cfg.Data.VersionsDir, args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}

		results := verifyRecords(cmd.Context(), paths)
		if n := reportVerify(cmd.OutOrStdout(), results); n > 0 {
			return eris.Errorf("records verify: %d of %d records failed", n, len(results))
		}
		return nil
	},
}

type verifyResult struct {
	Path string
	Err  error
}

// verifyRecords checks paths concurrently and returns results in input order.
func verifyRecords(ctx context.Context, paths []string) []verifyResult {
	results := make([]verifyResult, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				results[i] = verifyResult{Path: p, Err: err}
				return nil
			}
			_, err := version.Verify(p)
			results[i] = verifyResult{Path: p, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func reportVerify(w io.Writer, results []verifyResult) int {
	failed := 0
	for _, r := range results {
		name := filepath.Base(r.Path)
		switch {
		case r.Err == nil:
			console.Success(w, "%s", name)
		case errors.Is(r.Err, version.ErrDigestMismatch):
			failed++
			console.Error(w, "%s: digest mismatch", name)
		default:
			failed++
			console.Error(w, "%s: %v", name, r.Err)
		}
	}
	return failed
}

// resolveRecord maps a record name to its path inside dir. Existing paths
// are returned unchanged.
func resolveRecord(dir, name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return filepath.Join(dir, filepath.Base(name))
}

func recordPaths(dir string, names []string) ([]string, error) {
	if len(names) > 0 {
		paths := make([]string, len(names))
		for i, n := range names {
			paths[i] = resolveRecord(dir, n)
		}
		return paths, nil
	}
	list, err := version.List(dir, version.Filter{})
	if err != nil {
		return nil, eris.Wrap(err, "records verify")
	}
	paths := make([]string, len(list))
	for i, s := range list {
		paths[i] = s.Path
	}
	return paths, nil
}

func writeDocument(w io.Writer, doc *version.Document, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(doc)
	default:
		return eris.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

func formatRecordsList(w io.Writer, list []version.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tSEQ\tSTATUS\tCHAPTER\tURL")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", s.Timestamp, s.Sequence, s.Status, s.ChapterID, s.URL)
	}
	_ = tw.Flush()
}

func init() {
	recordsListCmd.Flags().String("chapter", "", "filter by chapter id")
	recordsListCmd.Flags().String("status", "", "filter by status (accepted, edited, rejected)")
	recordsShowCmd.Flags().String("format", "json", "output format (json or yaml)")

	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd, recordsVerifyCmd)
	rootCmd.AddCommand(recordsCmd)
}
