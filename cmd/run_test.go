package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/pipeline"
	"github.com/sells-group/chapter-cli/internal/version"
)

func TestPromptLocator_Valid(t *testing.T) {
	var out bytes.Buffer
	locator, err := promptLocator(strings.NewReader("  https://example.com/ch1  \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ch1", locator)
	assert.Contains(t, out.String(), "Enter chapter URL")
}

func TestPromptLocator_RetriesUntilValid(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("example.com\nftp://example.com\n\nhttp://example.com/ch2\n")

	locator, err := promptLocator(in, &out)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/ch2", locator)
	assert.Equal(t, 3, strings.Count(out.String(), "valid URL starting with http://"))
}

func TestPromptLocator_NoTrailingNewline(t *testing.T) {
	locator, err := promptLocator(strings.NewReader("https://example.com/ch3"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ch3", locator)
}

func TestPromptLocator_EOF(t *testing.T) {
	_, err := promptLocator(strings.NewReader("not a url"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read locator")
}

func TestPrintOutcome(t *testing.T) {
	var out bytes.Buffer
	printOutcome(&out, &pipeline.Outcome{
		State:     model.StageDone,
		Attempt:   &model.Attempt{Locator: "https://example.com/ch1", Verdict: model.Verdict{Status: model.StatusAccepted}},
		Record:    &version.RecordHandle{Path: "data/versions/x.json"},
		Archived:  true,
		AudioPath: "data/audio/a.mp3",
		Warnings:  []string{"narration slow"},
	})

	s := out.String()
	assert.Contains(t, s, "Attempt complete: accepted")
	assert.Contains(t, s, "data/versions/x.json")
	assert.Contains(t, s, model.ArchiveID("https://example.com/ch1"))
	assert.Contains(t, s, "data/audio/a.mp3")
	assert.Contains(t, s, "narration slow")
}

func TestPrintOutcome_Failed(t *testing.T) {
	var out bytes.Buffer
	printOutcome(&out, &pipeline.Outcome{
		State:       model.StageFailed,
		FailedStage: model.StageAcquire,
		Attempt:     &model.Attempt{},
	})
	assert.Contains(t, out.String(), "Attempt failed at acquire")

	out.Reset()
	printOutcome(&out, nil)
	assert.Empty(t, out.String())
}

func TestExplainFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cancelled", model.NewAcquisitionError(context.Canceled), "Run interrupted"},
		{"acquire", model.NewAcquisitionError(errors.New("404")), "check the URL"},
		{"record", model.NewPersistenceError(errors.New("disk full")), "data.versions_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			explainFailure(&out, tt.err)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
