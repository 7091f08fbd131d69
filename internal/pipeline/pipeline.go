// Package pipeline drives one chapter from locator to approved, recorded and
// optionally archived and narrated text.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/console"
	"github.com/sells-group/chapter-cli/internal/gate"
	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/publish"
	"github.com/sells-group/chapter-cli/internal/store"
	"github.com/sells-group/chapter-cli/internal/version"
)

// Source acquires the original chapter text.
type Source interface {
	Acquire(ctx context.Context, locator string) (*model.Acquisition, error)
}

// Rewriter produces the first rewrite.
type Rewriter interface {
	Rewrite(ctx context.Context, original string) (model.Generation, error)
}

// Reviewer refines a rewrite against the original.
type Reviewer interface {
	Review(ctx context.Context, original, rewritten string) (model.Generation, error)
}

// Evaluator scores a candidate against the original.
type Evaluator interface {
	Evaluate(original, candidate string) (*model.QualityReport, error)
	Sentinel(reason string) *model.QualityReport
}

// Recorder persists the attempt as an immutable version record.
type Recorder interface {
	Record(ctx context.Context, a *model.Attempt) (*version.RecordHandle, error)
}

// Archiver stores final text for later search.
type Archiver interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]string) error
}

// Narrator turns final text into an audio file and returns its path.
type Narrator interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Deps are the collaborators of a Pipeline. Archive, Narrator, Publisher
// and Store are optional. ArchiveErr is the reason an enabled archive could
// not be opened; it makes ARCHIVE fail instead of being skipped.
type Deps struct {
	Source     Source
	Rewriter   Rewriter
	Reviewer   Reviewer
	Evaluator  Evaluator
	Approver   gate.Approver
	Recorder   Recorder
	Archive    Archiver
	ArchiveErr error
	Narrator   Narrator
	Publisher  publish.Publisher
	Store      store.Store
}

// Outcome is the result of one Run.
type Outcome struct {
	State       model.Stage
	FailedStage model.Stage
	Attempt     *model.Attempt
	Record      *version.RecordHandle
	Archived    bool
	AudioPath   string
	PublishedID string
	Warnings    []string
}

func (o *Outcome) warn(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// Pipeline runs the chapter state machine.
type Pipeline struct {
	deps    Deps
	out     io.Writer
	narrate bool
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutput sets where progress lines are written.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithNarration enables the NARRATE stage.
func WithNarration(enabled bool) Option {
	return func(p *Pipeline) { p.narrate = enabled }
}

// WithClock overrides the attempt start clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates deps and creates a Pipeline.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	required := map[string]bool{
		"source":    deps.Source != nil,
		"rewriter":  deps.Rewriter != nil,
		"reviewer":  deps.Reviewer != nil,
		"evaluator": deps.Evaluator != nil,
		"approver":  deps.Approver != nil,
		"recorder":  deps.Recorder != nil,
	}
	var missing []string
	for _, name := range []string{"source", "rewriter", "reviewer", "evaluator", "approver", "recorder"} {
		if !required[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("pipeline: missing dependencies: %s", strings.Join(missing, ", "))
	}

	p := &Pipeline{deps: deps, out: io.Discard, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Run executes the pipeline for locator. The returned error is non-nil only
// for fatal outcomes: a failed acquisition, a failed record write or an
// interrupted run. The Outcome is always non-nil.
func (p *Pipeline) Run(ctx context.Context, locator string) (*Outcome, error) {
	locator = strings.TrimSpace(locator)
	attempt := model.NewAttempt(uuid.New().String(), locator, p.now().UTC())
	out := &Outcome{State: model.StageStart, Attempt: attempt}

	log := zap.L().With(
		zap.String("locator", locator),
		zap.String("attempt_id", attempt.AttemptID),
	)
	log.Info("pipeline: starting attempt", zap.String("id", attempt.ID))
	t := newTracker(ctx, p.deps.Store, attempt, log)

	// ACQUIRE
	console.Step(p.out, 1, "Scraping chapter content")
	var title string
	err := t.track(ctx, model.StageAcquire, model.RunStatusAcquiring, func() (map[string]any, error) {
		acq, err := p.deps.Source.Acquire(ctx, locator)
		if err != nil {
			return nil, err
		}
		attempt.OriginalText = acq.OriginalText
		attempt.ArtifactPath = acq.ArtifactPath
		title = acq.Title
		return map[string]any{
			"source":   acq.Source,
			"chars":    len([]rune(acq.OriginalText)),
			"artifact": acq.ArtifactPath,
		}, nil
	})
	if err != nil {
		console.Error(p.out, "Failed to scrape chapter: %v", err)
		if !model.IsKind(err, model.KindAcquisition) {
			err = model.NewAcquisitionError(err)
		}
		return p.fail(ctx, t, out, model.StageAcquire, err)
	}
	console.Success(p.out, "Scraped %d characters", len([]rune(attempt.OriginalText)))

	// REWRITE
	console.Step(p.out, 2, "Rewriting chapter")
	err = t.track(ctx, model.StageRewrite, model.RunStatusGenerating, func() (map[string]any, error) {
		gen, err := p.deps.Rewriter.Rewrite(ctx, attempt.OriginalText)
		if err != nil {
			return nil, err
		}
		attempt.RewrittenText = gen.Text
		return generationMeta(gen), nil
	})
	if ctx.Err() != nil {
		return p.abort(ctx, t, out, model.StageRewrite)
	}
	if err != nil {
		console.Warn(p.out, "Rewrite failed: %v", err)
		out.warn("rewrite failed: %v", err)
	} else {
		console.Success(p.out, "Rewrite complete")
	}

	// REVIEW
	console.Step(p.out, 3, "Reviewing rewrite")
	if attempt.RewrittenText == "" {
		t.skip(ctx, model.StageReview, "no rewritten text")
		console.Warn(p.out, "Skipping review: no rewritten text")
	} else {
		err = t.track(ctx, model.StageReview, model.RunStatusGenerating, func() (map[string]any, error) {
			gen, err := p.deps.Reviewer.Review(ctx, attempt.OriginalText, attempt.RewrittenText)
			if err != nil {
				return nil, err
			}
			attempt.ReviewedText = gen.Text
			return generationMeta(gen), nil
		})
		if ctx.Err() != nil {
			return p.abort(ctx, t, out, model.StageReview)
		}
		if err != nil {
			console.Warn(p.out, "Review failed: %v", err)
			out.warn("review failed: %v", err)
		} else {
			console.Success(p.out, "Review complete")
		}
	}

	// EVALUATE
	console.Step(p.out, 4, "Evaluating quality")
	if ctx.Err() != nil {
		return p.abort(ctx, t, out, model.StageEvaluate)
	}
	candidate := attempt.Candidate()
	err = t.track(ctx, model.StageEvaluate, model.RunStatusEvaluating, func() (map[string]any, error) {
		if strings.TrimSpace(candidate) == "" {
			return nil, ErrNoCandidate
		}
		report, err := p.deps.Evaluator.Evaluate(attempt.OriginalText, candidate)
		if err != nil {
			return nil, err
		}
		attempt.Evaluation = report
		return map[string]any{"total_score": report.TotalScore}, nil
	})
	if err != nil {
		attempt.Evaluation = p.deps.Evaluator.Sentinel(err.Error())
		console.Warn(p.out, "Evaluation unavailable: %v", err)
		out.warn("evaluation failed: %v", err)
	}

	// HUMAN_GATE
	console.Step(p.out, 5, "Human review")
	err = t.track(ctx, model.StageHumanGate, model.RunStatusAwaiting, func() (map[string]any, error) {
		v, err := p.deps.Approver.RequestApproval(ctx, attempt.OriginalText, candidate, attempt.Evaluation)
		if err != nil {
			return nil, err
		}
		attempt.Verdict = v
		return map[string]any{
			"status":      string(v.Status),
			"interrupted": v.Interrupted,
		}, nil
	})
	if err != nil {
		attempt.Verdict = model.Verdict{Status: model.StatusRejected, Interrupted: true}
		out.warn("approval failed: %v", err)
	}
	attempt.FinalText = attempt.Verdict.FinalText
	if attempt.Verdict.Interrupted {
		console.Warn(p.out, "Review interrupted; chapter marked as rejected")
	}

	// RECORD
	console.Step(p.out, 6, "Saving version")
	if err := p.record(ctx, t, out); err != nil {
		console.Error(p.out, "Failed to save version: %v", err)
		return p.fail(ctx, t, out, model.StageRecord, err)
	}
	console.Success(p.out, "Saved %s", out.Record.Name)

	if !attempt.Verdict.Status.Publishable() {
		t.skip(ctx, model.StageArchive, "chapter rejected")
		t.skip(ctx, model.StageNarrate, "chapter rejected")
		t.skip(ctx, model.StagePublish, "chapter rejected")
		console.Info(p.out, "Chapter rejected; skipping archive and narration")
		return p.done(ctx, t, out)
	}
	if strings.TrimSpace(attempt.FinalText) == "" {
		t.skip(ctx, model.StageArchive, "empty final text")
		t.skip(ctx, model.StageNarrate, "empty final text")
		t.skip(ctx, model.StagePublish, "empty final text")
		console.Warn(p.out, "Final text is empty; skipping archive and narration")
		out.warn("final text is empty; archive and narration skipped")
		return p.done(ctx, t, out)
	}

	p.archive(ctx, t, out)
	p.narrateFinal(ctx, t, out)
	p.publish(ctx, t, out, title)

	return p.done(ctx, t, out)
}

// record writes the version record. It runs detached from cancellation so
// an interrupted run still leaves its record.
func (p *Pipeline) record(ctx context.Context, t *tracker, out *Outcome) error {
	recCtx := context.WithoutCancel(ctx)
	return t.track(recCtx, model.StageRecord, model.RunStatusRecording, func() (map[string]any, error) {
		h, err := p.deps.Recorder.Record(recCtx, out.Attempt)
		if err != nil {
			return nil, err
		}
		out.Record = h
		return map[string]any{
			"path":     h.Path,
			"sequence": h.Sequence,
			"digest":   h.Digest,
		}, nil
	})
}

func (p *Pipeline) archive(ctx context.Context, t *tracker, out *Outcome) {
	console.Step(p.out, 7, "Archiving chapter")
	a := out.Attempt
	id := model.ArchiveID(a.Locator)
	if p.deps.Archive == nil {
		if p.deps.ArchiveErr == nil {
			t.skip(ctx, model.StageArchive, "archive disabled")
			console.Info(p.out, "Archive disabled")
			return
		}
		err := t.track(ctx, model.StageArchive, model.RunStatusPublishing, func() (map[string]any, error) {
			if model.IsKind(p.deps.ArchiveErr, model.KindArchiveUnavailable) {
				return nil, p.deps.ArchiveErr
			}
			return nil, model.NewArchiveUnavailableError(p.deps.ArchiveErr)
		})
		console.Warn(p.out, "Archive unavailable: %v", err)
		out.warn("archive failed: %v", err)
		return
	}
	err := t.track(ctx, model.StageArchive, model.RunStatusPublishing, func() (map[string]any, error) {
		meta := map[string]string{
			"url":        a.Locator,
			"chapter_id": model.ChapterID(a.Locator),
			"status":     string(a.Verdict.Status),
			"record":     out.Record.Name,
		}
		if a.Evaluation != nil {
			meta["total_score"] = strconv.FormatFloat(a.Evaluation.TotalScore, 'f', 2, 64)
		}
		if err := p.deps.Archive.Upsert(ctx, id, a.FinalText, meta); err != nil {
			return nil, err
		}
		return map[string]any{"archive_id": id}, nil
	})
	if err != nil {
		console.Warn(p.out, "Archive unavailable: %v", err)
		out.warn("archive failed: %v", err)
		return
	}
	out.Archived = true
	console.Success(p.out, "Archived as %s", id)
}

func (p *Pipeline) narrateFinal(ctx context.Context, t *tracker, out *Outcome) {
	if !p.narrate || p.deps.Narrator == nil {
		t.skip(ctx, model.StageNarrate, "narration not requested")
		return
	}
	console.Step(p.out, 8, "Generating audio")
	err := t.track(ctx, model.StageNarrate, model.RunStatusPublishing, func() (map[string]any, error) {
		path, err := p.deps.Narrator.Synthesize(ctx, out.Attempt.FinalText)
		if err != nil {
			return nil, err
		}
		out.AudioPath = path
		return map[string]any{"path": path}, nil
	})
	if err != nil {
		console.Warn(p.out, "Narration failed: %v", err)
		out.warn("narration failed: %v", err)
		return
	}
	console.Success(p.out, "Audio saved to %s", out.AudioPath)
}

func (p *Pipeline) publish(ctx context.Context, t *tracker, out *Outcome, title string) {
	if p.deps.Publisher == nil {
		t.skip(ctx, model.StagePublish, "publication log not configured")
		return
	}
	console.Step(p.out, 9, "Publishing log entry")
	a := out.Attempt
	entry := publish.Entry{
		ChapterID:   model.ChapterID(a.Locator),
		Title:       title,
		URL:         a.Locator,
		Status:      string(a.Verdict.Status),
		RecordPath:  out.Record.Path,
		PublishedAt: p.now().UTC(),
	}
	if a.Evaluation != nil {
		entry.Score = a.Evaluation.TotalScore
	}
	err := t.track(ctx, model.StagePublish, model.RunStatusPublishing, func() (map[string]any, error) {
		id, err := p.deps.Publisher.Publish(ctx, entry)
		if err != nil {
			return nil, err
		}
		out.PublishedID = id
		return map[string]any{"page_id": id}, nil
	})
	if err != nil {
		console.Warn(p.out, "Publication log failed: %v", err)
		out.warn("publish failed: %v", err)
		return
	}
	console.Success(p.out, "Publication log updated")
}

// abort handles cancellation during generation or evaluation: the attempt
// is recorded as an interrupted rejection and the run fails at stage.
func (p *Pipeline) abort(ctx context.Context, t *tracker, out *Outcome, stage model.Stage) (*Outcome, error) {
	cause := eris.Wrapf(ctx.Err(), "pipeline: interrupted during %s", stage)
	console.Warn(p.out, "Interrupted during %s; saving partial record", stage)

	out.Attempt.Verdict = model.Verdict{Status: model.StatusRejected, Interrupted: true}
	out.Attempt.FinalText = ""
	if err := p.record(ctx, t, out); err != nil {
		out.warn("partial record failed: %v", err)
		return p.fail(ctx, t, out, model.StageRecord, err)
	}
	return p.fail(ctx, t, out, stage, cause)
}

func (p *Pipeline) fail(ctx context.Context, t *tracker, out *Outcome, stage model.Stage, err error) (*Outcome, error) {
	out.State = model.StageFailed
	out.FailedStage = stage
	t.finish(ctx, out, err)
	t.log.Error("pipeline: attempt failed", zap.String("stage", string(stage)), zap.Error(err))
	return out, err
}

func (p *Pipeline) done(ctx context.Context, t *tracker, out *Outcome) (*Outcome, error) {
	out.State = model.StageDone
	t.finish(ctx, out, nil)
	t.log.Info("pipeline: attempt complete",
		zap.String("status", string(out.Attempt.Verdict.Status)),
		zap.Bool("archived", out.Archived),
		zap.Int("warnings", len(out.Warnings)),
	)
	return out, nil
}

func generationMeta(g model.Generation) map[string]any {
	return map[string]any{
		"model":       g.Model,
		"truncated":   g.Truncated,
		"input_chars": g.InputChars,
		"used_chars":  g.UsedChars,
		"output_len":  len([]rune(g.Text)),
	}
}
