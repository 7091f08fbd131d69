package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/store"
)

// tracker mirrors stage transitions into the attempt and the run store.
// Store failures are logged and never affect the run.
type tracker struct {
	store   store.Store
	runID   string
	attempt *model.Attempt
	log     *zap.Logger
}

func newTracker(ctx context.Context, st store.Store, attempt *model.Attempt, log *zap.Logger) *tracker {
	t := &tracker{store: st, attempt: attempt, log: log}
	if st == nil {
		return t
	}
	run, err := st.CreateRun(context.WithoutCancel(ctx), attempt.Locator)
	if err != nil {
		log.Warn("pipeline: failed to create run", zap.Error(err))
		return t
	}
	t.runID = run.ID
	return t
}

func (t *tracker) enabled() bool {
	return t.store != nil && t.runID != ""
}

// track runs fn as stage, recording duration, status and metadata.
func (t *tracker) track(ctx context.Context, stage model.Stage, status model.RunStatus, fn func() (map[string]any, error)) error {
	bg := context.WithoutCancel(ctx)
	var row *model.RunStage
	if t.enabled() {
		if err := t.store.UpdateRunStatus(bg, t.runID, status); err != nil {
			t.log.Warn("pipeline: failed to update run status", zap.String("stage", string(stage)), zap.Error(err))
		}
		var err error
		row, err = t.store.CreateStage(bg, t.runID, stage)
		if err != nil {
			t.log.Warn("pipeline: failed to create stage", zap.String("stage", string(stage)), zap.Error(err))
		}
	}

	start := time.Now()
	meta, fnErr := fn()
	duration := time.Since(start).Milliseconds()

	result := model.StageResult{Stage: stage, Duration: duration, Metadata: meta}
	if fnErr != nil {
		result.Status = model.StageStatusFailed
		result.Error = fnErr.Error()
		t.log.Error("pipeline: stage failed",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", duration),
			zap.Error(fnErr),
		)
	} else {
		result.Status = model.StageStatusComplete
		t.log.Info("pipeline: stage complete",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", duration),
		)
	}

	t.complete(bg, row, result)
	return fnErr
}

// skip records stage as skipped with reason.
func (t *tracker) skip(ctx context.Context, stage model.Stage, reason string) {
	t.log.Info("pipeline: stage skipped", zap.String("stage", string(stage)), zap.String("reason", reason))

	bg := context.WithoutCancel(ctx)
	var row *model.RunStage
	if t.enabled() {
		var err error
		row, err = t.store.CreateStage(bg, t.runID, stage)
		if err != nil {
			t.log.Warn("pipeline: failed to create stage", zap.String("stage", string(stage)), zap.Error(err))
		}
	}
	t.complete(bg, row, model.StageResult{
		Stage:    stage,
		Status:   model.StageStatusSkipped,
		Metadata: map[string]any{"reason": reason},
	})
}

func (t *tracker) complete(ctx context.Context, row *model.RunStage, result model.StageResult) {
	t.attempt.Stages = append(t.attempt.Stages, result)
	if row == nil {
		return
	}
	if err := t.store.CompleteStage(ctx, row.ID, &result); err != nil {
		t.log.Warn("pipeline: failed to complete stage", zap.String("stage", string(result.Stage)), zap.Error(err))
	}
}

// finish writes the terminal run result.
func (t *tracker) finish(ctx context.Context, out *Outcome, runErr error) {
	if !t.enabled() {
		return
	}
	status := model.RunStatusComplete
	res := &model.RunResult{
		Verdict:     out.Attempt.Verdict.Status,
		Archived:    out.Archived,
		AudioPath:   out.AudioPath,
		FailedStage: out.FailedStage,
		Stages:      out.Attempt.Stages,
	}
	if out.Attempt.Evaluation != nil {
		res.TotalScore = out.Attempt.Evaluation.TotalScore
	}
	if out.Record != nil {
		res.RecordPath = out.Record.Path
	}
	if out.State == model.StageFailed {
		status = model.RunStatusFailed
	}
	if runErr != nil {
		res.Error = runErr.Error()
	}
	if err := t.store.UpdateRunResult(context.WithoutCancel(ctx), t.runID, status, res); err != nil {
		t.log.Warn("pipeline: failed to update run result", zap.Error(err))
	}
}
