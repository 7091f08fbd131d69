package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/publish"
	"github.com/sells-group/chapter-cli/internal/version"
)

const sampleChapter = `The morning fog lay thick across the harbor when the ship came in.
Sailors shouted to one another from the deck. The old captain watched the shore
with tired eyes, counting the lamps that still burned along the quay.`

// --- Source ---

type fakeSource struct {
	acq *model.Acquisition
	err error
}

func (f *fakeSource) Acquire(_ context.Context, _ string) (*model.Acquisition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.acq, nil
}

func okSource() *fakeSource {
	return &fakeSource{acq: &model.Acquisition{
		OriginalText: sampleChapter,
		ArtifactPath: "data/screenshots/shot.png",
		Title:        "Chapter 1",
		Source:       "local_http",
	}}
}

// --- Engine ---

type fakeRewriter struct {
	fn    func(ctx context.Context, original string) (model.Generation, error)
	calls int
}

func (f *fakeRewriter) Rewrite(ctx context.Context, original string) (model.Generation, error) {
	f.calls++
	return f.fn(ctx, original)
}

type fakeReviewer struct {
	fn    func(ctx context.Context, original, rewritten string) (model.Generation, error)
	calls int
}

func (f *fakeReviewer) Review(ctx context.Context, original, rewritten string) (model.Generation, error) {
	f.calls++
	return f.fn(ctx, original, rewritten)
}

func rewriteWith(text string) *fakeRewriter {
	return &fakeRewriter{fn: func(_ context.Context, _ string) (model.Generation, error) {
		return model.Generation{Text: text, Model: "anthropic:test"}, nil
	}}
}

func reviewWith(text string) *fakeReviewer {
	return &fakeReviewer{fn: func(_ context.Context, _, _ string) (model.Generation, error) {
		return model.Generation{Text: text, Model: "anthropic:test"}, nil
	}}
}

func failingRewriter() *fakeRewriter {
	return &fakeRewriter{fn: func(_ context.Context, _ string) (model.Generation, error) {
		return model.Generation{}, model.NewGenerationError(model.StageRewrite, eris.New("engine: model unavailable"))
	}}
}

func failingReviewer() *fakeReviewer {
	return &fakeReviewer{fn: func(_ context.Context, _, _ string) (model.Generation, error) {
		return model.Generation{}, model.NewGenerationError(model.StageReview, eris.New("engine: model unavailable"))
	}}
}

// --- Approver ---

type fakeApprover struct {
	verdict   func(candidate string) model.Verdict
	err       error
	candidate string
	report    *model.QualityReport
	calls     int
}

func (f *fakeApprover) RequestApproval(_ context.Context, _, candidate string, report *model.QualityReport) (model.Verdict, error) {
	f.calls++
	f.candidate = candidate
	f.report = report
	if f.err != nil {
		return model.Verdict{}, f.err
	}
	return f.verdict(candidate), nil
}

func accepting() *fakeApprover {
	return &fakeApprover{verdict: func(c string) model.Verdict {
		return model.Verdict{Status: model.StatusAccepted, FinalText: c}
	}}
}

func rejecting() *fakeApprover {
	return &fakeApprover{verdict: func(string) model.Verdict {
		return model.Verdict{Status: model.StatusRejected}
	}}
}

func editing(text string) *fakeApprover {
	return &fakeApprover{verdict: func(string) model.Verdict {
		return model.Verdict{Status: model.StatusEdited, FinalText: text}
	}}
}

// --- Recorder ---

type failingRecorder struct{}

func (failingRecorder) Record(_ context.Context, _ *model.Attempt) (*version.RecordHandle, error) {
	return nil, model.NewPersistenceError(eris.New("version: disk full"))
}

// --- Archive ---

type fakeArchive struct {
	mu    sync.Mutex
	err   error
	ids   []string
	texts []string
	meta  []map[string]string
}

func (f *fakeArchive) Upsert(_ context.Context, id, text string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	f.texts = append(f.texts, text)
	f.meta = append(f.meta, metadata)
	return nil
}

// --- Narrator ---

type fakeNarrator struct {
	err   error
	texts []string
}

func (f *fakeNarrator) Synthesize(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, text)
	return "data/audio/chapter.mp3", nil
}

// --- Publisher ---

type fakePublisher struct {
	entries []publish.Entry
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, e publish.Entry) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, e)
	return "page-1", nil
}
