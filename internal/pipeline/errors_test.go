package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/chapter-cli/internal/model"
)

func TestStageOf(t *testing.T) {
	assert.Equal(t, model.StageAcquire, StageOf(model.NewAcquisitionError(eris.New("boom"))))
	assert.Equal(t, model.StageReview, StageOf(eris.Wrap(model.NewGenerationError(model.StageReview, eris.New("boom")), "outer")))
	assert.Equal(t, model.Stage(""), StageOf(eris.New("plain")))
	assert.Equal(t, model.Stage(""), StageOf(nil))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"acquisition", model.NewAcquisitionError(eris.New("x")), true},
		{"persistence", model.NewPersistenceError(eris.New("x")), true},
		{"generation", model.NewGenerationError(model.StageRewrite, eris.New("x")), false},
		{"archive", model.NewArchiveUnavailableError(eris.New("x")), false},
		{"narration", model.NewNarrationError(eris.New("x")), false},
		{"cancelled", eris.Wrap(context.Canceled, "pipeline: interrupted"), true},
		{"plain", eris.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestCancelled(t *testing.T) {
	assert.True(t, Cancelled(context.Canceled))
	assert.True(t, Cancelled(eris.Wrap(context.DeadlineExceeded, "timeout")))
	assert.False(t, Cancelled(ErrNoCandidate))
}
