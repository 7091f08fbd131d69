package pipeline

import (
	"context"
	"errors"

	"github.com/sells-group/chapter-cli/internal/model"
)

// ErrNoCandidate is reported by EVALUATE when neither generation stage
// produced text.
var ErrNoCandidate = errors.New("pipeline: no candidate text to evaluate")

// StageOf returns the stage a pipeline error is labelled with, or "" when
// err carries no stage.
func StageOf(err error) model.Stage {
	var e *model.Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// IsFatal reports whether err ends a run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if Cancelled(err) {
		return true
	}
	return model.KindOf(err).Fatal()
}

// Cancelled reports whether err stems from an interrupted run.
func Cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
