package model

import (
	"time"
)

// RunStatus represents the current state of a tracked attempt.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusAcquiring  RunStatus = "acquiring"
	RunStatusGenerating RunStatus = "generating"
	RunStatusEvaluating RunStatus = "evaluating"
	RunStatusAwaiting   RunStatus = "awaiting_approval"
	RunStatusRecording  RunStatus = "recording"
	RunStatusPublishing RunStatus = "publishing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is the tracking row for a single attempt.
type Run struct {
	ID        string     `json:"id"`
	Locator   string     `json:"locator"`
	AttemptID string     `json:"attempt_id"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a tracked attempt.
type RunResult struct {
	Verdict     Status        `json:"verdict,omitempty"`
	TotalScore  float64       `json:"total_score"`
	RecordPath  string        `json:"record_path,omitempty"`
	Archived    bool          `json:"archived"`
	AudioPath   string        `json:"audio_path,omitempty"`
	FailedStage Stage         `json:"failed_stage,omitempty"`
	Error       string        `json:"error,omitempty"`
	Stages      []StageResult `json:"stages"`
}

// RunStage is a stage row within a tracked attempt.
type RunStage struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Stage     Stage        `json:"stage"`
	Status    StageStatus  `json:"status"`
	Result    *StageResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}
