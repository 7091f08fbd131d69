package model

// Stage names a state of the pipeline state machine.
type Stage string

const (
	StageStart     Stage = "start"
	StageAcquire   Stage = "acquire"
	StageRewrite   Stage = "rewrite"
	StageReview    Stage = "review"
	StageEvaluate  Stage = "evaluate"
	StageHumanGate Stage = "human_gate"
	StageRecord    Stage = "record"
	StageArchive   Stage = "archive"
	StageNarrate   Stage = "narrate"
	StagePublish   Stage = "publish"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// StageStatus represents the outcome of a single stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Stage    Stage          `json:"stage"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
