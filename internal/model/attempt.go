package model

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Status is the outcome of the approval gate. It is derived 1:1 from the verdict.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusEdited   Status = "edited"
	StatusRejected Status = "rejected"
)

// Publishable reports whether the status lets final text reach the archive
// and the narrator.
func (s Status) Publishable() bool {
	return s == StatusAccepted || s == StatusEdited
}

// Verdict is the human decision produced by the approval gate.
type Verdict struct {
	Status      Status `json:"status"`
	FinalText   string `json:"edited_text"`
	Interrupted bool   `json:"interrupted,omitempty"`
}

// QualityReport is the structured output of the scorer.
type QualityReport struct {
	Scores     map[string]float64 `json:"scores"`
	TotalScore float64            `json:"total_score"`
	MaxTotal   float64            `json:"max_total_score"`
	Notes      string             `json:"notes"`
	Degraded   bool               `json:"degraded,omitempty"`
}

// Acquisition is what the content source returns for a locator.
type Acquisition struct {
	OriginalText string `json:"original_text"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Title        string `json:"title,omitempty"`
	Source       string `json:"source,omitempty"`
}

// Generation is the output of one rewrite or review call.
type Generation struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	Truncated  bool   `json:"truncated,omitempty"`
	InputChars int    `json:"input_chars"`
	UsedChars  int    `json:"used_chars"`
}

// Attempt is one end-to-end run of the pipeline for one locator.
type Attempt struct {
	ID            string         `json:"id"`
	Locator       string         `json:"locator"`
	AttemptID     string         `json:"attempt_id"`
	StartedAt     time.Time      `json:"started_at"`
	OriginalText  string         `json:"original_text"`
	RewrittenText string         `json:"rewritten_text"`
	ReviewedText  string         `json:"reviewed_text"`
	FinalText     string         `json:"final_text"`
	ArtifactPath  string         `json:"artifact_path,omitempty"`
	Evaluation    *QualityReport `json:"evaluation,omitempty"`
	Verdict       Verdict        `json:"verdict"`
	Stages        []StageResult  `json:"stages"`
}

// NewAttempt starts an attempt for locator.
func NewAttempt(id, locator string, now time.Time) *Attempt {
	return &Attempt{
		ID:        id,
		Locator:   locator,
		AttemptID: LocatorHash(locator),
		StartedAt: now,
	}
}

// Status returns the attempt status derived from its verdict.
func (a *Attempt) Status() Status {
	return a.Verdict.Status
}

// Candidate returns the best text available for the approval gate:
// reviewed text, else rewritten text, else empty.
func (a *Attempt) Candidate() string {
	if a.ReviewedText != "" {
		return a.ReviewedText
	}
	return a.RewrittenText
}

// LocatorHash is the stable md5 hex digest of a locator.
func LocatorHash(locator string) string {
	sum := md5.Sum([]byte(locator))
	return hex.EncodeToString(sum[:])
}

// ChapterID is the chapter identifier written into version records.
func ChapterID(locator string) string {
	return "chapter_" + LocatorHash(locator)
}

// ArchiveID is the stable archive key for a locator.
func ArchiveID(locator string) string {
	return LocatorHash(locator)[:12]
}
