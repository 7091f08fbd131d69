// Package version writes immutable, content-addressed chapter version records.
package version

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"
	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/model"
)

// TimestampLayout formats record timestamps and file names.
const TimestampLayout = "20060102_150405"

//go:embed schema/record.schema.json
var recordSchema []byte

// Document is the persisted shape of a version record.
type Document struct {
	Metadata      Metadata            `json:"metadata" yaml:"metadata"`
	Content       Content             `json:"content" yaml:"content"`
	Evaluation    Evaluation          `json:"evaluation" yaml:"evaluation"`
	HumanFeedback HumanFeedback       `json:"human_feedback" yaml:"human_feedback"`
	Stages        []model.StageResult `json:"stages" yaml:"stages"`
}

// Metadata identifies the record.
type Metadata struct {
	URL          string `json:"url" yaml:"url"`
	Timestamp    string `json:"timestamp" yaml:"timestamp"`
	Status       string `json:"status" yaml:"status"`
	ChapterID    string `json:"chapter_id" yaml:"chapter_id"`
	Version      string `json:"version" yaml:"version"`
	AttemptID    string `json:"attempt_id" yaml:"attempt_id"`
	RunID        string `json:"run_id" yaml:"run_id"`
	Sequence     int    `json:"sequence" yaml:"sequence"`
	RecordDigest string `json:"record_digest" yaml:"record_digest"`
}

// Content holds every text produced by the attempt.
type Content struct {
	OriginalText   string `json:"original_text" yaml:"original_text"`
	RewrittenText  string `json:"rewritten_text" yaml:"rewritten_text"`
	ReviewedText   string `json:"reviewed_text" yaml:"reviewed_text"`
	FinalText      string `json:"final_text" yaml:"final_text"`
	ScreenshotPath string `json:"screenshot_path" yaml:"screenshot_path"`
}

// Evaluation is the quality report as persisted.
type Evaluation struct {
	Scores     map[string]float64 `json:"scores" yaml:"scores"`
	TotalScore float64            `json:"total_score" yaml:"total_score"`
	MaxTotal   float64            `json:"max_total_score" yaml:"max_total_score"`
	Notes      string             `json:"notes" yaml:"notes"`
	Degraded   bool               `json:"degraded" yaml:"degraded"`
}

// HumanFeedback is the approval verdict as persisted.
type HumanFeedback struct {
	Status      string `json:"status" yaml:"status"`
	EditedText  string `json:"edited_text" yaml:"edited_text"`
	Interrupted bool   `json:"interrupted" yaml:"interrupted"`
}

// NewDocument builds the record document for an attempt. The digest is left
// empty.
func NewDocument(a *model.Attempt, timestamp string, seq int) *Document {
	eval := Evaluation{Scores: map[string]float64{}}
	if a.Evaluation != nil {
		eval.TotalScore = a.Evaluation.TotalScore
		eval.MaxTotal = a.Evaluation.MaxTotal
		eval.Notes = a.Evaluation.Notes
		eval.Degraded = a.Evaluation.Degraded
		for k, v := range a.Evaluation.Scores {
			eval.Scores[k] = v
		}
	}
	stages := a.Stages
	if stages == nil {
		stages = []model.StageResult{}
	}

	return &Document{
		Metadata: Metadata{
			URL:       a.Locator,
			Timestamp: timestamp,
			Status:    string(a.Status()),
			ChapterID: model.ChapterID(a.Locator),
			Version:   timestamp,
			AttemptID: a.AttemptID,
			RunID:     a.ID,
			Sequence:  seq,
		},
		Content: Content{
			OriginalText:   a.OriginalText,
			RewrittenText:  a.RewrittenText,
			ReviewedText:   a.ReviewedText,
			FinalText:      a.FinalText,
			ScreenshotPath: a.ArtifactPath,
		},
		Evaluation: eval,
		HumanFeedback: HumanFeedback{
			Status:      string(a.Verdict.Status),
			EditedText:  a.Verdict.FinalText,
			Interrupted: a.Verdict.Interrupted,
		},
		Stages: stages,
	}
}

// Seal computes the record digest and returns the indented encoding.
func (d *Document) Seal() ([]byte, error) {
	d.Metadata.RecordDigest = ""
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, eris.Wrap(err, "version: marshal record")
	}
	digest, err := digestJCS(raw)
	if err != nil {
		return nil, err
	}
	d.Metadata.RecordDigest = digest

	out, err := encode(d)
	if err != nil {
		return nil, err
	}
	if err := validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// encode writes two-space indented JSON without HTML escaping.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, eris.Wrap(err, "version: encode record")
	}
	return buf.Bytes(), nil
}

// digestJCS returns the sha256 hex digest of the RFC 8785 canonical form.
func digestJCS(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", eris.Wrap(err, "version: canonicalize record")
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Digest recomputes the record digest of raw record bytes.
func Digest(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return "", eris.Wrap(err, "version: decode record")
	}
	meta, ok := doc["metadata"].(map[string]any)
	if !ok {
		return "", eris.New("version: record has no metadata")
	}
	meta["record_digest"] = ""
	blank, err := json.Marshal(doc)
	if err != nil {
		return "", eris.Wrap(err, "version: marshal record")
	}
	return digestJCS(blank)
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		schema, schemaErr = compiler.Compile(recordSchema)
		if schemaErr != nil {
			schemaErr = eris.Wrap(schemaErr, "version: compile record schema")
		}
	})
	return schema, schemaErr
}

// validate checks raw record bytes against the embedded schema.
func validate(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	result := s.ValidateJSON(raw)
	if result.IsValid() {
		return nil
	}
	return eris.New(fmt.Sprintf("version: schema validation failed: %v", result.Errors))
}
