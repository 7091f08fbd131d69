package version

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrDigestMismatch is returned by Verify when a record was altered.
var ErrDigestMismatch = eris.New("version: record digest mismatch")

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	ChapterID string
	Status    string
}

// Summary is one row of a record listing.
type Summary struct {
	Name      string `json:"name" yaml:"name"`
	Path      string `json:"path" yaml:"path"`
	URL       string `json:"url" yaml:"url"`
	ChapterID string `json:"chapter_id" yaml:"chapter_id"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Sequence  int    `json:"sequence" yaml:"sequence"`
	Status    string `json:"status" yaml:"status"`
}

// List returns summaries of the records in dir, oldest first. Unreadable
// files are skipped with a warning.
func List(dir string, f Filter) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "version: read records dir")
	}

	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "chapter_") || filepath.Ext(name) != ".json" {
			continue
		}
		path := filepath.Join(dir, name)
		doc, err := Load(path)
		if err != nil {
			zap.L().Warn("version: skipping unreadable record", zap.String("path", path), zap.Error(err))
			continue
		}
		if f.ChapterID != "" && doc.Metadata.ChapterID != f.ChapterID {
			continue
		}
		if f.Status != "" && doc.Metadata.Status != f.Status {
			continue
		}
		out = append(out, Summary{
			Name:      name,
			Path:      path,
			URL:       doc.Metadata.URL,
			ChapterID: doc.Metadata.ChapterID,
			Timestamp: doc.Metadata.Timestamp,
			Sequence:  doc.Metadata.Sequence,
			Status:    doc.Metadata.Status,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Load reads one record.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "version: read record")
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrapf(err, "version: decode record %s", filepath.Base(path))
	}
	return &doc, nil
}

// Verify checks a record against its schema and stored digest.
func Verify(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "version: read record")
	}
	if err := validate(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "version: decode record")
	}
	digest, err := Digest(raw)
	if err != nil {
		return nil, err
	}
	if digest != doc.Metadata.RecordDigest {
		return &doc, eris.Wrapf(ErrDigestMismatch, "version: %s", filepath.Base(path))
	}
	return &doc, nil
}
