package version

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/model"
)

// maxSequence bounds the search for a free record name within one second.
const maxSequence = 10000

// RecordHandle identifies a written record.
type RecordHandle struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
	Digest   string `json:"record_digest"`
}

// Recorder writes version records into a directory. Concurrent recorders,
// in one or many processes, never overwrite each other's records.
type Recorder struct {
	dir string
	now func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder writing into dir.
func NewRecorder(dir string, opts ...Option) *Recorder {
	r := &Recorder{dir: dir, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Dir returns the records directory.
func (r *Recorder) Dir() string { return r.dir }

// FileName returns the record file name for a locator, timestamp and sequence.
func FileName(locator, timestamp string, seq int) string {
	return fmt.Sprintf("%s_%s_%d.json", model.ChapterID(locator), timestamp, seq)
}

// Record persists a against the lowest free sequence number for its
// timestamp. Failures are persistence errors and leave no file behind.
func (r *Recorder) Record(ctx context.Context, a *model.Attempt) (*RecordHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewPersistenceError(eris.Wrap(err, "version: record cancelled"))
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, model.NewPersistenceError(eris.Wrap(err, "version: create records dir"))
	}

	ts := r.now().Format(TimestampLayout)
	for seq := 0; seq < maxSequence; seq++ {
		name := FileName(a.Locator, ts, seq)
		final := filepath.Join(r.dir, name)
		if _, err := os.Lstat(final); err == nil {
			continue
		}

		doc := NewDocument(a, ts, seq)
		raw, err := doc.Seal()
		if err != nil {
			return nil, model.NewPersistenceError(err)
		}

		claimed, err := r.claim(raw, final)
		if err != nil {
			return nil, model.NewPersistenceError(err)
		}
		if !claimed {
			continue
		}

		zap.L().Info("version: record written",
			zap.String("path", final),
			zap.String("status", doc.Metadata.Status),
			zap.Int("sequence", seq),
		)
		return &RecordHandle{Path: final, Name: name, Sequence: seq, Digest: doc.Metadata.RecordDigest}, nil
	}
	return nil, model.NewPersistenceError(eris.Errorf("version: no free sequence for %s at %s", model.ChapterID(a.Locator), ts))
}

// claim writes raw to a synced temp file and hard-links it to final. It
// reports false when final already exists.
func (r *Recorder) claim(raw []byte, final string) (bool, error) {
	tmp, err := os.CreateTemp(r.dir, ".record-*.tmp")
	if err != nil {
		return false, eris.Wrap(err, "version: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close() //nolint:errcheck
		return false, eris.Wrap(err, "version: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return false, eris.Wrap(err, "version: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return false, eris.Wrap(err, "version: close temp file")
	}

	if err := os.Link(tmpPath, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, eris.Wrap(err, "version: link record into place")
	}
	return true, nil
}
