package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/db"
)

// SQLite is a Backend on modernc SQLite with an FTS5 index.
type SQLite struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS chapters (
		id         TEXT PRIMARY KEY,
		text       TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS chapters_fts USING fts5(text, content=chapters, content_rowid=rowid)`,
	`CREATE TRIGGER IF NOT EXISTS chapters_ai AFTER INSERT ON chapters BEGIN
		INSERT INTO chapters_fts(rowid, text) VALUES (new.rowid, new.text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS chapters_ad AFTER DELETE ON chapters BEGIN
		INSERT INTO chapters_fts(chapters_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS chapters_au AFTER UPDATE ON chapters BEGIN
		INSERT INTO chapters_fts(chapters_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
		INSERT INTO chapters_fts(rowid, text) VALUES (new.rowid, new.text);
	END`,
}

// NewSQLite opens and migrates the archive database at dsn.
func NewSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	conn, err := db.OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "archive: migrate sqlite")
		}
	}
	return &SQLite{db: conn}, nil
}

// Upsert implements Backend.
func (s *SQLite) Upsert(ctx context.Context, id, text string, metadata map[string]string) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chapters (id, text, metadata, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata, updated_at = excluded.updated_at`,
		id, text, meta, time.Now().UTC(),
	)
	return eris.Wrap(err, "archive: sqlite upsert")
}

// Search implements Backend. Relevance is the negated bm25 score.
func (s *SQLite) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.text, c.metadata, bm25(chapters_fts) AS score
		 FROM chapters_fts JOIN chapters c ON c.rowid = chapters_fts.rowid
		 WHERE chapters_fts MATCH ?
		 ORDER BY score, c.id
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "archive: sqlite search")
	}
	defer rows.Close() //nolint:errcheck

	var hits []Hit
	for rows.Next() {
		var (
			h     Hit
			meta  string
			score float64
		)
		if err := rows.Scan(&h.ID, &h.Text, &meta, &score); err != nil {
			return nil, eris.Wrap(err, "archive: sqlite scan")
		}
		h.Metadata = unmarshalMetadata(meta)
		h.Relevance = -score
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "archive: sqlite rows")
}

// Close implements Backend.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms.
func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		f = strings.Trim(f, `"'.,;:!?()[]{}`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", eris.Wrap(err, "archive: marshal metadata")
	}
	return string(b), nil
}

func unmarshalMetadata(s string) map[string]string {
	m := map[string]string{}
	if s == "" {
		return m
	}
	_ = json.Unmarshal([]byte(s), &m)
	return m
}
