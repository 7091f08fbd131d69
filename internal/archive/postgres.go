package archive

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/db"
)

// Postgres is a Backend on a tsvector column ranked with ts_rank.
type Postgres struct {
	pool    db.Pool
	closeFn func()
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS chapter_archive (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}',
	tsv        tsvector GENERATED ALWAYS AS (to_tsvector('english', text)) STORED,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chapter_archive_tsv ON chapter_archive USING GIN (tsv);
`

// NewPostgres connects to connString and migrates the archive table.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := db.Connect(ctx, connString, nil)
	if err != nil {
		return nil, err
	}
	p := &Postgres{pool: pool, closeFn: pool.Close}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the archive table and index.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "archive: migrate postgres")
}

// Upsert implements Backend.
func (p *Postgres) Upsert(ctx context.Context, id, text string, metadata map[string]string) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO chapter_archive (id, text, metadata, updated_at) VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, metadata = EXCLUDED.metadata, updated_at = now()`,
		id, text, meta,
	)
	return eris.Wrap(err, "archive: postgres upsert")
}

// Search implements Backend.
func (p *Postgres) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, text, metadata::text, ts_rank(tsv, q) AS rank
		 FROM chapter_archive, plainto_tsquery('english', $1) q
		 WHERE tsv @@ q
		 ORDER BY rank DESC, id
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "archive: postgres search")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			meta string
			rank float32
		)
		if err := rows.Scan(&h.ID, &h.Text, &meta, &rank); err != nil {
			return nil, eris.Wrap(err, "archive: postgres scan")
		}
		h.Metadata = unmarshalMetadata(meta)
		h.Relevance = float64(rank)
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "archive: postgres rows")
}

// Close implements Backend.
func (p *Postgres) Close() error {
	if p.closeFn != nil {
		p.closeFn()
	}
	return nil
}
