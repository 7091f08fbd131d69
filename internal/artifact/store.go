// Package artifact stores binary acquisition artifacts such as page screenshots.
package artifact

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-cli/internal/config"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store persists named artifacts and returns a location string that can be
// written into version records.
type Store interface {
	Put(ctx context.Context, name string, content []byte, contentType string) (string, error)
	Get(ctx context.Context, name string) ([]byte, error)
}

// New builds the Store selected by cfg. Local artifacts are written below dir.
func New(cfg config.ArtifactConfig, dir string) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(dir), nil
	case "s3", "minio":
		return NewS3Store(cfg.S3)
	default:
		return nil, eris.Errorf("artifact: unsupported driver %q", cfg.Driver)
	}
}

func cleanName(name string) (string, error) {
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if name == "" {
		return "", eris.New("artifact: name is required")
	}
	if strings.Contains(name, "..") {
		return "", eris.Errorf("artifact: invalid name %q", name)
	}
	return name, nil
}
