package resilience

import (
	"time"

	"github.com/sells-group/chapter-cli/internal/config"
)

// FromArchiveConfig builds the retry policy for archive writes and searches.
func FromArchiveConfig(cfg config.ArchiveConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	rc.InitialBackoff = 250 * time.Millisecond
	rc.MaxBackoff = 5 * time.Second
	rc.OnRetry = RetryLogger("archive", cfg.Driver)
	return rc
}
