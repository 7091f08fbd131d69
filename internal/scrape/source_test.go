package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chapter-cli/internal/artifact"
	"github.com/sells-group/chapter-cli/internal/model"
)

type fakeShots struct {
	img []byte
	err error
}

func (f *fakeShots) Screenshot(_ context.Context, _ string) ([]byte, error) { return f.img, f.err }

var fixedNow = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

func chapterScraper(text string) *mockScraper {
	return &mockScraper{
		name: "local_http", supports: true,
		result: &Result{Page: model.Page{Title: "Chapter 1", Text: text}, Source: "local_http"},
	}
}

func TestValidateLocator(t *testing.T) {
	for _, ok := range []string{"https://example.com/ch1", "http://example.com", " https://example.com/a?b=c "} {
		assert.NoError(t, ValidateLocator(ok), ok)
	}
	for _, bad := range []string{"", "example.com/ch1", "ftp://example.com/x", "https://", "://nope"} {
		assert.Error(t, ValidateLocator(bad), bad)
	}
}

func TestSource_Acquire(t *testing.T) {
	dir := t.TempDir()
	src, err := NewSource(NewChain(chapterScraper("  "+longChapter+"\n\n\n")), 0,
		WithScreenshots(&fakeShots{img: []byte("png")}, artifact.NewLocalStore(dir)),
		WithClock(fixedNow),
	)
	require.NoError(t, err)

	acq, err := src.Acquire(context.Background(), "https://books.example.com/ch1")
	require.NoError(t, err)
	assert.Equal(t, CleanText(longChapter), acq.OriginalText)
	assert.Equal(t, "Chapter 1", acq.Title)
	assert.Equal(t, "local_http", acq.Source)
	assert.Contains(t, acq.ArtifactPath, "screenshot_"+model.LocatorHash("https://books.example.com/ch1")+"_20260304_050607.png")
	assert.FileExists(t, acq.ArtifactPath)
}

func TestSource_Acquire_InvalidLocator(t *testing.T) {
	s := chapterScraper(longChapter)
	src, err := NewSource(NewChain(s), 0)
	require.NoError(t, err)

	_, err = src.Acquire(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindAcquisition))
	assert.Equal(t, 0, s.calls)
}

func TestSource_Acquire_InsufficientContent(t *testing.T) {
	src, err := NewSource(NewChain(chapterScraper("too short")), 0)
	require.NoError(t, err)

	acq, err := src.Acquire(context.Background(), "https://books.example.com/ch1")
	require.Error(t, err)
	assert.Nil(t, acq)
	assert.True(t, model.IsKind(err, model.KindAcquisition))
	assert.Contains(t, err.Error(), "insufficient content")
}

func TestSource_Acquire_MinContentOverride(t *testing.T) {
	src, err := NewSource(NewChain(chapterScraper("short but fine")), 0, WithMinContentChars(5))
	require.NoError(t, err)

	acq, err := src.Acquire(context.Background(), "https://books.example.com/ch1")
	require.NoError(t, err)
	assert.Equal(t, "short but fine", acq.OriginalText)
}

func TestSource_Acquire_ScrapeFailure(t *testing.T) {
	failing := &mockScraper{name: "a", supports: true, err: errors.New("connection refused")}
	src, err := NewSource(NewChain(failing), 0)
	require.NoError(t, err)

	_, err = src.Acquire(context.Background(), "https://books.example.com/ch1")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindAcquisition))
}

func TestSource_Acquire_ScreenshotFailureIsNotFatal(t *testing.T) {
	src, err := NewSource(NewChain(chapterScraper(longChapter)), 0,
		WithScreenshots(&fakeShots{err: errors.New("browser crashed")}, artifact.NewLocalStore(t.TempDir())),
	)
	require.NoError(t, err)

	acq, err := src.Acquire(context.Background(), "https://books.example.com/ch1")
	require.NoError(t, err)
	assert.Empty(t, acq.ArtifactPath)
	assert.NotEmpty(t, acq.OriginalText)
}

func TestSource_Acquire_Cache(t *testing.T) {
	s := chapterScraper(longChapter)
	src, err := NewSource(NewChain(s), 8)
	require.NoError(t, err)

	for range 3 {
		_, err := src.Acquire(context.Background(), "https://books.example.com/ch1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, s.calls)
}

func TestScreenshotName(t *testing.T) {
	name := ScreenshotName("https://books.example.com/ch1", fixedNow())
	assert.Equal(t, "screenshot_"+model.LocatorHash("https://books.example.com/ch1")+"_20260304_050607.png", name)
}
