package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// ChapterIDProperty is the rich-text column holding the stable chapter id.
const ChapterIDProperty = "Chapter ID"

// FindChapterPage returns the log page for chapterID, or nil when there is none.
func FindChapterPage(ctx context.Context, c Client, dbID, chapterID string) (*notionapi.Page, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: ChapterIDProperty,
			RichText: &notionapi.TextFilterCondition{Equals: chapterID},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: find chapter %s", chapterID)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}
