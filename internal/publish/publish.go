// Package publish logs approved chapters to an external publication log.
package publish

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/pkg/notion"
)

// Entry is one publication log row.
type Entry struct {
	ChapterID   string
	Title       string
	URL         string
	Status      string
	Score       float64
	RecordPath  string
	PublishedAt time.Time
}

// Publisher records an entry and returns its external id.
type Publisher interface {
	Publish(ctx context.Context, e Entry) (string, error)
}

// NotionPublisher writes entries into a Notion database, one page per
// chapter. Republishing a chapter updates its page.
type NotionPublisher struct {
	client notion.Client
	dbID   string
}

// NewNotionPublisher creates a publisher for the database dbID.
func NewNotionPublisher(client notion.Client, dbID string) *NotionPublisher {
	return &NotionPublisher{client: client, dbID: dbID}
}

// Publish implements Publisher.
func (p *NotionPublisher) Publish(ctx context.Context, e Entry) (string, error) {
	if e.ChapterID == "" {
		return "", eris.New("publish: chapter id is required")
	}
	props := properties(e)

	existing, err := notion.FindChapterPage(ctx, p.client, p.dbID, e.ChapterID)
	if err != nil {
		return "", eris.Wrap(err, "publish: lookup")
	}
	if existing != nil {
		page, err := p.client.UpdatePage(ctx, string(existing.ID), &notionapi.PageUpdateRequest{Properties: props})
		if err != nil {
			return "", eris.Wrap(err, "publish: update entry")
		}
		zap.L().Info("publish: entry updated", zap.String("chapter_id", e.ChapterID), zap.String("page_id", string(page.ID)))
		return string(page.ID), nil
	}

	page, err := p.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(p.dbID),
		},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrap(err, "publish: create entry")
	}
	zap.L().Info("publish: entry created", zap.String("chapter_id", e.ChapterID), zap.String("page_id", string(page.ID)))
	return string(page.ID), nil
}

func properties(e Entry) notionapi.Properties {
	title := e.Title
	if title == "" {
		title = e.URL
	}
	published := notionapi.Date(e.PublishedAt)
	return notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{richText(title)},
		},
		notion.ChapterIDProperty: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{richText(e.ChapterID)},
		},
		"URL": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  e.URL,
		},
		"Status": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: e.Status},
		},
		"Score": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: e.Score,
		},
		"Record": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{richText(e.RecordPath)},
		},
		"Published": notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &published},
		},
	}
}

func richText(s string) notionapi.RichText {
	return notionapi.RichText{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}
}
