package export

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/pkg/notion"
)

// PlaceIDProperty is the lead database column that identifies a place.
const PlaceIDProperty = "Place ID"

// NotionWriter upserts leads into a Notion database keyed by place ID.
type NotionWriter struct {
	client     notion.Client
	databaseID string
}

// NewNotionWriter creates a NotionWriter for the given database.
func NewNotionWriter(client notion.Client, databaseID string) *NotionWriter {
	return &NotionWriter{client: client, databaseID: databaseID}
}

// Write implements Writer. Leads whose place ID already has a page are
// updated in place; the rest are created.
func (w *NotionWriter) Write(ctx context.Context, leads []enrich.Lead) error {
	log := zap.L().With(zap.String("component", "export.notion"), zap.String("database", w.databaseID))

	existing, err := notion.IndexByText(ctx, w.client, w.databaseID, PlaceIDProperty)
	if err != nil {
		return eris.Wrap(err, "export: index notion leads")
	}

	var created, updated int
	for _, l := range leads {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "export: notion write canceled")
		}
		pageID := existing[l.PlaceID]
		if _, err := notion.Upsert(ctx, w.client, w.databaseID, pageID, LeadProperties(l)); err != nil {
			return eris.Wrapf(err, "export: notion lead %s", l.PlaceID)
		}
		if pageID != "" {
			updated++
		} else {
			created++
		}
	}

	log.Info("notion export complete", zap.Int("created", created), zap.Int("updated", updated))
	return nil
}

// LeadProperties maps a lead onto the lead database's columns.
func LeadProperties(l enrich.Lead) notionapi.Properties {
	r := RowFrom(l)
	props := notionapi.Properties{
		"Name":          notion.Title(r.Name),
		PlaceIDProperty: notion.Text(r.PlaceID),
		"Company":       notion.Text(r.Company),
		"Mobiles":       notion.Text(r.Mobiles),
		"Emails":        notion.Text(r.Emails),
		"Directors":     notion.Text(r.Directors),
	}
	if l.Website != "" {
		props["Website"] = notion.URL(l.Website)
	}
	if l.URL != "" {
		props["Maps URL"] = notion.URL(l.URL)
	}
	if l.Score != nil {
		props["Score"] = notion.Number(*l.Score)
	}
	return props
}
