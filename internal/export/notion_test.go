package export

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/pkg/notion"
)

type fakeNotion struct {
	pages    []notionapi.Page
	queryErr error
	created  []*notionapi.PageCreateRequest
	updated  map[string]*notionapi.PageUpdateRequest
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &notionapi.DatabaseQueryResponse{Results: f.pages}, nil
}

func (f *fakeNotion) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.created = append(f.created, req)
	return &notionapi.Page{ID: "new"}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if f.updated == nil {
		f.updated = map[string]*notionapi.PageUpdateRequest{}
	}
	f.updated[pageID] = req
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func TestLeadProperties(t *testing.T) {
	props := LeadProperties(sampleLeads()[0])

	assert.Equal(t, "Bean There", notion.PlainText(props["Name"]))
	assert.Equal(t, "ChIJ1", notion.PlainText(props[PlaceIDProperty]))
	assert.Equal(t, "https://bean.co.uk", notion.PlainText(props["Website"]))
	score, ok := props["Score"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 0.75, score.Number, 1e-9)

	props = LeadProperties(sampleLeads()[1])
	assert.NotContains(t, props, "Score")
	assert.NotContains(t, props, "Maps URL")
}

func TestNotionWriter_UpsertsByPlaceID(t *testing.T) {
	fn := &fakeNotion{pages: []notionapi.Page{{
		ID:         "page-1",
		Properties: notionapi.Properties{PlaceIDProperty: notion.Text("ChIJ1")},
	}}}

	err := NewNotionWriter(fn, "db-leads").Write(context.Background(), sampleLeads())
	require.NoError(t, err)

	require.Contains(t, fn.updated, "page-1")
	require.Len(t, fn.created, 1)
	assert.Equal(t, notionapi.DatabaseID("db-leads"), fn.created[0].Parent.DatabaseID)
	assert.Equal(t, "ChIJ2", notion.PlainText(fn.created[0].Properties[PlaceIDProperty]))
}

func TestNotionWriter_IndexError(t *testing.T) {
	fn := &fakeNotion{queryErr: errors.New("unauthorized")}

	err := NewNotionWriter(fn, "db-leads").Write(context.Background(), []enrich.Lead{{PlaceID: "a"}})
	assert.Error(t, err)
	assert.Empty(t, fn.created)
}

func TestNotionWriter_Canceled(t *testing.T) {
	fn := &fakeNotion{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewNotionWriter(fn, "db-leads").Write(ctx, sampleLeads())
	assert.Error(t, err)
	assert.Empty(t, fn.created)
}
