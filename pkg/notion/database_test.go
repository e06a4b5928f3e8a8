package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// cursorIs matches a query request by its start cursor.
func cursorIs(cursor string) any {
	return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == notionapi.Cursor(cursor)
	})
}

func pageOf(ids ...string) *notionapi.DatabaseQueryResponse {
	resp := &notionapi.DatabaseQueryResponse{}
	for _, id := range ids {
		resp.Results = append(resp.Results, notionapi.Page{ID: notionapi.ObjectID(id)})
	}
	return resp
}

func TestQueryAll(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(mc *MockClient)
		want    []notionapi.ObjectID
		wantErr string
	}{
		{
			name: "single page",
			setup: func(mc *MockClient) {
				mc.On("QueryDatabase", ctx, "db-leads", cursorIs("")).Return(pageOf("p1", "p2"), nil).Once()
			},
			want: []notionapi.ObjectID{"p1", "p2"},
		},
		{
			name: "follows cursors in order",
			setup: func(mc *MockClient) {
				first := pageOf("p1")
				first.HasMore, first.NextCursor = true, "c1"
				second := pageOf("p2")
				second.HasMore, second.NextCursor = true, "c2"
				mc.On("QueryDatabase", ctx, "db-leads", cursorIs("")).Return(first, nil).Once()
				mc.On("QueryDatabase", ctx, "db-leads", cursorIs("c1")).Return(second, nil).Once()
				mc.On("QueryDatabase", ctx, "db-leads", cursorIs("c2")).Return(pageOf("p3"), nil).Once()
			},
			want: []notionapi.ObjectID{"p1", "p2", "p3"},
		},
		{
			name: "first page fails",
			setup: func(mc *MockClient) {
				mc.On("QueryDatabase", ctx, "db-leads", cursorIs("")).Return(nil, assert.AnError).Once()
			},
			wantErr: "notion: query all page",
		},
		{
			name: "later page fails",
			setup: func(mc *MockClient) {
				first := pageOf("p1")
				first.HasMore, first.NextCursor = true, "c1"
				mc.On("QueryDatabase", ctx, "db-leads", cursorIs("")).Return(first, nil).Once()
				mc.On("QueryDatabase", ctx, "db-leads", cursorIs("c1")).Return(nil, assert.AnError).Once()
			},
			wantErr: "notion: query all page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := new(MockClient)
			tt.setup(mc)

			pages, err := QueryAll(ctx, mc, "db-leads", nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, pages)
			} else {
				require.NoError(t, err)
				var ids []notionapi.ObjectID
				for _, p := range pages {
					ids = append(ids, p.ID)
				}
				assert.Equal(t, tt.want, ids)
			}
			mc.AssertExpectations(t)
		})
	}
}

func TestQueryAll_PassesFilter(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Place ID",
			RichText: &notionapi.TextFilterCondition{IsNotEmpty: true},
		},
	}
	mc.On("QueryDatabase", ctx, "db-leads", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == "Place ID" && pf.RichText != nil && pf.RichText.IsNotEmpty
	})).Return(pageOf("p1"), nil).Once()

	pages, err := QueryAll(ctx, mc, "db-leads", filter)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	mc.AssertExpectations(t)
}

func TestQueryAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := QueryAll(ctx, new(MockClient), "db-leads", nil)
	assert.Error(t, err)
	assert.Nil(t, pages)
}

func leadPage(id, placeID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Place ID": &notionapi.RichTextProperty{
				Type:     notionapi.PropertyTypeRichText,
				RichText: []notionapi.RichText{{PlainText: placeID}},
			},
		},
	}
}

func TestIndexByText(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-leads", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				leadPage("page-1", "ChIJ1"),
				leadPage("page-2", "ChIJ2"),
				leadPage("page-3", "ChIJ1"),
				{ID: "page-4"},
			},
		}, nil).Once()

	index, err := IndexByText(ctx, mc, "db-leads", "Place ID")
	require.NoError(t, err)
	assert.Equal(t, map[string]notionapi.ObjectID{"ChIJ1": "page-1", "ChIJ2": "page-2"}, index)
	mc.AssertExpectations(t)
}

func TestIndexByText_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-leads", mock.Anything).Return(nil, assert.AnError).Once()

	_, err := IndexByText(ctx, mc, "db-leads", "Place ID")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion: index Place ID")
}

func TestUpsert_Create(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	props := notionapi.Properties{"Name": Title("Bean There")}

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		return req.Parent.DatabaseID == "db-leads" && req.Parent.Type == notionapi.ParentTypeDatabaseID
	})).Return(&notionapi.Page{ID: "new"}, nil).Once()

	page, err := Upsert(ctx, mc, "db-leads", "", props)
	require.NoError(t, err)
	assert.Equal(t, notionapi.ObjectID("new"), page.ID)
	mc.AssertExpectations(t)
}

func TestUpsert_Update(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	props := notionapi.Properties{"Name": Title("Bean There")}

	mc.On("UpdatePage", ctx, "page-1", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		_, ok := req.Properties["Name"]
		return ok
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	_, err := Upsert(ctx, mc, "db-leads", "page-1", props)
	require.NoError(t, err)
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
	mc.AssertExpectations(t)
}

func TestUpsert_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreatePage", ctx, mock.Anything).Return(nil, assert.AnError).Once()

	_, err := Upsert(ctx, mc, "db-leads", "", notionapi.Properties{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion: upsert create")
}
