package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a Notion database query, following cursors.
// The next page is prefetched in a goroutine while the current one is
// appended. Rate limiting is the Client's job.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "notion: query all")
	}

	newReq := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
		return req
	}

	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult
	var all []notionapi.Page

	for {
		var resp *notionapi.DatabaseQueryResponse
		var err error

		if prefetchCh != nil {
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, newReq(""))
		}
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}

		next := newReq(resp.NextCursor)
		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, next)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}

	return all, nil
}

// IndexByText maps the plain-text value of property to its page ID for every
// page in the database. Pages with an empty value are skipped; when values
// repeat the first page wins.
func IndexByText(ctx context.Context, c Client, dbID, property string) (map[string]notionapi.ObjectID, error) {
	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: index %s", property)
	}
	index := make(map[string]notionapi.ObjectID, len(pages))
	for _, p := range pages {
		v := PlainText(p.Properties[property])
		if v == "" {
			continue
		}
		if _, ok := index[v]; !ok {
			index[v] = p.ID
		}
	}
	return index, nil
}

// Upsert updates pageID with props, or creates a page in dbID when pageID is
// empty.
func Upsert(ctx context.Context, c Client, dbID string, pageID notionapi.ObjectID, props notionapi.Properties) (*notionapi.Page, error) {
	if pageID != "" {
		page, err := c.UpdatePage(ctx, string(pageID), &notionapi.PageUpdateRequest{Properties: props})
		if err != nil {
			return nil, eris.Wrap(err, "notion: upsert update")
		}
		return page, nil
	}
	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: upsert create")
	}
	return page, nil
}
