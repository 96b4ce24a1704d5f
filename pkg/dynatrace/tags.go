package dynatrace

import (
	"context"
	"net/http"
	"net/url"
)

// ListTags lists the custom tags applied to the selected entities
func (c *Client) ListTags(ctx context.Context, entitySelector string, tf Timeframe) (*TagsList, error) {
	q := url.Values{}
	set(q, "entitySelector", entitySelector)
	tf.apply(q)
	return getJSON[TagsList](ctx, c, "/tags", q)
}

// AddTags applies custom tags to every entity matching entitySelector
func (c *Client) AddTags(ctx context.Context, entitySelector string, tf Timeframe, tags []AddTag) (*AddTagsResult, error) {
	q := url.Values{}
	set(q, "entitySelector", entitySelector)
	tf.apply(q)
	return sendJSON[AddTagsResult](ctx, c, http.MethodPost, "/tags", q, AddTagsRequest{Tags: tags})
}

// DeleteTagsParams selects the tags to remove
type DeleteTagsParams struct {
	Timeframe
	EntitySelector   string
	Key              string
	Value            string
	DeleteAllWithKey bool
}

// DeleteTags removes a custom tag from the selected entities
func (c *Client) DeleteTags(ctx context.Context, p DeleteTagsParams) (*DeleteTagsResult, error) {
	q := url.Values{}
	set(q, "entitySelector", p.EntitySelector)
	set(q, "key", p.Key)
	set(q, "value", p.Value)
	setBool(q, "deleteAllWithKey", p.DeleteAllWithKey)
	p.Timeframe.apply(q)
	return sendJSON[DeleteTagsResult](ctx, c, http.MethodDelete, "/tags", q, nil)
}
