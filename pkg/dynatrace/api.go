package dynatrace

import (
	"context"
	"net/url"
	"strconv"
)

// Page holds the pagination parameters shared by list endpoints.
// When NextPageKey is set the API rejects every other query parameter.
type Page struct {
	PageSize    int
	NextPageKey string
}

func (p Page) apply(q url.Values) url.Values {
	if p.NextPageKey != "" {
		return url.Values{"nextPageKey": {p.NextPageKey}}
	}
	setInt(q, "pageSize", p.PageSize)
	return q
}

// Timeframe is a from/to pair in any format the API accepts (ISO 8601, epoch millis, now-2h).
type Timeframe struct {
	From string
	To   string
}

func (t Timeframe) apply(q url.Values) {
	set(q, "from", t.From)
	set(q, "to", t.To)
}

func set(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setInt(q url.Values, key string, value int) {
	if value > 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func setBool(q url.Values, key string, value bool) {
	if value {
		q.Set(key, "true")
	}
}

// seg escapes a single path segment.
func seg(s string) string {
	return url.PathEscape(s)
}

func getJSON[T any](ctx context.Context, c *Client, path string, q url.Values) (*T, error) {
	resp, err := c.Get(ctx, path, &RequestOptions{Query: q})
	if err != nil {
		return nil, err
	}
	var out T
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// sendJSON issues a POST or PUT and decodes the response body when there is one.
func sendJSON[T any](ctx context.Context, c *Client, method, path string, q url.Values, body interface{}) (*T, error) {
	resp, err := c.Do(ctx, method, path, body, &RequestOptions{Query: q})
	if err != nil {
		return nil, err
	}
	var out T
	if len(resp.Body) == 0 {
		return &out, nil
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
