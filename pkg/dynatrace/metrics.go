package dynatrace

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ListMetricsParams filters GET /metrics
type ListMetricsParams struct {
	Page
	MetricSelector string
	Text           string
	Fields         string
}

// ListMetrics lists metric descriptors
func (c *Client) ListMetrics(ctx context.Context, p ListMetricsParams) (*MetricDescriptorsList, error) {
	q := url.Values{}
	set(q, "metricSelector", p.MetricSelector)
	set(q, "text", p.Text)
	set(q, "fields", p.Fields)
	return getJSON[MetricDescriptorsList](ctx, c, "/metrics", p.Page.apply(q))
}

// GetMetric retrieves one metric descriptor
func (c *Client) GetMetric(ctx context.Context, metricID string) (*MetricDescriptor, error) {
	return getJSON[MetricDescriptor](ctx, c, "/metrics/"+seg(metricID), nil)
}

// QueryMetricsParams drives GET /metrics/query
type QueryMetricsParams struct {
	Timeframe
	MetricSelector string
	Resolution     string
	EntitySelector string
}

// QueryMetrics retrieves data points for the selected metrics
func (c *Client) QueryMetrics(ctx context.Context, p QueryMetricsParams) (*MetricData, error) {
	q := url.Values{}
	set(q, "metricSelector", p.MetricSelector)
	set(q, "resolution", p.Resolution)
	set(q, "entitySelector", p.EntitySelector)
	p.Timeframe.apply(q)
	return getJSON[MetricData](ctx, c, "/metrics/query", q)
}

// IngestMetrics posts line protocol data points
func (c *Client) IngestMetrics(ctx context.Context, lines []MetricLine) (*MetricIngestResult, error) {
	payload, err := EncodeMetricLines(lines)
	if err != nil {
		return nil, err
	}
	return c.ingestMetricPayload(ctx, payload, len(lines))
}

// IngestMetricData posts a pre-formatted line protocol payload. Blank lines are dropped.
func (c *Client) IngestMetricData(ctx context.Context, data string) (*MetricIngestResult, error) {
	var kept []string
	for _, line := range strings.Split(data, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("no metric lines to ingest")
	}
	return c.ingestMetricPayload(ctx, []byte(strings.Join(kept, "\n")), len(kept))
}

func (c *Client) ingestMetricPayload(ctx context.Context, payload []byte, lines int) (*MetricIngestResult, error) {
	resp, err := c.Post(ctx, "/metrics/ingest", nil, &RequestOptions{
		RawBody:     payload,
		ContentType: ContentTypePlainText,
	})
	if err != nil {
		return nil, err
	}
	var out MetricIngestResult
	if len(resp.Body) == 0 {
		out.LinesOk = lines
		return &out, nil
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMetric deletes a custom metric and its data
func (c *Client) DeleteMetric(ctx context.Context, metricID string) error {
	_, err := c.Delete(ctx, "/metrics/"+seg(metricID), nil)
	return err
}

// ListUnits lists units of measure
func (c *Client) ListUnits(ctx context.Context, unitSelector string, page Page) (*UnitsList, error) {
	q := url.Values{}
	set(q, "unitSelector", unitSelector)
	return getJSON[UnitsList](ctx, c, "/units", page.apply(q))
}

// GetUnit retrieves one unit
func (c *Client) GetUnit(ctx context.Context, unitID string) (*Unit, error) {
	return getJSON[Unit](ctx, c, "/units/"+seg(unitID), nil)
}
