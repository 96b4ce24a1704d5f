package dynatrace

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// clusterVersionPaths are tried in order; the first one that answers wins.
var clusterVersionPaths = []string{"/config/clusterversion", "/clusterversion"}

// EnvironmentInfo summarizes the environment the client talks to
type EnvironmentInfo struct {
	EnvironmentID  string `json:"environmentId"`
	BaseURL        string `json:"baseUrl"`
	ClusterVersion string `json:"clusterVersion"`
	// VersionKnown is false when no version endpoint was reachable.
	VersionKnown bool      `json:"versionKnown"`
	ClusterTime  time.Time `json:"clusterTime"`
	// ClusterTimeKnown is false when the local clock was used instead.
	ClusterTimeKnown bool `json:"clusterTimeKnown"`
}

// GetClusterVersion returns the version of the Managed cluster
func (c *Client) GetClusterVersion(ctx context.Context) (*ClusterVersion, error) {
	var lastErr error
	for _, path := range clusterVersionPaths {
		v, err := getJSON[ClusterVersion](ctx, c, path, nil)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// GetClusterTime returns the current time of the cluster
func (c *Client) GetClusterTime(ctx context.Context) (time.Time, error) {
	resp, err := c.Get(ctx, "/time", nil)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(string(resp.Body)), `"`), 10, 64)
	if err != nil {
		return time.Time{}, &DecodeError{Path: "/time", Body: resp.Body, Err: err}
	}
	return time.UnixMilli(ms).UTC(), nil
}

// GetEnvironmentInfo gathers version and time, falling back where the cluster does not answer
func (c *Client) GetEnvironmentInfo(ctx context.Context) *EnvironmentInfo {
	info := &EnvironmentInfo{
		EnvironmentID:  c.environmentID,
		BaseURL:        c.baseURL,
		ClusterVersion: "Unknown - API endpoint not accessible",
	}

	if v, err := c.GetClusterVersion(ctx); err == nil && v.Version != "" {
		info.ClusterVersion = v.Version
		info.VersionKnown = true
	} else if err != nil {
		c.logger.Debug("ENVIRONMENT_INFO cluster version unavailable: %v", err)
	}

	if t, err := c.GetClusterTime(ctx); err == nil {
		info.ClusterTime = t
		info.ClusterTimeKnown = true
	} else {
		c.logger.Debug("ENVIRONMENT_INFO cluster time unavailable: %v", err)
		info.ClusterTime = time.Now().UTC()
	}
	return info
}

// EnvironmentID returns the environment the client is bound to
func (c *Client) EnvironmentID() string {
	return c.environmentID
}

// ListAuditLogsParams filters GET /auditlogs
type ListAuditLogsParams struct {
	Page
	Timeframe
	Filter string
	Sort   string
}

// ListAuditLogs lists audit log entries
func (c *Client) ListAuditLogs(ctx context.Context, p ListAuditLogsParams) (*AuditLog, error) {
	q := url.Values{}
	set(q, "filter", p.Filter)
	p.Timeframe.apply(q)
	set(q, "sort", p.Sort)
	return getJSON[AuditLog](ctx, c, "/auditlogs", p.Page.apply(q))
}

// GetAuditLog retrieves one audit log entry
func (c *Client) GetAuditLog(ctx context.Context, logID string) (*AuditLogEntry, error) {
	return getJSON[AuditLogEntry](ctx, c, "/auditlogs/"+seg(logID), nil)
}

// SearchLogsParams drives GET /logs/search
type SearchLogsParams struct {
	Timeframe
	Query        string
	Sort         string
	Limit        int
	NextSliceKey string
}

// SearchLogs runs a log search query
func (c *Client) SearchLogs(ctx context.Context, p SearchLogsParams) (*LogRecordsList, error) {
	if p.NextSliceKey != "" {
		return getJSON[LogRecordsList](ctx, c, "/logs/search", url.Values{"nextSliceKey": {p.NextSliceKey}})
	}
	q := url.Values{}
	set(q, "query", p.Query)
	p.Timeframe.apply(q)
	set(q, "sort", p.Sort)
	setInt(q, "limit", p.Limit)
	return getJSON[LogRecordsList](ctx, c, "/logs/search", q)
}

// EntityLogQuery scopes a log query to one entity: dt.entity.id="ID"[ AND extra].
func EntityLogQuery(entityID, extra string) string {
	q := fmt.Sprintf(`dt.entity.id="%s"`, entityID)
	if extra != "" {
		q += " AND " + extra
	}
	return q
}

// ListSecurityProblemsParams filters GET /securityProblems
type ListSecurityProblemsParams struct {
	Page
	Timeframe
	SecurityProblemSelector string
	Sort                    string
	Fields                  string
}

// ListSecurityProblems lists detected vulnerabilities
func (c *Client) ListSecurityProblems(ctx context.Context, p ListSecurityProblemsParams) (*SecurityProblemsList, error) {
	q := url.Values{}
	set(q, "securityProblemSelector", p.SecurityProblemSelector)
	set(q, "sort", p.Sort)
	set(q, "fields", p.Fields)
	p.Timeframe.apply(q)
	return getJSON[SecurityProblemsList](ctx, c, "/securityProblems", p.Page.apply(q))
}

// GetSecurityProblem retrieves one vulnerability
func (c *Client) GetSecurityProblem(ctx context.Context, id, fields string) (*SecurityProblem, error) {
	q := url.Values{}
	set(q, "fields", fields)
	return getJSON[SecurityProblem](ctx, c, "/securityProblems/"+seg(id), q)
}
