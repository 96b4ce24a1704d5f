package dynatrace

import "encoding/json"

// EntityID is the {id, type} pair used throughout API v2 payloads
type EntityID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// EntityStub is a short reference to a monitored entity
type EntityStub struct {
	EntityID EntityID `json:"entityId"`
	Name     string   `json:"name,omitempty"`
}

// ManagementZone reference
type ManagementZone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// METag is a tag attached to a monitored entity
type METag struct {
	Context              string `json:"context,omitempty"`
	Key                  string `json:"key"`
	Value                string `json:"value,omitempty"`
	StringRepresentation string `json:"stringRepresentation,omitempty"`
}

// Problems

// Problem represents a Davis problem
type Problem struct {
	ProblemID         string           `json:"problemId"`
	DisplayID         string           `json:"displayId"`
	Title             string           `json:"title"`
	ImpactLevel       string           `json:"impactLevel"`
	SeverityLevel     string           `json:"severityLevel"`
	Status            string           `json:"status"`
	StartTime         int64            `json:"startTime"`
	EndTime           int64            `json:"endTime"`
	AffectedEntities  []EntityStub     `json:"affectedEntities,omitempty"`
	ImpactedEntities  []EntityStub     `json:"impactedEntities,omitempty"`
	RootCauseEntity   *EntityStub      `json:"rootCauseEntity,omitempty"`
	ManagementZones   []ManagementZone `json:"managementZones,omitempty"`
	EntityTags        []METag          `json:"entityTags,omitempty"`
	ProblemFilters    []ProblemFilter  `json:"problemFilters,omitempty"`
	EvidenceDetails   *EvidenceDetails `json:"evidenceDetails,omitempty"`
	ImpactAnalysis    *ImpactAnalysis  `json:"impactAnalysis,omitempty"`
	RecentComments    *CommentsList    `json:"recentComments,omitempty"`
	LinkedProblemInfo *LinkedProblem   `json:"linkedProblemInfo,omitempty"`
}

// ProblemFilter is an alerting profile that matched the problem
type ProblemFilter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EvidenceDetails lists the evidence collected for a problem
type EvidenceDetails struct {
	TotalCount int        `json:"totalCount"`
	Details    []Evidence `json:"details"`
}

// Evidence is a single piece of root cause evidence
type Evidence struct {
	EvidenceType           string      `json:"evidenceType"`
	DisplayName            string      `json:"displayName"`
	Entity                 *EntityStub `json:"entity,omitempty"`
	GroupingEntity         *EntityStub `json:"groupingEntity,omitempty"`
	RootCauseRelevant      bool        `json:"rootCauseRelevant"`
	StartTime              int64       `json:"startTime"`
	EndTime                int64       `json:"endTime,omitempty"`
	EventType              string      `json:"eventType,omitempty"`
	MetricID               string      `json:"metricId,omitempty"`
	Unit                   string      `json:"unit,omitempty"`
	ValueBeforeChangePoint float64     `json:"valueBeforeChangePoint,omitempty"`
	ValueAfterChangePoint  float64     `json:"valueAfterChangePoint,omitempty"`
}

// ImpactAnalysis describes the impact of a problem
type ImpactAnalysis struct {
	Impacts []Impact `json:"impacts"`
}

// Impact on a single entity
type Impact struct {
	ImpactType             string     `json:"impactType"`
	ImpactedEntity         EntityStub `json:"impactedEntity"`
	EstimatedAffectedUsers int64      `json:"estimatedAffectedUsers"`
}

// LinkedProblem references a problem this one was merged into
type LinkedProblem struct {
	ProblemID string `json:"problemId"`
	DisplayID string `json:"displayId"`
}

// ProblemsList is a page of problems
type ProblemsList struct {
	TotalCount  int       `json:"totalCount"`
	PageSize    int       `json:"pageSize"`
	NextPageKey string    `json:"nextPageKey,omitempty"`
	Problems    []Problem `json:"problems"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// ProblemCloseRequest closes a problem with a comment
type ProblemCloseRequest struct {
	Message string `json:"message"`
}

// ProblemCloseResult is returned after closing a problem
type ProblemCloseResult struct {
	ProblemID      string   `json:"problemId"`
	Closing        bool     `json:"closing"`
	CloseTimestamp int64    `json:"closeTimestamp,omitempty"`
	Comment        *Comment `json:"comment,omitempty"`
}

// Comment on a problem
type Comment struct {
	ID                 string `json:"id"`
	AuthorName         string `json:"authorName"`
	Content            string `json:"content"`
	Context            string `json:"context,omitempty"`
	CreatedAtTimestamp int64  `json:"createdAtTimestamp"`
}

// CommentsList is a page of problem comments
type CommentsList struct {
	TotalCount  int       `json:"totalCount"`
	PageSize    int       `json:"pageSize"`
	NextPageKey string    `json:"nextPageKey,omitempty"`
	Comments    []Comment `json:"comments"`
}

// CommentRequest creates or updates a comment
type CommentRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// Entities

// Entity is a monitored entity
type Entity struct {
	EntityID          string                `json:"entityId"`
	DisplayName       string                `json:"displayName"`
	Type              string                `json:"type"`
	FirstSeenTms      int64                 `json:"firstSeenTms,omitempty"`
	LastSeenTms       int64                 `json:"lastSeenTms,omitempty"`
	Properties        map[string]any        `json:"properties,omitempty"`
	Tags              []METag               `json:"tags,omitempty"`
	ManagementZones   []ManagementZone      `json:"managementZones,omitempty"`
	FromRelationships map[string][]EntityID `json:"fromRelationships,omitempty"`
	ToRelationships   map[string][]EntityID `json:"toRelationships,omitempty"`
	Icon              *EntityIcon           `json:"icon,omitempty"`
}

// EntityIcon describes how the UI renders an entity
type EntityIcon struct {
	PrimaryIconType   string `json:"primaryIconType,omitempty"`
	SecondaryIconType string `json:"secondaryIconType,omitempty"`
	CustomIconPath    string `json:"customIconPath,omitempty"`
}

// EntitiesList is a page of monitored entities
type EntitiesList struct {
	TotalCount  int      `json:"totalCount"`
	PageSize    int      `json:"pageSize"`
	NextPageKey string   `json:"nextPageKey,omitempty"`
	Entities    []Entity `json:"entities"`
}

// EntityType describes the schema of an entity type
type EntityType struct {
	Type                string               `json:"type"`
	DisplayName         string               `json:"displayName,omitempty"`
	DimensionKey        string               `json:"dimensionKey,omitempty"`
	EntityLimitExceeded bool                 `json:"entityLimitExceeded"`
	ManagementZones     string               `json:"managementZones,omitempty"`
	Tags                string               `json:"tags,omitempty"`
	Properties          []EntityTypeProperty `json:"properties,omitempty"`
	FromRelationships   []EntityTypeRelation `json:"fromRelationships,omitempty"`
	ToRelationships     []EntityTypeRelation `json:"toRelationships,omitempty"`
}

// EntityTypeProperty is a property available on an entity type
type EntityTypeProperty struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"displayName,omitempty"`
}

// EntityTypeRelation describes a relationship an entity type participates in
type EntityTypeRelation struct {
	ID        string   `json:"id"`
	ToTypes   []string `json:"toTypes,omitempty"`
	FromTypes []string `json:"fromTypes,omitempty"`
}

// EntityTypesList is a page of entity types
type EntityTypesList struct {
	TotalCount  int          `json:"totalCount"`
	PageSize    int          `json:"pageSize"`
	NextPageKey string       `json:"nextPageKey,omitempty"`
	Types       []EntityType `json:"types"`
}

// CustomDevice is the payload for creating or updating a custom device
type CustomDevice struct {
	CustomDeviceID string            `json:"customDeviceId"`
	DisplayName    string            `json:"displayName"`
	IPAddresses    []string          `json:"ipAddresses,omitempty"`
	ListenPorts    []int             `json:"listenPorts,omitempty"`
	Type           string            `json:"type,omitempty"`
	FaviconURL     string            `json:"faviconUrl,omitempty"`
	ConfigURL      string            `json:"configUrl,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	DNSNames       []string          `json:"dnsNames,omitempty"`
	Group          string            `json:"group,omitempty"`
}

// CustomDeviceCreationResult is returned after creating a custom device
type CustomDeviceCreationResult struct {
	EntityID string `json:"entityId"`
	GroupID  string `json:"groupId,omitempty"`
}

// Tags

// TagsList lists custom tags on the selected entities
type TagsList struct {
	TotalCount int     `json:"totalCount"`
	Tags       []METag `json:"tags"`
}

// AddTag is a tag to apply
type AddTag struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// AddTagsRequest is the body of POST /tags
type AddTagsRequest struct {
	Tags []AddTag `json:"tags"`
}

// AddTagsResult reports which tags were applied
type AddTagsResult struct {
	MatchedEntitiesCount int     `json:"matchedEntitiesCount"`
	AppliedTags          []METag `json:"appliedTags"`
}

// DeleteTagsResult reports how many entities were touched
type DeleteTagsResult struct {
	MatchedEntitiesCount int `json:"matchedEntitiesCount"`
}

// Metrics

// MetricDescriptor describes a metric
type MetricDescriptor struct {
	MetricID             string                `json:"metricId"`
	DisplayName          string                `json:"displayName,omitempty"`
	Description          string                `json:"description,omitempty"`
	Unit                 string                `json:"unit,omitempty"`
	AggregationTypes     []string              `json:"aggregationTypes,omitempty"`
	DefaultAggregation   *DefaultAggregation   `json:"defaultAggregation,omitempty"`
	DimensionDefinitions []DimensionDefinition `json:"dimensionDefinitions,omitempty"`
	EntityType           []string              `json:"entityType,omitempty"`
	Transformations      []string              `json:"transformations,omitempty"`
	Tags                 []string              `json:"tags,omitempty"`
	Created              int64                 `json:"created,omitempty"`
	LastWritten          int64                 `json:"lastWritten,omitempty"`
	MetricValueType      *MetricValueType      `json:"metricValueType,omitempty"`
}

// DefaultAggregation of a metric
type DefaultAggregation struct {
	Type      string  `json:"type"`
	Parameter float64 `json:"parameter,omitempty"`
}

// DimensionDefinition describes one metric dimension
type DimensionDefinition struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Index       int    `json:"index"`
	Type        string `json:"type"`
}

// MetricValueType of a metric
type MetricValueType struct {
	Type string `json:"type"`
}

// MetricDescriptorsList is a page of metric descriptors
type MetricDescriptorsList struct {
	TotalCount  int                `json:"totalCount"`
	NextPageKey string             `json:"nextPageKey,omitempty"`
	Metrics     []MetricDescriptor `json:"metrics"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// MetricData is the result of a metric query
type MetricData struct {
	TotalCount  int                      `json:"totalCount"`
	NextPageKey string                   `json:"nextPageKey,omitempty"`
	Resolution  string                   `json:"resolution,omitempty"`
	Result      []MetricSeriesCollection `json:"result"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// MetricSeriesCollection holds the series of one metric
type MetricSeriesCollection struct {
	MetricID string         `json:"metricId"`
	Data     []MetricSeries `json:"data"`
	Warnings []string       `json:"warnings,omitempty"`
}

// MetricSeries is one time series. Values may contain nulls for gaps.
type MetricSeries struct {
	Dimensions   []string          `json:"dimensions"`
	DimensionMap map[string]string `json:"dimensionMap"`
	Timestamps   []int64           `json:"timestamps"`
	Values       []*float64        `json:"values"`
}

// MetricIngestResult reports the outcome of a line protocol ingest
type MetricIngestResult struct {
	LinesOk      int                  `json:"linesOk"`
	LinesInvalid int                  `json:"linesInvalid"`
	Error        *MetricIngestError   `json:"error,omitempty"`
	Warnings     *MetricIngestWarning `json:"warnings,omitempty"`
}

// MetricIngestError lists the rejected lines
type MetricIngestError struct {
	Code         int                 `json:"code"`
	Message      string              `json:"message"`
	InvalidLines []InvalidMetricLine `json:"invalidLines,omitempty"`
}

// InvalidMetricLine is one rejected line
type InvalidMetricLine struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// MetricIngestWarning reports normalized metric keys
type MetricIngestWarning struct {
	Message           string   `json:"message"`
	ChangedMetricKeys []string `json:"changedMetricKeys,omitempty"`
}

// Units

// Unit of measure
type Unit struct {
	UnitID            string `json:"unitId"`
	DisplayName       string `json:"displayName"`
	DisplayNamePlural string `json:"displayNamePlural,omitempty"`
	Symbol            string `json:"symbol,omitempty"`
	Description       string `json:"description,omitempty"`
}

// UnitsList lists units
type UnitsList struct {
	TotalCount  int    `json:"totalCount"`
	NextPageKey string `json:"nextPageKey,omitempty"`
	Units       []Unit `json:"units"`
}

// Audit logs

// AuditLogEntry is one audit log record
type AuditLogEntry struct {
	LogID         string          `json:"logId"`
	EventType     string          `json:"eventType"`
	Category      string          `json:"category"`
	EntityID      string          `json:"entityId,omitempty"`
	EnvironmentID string          `json:"environmentId,omitempty"`
	User          string          `json:"user"`
	UserType      string          `json:"userType,omitempty"`
	UserOrigin    string          `json:"userOrigin,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	Success       bool            `json:"success"`
	Message       string          `json:"message,omitempty"`
	Patch         json.RawMessage `json:"patch,omitempty"`
}

// AuditLog is a page of audit log entries
type AuditLog struct {
	TotalCount  int             `json:"totalCount"`
	PageSize    int             `json:"pageSize"`
	NextPageKey string          `json:"nextPageKey,omitempty"`
	AuditLogs   []AuditLogEntry `json:"auditLogs"`
}

// Events

// EventProperty describes a property usable in events
type EventProperty struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Filterable  bool   `json:"filterable"`
	Writable    bool   `json:"writable"`
}

// EventPropertiesList is a page of event properties
type EventPropertiesList struct {
	TotalCount      int             `json:"totalCount"`
	PageSize        int             `json:"pageSize"`
	NextPageKey     string          `json:"nextPageKey,omitempty"`
	EventProperties []EventProperty `json:"eventProperties"`
}

// EventType describes an event type
type EventType struct {
	Type          string `json:"type"`
	DisplayName   string `json:"displayName,omitempty"`
	SeverityLevel string `json:"severityLevel,omitempty"`
	Description   string `json:"description,omitempty"`
}

// EventTypesList is a page of event types
type EventTypesList struct {
	TotalCount     int         `json:"totalCount"`
	PageSize       int         `json:"pageSize"`
	NextPageKey    string      `json:"nextPageKey,omitempty"`
	EventTypeInfos []EventType `json:"eventTypeInfos"`
}

// EventPropertyValue is a key/value property on an event
type EventPropertyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a Dynatrace event
type Event struct {
	EventID          string               `json:"eventId"`
	EventType        string               `json:"eventType"`
	Title            string               `json:"title"`
	Status           string               `json:"status,omitempty"`
	StartTime        int64                `json:"startTime"`
	EndTime          int64                `json:"endTime,omitempty"`
	CorrelationID    string               `json:"correlationId,omitempty"`
	EntityID         *EntityStub          `json:"entityId,omitempty"`
	ManagementZones  []ManagementZone     `json:"managementZones,omitempty"`
	Properties       []EventPropertyValue `json:"properties,omitempty"`
	EntityTags       []METag              `json:"entityTags,omitempty"`
	SuppressAlert    bool                 `json:"suppressAlert"`
	SuppressProblem  bool                 `json:"suppressProblem"`
	UnderMaintenance bool                 `json:"underMaintenance"`
	FrequentEvent    bool                 `json:"frequentEvent"`
}

// EventsList is a page of events
type EventsList struct {
	TotalCount  int      `json:"totalCount"`
	PageSize    int      `json:"pageSize"`
	NextPageKey string   `json:"nextPageKey,omitempty"`
	Events      []Event  `json:"events"`
	Warnings    []string `json:"warnings,omitempty"`
}

// EventIngest is the body of POST /events/ingest
type EventIngest struct {
	EventType      string            `json:"eventType"`
	Title          string            `json:"title"`
	EntitySelector string            `json:"entitySelector,omitempty"`
	StartTime      int64             `json:"startTime,omitempty"`
	EndTime        int64             `json:"endTime,omitempty"`
	Timeout        int               `json:"timeout,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// EventIngestResults is returned after ingesting an event
type EventIngestResults struct {
	ReportCount        int                 `json:"reportCount"`
	EventIngestResults []EventIngestResult `json:"eventIngestResults"`
}

// EventIngestResult is the outcome for one matched entity
type EventIngestResult struct {
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
}

// Logs

// LogRecord is one log line returned by /logs/search
type LogRecord struct {
	Timestamp         int64          `json:"timestamp"`
	Status            string         `json:"status,omitempty"`
	Content           string         `json:"content"`
	EventType         string         `json:"event.type,omitempty"`
	AdditionalColumns map[string]any `json:"additionalColumns,omitempty"`
}

// LogRecordsList is a page of log records
type LogRecordsList struct {
	SliceSize    int         `json:"sliceSize,omitempty"`
	NextSliceKey string      `json:"nextSliceKey,omitempty"`
	Results      []LogRecord `json:"results"`
	Warnings     string      `json:"warnings,omitempty"`
}

// Security problems

// SecurityProblem is a detected third-party or code-level vulnerability
type SecurityProblem struct {
	SecurityProblemID       string           `json:"securityProblemId"`
	DisplayID               string           `json:"displayId"`
	Title                   string           `json:"title"`
	Status                  string           `json:"status"`
	Muted                   bool             `json:"muted"`
	TechnologyType          string           `json:"technology,omitempty"`
	VulnerabilityType       string           `json:"vulnerabilityType,omitempty"`
	ExternalVulnerabilityID string           `json:"externalVulnerabilityId,omitempty"`
	URL                     string           `json:"url,omitempty"`
	CveIDs                  []string         `json:"cveIds,omitempty"`
	FirstSeenTimestamp      int64            `json:"firstSeenTimestamp,omitempty"`
	LastUpdatedTimestamp    int64            `json:"lastUpdatedTimestamp,omitempty"`
	RiskAssessment          *RiskAssessment  `json:"riskAssessment,omitempty"`
	Description             string           `json:"description,omitempty"`
	Remediation             string           `json:"remediationDescription,omitempty"`
	ManagementZones         []ManagementZone `json:"managementZones,omitempty"`
	AffectedEntities        []string         `json:"affectedEntities,omitempty"`
}

// RiskAssessment of a security problem
type RiskAssessment struct {
	RiskLevel               string  `json:"riskLevel"`
	RiskScore               float64 `json:"riskScore"`
	BaseRiskLevel           string  `json:"baseRiskLevel,omitempty"`
	BaseRiskScore           float64 `json:"baseRiskScore,omitempty"`
	Exposure                string  `json:"exposure,omitempty"`
	DataAssets              string  `json:"dataAssets,omitempty"`
	PublicExploit           string  `json:"publicExploit,omitempty"`
	VulnerableFunctionUsage string  `json:"vulnerableFunctionUsage,omitempty"`
}

// SecurityProblemsList is a page of security problems
type SecurityProblemsList struct {
	TotalCount       int               `json:"totalCount"`
	PageSize         int               `json:"pageSize"`
	NextPageKey      string            `json:"nextPageKey,omitempty"`
	SecurityProblems []SecurityProblem `json:"securityProblems"`
}

// Cluster

// ClusterVersion of the Managed cluster
type ClusterVersion struct {
	Version string `json:"version"`
}
