package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// AuditLogEntry is one immutable record per processed request.
type AuditLogEntry struct {
	ID             uuid.UUID   `json:"id"`
	Endpoint       string      `json:"endpoint"`
	Method         string      `json:"method"`
	IPAddress      string      `json:"ipAddress"`
	UserAgent      string      `json:"userAgent"`
	ApiKeyID       *uuid.UUID  `json:"apiKeyId,omitempty"`
	UserID         *uuid.UUID  `json:"userId,omitempty"`
	RequestParams  null.String `json:"requestParams,omitempty"`
	ResponseStatus int         `json:"responseStatus"`
	ResponseTimeMs int64       `json:"responseTimeMs"`
	ErrorMessage   null.String `json:"errorMessage,omitempty"`
	RequestBytes   int64       `json:"requestBytes"`
	ResponseBytes  int64       `json:"responseBytes"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Association aggregates repeated contact from one (IP, key, user) triple.
// Nulls in the triple are significant and must match exactly.
type Association struct {
	ID            uuid.UUID   `json:"id"`
	IPAddress     string      `json:"ipAddress"`
	ApiKeyID      *uuid.UUID  `json:"apiKeyId,omitempty"`
	UserID        *uuid.UUID  `json:"userId,omitempty"`
	HitCount      int64       `json:"hitCount"`
	FirstSeen     time.Time   `json:"firstSeen"`
	LastSeen      time.Time   `json:"lastSeen"`
	LastUserAgent string      `json:"lastUserAgent"`
	Geography     null.String `json:"geography,omitempty"`
}

// AssociationFilter narrows an association listing.
type AssociationFilter struct {
	IPAddress   string
	ApiKeyID    *uuid.UUID
	UserID      *uuid.UUID
	MinHitCount int64
}

// UsageStats aggregates audit log entries over a time range.
type UsageStats struct {
	TotalRequests int64           `json:"totalRequests"`
	UniqueIPs     int64           `json:"uniqueIps"`
	AvgResponseMs float64         `json:"avgResponseMs"`
	ErrorRate     float64         `json:"errorRate"`
	TopEndpoints  []EndpointCount `json:"topEndpoints"`
}

// EndpointCount is one row of the top-endpoints breakdown.
type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int64  `json:"count"`
}

// UsageStatsFilter narrows a usage aggregation.
type UsageStatsFilter struct {
	ApiKeyID *uuid.UUID
	UserID   *uuid.UUID
	Since    *time.Time
	Until    *time.Time
}

// SuspiciousIP flags an IP with abnormal recent traffic.
type SuspiciousIP struct {
	IPAddress    string   `json:"ipAddress"`
	RequestCount int64    `json:"requestCount"`
	ErrorCount   int64    `json:"errorCount"`
	ErrorRate    float64  `json:"errorRate"`
	Reasons      []string `json:"reasons"`
}
