package model

import (
	"strings"
	"time"
)

// CheckType represents the kind of probe performed against a target
type CheckType string

const (
	CheckHTTP      CheckType = "http"
	CheckContent   CheckType = "http_content"
	CheckPing      CheckType = "icmp_ping"
	CheckTCPOpen   CheckType = "tcp_port_must_be_open"
	CheckTCPClosed CheckType = "tcp_port_must_be_closed"
	CheckTLSExpiry CheckType = "tls_expiry"
)

// CheckStatus is the last recorded probe result for a target
type CheckStatus int

const (
	StatusUnknown CheckStatus = 0
	StatusUp      CheckStatus = 1
	StatusDown    CheckStatus = -1
)

// Target represents a monitored endpoint, host or certificate
type Target struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Address         string    `json:"address"`
	CheckType       CheckType `json:"check_type"`
	IntervalSeconds int       `json:"interval_seconds"`
	Enabled         bool      `json:"enabled"`

	// Comma-separated keyword lists used by content checks
	RequiredKeywords  string `json:"required_keywords,omitempty"`
	ForbiddenKeywords string `json:"forbidden_keywords,omitempty"`

	// Consecutive failures before an error alert fires
	MaxFailures int `json:"max_failures"`

	// Rolling counters written back by the worker each cycle
	SuccessCount    int64       `json:"success_count"`
	FailureCount    int64       `json:"failure_count"`
	LastCheckTime   *time.Time  `json:"last_check_time,omitempty"`
	LastCheckStatus CheckStatus `json:"last_check_status"`

	// Probing is suppressed until this time passes
	PausedUntil *time.Time `json:"paused_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interval returns the check interval with a sane default applied
func (t *Target) Interval() time.Duration {
	if t.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Paused reports whether probing is suppressed at the given instant
func (t *Target) Paused(now time.Time) bool {
	return t.PausedUntil != nil && now.Before(*t.PausedUntil)
}

// SplitKeywords parses a comma-separated keyword list, dropping empty entries
func SplitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// ConfigEquals reports whether two snapshots of the same target carry the
// same probe configuration. A change means the running worker is stale and
// must be restarted by the reconciler.
func (t *Target) ConfigEquals(other *Target) bool {
	return t.Address == other.Address &&
		t.CheckType == other.CheckType &&
		t.IntervalSeconds == other.IntervalSeconds &&
		t.RequiredKeywords == other.RequiredKeywords &&
		t.ForbiddenKeywords == other.ForbiddenKeywords &&
		t.MaxFailures == other.MaxFailures
}
