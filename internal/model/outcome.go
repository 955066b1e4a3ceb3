package model

import "time"

// FailureKind classifies why a probe failed
type FailureKind string

const (
	// FailureNone marks a successful outcome
	FailureNone FailureKind = ""

	// FailureConfig marks malformed target configuration (bad host:port,
	// invalid port range). Never retried.
	FailureConfig FailureKind = "config"

	// FailureTransient marks network-level faults: timeouts, refused
	// connections, DNS errors. Retried up to the attempt limit.
	FailureTransient FailureKind = "transient"

	// FailureProtocol marks protocol-level faults: non-200 status, TLS
	// handshake errors, expiring certificates. Retried like transient.
	FailureProtocol FailureKind = "protocol"
)

// TLSState classifies certificate expiry
type TLSState string

const (
	TLSValid        TLSState = "valid"
	TLSExpiringSoon TLSState = "expiring_soon"
	TLSExpired      TLSState = "expired"
)

// Outcome is the uniform result of a single probe attempt
type Outcome struct {
	Success bool          `json:"success"`
	Latency time.Duration `json:"latency,omitempty"`
	Message string        `json:"message"`
	Kind    FailureKind   `json:"failure_kind,omitempty"`
	Detail  Detail        `json:"detail,omitempty"`
}

// Detail carries check-specific fields. Exactly one variant is set,
// matching the target's check type.
type Detail struct {
	HTTP    *HTTPDetail    `json:"http,omitempty"`
	Content *ContentDetail `json:"content,omitempty"`
	Ping    *PingDetail    `json:"ping,omitempty"`
	Port    *PortDetail    `json:"port,omitempty"`
	TLS     *TLSDetail     `json:"tls,omitempty"`
}

// HTTPDetail describes an HTTP probe
type HTTPDetail struct {
	StatusCode int    `json:"status_code,omitempty"`
	URL        string `json:"url"`
	Fallback   bool   `json:"http_fallback,omitempty"`
}

// ContentDetail describes a content validation probe
type ContentDetail struct {
	StatusCode      int      `json:"status_code,omitempty"`
	ContentLength   int      `json:"content_length"`
	ForbiddenFound  string   `json:"forbidden_found,omitempty"`
	MissingRequired []string `json:"missing_required,omitempty"`
}

// PingDetail describes an ICMP probe
type PingDetail struct {
	Host string `json:"host"`
}

// PortDetail describes a TCP port probe
type PortDetail struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Open bool   `json:"open"`
}

// TLSDetail describes a certificate expiry probe
type TLSDetail struct {
	Host            string    `json:"host"`
	Port            int       `json:"port"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	ExpiresAt       time.Time `json:"expires_at"`
	State           TLSState  `json:"state"`
}

// Failure builds a failing outcome of the given kind
func Failure(kind FailureKind, message string) Outcome {
	return Outcome{Success: false, Kind: kind, Message: message}
}

// ConfigError reports whether the outcome failed due to target
// misconfiguration rather than a fault on the probed side
func (o Outcome) ConfigError() bool {
	return !o.Success && o.Kind == FailureConfig
}
