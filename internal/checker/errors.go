package checker

import "errors"

var (
	// ErrUnknownCheckType is returned when a target carries a check type
	// the prober does not implement
	ErrUnknownCheckType = errors.New("unknown check type")

	// ErrInvalidAddress is returned when a target address cannot be parsed
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPort is returned when a port is outside 1-65535
	ErrInvalidPort = errors.New("invalid port")
)
