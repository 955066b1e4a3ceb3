package checker

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// splitHostPort parses "host:port" splitting from the right, so IPv6-style
// addresses with embedded colons keep their host part intact. The port must
// be within 1-65535.
func splitHostPort(address string) (host string, port int, err error) {
	idx := strings.LastIndex(address, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("%w: %q, expected host:port", ErrInvalidAddress, address)
	}

	host = strings.Trim(address[:idx], "[]")
	if host == "" {
		return "", 0, fmt.Errorf("%w: %q, empty host", ErrInvalidAddress, address)
	}

	port, err = strconv.Atoi(address[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: cannot parse port from %q", ErrInvalidAddress, address)
	}
	if port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w: %d, must be 1-65535", ErrInvalidPort, port)
	}

	return host, port, nil
}

// hostForTLS extracts host and port from a TLS target address. Accepts a
// bare host, host:port, or a full URL; the port defaults to 443.
func hostForTLS(address string) (host string, port int, err error) {
	if strings.Contains(address, "://") {
		u, parseErr := url.Parse(address)
		if parseErr != nil || u.Hostname() == "" {
			return "", 0, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
		host = u.Hostname()
		port = 443
		if p := u.Port(); p != "" {
			port, err = strconv.Atoi(p)
			if err != nil || port < 1 || port > 65535 {
				return "", 0, fmt.Errorf("%w: %q", ErrInvalidPort, p)
			}
		}
		return host, port, nil
	}

	if strings.Contains(address, ":") {
		return splitHostPort(address)
	}

	return address, 443, nil
}

// hostForPing extracts a bare hostname or IP from a URL or plain address
func hostForPing(address string) (string, error) {
	if !strings.Contains(address, "://") {
		if address == "" || strings.ContainsAny(address, " /") {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
		// Strip a trailing :port if present
		if idx := strings.LastIndex(address, ":"); idx > 0 {
			if _, err := strconv.Atoi(address[idx+1:]); err == nil {
				return strings.Trim(address[:idx], "[]"), nil
			}
		}
		return address, nil
	}

	u, err := url.Parse(address)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: cannot extract host from %q", ErrInvalidAddress, address)
	}
	return u.Hostname(), nil
}
