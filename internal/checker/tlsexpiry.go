package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/upmon/upmon/internal/model"
)

// DefaultTLSWarningDays is how close to expiry a certificate may get before
// the check starts failing
const DefaultTLSWarningDays = 7

// tlsChecker completes a TLS handshake and classifies the leaf certificate
// by whole days remaining until NotAfter, measured against UTC now:
// healthy above the warning threshold, expiring_soon within it, expired at
// or below zero. A handshake failure is a distinct failure from expiry.
type tlsChecker struct {
	prober      *Prober
	warningDays int
}

func (c *tlsChecker) Check(ctx context.Context, address string) model.Outcome {
	courtesyWait(ctx, tlsProbeDelay)

	host, port, err := hostForTLS(address)
	if err != nil {
		return model.Failure(model.FailureConfig, err.Error())
	}

	// Verification stays off: an expired or untrusted chain must still be
	// classified by NotAfter instead of aborting the handshake.
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.prober.timeout},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
		},
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.prober.timeout)
	defer cancel()

	start := time.Now()
	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	latency := time.Since(start)
	if err != nil {
		return model.Outcome{
			Success: false,
			Kind:    model.FailureProtocol,
			Message: fmt.Sprintf("TLS handshake with %s:%d failed: %v", host, port, err),
		}
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return model.Outcome{
			Success: false,
			Kind:    model.FailureProtocol,
			Message: fmt.Sprintf("no certificate presented by %s:%d", host, port),
		}
	}

	expiresAt := certs[0].NotAfter.UTC()
	days := wholeDaysUntil(expiresAt, time.Now().UTC())

	detail := &model.TLSDetail{
		Host:            host,
		Port:            port,
		DaysUntilExpiry: days,
		ExpiresAt:       expiresAt,
	}

	switch {
	case days > c.warningDays:
		detail.State = model.TLSValid
		return model.Outcome{
			Success: true,
			Latency: latency,
			Message: fmt.Sprintf("certificate valid for %d days (expires %s)", days, expiresAt.Format(time.RFC3339)),
			Detail:  model.Detail{TLS: detail},
		}
	case days > 0:
		detail.State = model.TLSExpiringSoon
		return model.Outcome{
			Success: false,
			Latency: latency,
			Kind:    model.FailureProtocol,
			Message: fmt.Sprintf("certificate expires in %d days (%s)", days, expiresAt.Format(time.RFC3339)),
			Detail:  model.Detail{TLS: detail},
		}
	default:
		detail.State = model.TLSExpired
		return model.Outcome{
			Success: false,
			Latency: latency,
			Kind:    model.FailureProtocol,
			Message: fmt.Sprintf("certificate expired %d days ago (%s)", -days, expiresAt.Format(time.RFC3339)),
			Detail:  model.Detail{TLS: detail},
		}
	}
}

// wholeDaysUntil floors toward negative infinity, so a certificate that
// expired 2.5 days ago reports -3, matching calendar-day intuition
func wholeDaysUntil(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}
