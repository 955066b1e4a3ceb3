package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

// maxContentBytes caps how much of a response body the content checker
// reads, so a huge page cannot blow up memory
const maxContentBytes = 100 * 1024

// httpChecker probes a URL with GET and reports success iff the status is 200
type httpChecker struct {
	prober *Prober
}

func (c *httpChecker) Check(ctx context.Context, address string) model.Outcome {
	courtesyWait(ctx, httpProbeDelay)

	outcome, _ := c.prober.fetch(ctx, address, nil)
	return outcome
}

// contentChecker fetches a page and validates its body against keyword lists.
// A forbidden keyword match always wins over missing required keywords.
type contentChecker struct {
	prober    *Prober
	required  []string
	forbidden []string
}

func (c *contentChecker) Check(ctx context.Context, address string) model.Outcome {
	courtesyWait(ctx, httpProbeDelay)

	var body string
	outcome, ok := c.prober.fetch(ctx, address, func(r io.Reader) error {
		// Truncation mid-multibyte-sequence is tolerated: keyword matching
		// is byte-wise and a torn rune at the cap cannot produce a false
		// positive on ASCII-safe keywords.
		data, err := io.ReadAll(io.LimitReader(r, maxContentBytes))
		if err != nil {
			return err
		}
		body = string(data)
		return nil
	})
	if !ok {
		return outcome
	}

	detail := &model.ContentDetail{
		StatusCode:    outcome.Detail.HTTP.StatusCode,
		ContentLength: len(body),
	}

	for _, kw := range c.forbidden {
		if strings.Contains(body, kw) {
			detail.ForbiddenFound = kw
			return model.Outcome{
				Success: false,
				Latency: outcome.Latency,
				Kind:    model.FailureProtocol,
				Message: fmt.Sprintf("found forbidden keyword %q", kw),
				Detail:  model.Detail{Content: detail},
			}
		}
	}

	var missing []string
	for _, kw := range c.required {
		if !strings.Contains(body, kw) {
			missing = append(missing, kw)
		}
	}
	if len(missing) > 0 {
		detail.MissingRequired = missing
		return model.Outcome{
			Success: false,
			Latency: outcome.Latency,
			Kind:    model.FailureProtocol,
			Message: fmt.Sprintf("missing required keywords: %s", strings.Join(missing, ", ")),
			Detail:  model.Detail{Content: detail},
		}
	}

	return model.Outcome{
		Success: true,
		Latency: outcome.Latency,
		Message: fmt.Sprintf("content validation passed (%d bytes)", len(body)),
		Detail:  model.Detail{Content: detail},
	}
}

// fetch GETs the address, auto-prefixing the scheme when absent: HTTPS is
// tried first and HTTP only attempted after a TLS-specific failure, never on
// a plain timeout. When readBody is non-nil it consumes the response body of
// a 200 response; its error fails the probe. The bool result reports whether
// the fetch reached a 200 with the body consumed.
func (p *Prober) fetch(ctx context.Context, address string, readBody func(io.Reader) error) (model.Outcome, bool) {
	bare := !strings.Contains(address, "://")
	u := address
	if bare {
		u = "https://" + address
	}

	outcome, ok := p.fetchURL(ctx, u, false, readBody)
	if !ok && bare && outcome.Kind == model.FailureProtocol && isTLSError(outcome) {
		p.logger.Debug("HTTPS failed with TLS error, falling back to HTTP",
			zap.String("address", address))
		return p.fetchURL(ctx, "http://"+address, true, readBody)
	}
	return outcome, ok
}

func (p *Prober) fetchURL(ctx context.Context, u string, fallback bool, readBody func(io.Reader) error) (model.Outcome, bool) {
	detail := &model.HTTPDetail{URL: u, Fallback: fallback}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Outcome{
			Success: false,
			Kind:    model.FailureConfig,
			Message: fmt.Sprintf("invalid URL %q: %v", u, err),
			Detail:  model.Detail{HTTP: detail},
		}, false
	}
	req.Header.Set("User-Agent", "upmon/1.0 health check")
	req.Header.Set("Accept", "text/html,application/json,*/*")

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		outcome := model.Outcome{
			Success: false,
			Kind:    classifyNetError(err),
			Message: fmt.Sprintf("request failed: %v", err),
			Detail:  model.Detail{HTTP: detail},
		}
		outcome.Detail.HTTP.URL = u
		return outcome, false
	}
	defer resp.Body.Close()

	detail.StatusCode = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		return model.Outcome{
			Success: false,
			Latency: latency,
			Kind:    model.FailureProtocol,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Detail:  model.Detail{HTTP: detail},
		}, false
	}

	if readBody != nil {
		if err := readBody(resp.Body); err != nil {
			return model.Outcome{
				Success: false,
				Latency: latency,
				Kind:    model.FailureTransient,
				Message: fmt.Sprintf("failed reading body: %v", err),
				Detail:  model.Detail{HTTP: detail},
			}, false
		}
	}

	return model.Outcome{
		Success: true,
		Latency: latency,
		Message: "HTTP request successful",
		Detail:  model.Detail{HTTP: detail},
	}, true
}

// classifyNetError separates TLS and certificate faults (protocol) from
// timeouts, refused connections and DNS errors (transient)
func classifyNetError(err error) model.FailureKind {
	if isTLSErr(err) {
		return model.FailureProtocol
	}
	return model.FailureTransient
}

func isTLSError(o model.Outcome) bool {
	return strings.Contains(o.Message, "tls:") ||
		strings.Contains(o.Message, "x509:") ||
		strings.Contains(o.Message, "certificate")
}

func isTLSErr(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		authErr     x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	if errors.As(err, &recordErr) || errors.As(err, &verifyErr) ||
		errors.As(err, &authErr) || errors.As(err, &hostnameErr) || errors.As(err, &invalidErr) {
		return true
	}

	// Timeouts are never treated as TLS failures
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}
