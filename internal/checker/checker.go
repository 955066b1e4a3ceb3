package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

// Checker performs a single probe against a target address. Implementations
// are stateless: no retries, no alerting, one attempt per call.
type Checker interface {
	Check(ctx context.Context, address string) model.Outcome
}

// Courtesy delays applied before each probe so a tight retry loop cannot
// hammer the probed host. Independent of retry backoff.
const (
	httpProbeDelay = 100 * time.Millisecond
	pingProbeDelay = 50 * time.Millisecond
	tcpProbeDelay  = 10 * time.Millisecond
	tlsProbeDelay  = 10 * time.Millisecond
)

// Prober owns the shared probing resources: one pooled HTTP client and the
// per-attempt timeout. A single Prober serves every worker.
type Prober struct {
	logger      *zap.Logger
	client      *http.Client
	timeout     time.Duration
	warningDays int
}

// NewProber creates a prober with a connection-pooled HTTP client. The
// client is constructed here and injected into every HTTP-based checker
// rather than living in package state.
func NewProber(logger *zap.Logger, timeout time.Duration, tlsWarningDays int) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if tlsWarningDays <= 0 {
		tlsWarningDays = DefaultTLSWarningDays
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Prober{
		logger:      logger.Named("checker"),
		client:      &http.Client{Transport: transport, Timeout: timeout},
		timeout:     timeout,
		warningDays: tlsWarningDays,
	}
}

// ForTarget returns the checker matching the target's check type, bound to
// its configuration. Unknown check types are an error so the worker can
// surface them instead of probing blindly.
func (p *Prober) ForTarget(target *model.Target) (Checker, error) {
	switch target.CheckType {
	case model.CheckHTTP:
		return &httpChecker{prober: p}, nil
	case model.CheckContent:
		return &contentChecker{
			prober:    p,
			required:  model.SplitKeywords(target.RequiredKeywords),
			forbidden: model.SplitKeywords(target.ForbiddenKeywords),
		}, nil
	case model.CheckPing:
		return &pingChecker{prober: p}, nil
	case model.CheckTCPOpen:
		return &tcpChecker{prober: p, wantOpen: true}, nil
	case model.CheckTCPClosed:
		return &tcpChecker{prober: p, wantOpen: false}, nil
	case model.CheckTLSExpiry:
		return &tlsChecker{prober: p, warningDays: p.warningDays}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCheckType, target.CheckType)
	}
}

// courtesyWait sleeps for the pre-probe delay unless the context ends first
func courtesyWait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
