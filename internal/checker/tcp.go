package checker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/upmon/upmon/internal/model"
)

// tcpChecker probes a TCP port with a raw connect. Two polarities share the
// implementation: wantOpen=true treats a closed port as a failure, while
// wantOpen=false alerts when the port IS reachable (security-posture checks
// such as verifying an admin port is not exposed).
type tcpChecker struct {
	prober   *Prober
	wantOpen bool
}

func (c *tcpChecker) Check(ctx context.Context, address string) model.Outcome {
	courtesyWait(ctx, tcpProbeDelay)

	host, port, err := splitHostPort(address)
	if err != nil {
		return model.Failure(model.FailureConfig, err.Error())
	}

	dialer := &net.Dialer{Timeout: c.prober.timeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	latency := time.Since(start)

	open := err == nil
	if conn != nil {
		conn.Close()
	}

	detail := &model.PortDetail{Host: host, Port: port, Open: open}

	if open == c.wantOpen {
		state := "open"
		if !open {
			state = "closed"
		}
		return model.Outcome{
			Success: true,
			Latency: latency,
			Message: fmt.Sprintf("port %d is %s", port, state),
			Detail:  model.Detail{Port: detail},
		}
	}

	if c.wantOpen {
		return model.Outcome{
			Success: false,
			Latency: latency,
			Kind:    model.FailureTransient,
			Message: fmt.Sprintf("port %d is closed or filtered: %v", port, err),
			Detail:  model.Detail{Port: detail},
		}
	}

	return model.Outcome{
		Success: false,
		Latency: latency,
		Kind:    model.FailureProtocol,
		Message: fmt.Sprintf("port %d is open but should be closed", port),
		Detail:  model.Detail{Port: detail},
	}
}
