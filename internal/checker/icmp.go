package checker

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/upmon/upmon/internal/model"
)

// pingChecker shells out to the platform ping utility for a single echo.
// Latency is wall-clock around the process, not parsed from ping output,
// so it includes process startup overhead. Good enough for trend lines.
type pingChecker struct {
	prober *Prober
}

func (c *pingChecker) Check(ctx context.Context, address string) model.Outcome {
	courtesyWait(ctx, pingProbeDelay)

	host, err := hostForPing(address)
	if err != nil {
		return model.Failure(model.FailureConfig, err.Error())
	}

	detail := &model.PingDetail{Host: host}
	timeoutSec := int(c.prober.timeout / time.Second)
	if timeoutSec < 1 {
		timeoutSec = 1
	}

	var args []string
	if runtime.GOOS == "windows" {
		args = []string{"-n", "1", "-w", strconv.Itoa(timeoutSec * 1000), host}
	} else {
		args = []string{"-c", "1", "-W", strconv.Itoa(timeoutSec), host}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.prober.timeout+2*time.Second)
	defer cancel()

	start := time.Now()
	err = exec.CommandContext(runCtx, "ping", args...).Run()
	latency := time.Since(start)

	if err != nil {
		kind := model.FailureTransient
		message := fmt.Sprintf("ping %s failed: %v", host, err)
		if runCtx.Err() == context.DeadlineExceeded {
			message = fmt.Sprintf("ping %s timed out after %ds", host, timeoutSec)
		}
		return model.Outcome{
			Success: false,
			Kind:    kind,
			Message: message,
			Detail:  model.Detail{Ping: detail},
		}
	}

	return model.Outcome{
		Success: true,
		Latency: latency,
		Message: fmt.Sprintf("ping %s ok", host),
		Detail:  model.Detail{Ping: detail},
	}
}
