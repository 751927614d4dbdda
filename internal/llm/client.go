package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/reliability"
)

// Request is one generation call.
type Request struct {
	Prompt string
	// Simulate returns a canned reply without touching the network.
	Simulate bool
}

// Client generates a reply for a prompt. Generate never fails: missing
// credentials, an unusable client and upstream errors all come back as
// human-readable text that the caller can speak or print.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) string
}

// replies holds the fixed text a client returns instead of a model answer.
type replies struct {
	simulated    string
	noCredential string
	unavailable  string
	errorPrefix  string
}

func repliesFor(label, credentialHint string) replies {
	return replies{
		simulated:    fmt.Sprintf("[dry-run] %s simulated response", label),
		noCredential: credentialHint,
		unavailable:  fmt.Sprintf("%s client not available: ", label),
		errorPrefix:  fmt.Sprintf("[%s error] ", label),
	}
}

// caller carries the check order and bookkeeping shared by every client.
type caller struct {
	tier    string
	replies replies
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

func newCaller(tier string, r replies, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return caller{tier: tier, replies: r, timeout: timeout, logger: logger.Named("llm." + tier), metrics: metrics}
}

// generate checks, in order: simulate, credential, client availability, then calls.
func (c caller) generate(ctx context.Context, req Request, hasCredential bool, unavailable error, call func(context.Context) (string, error)) string {
	if req.Simulate {
		c.metrics.ObserveBackendCall(c.tier, "simulated", 0)
		return c.replies.simulated
	}
	if !hasCredential {
		c.metrics.ObserveBackendCall(c.tier, "missing_credentials", 0)
		return c.replies.noCredential
	}
	if unavailable != nil {
		c.metrics.ObserveBackendCall(c.tier, "unavailable", 0)
		return c.replies.unavailable + unavailable.Error()
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := call(ctx)
	elapsed := time.Since(start)
	c.metrics.ObserveStage("generate_"+c.tier, elapsed)
	if err != nil {
		code := reliability.ClassifyError(err)
		var se *reliability.StatusError
		retryable := errors.As(err, &se) && reliability.IsRetryableHTTPStatus(se.Code)
		c.logger.Warn("backend call failed",
			zap.String("code", code),
			zap.Bool("retryable", retryable),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		c.metrics.ObserveBackendCall(c.tier, "error", elapsed)
		c.metrics.ObserveBackendError(c.tier, code)
		return c.replies.errorPrefix + err.Error()
	}
	c.logger.Debug("backend call ok", zap.Duration("elapsed", elapsed), zap.Int("chars", len(text)))
	c.metrics.ObserveBackendCall(c.tier, "ok", elapsed)
	return text
}
