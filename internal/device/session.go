package device

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// ExecStatus classifies one command execution.
type ExecStatus string

const (
	// StatusOK means the device accepted the command.
	StatusOK ExecStatus = "ok"

	// StatusFailed means the device rejected the command or the channel
	// reported an execution error.
	StatusFailed ExecStatus = "failed"

	// StatusTimeout means the command did not complete within its bound.
	// The applier treats it exactly like a failure.
	StatusTimeout ExecStatus = "timeout"
)

// ExecResult is the outcome of one command.
type ExecResult struct {
	Status   ExecStatus    `json:"status"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Session is an exclusive command channel to one device. Execute is the
// only blocking call in the engine; it must honor both the context and
// the per-command timeout. Errors are reserved for channel loss, not for
// command rejection, which comes back as a failed ExecResult.
type Session interface {
	Device() string
	Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)
	IsReachable(ctx context.Context) bool
}

// PacedSession wraps a Session with a rate limiter so bursts of short
// commands do not overrun a slow console line.
type PacedSession struct {
	inner   Session
	limiter *rate.Limiter
}

// NewPacedSession allows at most perSecond commands per second with the
// given burst.
func NewPacedSession(inner Session, perSecond float64, burst int) *PacedSession {
	return &PacedSession{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (p *PacedSession) Device() string { return p.inner.Device() }

func (p *PacedSession) Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return ExecResult{Status: StatusFailed}, err
	}
	return p.inner.Execute(ctx, command, timeout)
}

func (p *PacedSession) IsReachable(ctx context.Context) bool {
	return p.inner.IsReachable(ctx)
}
