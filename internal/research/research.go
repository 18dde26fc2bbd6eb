// Package research adapts external lookup backends to the orchestrator's
// fire-and-forget research contract: a query plus running context in, prose
// out, and failures degraded to fixed fallback text rather than errors.
package research

import (
	"context"

	"go.uber.org/zap"
)

// Fallback strings surfaced in place of research content. Gateway failures
// are invisible to the caller beyond these.
const (
	FallbackUnavailable = "Research service unavailable."
	FallbackFailed      = "Unable to complete research at this time."
	FallbackEmpty       = "No research results available."
)

// Gateway is a single request/response research backend.
type Gateway interface {
	// Query performs one lookup. Implementations may fail; degradation to
	// fallback text is the Runner's job, not theirs.
	Query(ctx context.Context, query, convContext string) (string, error)
	// Name identifies the backend in logs.
	Name() string
}

// Runner wraps a Gateway with the never-fails semantics the orchestrator
// relies on: Perform always produces a string, and errors only reach the
// log.
type Runner struct {
	gw  Gateway
	log *zap.Logger
}

// NewRunner wraps gw. A nil gateway degrades every call to
// FallbackUnavailable.
func NewRunner(gw Gateway, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{gw: gw, log: log}
}

// Perform runs one research lookup and never returns an error.
func (r *Runner) Perform(ctx context.Context, query, convContext string) string {
	if r.gw == nil {
		return FallbackUnavailable
	}
	result, err := r.gw.Query(ctx, query, convContext)
	if err != nil {
		r.log.Warn("research query failed",
			zap.String("backend", r.gw.Name()),
			zap.Error(err))
		return FallbackFailed
	}
	if result == "" {
		return FallbackEmpty
	}
	return result
}
