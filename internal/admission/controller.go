package admission

import (
	apperrors "twin/internal/errors"
	"twin/internal/logging"
)

const (
	RateLimitedMessage     = "Too many requests. Please try again later."
	BudgetExhaustedMessage = "Service temporarily unavailable due to high demand. Please try again in a minute."
)

// Controller combines the per-identity rate limiter and the global token
// budget. Both gates fail closed.
type Controller struct {
	limiter *RateLimiter
	budget  *TokenBudget
	logger  logging.Logger
}

// NewController wires the two gates together.
func NewController(limiter *RateLimiter, budget *TokenBudget, opts ...Option) *Controller {
	o := applyOptions(opts)
	logger := o.logger
	if logger == nil {
		logger = logging.NewComponentLogger("Admission")
	}
	return &Controller{limiter: limiter, budget: budget, logger: logger}
}

// AdmitClient applies the sliding window for identity. An empty identity
// shares the "unknown" bucket.
func (c *Controller) AdmitClient(identity string) error {
	if c.limiter == nil {
		return nil
	}
	if !c.limiter.Allow(identity) {
		c.logger.Info("Rate limit exceeded for client %q", identity)
		return &apperrors.PolicySoftBlock{Reason: apperrors.ReasonRateLimited, Message: RateLimitedMessage}
	}
	return nil
}

// AdmitBudget refuses when the current minute's token ceiling is reached.
func (c *Controller) AdmitBudget() error {
	if c.budget == nil {
		return nil
	}
	if !c.budget.Admit() {
		minute, used := c.budget.Snapshot()
		c.logger.Warn("Token budget exhausted for %s: %d used", minute, used)
		return &apperrors.PolicySoftBlock{Reason: apperrors.ReasonBudgetExhausted, Message: BudgetExhaustedMessage}
	}
	return nil
}

// RecordUsage charges tokens to the budget after a successful completion.
func (c *Controller) RecordUsage(tokens int) {
	if c.budget == nil {
		return
	}
	c.budget.Record(tokens)
}

// Limiter exposes the rate limiter for routes outside the chat pipeline.
func (c *Controller) Limiter() *RateLimiter {
	return c.limiter
}
