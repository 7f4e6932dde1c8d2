package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// FailureThreshold is the number of consecutive failed production attempts
// that pauses a template.
const FailureThreshold = 3

const pauseReason = "auto-paused after repeated production failures"

// CircuitBreaker tracks consecutive production failures per template and
// pauses a template when the threshold is reached. A paused template stays
// paused until an operator reactivates it.
type CircuitBreaker struct {
	templates domain.TemplateStore
	threshold int
	logger    *slog.Logger
}

// NewCircuitBreaker creates a breaker over the template store. A zero
// threshold falls back to FailureThreshold.
func NewCircuitBreaker(templates domain.TemplateStore, threshold int, logger *slog.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = FailureThreshold
	}
	return &CircuitBreaker{templates: templates, threshold: threshold, logger: logger}
}

// RecordFailure increments the template's consecutive-failure counter and
// pauses it once the threshold is reached. It returns whether the template is
// now paused.
func (b *CircuitBreaker) RecordFailure(ctx context.Context, templateID string) (bool, error) {
	t, err := b.templates.GetByID(ctx, templateID)
	if err != nil {
		return false, fmt.Errorf("breaker: load template %s: %w", templateID, err)
	}

	count := t.FailureCount + 1
	if count >= b.threshold {
		if err := b.templates.UpdateFailureState(ctx, templateID, count, domain.TemplateStatusPaused, false, pauseReason); err != nil {
			return false, fmt.Errorf("breaker: pause template %s: %w", templateID, err)
		}
		b.logger.Warn("template paused by circuit breaker",
			slog.String("template_id", templateID),
			slog.Int("failures", count),
		)
		return true, nil
	}

	if err := b.templates.UpdateFailureState(ctx, templateID, count, t.Status, t.IsActive, t.PauseReason); err != nil {
		return false, fmt.Errorf("breaker: record failure for template %s: %w", templateID, err)
	}
	return false, nil
}

// RecordSuccess resets the failure counter and clears the pause reason. It is
// called after every durably created instance, external binding or not.
func (b *CircuitBreaker) RecordSuccess(ctx context.Context, templateID string) error {
	t, err := b.templates.GetByID(ctx, templateID)
	if err != nil {
		return fmt.Errorf("breaker: load template %s: %w", templateID, err)
	}
	if err := b.templates.UpdateFailureState(ctx, templateID, 0, t.Status, t.IsActive, ""); err != nil {
		return fmt.Errorf("breaker: reset template %s: %w", templateID, err)
	}
	return nil
}
