package alerting

import (
	"context"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
	"github.com/foliowatch/foliowatch-go/internal/errors"
	"github.com/foliowatch/foliowatch-go/internal/fetcher"
	"github.com/foliowatch/foliowatch-go/internal/logger"
	"github.com/foliowatch/foliowatch-go/internal/observability"
)

// Evaluation outcomes recorded per rule per tick.
const (
	outcomeSkipped  = "skipped"
	outcomeNoData   = "no_data"
	outcomeNoMatch  = "no_match"
	outcomeFired    = "fired"
	outcomeRaceLost = "race_lost"
	outcomeError    = "error"
)

// AlertDispatcher fans a materialized alert out to notification channels.
// Implemented by the notification dispatcher; injected so the engine can
// be tested without the delivery stack.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert *entities.Alert, rule *entities.AlertRule) error
}

// Engine evaluates rule batches against fetched values and materializes
// alerts for conditions that fire.
type Engine struct {
	rules     repository.AlertRuleRepository
	values    fetcher.ValueFetcher
	lifecycle *LifecycleManager
	disp      AlertDispatcher
	metrics   *observability.PipelineMetrics
	log       logger.Logger
}

// NewEngine creates an evaluation engine with explicit collaborators.
func NewEngine(
	rules repository.AlertRuleRepository,
	values fetcher.ValueFetcher,
	lifecycle *LifecycleManager,
	disp AlertDispatcher,
	metrics *observability.PipelineMetrics,
	log logger.Logger,
) *Engine {
	return &Engine{
		rules:     rules,
		values:    values,
		lifecycle: lifecycle,
		disp:      disp,
		metrics:   metrics,
		log:       log,
	}
}

// EvaluateBatch evaluates all eligible rules of the given type. Each rule
// is isolated: one bad rule never aborts the batch. Returns the number of
// rules that fired.
func (e *Engine) EvaluateBatch(ctx context.Context, ruleType string) (int, error) {
	now := time.Now()
	rules, err := e.rules.GetEligibleRules(ctx, ruleType, now)
	if err != nil {
		// The datastore is unavailable; fail the tick so the work
		// queue's own retry policy re-runs it.
		return 0, errors.New(err).Component("alerting").Category(errors.CategoryPersistence).Build()
	}

	fired := 0
	for i := range rules {
		rule := &rules[i]
		outcome := e.evaluateRule(ctx, rule, time.Now())
		e.metrics.RulesEvaluated.WithLabelValues(ruleType, outcome).Inc()
		if outcome == outcomeFired {
			fired++
		}
	}
	return fired, nil
}

// evaluateRule runs the full pipeline for one rule: eligibility gate,
// value fetch, condition evaluation, compare-and-swap trigger write,
// alert creation, dispatch.
func (e *Engine) evaluateRule(ctx context.Context, rule *entities.AlertRule, now time.Time) string {
	if !rule.CanTriggerAt(now) {
		return outcomeSkipped
	}

	value, err := e.values.Fetch(ctx, rule.Type, rule.Subject())
	if err != nil {
		e.metrics.RuleFetchErrors.WithLabelValues(rule.Type).Inc()
		if errors.Is(err, fetcher.ErrNoData) {
			e.log.Debug("no data for rule subject, skipping tick",
				logger.String("rule_id", rule.ID),
				logger.String("subject", rule.Subject()))
		} else {
			e.log.Warn("value fetch failed, skipping rule this tick",
				logger.String("rule_id", rule.ID),
				logger.String("subject", rule.Subject()),
				logger.Error(err))
		}
		return outcomeNoData
	}

	if !EvaluateRule(rule, value) {
		return outcomeNoMatch
	}

	// Compare-and-swap on last_triggered closes the race between two
	// overlapping evaluations of the same rule: exactly one wins the
	// write and produces the alert.
	won, err := e.rules.MarkTriggered(ctx, rule.ID, rule.LastTriggered, now)
	if err != nil {
		e.log.Error("failed to record rule trigger",
			logger.String("rule_id", rule.ID),
			logger.Error(err))
		return outcomeError
	}
	if !won {
		e.metrics.TriggerRaceLost.Inc()
		e.log.Debug("concurrent evaluation won the trigger write",
			logger.String("rule_id", rule.ID))
		return outcomeRaceLost
	}

	alert, err := e.lifecycle.CreateFromRule(ctx, rule, value, now)
	if err != nil {
		// The cooldown mark is already durable, so a crash here cannot
		// double-fire; the fan-out for this firing is lost and logged
		// as such rather than silently dropped.
		e.log.Error("rule triggered but alert creation failed",
			logger.String("rule_id", rule.ID),
			logger.Float64("value", value),
			logger.Error(err))
		return outcomeError
	}
	e.metrics.AlertsFired.WithLabelValues(rule.Type).Inc()
	e.log.Info("alert fired",
		logger.String("rule_id", rule.ID),
		logger.String("alert_id", alert.ID),
		logger.String("subject", rule.Subject()),
		logger.Float64("value", value))

	if e.disp != nil {
		if err := e.disp.Dispatch(ctx, alert, rule); err != nil {
			e.log.Error("alert dispatch failed",
				logger.String("alert_id", alert.ID),
				logger.Error(err))
			return outcomeError
		}
	}
	return outcomeFired
}

// TestFire materializes an alert and runs delivery for a rule directly,
// bypassing condition evaluation and the cooldown gate. Used by the rule
// test endpoint so owners can verify their channel setup.
func (e *Engine) TestFire(ctx context.Context, rule *entities.AlertRule) (*entities.Alert, error) {
	now := time.Now()
	alert, err := e.lifecycle.CreateFromRule(ctx, rule, rule.Threshold, now)
	if err != nil {
		return nil, err
	}
	if e.disp != nil {
		if err := e.disp.Dispatch(ctx, alert, rule); err != nil {
			return alert, err
		}
	}
	return alert, nil
}
