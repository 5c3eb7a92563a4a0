package alerting

import (
	"context"
	"fmt"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/datastore/repository"
)

// defaultRules are the starter rules seeded for a new owner. They are
// created disabled so nothing fires until the owner opts in.
func defaultRules(ownerID string) []entities.AlertRule {
	return []entities.AlertRule{
		{
			OwnerID:         ownerID,
			Name:            "Large daily move",
			Type:            entities.RuleTypePercentage,
			Metric:          "change_percent",
			Operator:        entities.OperatorAbove,
			Threshold:       5,
			Timeframe:       "1d",
			Frequency:       entities.FrequencyDaily,
			Enabled:         false,
			CooldownMinutes: 60,
			Channels:        entities.StringList{entities.ChannelInApp},
			Priority:        entities.PriorityMedium,
		},
		{
			OwnerID:         ownerID,
			Name:            "Large daily drop",
			Type:            entities.RuleTypePercentage,
			Metric:          "change_percent",
			Operator:        entities.OperatorBelow,
			Threshold:       -5,
			Timeframe:       "1d",
			Frequency:       entities.FrequencyDaily,
			Enabled:         false,
			CooldownMinutes: 60,
			Channels:        entities.StringList{entities.ChannelInApp, entities.ChannelEmail},
			Priority:        entities.PriorityHigh,
		},
		{
			OwnerID:   ownerID,
			Name:      "Portfolio drawdown",
			Type:      entities.RuleTypePortfolio,
			Metric:    "total_value_change_percent",
			Operator:  entities.OperatorBelow,
			Threshold: -10,
			Timeframe: "1d",
			Frequency: entities.FrequencyOnce,
			Enabled:   false,
			Channels:  entities.StringList{entities.ChannelInApp, entities.ChannelEmail},
			Priority:  entities.PriorityCritical,
		},
	}
}

// SeedDefaultRules creates the starter rule set for an owner that has no
// rules yet. Owners with any existing rules are left untouched, so the
// seed is safe to call on every login or signup.
func SeedDefaultRules(ctx context.Context, rules repository.AlertRuleRepository, ownerID string) (int, error) {
	existing, err := rules.ListRules(ctx, repository.AlertRuleFilter{OwnerID: ownerID})
	if err != nil {
		return 0, fmt.Errorf("listing rules for owner %s: %w", ownerID, err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	created := 0
	for _, rule := range defaultRules(ownerID) {
		if err := rules.CreateRule(ctx, &rule); err != nil {
			return created, fmt.Errorf("seeding rule %q: %w", rule.Name, err)
		}
		created++
	}
	return created, nil
}
