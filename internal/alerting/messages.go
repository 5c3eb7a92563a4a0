package alerting

import (
	"fmt"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// operatorPhrase renders an operator for human-readable alert messages.
func operatorPhrase(rule *entities.AlertRule) string {
	switch rule.Operator {
	case entities.OperatorAbove:
		return fmt.Sprintf("rose above %s", formatValue(rule.Type, rule.Threshold))
	case entities.OperatorBelow:
		return fmt.Sprintf("fell below %s", formatValue(rule.Type, rule.Threshold))
	case entities.OperatorEquals:
		return fmt.Sprintf("reached %s", formatValue(rule.Type, rule.Threshold))
	case entities.OperatorChange:
		return fmt.Sprintf("moved more than %s", formatValue(rule.Type, rule.Threshold))
	case entities.OperatorIncrease:
		return fmt.Sprintf("gained more than %s", formatValue(rule.Type, rule.Threshold))
	case entities.OperatorDecrease:
		return fmt.Sprintf("lost more than %s", formatValue(rule.Type, rule.Threshold))
	case entities.OperatorBetween:
		secondary := rule.Threshold
		if rule.SecondaryThreshold != nil {
			secondary = *rule.SecondaryThreshold
		}
		return fmt.Sprintf("entered the range %s to %s",
			formatValue(rule.Type, rule.Threshold), formatValue(rule.Type, secondary))
	default:
		return fmt.Sprintf("matched condition %s %s", rule.Operator, formatValue(rule.Type, rule.Threshold))
	}
}

// formatValue renders a value with the unit implied by the rule type.
func formatValue(ruleType string, value float64) string {
	switch ruleType {
	case entities.RuleTypePercentage:
		return fmt.Sprintf("%.2f%%", value)
	case entities.RuleTypeVolume:
		return fmt.Sprintf("%.0f", value)
	default:
		return fmt.Sprintf("%.2f", value)
	}
}

// BuildMessage renders the human-readable alert message for a fired rule.
// Deterministic for a given rule and value so delivery content is
// reproducible in tests.
func BuildMessage(rule *entities.AlertRule, currentValue float64) string {
	subject := rule.Subject()
	current := formatValue(rule.Type, currentValue)

	switch rule.Type {
	case entities.RuleTypePrice:
		return fmt.Sprintf("%s %s (now %s)", subject, operatorPhrase(rule), current)
	case entities.RuleTypePercentage:
		return fmt.Sprintf("%s %s (24h change %s)", subject, operatorPhrase(rule), current)
	case entities.RuleTypePortfolio:
		return fmt.Sprintf("Portfolio %s %s (now %s)", subject, operatorPhrase(rule), current)
	case entities.RuleTypeVolume:
		return fmt.Sprintf("%s trading volume %s (now %s)", subject, operatorPhrase(rule), current)
	default:
		return fmt.Sprintf("%s: %s %s (now %s)", rule.Name, subject, operatorPhrase(rule), current)
	}
}

// Severity derives the alert severity from the rule priority.
func Severity(rulePriority string) string {
	switch rulePriority {
	case entities.PriorityCritical:
		return entities.SeverityCritical
	case entities.PriorityHigh:
		return entities.SeverityWarning
	default:
		return entities.SeverityInfo
	}
}
