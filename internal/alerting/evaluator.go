package alerting

import (
	"fmt"
	"math"
	"strconv"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

// equalsTolerance is the float tolerance for the equals operator.
const equalsTolerance = 1e-3

// Evaluate checks a current value against a rule condition. It is a pure
// function: unknown operators and non-coercible inputs evaluate false
// rather than erroring, so malformed upstream data can never produce a
// false positive.
func Evaluate(current any, operator string, threshold float64, secondary *float64) bool {
	value, err := toFloat64(current)
	if err != nil {
		return false
	}

	switch operator {
	case entities.OperatorAbove:
		return value > threshold
	case entities.OperatorBelow:
		return value < threshold
	case entities.OperatorEquals:
		return math.Abs(value-threshold) < equalsTolerance
	case entities.OperatorChange:
		// Magnitude-of-change rules feed a signed delta; only the size
		// matters here.
		return math.Abs(value) > threshold
	case entities.OperatorIncrease:
		return value > threshold
	case entities.OperatorDecrease:
		return value < -threshold
	case entities.OperatorBetween:
		if secondary == nil {
			return false
		}
		return value >= threshold && value <= *secondary
	default:
		return false
	}
}

// EvaluateRule checks a current value against the rule's own condition.
func EvaluateRule(rule *entities.AlertRule, current any) bool {
	return Evaluate(current, rule.Operator, rule.Threshold, rule.SecondaryThreshold)
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", val)
	}
}
