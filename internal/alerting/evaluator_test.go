package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
)

func floatPtr(v float64) *float64 { return &v }

func TestEvaluate_Operators(t *testing.T) {
	tests := []struct {
		name      string
		current   any
		operator  string
		threshold float64
		secondary *float64
		want      bool
	}{
		{"above true", 150.5, entities.OperatorAbove, 150.0, nil, true},
		{"above equal is false", 150.0, entities.OperatorAbove, 150.0, nil, false},
		{"above false", 149.9, entities.OperatorAbove, 150.0, nil, false},

		{"below true", 99.9, entities.OperatorBelow, 100.0, nil, true},
		{"below equal is false", 100.0, entities.OperatorBelow, 100.0, nil, false},

		{"equals within tolerance", 100.0005, entities.OperatorEquals, 100.0, nil, true},
		{"equals at tolerance boundary", 100.001, entities.OperatorEquals, 100.0, nil, false},
		{"equals outside tolerance", 100.01, entities.OperatorEquals, 100.0, nil, false},

		{"change positive magnitude", 7.0, entities.OperatorChange, 5.0, nil, true},
		{"change negative magnitude", -7.0, entities.OperatorChange, 5.0, nil, true},
		{"change within threshold", 4.0, entities.OperatorChange, 5.0, nil, false},
		{"change negative within threshold", -4.0, entities.OperatorChange, 5.0, nil, false},

		{"increase true", 6.0, entities.OperatorIncrease, 5.0, nil, true},
		{"increase ignores drops", -6.0, entities.OperatorIncrease, 5.0, nil, false},

		{"decrease true", -6.0, entities.OperatorDecrease, 5.0, nil, true},
		{"decrease ignores gains", 6.0, entities.OperatorDecrease, 5.0, nil, false},

		{"between inside", 50.0, entities.OperatorBetween, 40.0, floatPtr(60.0), true},
		{"between at lower bound", 40.0, entities.OperatorBetween, 40.0, floatPtr(60.0), true},
		{"between at upper bound", 60.0, entities.OperatorBetween, 40.0, floatPtr(60.0), true},
		{"between outside", 70.0, entities.OperatorBetween, 40.0, floatPtr(60.0), false},
		{"between without secondary", 50.0, entities.OperatorBetween, 40.0, nil, false},

		{"unknown operator fails closed", 100.0, "matches", 100.0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.current, tt.operator, tt.threshold, tt.secondary)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_ValueCoercion(t *testing.T) {
	tests := []struct {
		name    string
		current any
		want    bool
	}{
		{"float64", 151.0, true},
		{"float32", float32(151.0), true},
		{"int", 151, true},
		{"int64", int64(151), true},
		{"uint", uint(151), true},
		{"numeric string", "151.5", true},
		{"non-numeric string fails closed", "n/a", false},
		{"nil fails closed", nil, false},
		{"bool fails closed", true, false},
		{"map fails closed", map[string]any{"price": 151.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.current, entities.OperatorAbove, 150.0, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateRule(t *testing.T) {
	rule := &entities.AlertRule{
		Operator:  entities.OperatorBelow,
		Threshold: 100,
	}
	assert.True(t, EvaluateRule(rule, 99.0))
	assert.False(t, EvaluateRule(rule, 101.0))
}
