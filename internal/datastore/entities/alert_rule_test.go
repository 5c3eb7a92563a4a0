package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }
func f64Ptr(v float64) *float64      { return &v }

func TestAlertRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    AlertRule
		wantErr bool
	}{
		{
			name:    "valid always rule",
			rule:    AlertRule{Operator: OperatorAbove, Threshold: 100, Frequency: FrequencyAlways},
			wantErr: false,
		},
		{
			name:    "between requires secondary",
			rule:    AlertRule{Operator: OperatorBetween, Threshold: 40, Frequency: FrequencyAlways},
			wantErr: true,
		},
		{
			name: "between with inverted range",
			rule: AlertRule{
				Operator: OperatorBetween, Threshold: 60,
				SecondaryThreshold: f64Ptr(40), Frequency: FrequencyAlways,
			},
			wantErr: true,
		},
		{
			name: "between with valid range",
			rule: AlertRule{
				Operator: OperatorBetween, Threshold: 40,
				SecondaryThreshold: f64Ptr(60), Frequency: FrequencyDaily,
			},
			wantErr: false,
		},
		{
			name:    "unknown frequency",
			rule:    AlertRule{Operator: OperatorAbove, Threshold: 100, Frequency: "hourly"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAlertRule_CanTriggerAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("disabled rule never triggers", func(t *testing.T) {
		rule := AlertRule{Enabled: false, Frequency: FrequencyAlways}
		assert.False(t, rule.CanTriggerAt(now))
	})

	t.Run("expired rule never triggers", func(t *testing.T) {
		rule := AlertRule{
			Enabled:   true,
			Frequency: FrequencyAlways,
			ExpiresAt: timePtr(now.Add(-time.Minute)),
		}
		assert.False(t, rule.CanTriggerAt(now))
	})

	t.Run("cooldown window suppresses", func(t *testing.T) {
		rule := AlertRule{
			Enabled:         true,
			Frequency:       FrequencyAlways,
			CooldownMinutes: 60,
			LastTriggered:   timePtr(now.Add(-30 * time.Minute)),
		}
		assert.False(t, rule.CanTriggerAt(now))
	})

	t.Run("cooldown elapsed allows", func(t *testing.T) {
		rule := AlertRule{
			Enabled:         true,
			Frequency:       FrequencyAlways,
			CooldownMinutes: 60,
			LastTriggered:   timePtr(now.Add(-61 * time.Minute)),
		}
		assert.True(t, rule.CanTriggerAt(now))
	})

	t.Run("once frequency caps at one firing", func(t *testing.T) {
		rule := AlertRule{Enabled: true, Frequency: FrequencyOnce}
		assert.True(t, rule.CanTriggerAt(now))

		rule.TriggerCount = 1
		rule.LastTriggered = timePtr(now.Add(-48 * time.Hour))
		assert.False(t, rule.CanTriggerAt(now))
	})

	t.Run("daily frequency compares calendar dates", func(t *testing.T) {
		// Fired yesterday at 23:50; eligible again any time today.
		rule := AlertRule{
			Enabled:       true,
			Frequency:     FrequencyDaily,
			LastTriggered: timePtr(time.Date(2025, 3, 9, 23, 50, 0, 0, time.UTC)),
		}
		assert.True(t, rule.CanTriggerAt(time.Date(2025, 3, 10, 0, 5, 0, 0, time.UTC)))

		// Fired earlier today; suppressed until midnight.
		rule.LastTriggered = timePtr(time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC))
		assert.False(t, rule.CanTriggerAt(now))
	})

	t.Run("always frequency only respects cooldown", func(t *testing.T) {
		rule := AlertRule{
			Enabled:       true,
			Frequency:     FrequencyAlways,
			LastTriggered: timePtr(now.Add(-time.Minute)),
		}
		assert.True(t, rule.CanTriggerAt(now))
	})
}

func TestAlertRule_Subject(t *testing.T) {
	assert.Equal(t, "AAPL", (&AlertRule{Symbol: "AAPL", Metric: "price"}).Subject())
	assert.Equal(t, "total_value", (&AlertRule{Metric: "total_value"}).Subject())
}
