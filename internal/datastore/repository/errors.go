package repository

import "github.com/foliowatch/foliowatch-go/internal/errors"

// Sentinel errors returned by repository implementations.
var (
	ErrAlertRuleNotFound    = errors.NewStd("alert rule not found")
	ErrAlertNotFound        = errors.NewStd("alert not found")
	ErrNotificationNotFound = errors.NewStd("notification not found")
	ErrPreferenceNotFound   = errors.NewStd("notification preference not found")

	// ErrImmutableAlert is returned when an update would rewrite the
	// triggered snapshot of an already-triggered alert.
	ErrImmutableAlert = errors.NewStd("triggered alert snapshot is immutable")
)
