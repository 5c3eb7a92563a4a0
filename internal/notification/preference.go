package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/errors"
)

// GateReason identifies why the preference gate suppressed a delivery.
type GateReason string

const (
	GateDisabled        GateReason = "preferences_disabled"
	GateUnsubscribed    GateReason = "unsubscribed"
	GateChannelDisabled GateReason = "channel_disabled"
	GateUnverified      GateReason = "channel_unverified"
	GateTypeDisabled    GateReason = "alert_type_disabled"
	GateQuietHours      GateReason = "quiet_hours"
	GateRateLimited     GateReason = "rate_limited"
)

// GateError reports a suppressed delivery with its reason. Suppression is
// a normal outcome, not a failure: the alert still exists, only delivery
// on this channel is skipped.
type GateError struct {
	Reason  GateReason
	Channel string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("delivery gated on %s: %s", e.Channel, e.Reason)
}

// GateReasonOf extracts the gate reason from an error, or "".
func GateReasonOf(err error) GateReason {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ""
}

// CanSend checks whether a channel may be used for an alert type right
// now. Checks short-circuit in order: preference disabled, unsubscribed,
// channel disabled, channel unverified (email/SMS only), alert type
// disallowed for the channel, quiet hours. A nil return allows delivery.
func CanSend(pref *entities.NotificationPreference, channel, alertType string, now time.Time) error {
	if !pref.Enabled {
		return &GateError{Reason: GateDisabled, Channel: channel}
	}
	if pref.Unsubscribed() {
		return &GateError{Reason: GateUnsubscribed, Channel: channel}
	}
	cfg := pref.Channel(channel)
	if !cfg.Enabled {
		return &GateError{Reason: GateChannelDisabled, Channel: channel}
	}
	if (channel == entities.ChannelEmail || channel == entities.ChannelSMS) && !cfg.Verified {
		return &GateError{Reason: GateUnverified, Channel: channel}
	}
	if !pref.AllowsType(alertType, channel) {
		return &GateError{Reason: GateTypeDisabled, Channel: channel}
	}
	if inQuietHours(pref, now) {
		return &GateError{Reason: GateQuietHours, Channel: channel}
	}
	return nil
}

// inQuietHours reports whether now falls inside the preference's local
// quiet-hours window. Windows may cross midnight: start >= end means the
// window runs from start through midnight to end the next morning.
func inQuietHours(pref *entities.NotificationPreference, now time.Time) bool {
	start, okStart := parseClock(pref.QuietHoursStart)
	end, okEnd := parseClock(pref.QuietHoursEnd)
	if !okStart || !okEnd || start == end {
		return false
	}

	loc, err := time.LoadLocation(pref.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start < end {
		return minute >= start && minute < end
	}
	// Overnight window, e.g. 22:00 to 08:00.
	return minute >= start || minute < end
}

// parseClock parses "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
