// Package trash computes the retention countdown for soft-deleted items.
// Actual purging of expired rows is done by an external scheduled job; this
// package only derives what the trash views display.
package trash

import "time"

// RetentionDays is how long a trashed item survives before it becomes
// eligible for automatic permanent deletion.
const RetentionDays = 30

// UrgentThresholdDays marks the remaining-days value below which trash views
// switch to urgent styling.
const UrgentThresholdDays = 5

// DaysRemaining returns how many whole days are left before the retention
// window closes, floored at zero. A nil deletedAt is treated as freshly
// deleted.
func DaysRemaining(now time.Time, deletedAt *time.Time) int {
	if deletedAt == nil {
		return RetentionDays
	}
	elapsed := int(now.Sub(*deletedAt).Hours() / 24)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := RetentionDays - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Urgent reports whether the countdown should be styled as urgent.
func Urgent(now time.Time, deletedAt *time.Time) bool {
	return DaysRemaining(now, deletedAt) < UrgentThresholdDays
}
