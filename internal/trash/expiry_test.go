package trash

import (
	"testing"
	"time"
)

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	days := func(n int) *time.Time {
		ts := now.Add(-time.Duration(n) * 24 * time.Hour)
		return &ts
	}

	tests := []struct {
		name      string
		deletedAt *time.Time
		expected  int
	}{
		{"just deleted", days(0), 30},
		{"one day ago", days(1), 29},
		{"half a day rounds down", func() *time.Time { ts := now.Add(-12 * time.Hour); return &ts }(), 30},
		{"window boundary", days(30), 0},
		{"past the window", days(45), 0},
		{"nil treated as fresh", nil, 30},
		{"future timestamp clamps", func() *time.Time { ts := now.Add(24 * time.Hour); return &ts }(), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysRemaining(now, tt.deletedAt); got != tt.expected {
				t.Fatalf("DaysRemaining() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestDaysRemainingNeverNegative(t *testing.T) {
	now := time.Now()
	for n := 0; n < 120; n += 7 {
		ts := now.Add(-time.Duration(n) * 24 * time.Hour)
		if got := DaysRemaining(now, &ts); got < 0 {
			t.Fatalf("DaysRemaining() = %d for %d days ago", got, n)
		}
	}
}

func TestUrgent(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-24 * time.Hour)
	if Urgent(now, &fresh) {
		t.Fatal("29 days remaining should not be urgent")
	}
	old := now.Add(-26 * 24 * time.Hour)
	if !Urgent(now, &old) {
		t.Fatal("4 days remaining should be urgent")
	}
}
