package models

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad time literal %q: %v", value, err)
	}
	return parsed
}

func TestAssessmentStatusAt(t *testing.T) {
	tests := []struct {
		name      string
		available string
		due       string
		allowLate bool
		now       string
		expect    AssessmentStatus
	}{
		{
			name:      "before availability",
			available: "2025-01-05T08:00:00Z",
			due:       "2025-01-10T23:59:00Z",
			now:       "2025-01-01T12:00:00Z",
			expect:    AssessmentScheduled,
		},
		{
			name:      "open window",
			available: "2025-01-05T08:00:00Z",
			due:       "2025-01-10T23:59:00Z",
			now:       "2025-01-07T09:00:00Z",
			expect:    AssessmentOpen,
		},
		{
			name:      "exactly at due date",
			available: "2025-01-05T08:00:00Z",
			due:       "2025-01-10T23:59:00Z",
			now:       "2025-01-10T23:59:00Z",
			expect:    AssessmentOpen,
		},
		{
			name:      "past due without late window",
			available: "2025-01-05T08:00:00Z",
			due:       "2025-01-10T23:59:00Z",
			now:       "2025-01-15T12:00:00Z",
			expect:    AssessmentClosed,
		},
		{
			name:      "past due with late window",
			available: "2025-01-05T08:00:00Z",
			due:       "2025-01-10T23:59:00Z",
			allowLate: true,
			now:       "2025-01-15T12:00:00Z",
			expect:    AssessmentLateWindow,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := Assessment{
				AvailableFrom:        mustTime(t, tc.available),
				DueDate:              mustTime(t, tc.due),
				AllowLateSubmissions: tc.allowLate,
			}
			if got := a.StatusAt(mustTime(t, tc.now)); got != tc.expect {
				t.Fatalf("expected %s, got %s", tc.expect, got)
			}
		})
	}
}

func TestAssessmentAcceptsSubmissionsAt(t *testing.T) {
	a := Assessment{
		AvailableFrom: mustTime(t, "2025-01-05T08:00:00Z"),
		DueDate:       mustTime(t, "2025-01-10T23:59:00Z"),
	}

	if a.AcceptsSubmissionsAt(mustTime(t, "2025-01-01T00:00:00Z")) {
		t.Fatalf("scheduled assessment must not accept submissions")
	}
	if !a.AcceptsSubmissionsAt(mustTime(t, "2025-01-07T00:00:00Z")) {
		t.Fatalf("open assessment must accept submissions")
	}
	if a.AcceptsSubmissionsAt(mustTime(t, "2025-01-15T00:00:00Z")) {
		t.Fatalf("closed assessment must not accept submissions")
	}

	a.AllowLateSubmissions = true
	if !a.AcceptsSubmissionsAt(mustTime(t, "2025-01-15T00:00:00Z")) {
		t.Fatalf("late window must accept submissions")
	}
}

func TestAssessmentIsPastDueAt(t *testing.T) {
	a := Assessment{
		AvailableFrom: mustTime(t, "2025-01-05T08:00:00Z"),
		DueDate:       mustTime(t, "2025-01-10T23:59:00Z"),
	}

	if a.IsPastDueAt(mustTime(t, "2025-01-10T23:59:00Z")) {
		t.Fatalf("submission at the due date is on time")
	}
	if !a.IsPastDueAt(mustTime(t, "2025-01-10T23:59:01Z")) {
		t.Fatalf("submission after the due date is late")
	}
}
