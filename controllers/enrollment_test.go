package controllers

import (
	"testing"
	"time"

	"ilearnz_go/utils"
)

func TestExceedsCapacity(t *testing.T) {
	tests := []struct {
		name        string
		activeCount int64
		adding      int
		maxStudents int
		expect      bool
	}{
		{name: "room to spare", activeCount: 10, adding: 1, maxStudents: 40, expect: false},
		{name: "fills exactly", activeCount: 39, adding: 1, maxStudents: 40, expect: false},
		{name: "one over", activeCount: 40, adding: 1, maxStudents: 40, expect: true},
		{name: "bulk fills exactly", activeCount: 0, adding: 2, maxStudents: 2, expect: false},
		{name: "bulk one over", activeCount: 1, adding: 2, maxStudents: 2, expect: true},
		{name: "empty class zero capacity", activeCount: 0, adding: 1, maxStudents: 0, expect: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := exceedsCapacity(tc.activeCount, tc.adding, tc.maxStudents); got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestValidGrade(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		maxScore int
		expect   bool
	}{
		{name: "zero", score: 0, maxScore: 100, expect: true},
		{name: "full marks", score: 100, maxScore: 100, expect: true},
		{name: "negative", score: -1, maxScore: 100, expect: false},
		{name: "over max", score: 101, maxScore: 100, expect: false},
		{name: "zero max only accepts zero", score: 0, maxScore: 0, expect: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := validGrade(tc.score, tc.maxScore); got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestCopiesExhausted(t *testing.T) {
	tests := []struct {
		name      string
		openCount int64
		copies    int
		expect    bool
	}{
		{name: "copies in", openCount: 1, copies: 3, expect: false},
		{name: "last copy out", openCount: 3, copies: 3, expect: true},
		{name: "none out", openCount: 0, copies: 1, expect: false},
		{name: "zero copies", openCount: 0, copies: 0, expect: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := copiesExhausted(tc.openCount, tc.copies); got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestValidAssessmentWindow(t *testing.T) {
	open := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name          string
		availableFrom time.Time
		dueDate       time.Time
		expect        bool
	}{
		{name: "ordered window", availableFrom: open, dueDate: due, expect: true},
		{name: "same instant", availableFrom: due, dueDate: due, expect: true},
		{name: "due moved before availability", availableFrom: open, dueDate: open.Add(-time.Hour), expect: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := validAssessmentWindow(tc.availableFrom, tc.dueDate); got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestGradeSubmissionRequestValidation(t *testing.T) {
	if errs := utils.ValidateStruct(GradeSubmissionRequest{}); errs == nil {
		t.Fatalf("expected a missing score to fail validation")
	}

	zero := 0
	if errs := utils.ValidateStruct(GradeSubmissionRequest{Score: &zero}); errs != nil {
		t.Fatalf("expected an explicit zero score to pass validation, got %v", errs)
	}
}

func TestParseAssessmentTime(t *testing.T) {
	if _, err := parseAssessmentTime("2025-01-10T23:59:00Z"); err != nil {
		t.Fatalf("unexpected error for RFC3339: %v", err)
	}
	if _, err := parseAssessmentTime("2025-01-10"); err != nil {
		t.Fatalf("unexpected error for plain date: %v", err)
	}
	if _, err := parseAssessmentTime("next tuesday"); err == nil {
		t.Fatalf("expected error for invalid input")
	}
}
