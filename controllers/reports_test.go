package controllers

import (
	"testing"

	"ilearnz_go/middleware"
	"ilearnz_go/models"
)

func TestReportVisible(t *testing.T) {
	school := uint(3)
	other := uint(4)

	tests := []struct {
		name   string
		scope  middleware.SchoolScope
		report models.Report
		expect bool
	}{
		{
			name:   "own school",
			scope:  middleware.SchoolScope{SchoolID: 3},
			report: models.Report{Type: models.ReportSchoolPerformance, SchoolID: &school},
			expect: true,
		},
		{
			name:   "other school",
			scope:  middleware.SchoolScope{SchoolID: 3},
			report: models.Report{Type: models.ReportSchoolPerformance, SchoolID: &other},
			expect: false,
		},
		{
			name:   "district report hidden from school admins",
			scope:  middleware.SchoolScope{SchoolID: 3},
			report: models.Report{Type: models.ReportDistrictComparison},
			expect: false,
		},
		{
			name:   "super admin sees everything",
			scope:  middleware.SchoolScope{SuperAdmin: true},
			report: models.Report{Type: models.ReportDistrictComparison},
			expect: true,
		},
		{
			name:   "super admin sees other schools",
			scope:  middleware.SchoolScope{SuperAdmin: true, SchoolID: 3},
			report: models.Report{Type: models.ReportSchoolPerformance, SchoolID: &other},
			expect: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := reportVisible(tc.scope, &tc.report); got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}
