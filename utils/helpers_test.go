package utils

import (
	"strings"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	code := GenerateCode("sch", 8)
	if !strings.HasPrefix(code, "SCH-") {
		t.Fatalf("expected SCH- prefix, got %q", code)
	}
	if len(code) != len("SCH-")+8 {
		t.Fatalf("expected 8 random characters, got %q", code)
	}
	if code == GenerateCode("sch", 8) {
		t.Fatalf("two generated codes should not collide")
	}
}

func TestMergeCategories(t *testing.T) {
	tests := []struct {
		name     string
		declared []string
		used     []string
		expect   []string
	}{
		{
			name:     "declared first then used",
			declared: []string{"Homework", "Exams"},
			used:     []string{"Worksheets"},
			expect:   []string{"Homework", "Exams", "Worksheets"},
		},
		{
			name:     "duplicates collapse",
			declared: []string{"Homework"},
			used:     []string{"Homework", "Exams"},
			expect:   []string{"Homework", "Exams"},
		},
		{
			name:     "blank entries dropped",
			declared: []string{"", "  ", "Homework"},
			used:     []string{" Exams "},
			expect:   []string{"Homework", "Exams"},
		},
		{
			name:   "both empty",
			expect: []string{},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := MergeCategories(tc.declared, tc.used)
			if len(got) != len(tc.expect) {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
			for i := range got {
				if got[i] != tc.expect[i] {
					t.Fatalf("expected %v, got %v", tc.expect, got)
				}
			}
		})
	}
}

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"pdf", "docx", "png"}

	tests := []struct {
		name     string
		filename string
		expect   bool
	}{
		{name: "allowed", filename: "notes.pdf", expect: true},
		{name: "uppercase", filename: "NOTES.PDF", expect: true},
		{name: "not allowed", filename: "script.exe", expect: false},
		{name: "no extension", filename: "notes", expect: false},
		{name: "empty", filename: "", expect: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidFileExtension(tc.filename, allowed); got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  "); got != "helloworld" {
		t.Fatalf("expected helloworld, got %q", got)
	}
}

func TestIsValidReportType(t *testing.T) {
	for _, valid := range []string{
		"school_performance", "teacher_effectiveness", "resource_utilization",
		"student_progress", "district_comparison",
	} {
		if !IsValidReportType(valid) {
			t.Fatalf("expected %q to be valid", valid)
		}
	}
	if IsValidReportType("weekly_digest") {
		t.Fatalf("unexpected report type accepted")
	}
}
