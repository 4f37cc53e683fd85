package storage

import (
	"testing"
	"time"
)

func TestCategoryFolder(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expect   string
	}{
		{name: "pdf", filename: "lesson.pdf", expect: "documents"},
		{name: "uppercase extension", filename: "LESSON.PDF", expect: "documents"},
		{name: "presentation", filename: "intro.pptx", expect: "presentations"},
		{name: "spreadsheet", filename: "grades.xlsx", expect: "spreadsheets"},
		{name: "image", filename: "diagram.png", expect: "images"},
		{name: "video", filename: "lecture.mp4", expect: "videos"},
		{name: "audio", filename: "dictation.mp3", expect: "audio"},
		{name: "archive", filename: "pack.zip", expect: "archives"},
		{name: "unknown extension", filename: "notes.xyz", expect: "other"},
		{name: "no extension", filename: "README", expect: "other"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := CategoryFolder(tc.filename); got != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, got)
			}
		})
	}
}

func TestFileExtension(t *testing.T) {
	if got := FileExtension("archive.tar.gz"); got != "gz" {
		t.Fatalf("expected gz, got %q", got)
	}
	if got := FileExtension("noext"); got != "" {
		t.Fatalf("expected empty extension, got %q", got)
	}
	if got := FileExtension("UPPER.DOCX"); got != "docx" {
		t.Fatalf("expected lowercased extension, got %q", got)
	}
}

func TestMaterialKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := MaterialKey(7, 3, "Algebra Basics", "worksheet.pdf", now)
	expect := "materials/class_7/subject_3/documents/algebra-basics_1700000000.pdf"
	if got != expect {
		t.Fatalf("expected %q, got %q", expect, got)
	}
}

func TestAssessmentKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := AssessmentKey(7, 3, "Term Test.docx", now)
	expect := "assessments/class_7/subject_3/term-test_1700000000.docx"
	if got != expect {
		t.Fatalf("expected %q, got %q", expect, got)
	}
}

func TestSubmissionKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := SubmissionKey(12, 45, "answers.pdf", now)
	expect := "submissions/assessment_12/student_45_1700000000.pdf"
	if got != expect {
		t.Fatalf("expected %q, got %q", expect, got)
	}
}

func TestReportKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := ReportKey(9, now)
	expect := "reports/report_9_1700000000.pdf"
	if got != expect {
		t.Fatalf("expected %q, got %q", expect, got)
	}
}
