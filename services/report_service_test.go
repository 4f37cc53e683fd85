package services

import (
	"bytes"
	"testing"
	"time"
)

func TestRatioPercent(t *testing.T) {
	tests := []struct {
		name   string
		part   int64
		whole  int64
		expect float64
	}{
		{name: "half", part: 1, whole: 2, expect: 50},
		{name: "full", part: 3, whole: 3, expect: 100},
		{name: "zero whole", part: 5, whole: 0, expect: 0},
		{name: "rounds to two places", part: 1, whole: 3, expect: 33.33},
		{name: "over capacity", part: 45, whole: 40, expect: 112.5},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := RatioPercent(tc.part, tc.whole); got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestCompositeScore(t *testing.T) {
	if got := CompositeScore([]float64{80, 90, 100}); got != 90 {
		t.Fatalf("expected 90, got %v", got)
	}
	if got := CompositeScore(nil); got != 0 {
		t.Fatalf("expected 0 for no metrics, got %v", got)
	}
	if got := CompositeScore([]float64{33.33, 66.67}); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}

func TestColumnAverages(t *testing.T) {
	rows := []ReportRow{
		{Metrics: []float64{100, 50, 0}},
		{Metrics: []float64{0, 50, 100}},
	}
	got := ColumnAverages(rows)
	expect := []float64{50, 50, 50}
	if len(got) != len(expect) {
		t.Fatalf("expected %v, got %v", expect, got)
	}
	for i := range got {
		if got[i] != expect[i] {
			t.Fatalf("expected %v, got %v", expect, got)
		}
	}

	if got := ColumnAverages(nil); got != nil {
		t.Fatalf("expected nil for no rows, got %v", got)
	}
}

func TestColumnAveragesRaggedRows(t *testing.T) {
	rows := []ReportRow{
		{Metrics: []float64{100}},
		{Metrics: []float64{0, 80}},
	}
	got := ColumnAverages(rows)
	if len(got) != 2 {
		t.Fatalf("expected width 2, got %v", got)
	}
	if got[0] != 50 || got[1] != 40 {
		t.Fatalf("expected [50 40], got %v", got)
	}
}

func TestTopRows(t *testing.T) {
	rows := []ReportRow{
		{Label: "a", Composite: 10},
		{Label: "b", Composite: 90},
		{Label: "c", Composite: 50},
		{Label: "d", Composite: 90},
	}

	top := TopRows(rows, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(top))
	}
	// stable sort keeps b ahead of d on the tie
	if top[0].Label != "b" || top[1].Label != "d" {
		t.Fatalf("expected [b d], got [%s %s]", top[0].Label, top[1].Label)
	}

	// n larger than the input clamps
	if got := TopRows(rows, 10); len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(got))
	}

	// input order untouched
	if rows[0].Label != "a" {
		t.Fatalf("input slice was reordered")
	}
}

func TestTeacherMetrics(t *testing.T) {
	got := teacherMetrics(4, 2, 3, 120, 200)
	expect := []float64{50, 75, 60}
	if len(got) != 3 {
		t.Fatalf("expected three metrics, got %v", got)
	}
	for i := range got {
		if got[i] != expect[i] {
			t.Fatalf("expected %v, got %v", expect, got)
		}
	}
	// the composite covers exactly the three percentage metrics
	if c := CompositeScore(got); c != 61.67 {
		t.Fatalf("expected composite 61.67, got %v", c)
	}

	// no submissions, nothing graded
	for _, v := range teacherMetrics(0, 0, 0, 0, 0) {
		if v != 0 {
			t.Fatalf("expected zero metrics with no submissions, got %v", v)
		}
	}
}

func TestResourceMetrics(t *testing.T) {
	got := resourceMetrics(4, 3, 10, 5, 2)
	expect := []float64{75, 50, 50}
	if len(got) != 3 {
		t.Fatalf("expected three metrics, got %v", got)
	}
	for i := range got {
		if got[i] != expect[i] {
			t.Fatalf("expected %v, got %v", expect, got)
		}
	}

	// a class with no subjects or materials scores zero across the board
	for _, v := range resourceMetrics(0, 0, 0, 0, 0) {
		if v != 0 {
			t.Fatalf("expected zero metrics for an empty class, got %v", v)
		}
	}
}

func sampleReportData() *ReportData {
	rows := []ReportRow{
		{Label: "Grade 5A", Metrics: []float64{95, 80, 70}, Composite: 81.67},
		{Label: "Grade 5B", Metrics: []float64{90, 60, 50}, Composite: 66.67},
	}
	return &ReportData{
		Title:       "School Performance - Test School",
		PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Columns:     []string{"Enrollment %", "Completion %", "Passing %"},
		Rows:        rows,
		Summary:     ColumnAverages(rows),
		Top:         TopRows(rows, 5),
	}
}

func TestRenderPDF(t *testing.T) {
	rs := ReportService{}
	out, err := rs.RenderPDF(sampleReportData())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output does not look like a PDF")
	}
}

func TestRenderExcel(t *testing.T) {
	rs := ReportService{}
	out, err := rs.RenderExcel(sampleReportData())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Fatalf("output does not look like a workbook")
	}
}
