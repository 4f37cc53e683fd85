package services

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"time"

	"ilearnz_go/database"
	"ilearnz_go/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// ReportRow is one subject line of a report: a label, its metric values
// in column order, and the composite score derived from them.
type ReportRow struct {
	Label     string    `json:"label"`
	Metrics   []float64 `json:"metrics"`
	Composite float64   `json:"composite"`
}

// ReportData is a fully assembled report ready for rendering.
type ReportData struct {
	Title       string      `json:"title"`
	PeriodStart time.Time   `json:"period_start"`
	PeriodEnd   time.Time   `json:"period_end"`
	Columns     []string    `json:"columns"`
	Rows        []ReportRow `json:"rows"`
	Summary     []float64   `json:"summary"` // column averages across rows
	Top         []ReportRow `json:"top"`     // best rows by composite
}

const passingThreshold = 0.5 // fraction of max_score counted as a pass

// RatioPercent returns part/whole as a percentage, 0 when whole is 0.
func RatioPercent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

// CompositeScore is the unweighted mean of the given metrics.
func CompositeScore(metrics []float64) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sum float64
	for _, m := range metrics {
		sum += m
	}
	return round2(sum / float64(len(metrics)))
}

// ColumnAverages averages each metric column across rows. Rows shorter
// than the widest row contribute zero to the missing columns.
func ColumnAverages(rows []ReportRow) []float64 {
	if len(rows) == 0 {
		return nil
	}
	width := 0
	for _, r := range rows {
		if len(r.Metrics) > width {
			width = len(r.Metrics)
		}
	}
	sums := make([]float64, width)
	for _, r := range rows {
		for i, m := range r.Metrics {
			sums[i] += m
		}
	}
	for i := range sums {
		sums[i] = round2(sums[i] / float64(len(rows)))
	}
	return sums
}

// TopRows returns the n rows with the highest composite, stable on ties.
func TopRows(rows []ReportRow, n int) []ReportRow {
	sorted := make([]ReportRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Composite > sorted[j].Composite
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// teacherMetrics normalizes a teacher's grading activity to three
// percentage scores: graded share, on-time share, and score share of the
// achievable maximum. Every report kind carries exactly three percentage
// metrics so composites stay comparable.
func teacherMetrics(totalSubs, gradedSubs, onTime int64, scoreSum, scoreMax float64) []float64 {
	avgScore := 0.0
	if scoreMax > 0 {
		avgScore = round2(scoreSum / scoreMax * 100)
	}
	return []float64{
		RatioPercent(gradedSubs, totalSubs),
		RatioPercent(onTime, totalSubs),
		avgScore,
	}
}

// resourceMetrics normalizes a class's resource usage to three percentage
// scores: subjects covered by materials, materials with a stored file, and
// subjects covered by assessments.
func resourceMetrics(subjects, subjectsWithMaterials, materials, stored, subjectsWithAssessments int64) []float64 {
	return []float64{
		RatioPercent(subjectsWithMaterials, subjects),
		RatioPercent(stored, materials),
		RatioPercent(subjectsWithAssessments, subjects),
	}
}

type ReportService struct{}

// BuildReport assembles the data for one report kind over a period.
// targetID is the school for school-scoped kinds, the district for
// district_comparison, and the class for student_progress.
func (rs *ReportService) BuildReport(reportType string, targetID uint, periodStart, periodEnd time.Time) (*ReportData, error) {
	switch reportType {
	case models.ReportSchoolPerformance:
		return rs.buildSchoolPerformance(targetID, periodStart, periodEnd)
	case models.ReportTeacherEffectiveness:
		return rs.buildTeacherEffectiveness(targetID, periodStart, periodEnd)
	case models.ReportResourceUtilization:
		return rs.buildResourceUtilization(targetID, periodStart, periodEnd)
	case models.ReportStudentProgress:
		return rs.buildStudentProgress(targetID, periodStart, periodEnd)
	case models.ReportDistrictComparison:
		return rs.buildDistrictComparison(targetID, periodStart, periodEnd)
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}

// classMetrics computes the three base metrics for a class over a period:
// enrollment ratio, assessment completion rate, and passing rate.
func (rs *ReportService) classMetrics(class models.Class, periodStart, periodEnd time.Time) []float64 {
	db := database.DB

	var enrolled int64
	db.Model(&models.Enrollment{}).
		Where("class_id = ? AND status = ?", class.ID, "active").
		Count(&enrolled)
	enrollRatio := RatioPercent(enrolled, int64(class.MaxStudents))

	var assessments []models.Assessment
	db.Where("class_id = ? AND published = ? AND due_date BETWEEN ? AND ?",
		class.ID, true, periodStart, periodEnd).Find(&assessments)

	var submitted, passed, graded int64
	for _, a := range assessments {
		var subs []models.AssessmentSubmission
		db.Where("assessment_id = ?", a.ID).Find(&subs)
		submitted += int64(len(subs))
		for _, s := range subs {
			if s.Score == nil {
				continue
			}
			graded++
			if a.MaxScore > 0 && float64(*s.Score) >= passingThreshold*float64(a.MaxScore) {
				passed++
			}
		}
	}

	expected := int64(len(assessments)) * enrolled
	completion := RatioPercent(submitted, expected)
	passing := RatioPercent(passed, graded)

	return []float64{enrollRatio, completion, passing}
}

func (rs *ReportService) buildSchoolPerformance(schoolID uint, periodStart, periodEnd time.Time) (*ReportData, error) {
	var school models.School
	if err := database.DB.First(&school, schoolID).Error; err != nil {
		return nil, err
	}

	var classes []models.Class
	if err := database.DB.Where("school_id = ? AND active = ?", schoolID, true).
		Order("grade_level asc, name asc").Find(&classes).Error; err != nil {
		return nil, err
	}

	rows := make([]ReportRow, 0, len(classes))
	for _, cl := range classes {
		metrics := rs.classMetrics(cl, periodStart, periodEnd)
		rows = append(rows, ReportRow{
			Label:     fmt.Sprintf("%s (%s)", cl.Name, cl.GradeLevel),
			Metrics:   metrics,
			Composite: CompositeScore(metrics),
		})
	}

	return &ReportData{
		Title:       fmt.Sprintf("School Performance - %s", school.Name),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Columns:     []string{"Enrollment %", "Completion %", "Passing %"},
		Rows:        rows,
		Summary:     ColumnAverages(rows),
		Top:         TopRows(rows, 5),
	}, nil
}

func (rs *ReportService) buildTeacherEffectiveness(schoolID uint, periodStart, periodEnd time.Time) (*ReportData, error) {
	var school models.School
	if err := database.DB.First(&school, schoolID).Error; err != nil {
		return nil, err
	}

	var teachers []models.User
	if err := database.DB.Where("school_id = ? AND role = ? AND active = ?",
		schoolID, models.RoleTeacher, true).Order("name asc").Find(&teachers).Error; err != nil {
		return nil, err
	}

	db := database.DB
	rows := make([]ReportRow, 0, len(teachers))
	for _, t := range teachers {
		var totalSubs, gradedSubs, onTime int64
		var scoreSum, scoreMax float64
		var subs []models.AssessmentSubmission
		db.Joins("JOIN assessments ON assessments.id = assessment_submissions.assessment_id").
			Where("assessments.created_by = ? AND assessment_submissions.submitted_at BETWEEN ? AND ?",
				t.ID, periodStart, periodEnd).
			Preload("Assessment").
			Find(&subs)
		totalSubs = int64(len(subs))
		for _, s := range subs {
			if !s.IsLate {
				onTime++
			}
			if s.Score == nil {
				continue
			}
			gradedSubs++
			scoreSum += float64(*s.Score)
			scoreMax += float64(s.Assessment.MaxScore)
		}

		metrics := teacherMetrics(totalSubs, gradedSubs, onTime, scoreSum, scoreMax)
		rows = append(rows, ReportRow{
			Label:     t.Name,
			Metrics:   metrics,
			Composite: CompositeScore(metrics),
		})
	}

	return &ReportData{
		Title:       fmt.Sprintf("Teacher Effectiveness - %s", school.Name),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Columns:     []string{"Grading %", "On-time %", "Avg Score %"},
		Rows:        rows,
		Summary:     ColumnAverages(rows),
		Top:         TopRows(rows, 5),
	}, nil
}

func (rs *ReportService) buildResourceUtilization(schoolID uint, periodStart, periodEnd time.Time) (*ReportData, error) {
	var school models.School
	if err := database.DB.First(&school, schoolID).Error; err != nil {
		return nil, err
	}

	var classes []models.Class
	if err := database.DB.Where("school_id = ? AND active = ?", schoolID, true).
		Order("grade_level asc, name asc").Find(&classes).Error; err != nil {
		return nil, err
	}

	db := database.DB
	rows := make([]ReportRow, 0, len(classes))
	for _, cl := range classes {
		var subjects int64
		db.Model(&models.ClassSubject{}).Where("class_id = ?", cl.ID).Count(&subjects)
		var subjectsWithMaterials int64
		db.Model(&models.ReadingMaterial{}).
			Where("class_id = ?", cl.ID).
			Distinct("subject_id").Count(&subjectsWithMaterials)
		var materials int64
		db.Model(&models.ReadingMaterial{}).Where("class_id = ?", cl.ID).Count(&materials)
		var stored int64
		db.Model(&models.ReadingMaterial{}).
			Where("class_id = ? AND file_path <> ''", cl.ID).Count(&stored)
		var subjectsWithAssessments int64
		db.Model(&models.Assessment{}).
			Where("class_id = ? AND due_date BETWEEN ? AND ?", cl.ID, periodStart, periodEnd).
			Distinct("subject_id").Count(&subjectsWithAssessments)

		metrics := resourceMetrics(subjects, subjectsWithMaterials, materials, stored, subjectsWithAssessments)
		rows = append(rows, ReportRow{
			Label:     fmt.Sprintf("%s (%s)", cl.Name, cl.GradeLevel),
			Metrics:   metrics,
			Composite: CompositeScore(metrics),
		})
	}

	return &ReportData{
		Title:       fmt.Sprintf("Resource Utilization - %s", school.Name),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Columns:     []string{"Material Coverage %", "File Storage %", "Assessment Coverage %"},
		Rows:        rows,
		Summary:     ColumnAverages(rows),
		Top:         TopRows(rows, 5),
	}, nil
}

func (rs *ReportService) buildStudentProgress(classID uint, periodStart, periodEnd time.Time) (*ReportData, error) {
	var class models.Class
	if err := database.DB.Preload("School").First(&class, classID).Error; err != nil {
		return nil, err
	}

	var enrollments []models.Enrollment
	if err := database.DB.Preload("Student").
		Where("class_id = ? AND status = ?", classID, "active").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}

	db := database.DB
	var assessmentCount int64
	db.Model(&models.Assessment{}).
		Where("class_id = ? AND published = ? AND due_date BETWEEN ? AND ?",
			classID, true, periodStart, periodEnd).
		Count(&assessmentCount)

	rows := make([]ReportRow, 0, len(enrollments))
	for _, e := range enrollments {
		var subs []models.AssessmentSubmission
		db.Joins("JOIN assessments ON assessments.id = assessment_submissions.assessment_id").
			Where("assessments.class_id = ? AND assessment_submissions.student_id = ?", classID, e.StudentID).
			Preload("Assessment").
			Find(&subs)

		var onTime int64
		var scoreSum, scoreMax float64
		for _, s := range subs {
			if !s.IsLate {
				onTime++
			}
			if s.Score != nil {
				scoreSum += float64(*s.Score)
				scoreMax += float64(s.Assessment.MaxScore)
			}
		}

		completion := RatioPercent(int64(len(subs)), assessmentCount)
		onTimeRate := RatioPercent(onTime, int64(len(subs)))
		avgScore := 0.0
		if scoreMax > 0 {
			avgScore = round2(scoreSum / scoreMax * 100)
		}

		metrics := []float64{completion, onTimeRate, avgScore}
		rows = append(rows, ReportRow{
			Label:     e.Student.Name,
			Metrics:   metrics,
			Composite: CompositeScore(metrics),
		})
	}

	return &ReportData{
		Title:       fmt.Sprintf("Student Progress - %s (%s)", class.Name, class.School.Name),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Columns:     []string{"Completion %", "On-time %", "Avg Score %"},
		Rows:        rows,
		Summary:     ColumnAverages(rows),
		Top:         TopRows(rows, 5),
	}, nil
}

func (rs *ReportService) buildDistrictComparison(districtID uint, periodStart, periodEnd time.Time) (*ReportData, error) {
	var district models.District
	if err := database.DB.First(&district, districtID).Error; err != nil {
		return nil, err
	}

	var schools []models.School
	if err := database.DB.Where("district_id = ?", districtID).
		Order("name asc").Find(&schools).Error; err != nil {
		return nil, err
	}

	rows := make([]ReportRow, 0, len(schools))
	for _, s := range schools {
		var classes []models.Class
		database.DB.Where("school_id = ? AND active = ?", s.ID, true).Find(&classes)

		// average the class metrics to get a school line
		classRows := make([]ReportRow, 0, len(classes))
		for _, cl := range classes {
			m := rs.classMetrics(cl, periodStart, periodEnd)
			classRows = append(classRows, ReportRow{Metrics: m})
		}
		metrics := ColumnAverages(classRows)
		if metrics == nil {
			metrics = []float64{0, 0, 0}
		}
		rows = append(rows, ReportRow{
			Label:     s.Name,
			Metrics:   metrics,
			Composite: CompositeScore(metrics),
		})
	}

	return &ReportData{
		Title:       fmt.Sprintf("District Comparison - %s", district.Name),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Columns:     []string{"Enrollment %", "Completion %", "Passing %"},
		Rows:        rows,
		Summary:     ColumnAverages(rows),
		Top:         TopRows(rows, 5),
	}, nil
}

// RenderPDF lays the report out as a landscape table with a summary
// footer and a top-performers block.
func (rs *ReportService) RenderPDF(data *ReportData) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(data.Title, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, data.Title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s",
		data.PeriodStart.Format("2006-01-02"), data.PeriodEnd.Format("2006-01-02")))
	pdf.Ln(12)

	labelWidth := 80.0
	colWidth := 40.0

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(labelWidth, 8, "Name", "1", 0, "L", true, 0, "")
	for _, col := range data.Columns {
		pdf.CellFormat(colWidth, 8, col, "1", 0, "C", true, 0, "")
	}
	pdf.CellFormat(colWidth, 8, "Composite", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, row := range data.Rows {
		pdf.CellFormat(labelWidth, 7, row.Label, "1", 0, "L", false, 0, "")
		for i := range data.Columns {
			v := 0.0
			if i < len(row.Metrics) {
				v = row.Metrics[i]
			}
			pdf.CellFormat(colWidth, 7, fmt.Sprintf("%.2f", v), "1", 0, "R", false, 0, "")
		}
		pdf.CellFormat(colWidth, 7, fmt.Sprintf("%.2f", row.Composite), "1", 1, "R", false, 0, "")
	}

	if len(data.Summary) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, 7, "Average", "1", 0, "L", true, 0, "")
		for i := range data.Columns {
			v := 0.0
			if i < len(data.Summary) {
				v = data.Summary[i]
			}
			pdf.CellFormat(colWidth, 7, fmt.Sprintf("%.2f", v), "1", 0, "R", true, 0, "")
		}
		pdf.CellFormat(colWidth, 7, "", "1", 1, "R", true, 0, "")
	}

	if len(data.Top) > 0 {
		pdf.Ln(8)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Top Performers")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 10)
		for i, row := range data.Top {
			pdf.Cell(0, 6, fmt.Sprintf("%d. %s (%.2f)", i+1, row.Label, row.Composite))
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderExcel writes the same table to a single-sheet workbook.
func (rs *ReportService) RenderExcel(data *ReportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Report"
	f.SetSheetName("Sheet1", sheet)

	f.SetCellValue(sheet, "A1", data.Title)
	f.SetCellValue(sheet, "A2", fmt.Sprintf("Period: %s to %s",
		data.PeriodStart.Format("2006-01-02"), data.PeriodEnd.Format("2006-01-02")))

	headerRow := 4
	f.SetCellValue(sheet, cellRef(0, headerRow), "Name")
	for i, col := range data.Columns {
		f.SetCellValue(sheet, cellRef(i+1, headerRow), col)
	}
	f.SetCellValue(sheet, cellRef(len(data.Columns)+1, headerRow), "Composite")

	for r, row := range data.Rows {
		rowNum := headerRow + 1 + r
		f.SetCellValue(sheet, cellRef(0, rowNum), row.Label)
		for i := range data.Columns {
			v := 0.0
			if i < len(row.Metrics) {
				v = row.Metrics[i]
			}
			f.SetCellValue(sheet, cellRef(i+1, rowNum), v)
		}
		f.SetCellValue(sheet, cellRef(len(data.Columns)+1, rowNum), row.Composite)
	}

	if len(data.Summary) > 0 {
		rowNum := headerRow + 1 + len(data.Rows)
		f.SetCellValue(sheet, cellRef(0, rowNum), "Average")
		for i := range data.Columns {
			v := 0.0
			if i < len(data.Summary) {
				v = data.Summary[i]
			}
			f.SetCellValue(sheet, cellRef(i+1, rowNum), v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellRef(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
