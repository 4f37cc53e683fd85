package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/services"
	"ilearnz_go/storage"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ReportController struct {
	reportService services.ReportService
}

type GenerateReportRequest struct {
	Type        string `json:"type" validate:"required"`
	Name        string `json:"name"`
	SchoolID    uint   `json:"school_id"`
	DistrictID  uint   `json:"district_id"`
	ClassID     uint   `json:"class_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// reportVisible reports whether the caller's scope may read a report.
// District-wide reports carry no owning school and stay admin-only.
func reportVisible(scope middleware.SchoolScope, report *models.Report) bool {
	if scope.SuperAdmin {
		return true
	}
	if report.SchoolID == nil {
		return false
	}
	return scope.Allows(*report.SchoolID)
}

// resolveReportTarget picks the entity a report runs over and enforces
// the caller's school scope for school-bound kinds. The owning school is
// returned alongside so it can be persisted on the row; district-wide
// reports own no school.
func resolveReportTarget(c *fiber.Ctx, req *GenerateReportRequest) (uint, *uint, error) {
	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return 0, nil, err
	}

	switch req.Type {
	case models.ReportDistrictComparison:
		if !scope.SuperAdmin {
			return 0, nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "District reports require admin access",
			})
		}
		if req.DistrictID == 0 {
			return 0, nil, c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "district_id is required",
			})
		}
		return req.DistrictID, nil, nil

	case models.ReportStudentProgress:
		if req.ClassID == 0 {
			return 0, nil, c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "class_id is required",
			})
		}
		class, err := findScopedClass(c, int(req.ClassID))
		if class == nil {
			return 0, nil, err
		}
		owner := class.SchoolID
		return class.ID, &owner, nil

	default:
		schoolID := req.SchoolID
		if !scope.SuperAdmin {
			schoolID = scope.SchoolID
		}
		if schoolID == 0 {
			return 0, nil, c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "school_id is required",
			})
		}
		if !scope.Allows(schoolID) {
			return 0, nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "School belongs to another scope",
			})
		}
		owner := schoolID
		return schoolID, &owner, nil
	}
}

// GenerateReport assembles a report, renders it to PDF and stores the
// result. The row is created first so the storage key carries its ID.
func (rc *ReportController) GenerateReport(c *fiber.Ctx) error {
	var req GenerateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if !utils.IsValidReportType(req.Type) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Invalid report type",
		})
	}

	targetID, ownerSchoolID, err := resolveReportTarget(c, &req)
	if targetID == 0 {
		return err
	}

	now := time.Now()
	periodEnd := now
	periodStart := now.AddDate(0, -1, 0)
	if req.PeriodStart != "" {
		t, err := parseAssessmentTime(req.PeriodStart)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Invalid period_start",
			})
		}
		periodStart = t
	}
	if req.PeriodEnd != "" {
		t, err := parseAssessmentTime(req.PeriodEnd)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Invalid period_end",
			})
		}
		periodEnd = t
	}
	if periodStart.After(periodEnd) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "period_start must not be after period_end",
		})
	}

	data, buildErr := rc.reportService.BuildReport(req.Type, targetID, periodStart, periodEnd)
	if buildErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report target not found",
		})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}

	name := req.Name
	if name == "" {
		name = data.Title
	}

	report := models.Report{
		Name:        name,
		Type:        req.Type,
		TargetID:    targetID,
		SchoolID:    ownerSchoolID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		GeneratedBy: user.ID,
	}
	if err := database.DB.Create(&report).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create report",
		})
	}

	pdfBytes, renderErr := rc.reportService.RenderPDF(data)
	if renderErr != nil {
		logrus.WithError(renderErr).Error("Report PDF rendering failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to render report",
		})
	}

	storageService, storageErr := storage.NewStorageService()
	if storageErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Storage service unavailable",
		})
	}
	key := storage.ReportKey(report.ID, now)
	if _, err := storageService.UploadBytes(pdfBytes, key); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store report file",
		})
	}

	if err := database.DB.Model(&report).Updates(map[string]interface{}{
		"file_path": key,
		"file_size": int64(len(pdfBytes)),
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to finalize report",
		})
	}

	middleware.LogActivity(c, "generate", "reports", report.ID, fiber.Map{"type": req.Type})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Report generated successfully",
		"report":  utils.ToReportDTO(report),
		"data":    data,
	})
}

// GetReports lists generated reports, newest first. Non-admins only see
// their own school's reports.
func (rc *ReportController) GetReports(c *fiber.Ctx) error {
	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}

	query := database.DB.Model(&models.Report{}).Preload("Generator")
	if !scope.SuperAdmin {
		query = query.Where("school_id = ?", scope.SchoolID)
	}
	if reportType := c.Query("type"); reportType != "" {
		query = query.Where("type = ?", reportType)
	}

	page, perPage := parsePagination(c)
	var total int64
	query.Count(&total)

	var reports []models.Report
	if err := query.Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&reports).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch reports",
		})
	}

	return c.JSON(fiber.Map{
		"reports": utils.ToReportDTOs(reports),
		"pagination": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetReport retrieves one report's metadata
func (rc *ReportController) GetReport(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid report ID",
		})
	}

	var report models.Report
	if err := database.DB.Preload("Generator").First(&report, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}
	if !reportVisible(scope, &report) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Report belongs to another school",
		})
	}

	return c.JSON(fiber.Map{"report": utils.ToReportDTO(report)})
}

// DownloadReport streams the stored PDF
func (rc *ReportController) DownloadReport(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid report ID",
		})
	}

	var report models.Report
	if err := database.DB.First(&report, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}
	if !reportVisible(scope, &report) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Report belongs to another school",
		})
	}

	if report.FilePath == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report file is not available",
		})
	}

	storageService, err := storage.NewStorageService()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Storage service unavailable",
		})
	}
	data, err := storageService.DownloadFile(report.FilePath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to download report file",
		})
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, report.Name))
	return c.Send(data)
}

// ExportReportExcel re-assembles the report data and returns it as a
// workbook. The xlsx is rendered on demand, not stored.
func (rc *ReportController) ExportReportExcel(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid report ID",
		})
	}

	var report models.Report
	if err := database.DB.First(&report, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}
	if !reportVisible(scope, &report) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Report belongs to another school",
		})
	}
	if report.TargetID == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Report has no stored target",
		})
	}

	data, err := rc.reportService.BuildReport(report.Type, report.TargetID, report.PeriodStart, report.PeriodEnd)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report target not found",
		})
	}

	xlsxBytes, err := rc.reportService.RenderExcel(data)
	if err != nil {
		logrus.WithError(err).Error("Report Excel rendering failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to render workbook",
		})
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, report.Name))
	return c.Send(xlsxBytes)
}

const dashboardCacheTTL = 5 * time.Minute

// GetDashboardStats returns headline counts for the caller's scope,
// cached in Redis for a few minutes.
func (rc *ReportController) GetDashboardStats(c *fiber.Ctx) error {
	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}

	cacheKey := fmt.Sprintf("dashboard:school_%d", scope.SchoolID)
	if scope.SuperAdmin {
		cacheKey = "dashboard:global"
	}

	ctx := context.Background()
	if database.RedisClient != nil {
		if cached, err := database.RedisClient.Get(ctx, cacheKey).Result(); err == nil {
			var stats fiber.Map
			if json.Unmarshal([]byte(cached), &stats) == nil {
				return c.JSON(fiber.Map{"stats": stats, "cached": true})
			}
		}
	}

	db := database.DB
	scoped := func(model interface{}) *int64 {
		var count int64
		q := db.Model(model)
		if !scope.SuperAdmin {
			q = q.Where("school_id = ?", scope.SchoolID)
		}
		q.Count(&count)
		return &count
	}

	stats := fiber.Map{
		"schools":  scoped(&models.School{}),
		"classes":  scoped(&models.Class{}),
		"books":    scoped(&models.Book{}),
		"students": 0,
		"teachers": 0,
	}

	var students, teachers int64
	sq := db.Model(&models.User{}).Where("role = ? AND active = ?", models.RoleStudent, true)
	tq := db.Model(&models.User{}).Where("role = ? AND active = ?", models.RoleTeacher, true)
	if !scope.SuperAdmin {
		sq = sq.Where("school_id = ?", scope.SchoolID)
		tq = tq.Where("school_id = ?", scope.SchoolID)
	}
	sq.Count(&students)
	tq.Count(&teachers)
	stats["students"] = students
	stats["teachers"] = teachers

	if database.RedisClient != nil {
		if payload, err := json.Marshal(stats); err == nil {
			database.RedisClient.Set(ctx, cacheKey, payload, dashboardCacheTTL)
		}
	}

	return c.JSON(fiber.Map{"stats": stats, "cached": false})
}
