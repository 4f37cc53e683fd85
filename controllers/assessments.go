package controllers

import (
	"errors"
	"strconv"
	"time"

	"ilearnz_go/config"
	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/storage"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AssessmentController struct{}

// validGrade reports whether a score lies within [0, maxScore].
func validGrade(score, maxScore int) bool {
	return score >= 0 && score <= maxScore
}

// validAssessmentWindow reports whether the availability window is ordered:
// the assessment must open no later than it is due.
func validAssessmentWindow(availableFrom, dueDate time.Time) bool {
	return !availableFrom.After(dueDate)
}

// hasSubmission reports whether the student already submitted, scoped to
// the caller's transaction.
func hasSubmission(tx *gorm.DB, assessmentID, studentID uint) bool {
	var existing models.AssessmentSubmission
	return tx.Where("assessment_id = ? AND student_id = ?", assessmentID, studentID).First(&existing).Error == nil
}

// parseAssessmentTime accepts RFC3339 and plain dates.
func parseAssessmentTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// findScopedAssessment loads an assessment and verifies it belongs to the
// stated class and subject within the request's school scope.
func findScopedAssessment(c *fiber.Ctx) (*models.Assessment, error) {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return nil, err
	}

	id, convErr := strconv.Atoi(c.Params("id"))
	if convErr != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assessment ID",
		})
	}

	var assessment models.Assessment
	if err := database.DB.
		Where("id = ? AND class_id = ? AND subject_id = ?", id, class.ID, join.SubjectID).
		First(&assessment).Error; err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}
	return &assessment, nil
}

// CreateAssessment creates an assignment for a class subject. The acting
// teacher must belong to the same school as the class.
func (ac *AssessmentController) CreateAssessment(c *fiber.Ctx) error {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	if user.Role == models.RoleTeacher && (user.SchoolID == nil || *user.SchoolID != class.SchoolID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Teacher does not belong to this school",
		})
	}

	title := utils.SanitizeString(c.FormValue("title"))
	if title == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	dueDate, err := parseAssessmentTime(c.FormValue("due_date"))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Invalid due_date",
		})
	}
	availableFrom, err := parseAssessmentTime(c.FormValue("available_from"))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Invalid available_from",
		})
	}
	if !validAssessmentWindow(availableFrom, dueDate) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "available_from must not be after due_date",
		})
	}

	maxScore := 100
	if ms := c.FormValue("max_score"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v < 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "max_score must be a non-negative integer",
			})
		}
		maxScore = v
	}

	assessment := models.Assessment{
		ClassID:              class.ID,
		SubjectID:            join.SubjectID,
		CreatedBy:            user.ID,
		Title:                title,
		Instructions:         c.FormValue("instructions"),
		DueDate:              dueDate,
		AvailableFrom:        availableFrom,
		MaxScore:             maxScore,
		Published:            c.FormValue("published") == "true",
		AllowLateSubmissions: c.FormValue("allow_late_submissions") == "true",
	}

	if file, fileErr := c.FormFile("attachment"); fileErr == nil && file != nil {
		if file.Size > config.AppConfig.MaxFileSize {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Attachment exceeds the maximum allowed size",
			})
		}
		storageService, err := storage.NewStorageService()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Storage service unavailable",
			})
		}
		key := storage.AssessmentKey(class.ID, join.SubjectID, file.Filename, time.Now())
		if _, err := storageService.UploadFile(file, key); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Failed to store attachment",
			})
		}
		assessment.AttachmentPath = key
	}

	if err := database.DB.Create(&assessment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create assessment",
		})
	}

	if err := database.DB.Preload("Creator").First(&assessment, assessment.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load assessment details",
		})
	}

	middleware.LogActivity(c, "create", "assessments", assessment.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Assessment created successfully",
		"assessment": utils.ToAssessmentDTO(assessment, time.Now()),
	})
}

// GetAssessments lists assessments for a class subject. Students only see
// published ones.
func (ac *AssessmentController) GetAssessments(c *fiber.Ctx) error {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}

	query := database.DB.Model(&models.Assessment{}).
		Preload("Creator").
		Preload("Submissions").
		Where("class_id = ? AND subject_id = ?", class.ID, join.SubjectID)
	if user.Role == models.RoleStudent || user.Role == models.RoleParent {
		query = query.Where("published = ?", true)
	}

	var assessments []models.Assessment
	if err := query.Order("due_date asc").Find(&assessments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch assessments",
		})
	}

	return c.JSON(fiber.Map{"assessments": utils.ToAssessmentDTOs(assessments, time.Now())})
}

// GetAssessment retrieves one assessment with its derived status
func (ac *AssessmentController) GetAssessment(c *fiber.Ctx) error {
	assessment, err := findScopedAssessment(c)
	if assessment == nil {
		return err
	}

	if err := database.DB.
		Preload("Creator").
		Preload("Submissions").
		First(assessment, assessment.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load assessment details",
		})
	}

	return c.JSON(fiber.Map{"assessment": utils.ToAssessmentDTO(*assessment, time.Now())})
}

// UpdateAssessment overwrites provided fields; a new attachment replaces
// the old blob only after the new one has been stored.
func (ac *AssessmentController) UpdateAssessment(c *fiber.Ctx) error {
	assessment, err := findScopedAssessment(c)
	if assessment == nil {
		return err
	}

	updates := map[string]interface{}{}
	if title := c.FormValue("title"); title != "" {
		updates["title"] = utils.SanitizeString(title)
	}
	if instructions := c.FormValue("instructions"); instructions != "" {
		updates["instructions"] = instructions
	}

	dueDate := assessment.DueDate
	availableFrom := assessment.AvailableFrom
	if dd := c.FormValue("due_date"); dd != "" {
		t, err := parseAssessmentTime(dd)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Invalid due_date",
			})
		}
		dueDate = t
		updates["due_date"] = t
	}
	if af := c.FormValue("available_from"); af != "" {
		t, err := parseAssessmentTime(af)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Invalid available_from",
			})
		}
		availableFrom = t
		updates["available_from"] = t
	}
	// The window must stay ordered against the stored values too: moving
	// only due_date before the existing available_from is rejected.
	if !validAssessmentWindow(availableFrom, dueDate) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "available_from must not be after due_date",
		})
	}
	if ms := c.FormValue("max_score"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v < 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "max_score must be a non-negative integer",
			})
		}
		updates["max_score"] = v
	}
	if published := c.FormValue("published"); published != "" {
		updates["published"] = published == "true"
	}
	if allowLate := c.FormValue("allow_late_submissions"); allowLate != "" {
		updates["allow_late_submissions"] = allowLate == "true"
	}

	if file, fileErr := c.FormFile("attachment"); fileErr == nil && file != nil {
		if file.Size > config.AppConfig.MaxFileSize {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Attachment exceeds the maximum allowed size",
			})
		}
		storageService, err := storage.NewStorageService()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Storage service unavailable",
			})
		}
		key := storage.AssessmentKey(assessment.ClassID, assessment.SubjectID, file.Filename, time.Now())
		if _, err := storageService.ReplaceFile(file, key, assessment.AttachmentPath); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Failed to store attachment",
			})
		}
		updates["attachment_path"] = key
	}

	if len(updates) > 0 {
		if err := database.DB.Model(assessment).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update assessment",
			})
		}
	}

	middleware.LogActivity(c, "update", "assessments", assessment.ID, nil)
	return c.JSON(fiber.Map{
		"message":    "Assessment updated successfully",
		"assessment": utils.ToAssessmentDTO(*assessment, time.Now()),
	})
}

// DeleteAssessment cascades: every submission's blob and row first, then
// the assessment's own attachment and row.
func (ac *AssessmentController) DeleteAssessment(c *fiber.Ctx) error {
	assessment, err := findScopedAssessment(c)
	if assessment == nil {
		return err
	}

	var submissions []models.AssessmentSubmission
	if err := database.DB.Where("assessment_id = ?", assessment.ID).Find(&submissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch submissions",
		})
	}

	storageService, storageErr := storage.NewStorageService()

	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assessment_id = ?", assessment.ID).Delete(&models.AssessmentSubmission{}).Error; err != nil {
			return err
		}
		return tx.Delete(assessment).Error
	})
	if txErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete assessment",
		})
	}

	// Blobs after the rows are gone; failures are retried by the sweep.
	if storageErr == nil {
		for _, s := range submissions {
			if s.FilePath == "" {
				continue
			}
			if err := storageService.DeleteFile(s.FilePath); err != nil {
				logrus.WithError(err).WithField("key", s.FilePath).Warn("Submission blob delete failed, leaving for sweep")
				continue
			}
			database.DB.Unscoped().Model(&models.AssessmentSubmission{}).Where("id = ?", s.ID).Update("file_path", "")
		}
		if assessment.AttachmentPath != "" {
			if err := storageService.DeleteFile(assessment.AttachmentPath); err != nil {
				logrus.WithError(err).WithField("key", assessment.AttachmentPath).Warn("Attachment blob delete failed, leaving for sweep")
			} else {
				database.DB.Unscoped().Model(assessment).Update("attachment_path", "")
			}
		}
	}

	middleware.LogActivity(c, "delete", "assessments", assessment.ID, nil)
	return c.JSON(fiber.Map{"message": "Assessment deleted successfully"})
}

// SubmitAssessment records a student's submission. Rejected when the
// assessment is not accepting, or when the student already submitted.
func (ac *AssessmentController) SubmitAssessment(c *fiber.Ctx) error {
	assessment, err := findScopedAssessment(c)
	if assessment == nil {
		return err
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}

	now := time.Now()
	if !assessment.Published || !assessment.AcceptsSubmissionsAt(now) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Assessment is not accepting submissions",
		})
	}

	var enrollment models.Enrollment
	if err := database.DB.Where("class_id = ? AND student_id = ? AND status = ?",
		assessment.ClassID, user.ID, "active").First(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Student is not enrolled in this class",
		})
	}

	file, fileErr := c.FormFile("file")
	if fileErr != nil || file == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "A submission file is required",
		})
	}
	if file.Size > config.AppConfig.MaxFileSize {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "File exceeds the maximum allowed size",
		})
	}

	var submission models.AssessmentSubmission
	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		if hasSubmission(tx, assessment.ID, user.ID) {
			return errDuplicateSubmission
		}

		storageService, err := storage.NewStorageService()
		if err != nil {
			return err
		}
		key := storage.SubmissionKey(assessment.ID, user.ID, file.Filename, now)
		if _, err := storageService.UploadFile(file, key); err != nil {
			return err
		}

		submission = models.AssessmentSubmission{
			AssessmentID: assessment.ID,
			StudentID:    user.ID,
			FilePath:     key,
			Comments:     c.FormValue("comments"),
			SubmittedAt:  now,
			IsLate:       assessment.IsPastDueAt(now),
		}
		return tx.Create(&submission).Error
	})

	if errors.Is(txErr, errDuplicateSubmission) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Assessment already submitted",
		})
	}
	if txErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to submit assessment",
		})
	}

	middleware.LogActivity(c, "submit", "assessments", assessment.ID, fiber.Map{"is_late": submission.IsLate})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Assessment submitted successfully",
		"submission": utils.ToSubmissionDTO(submission),
	})
}

// GetSubmissions lists all submissions for an assessment
func (ac *AssessmentController) GetSubmissions(c *fiber.Ctx) error {
	assessment, err := findScopedAssessment(c)
	if assessment == nil {
		return err
	}

	var submissions []models.AssessmentSubmission
	if err := database.DB.
		Preload("Student").
		Preload("Grader").
		Where("assessment_id = ?", assessment.ID).
		Order("submitted_at asc").
		Find(&submissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch submissions",
		})
	}

	return c.JSON(fiber.Map{"submissions": utils.ToSubmissionDTOs(submissions)})
}

type GradeSubmissionRequest struct {
	Score    *int   `json:"score" validate:"required"`
	Feedback string `json:"feedback"`
}

// GradeSubmission records a score and feedback. Single-pass overwrite:
// regrading just calls it again, no history kept.
func (ac *AssessmentController) GradeSubmission(c *fiber.Ctx) error {
	assessment, err := findScopedAssessment(c)
	if assessment == nil {
		return err
	}

	submissionID, err := strconv.Atoi(c.Params("submission_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid submission ID",
		})
	}

	var submission models.AssessmentSubmission
	if err := database.DB.Where("id = ? AND assessment_id = ?", submissionID, assessment.ID).First(&submission).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Submission not found",
		})
	}

	var req GradeSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if errs := utils.ValidateStruct(req); errs != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Validation failed", "errors": errs,
		})
	}

	if !validGrade(*req.Score, assessment.MaxScore) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Score must be between 0 and the assessment max_score",
		})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"score":     *req.Score,
		"feedback":  req.Feedback,
		"graded_by": user.ID,
		"graded_at": now,
	}
	if err := database.DB.Model(&submission).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to grade submission",
		})
	}

	if err := database.DB.Preload("Student").Preload("Grader").First(&submission, submission.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load submission details",
		})
	}

	middleware.LogActivity(c, "grade", "submissions", submission.ID, fiber.Map{"score": *req.Score})
	return c.JSON(fiber.Map{
		"message":    "Submission graded successfully",
		"submission": utils.ToSubmissionDTO(submission),
	})
}
