package controllers

import (
	"errors"
	"strconv"
	"time"

	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ClassController struct{}

const defaultClassCapacity = 40

type CreateClassRequest struct {
	Name         string     `json:"name" validate:"required"`
	GradeLevel   string     `json:"grade_level" validate:"required"`
	Section      string     `json:"section"`
	TeacherID    *uint      `json:"teacher_id"`
	MaxStudents  *int       `json:"max_students" validate:"omitempty,min=1"`
	AcademicYear string     `json:"academic_year" validate:"required"`
	StartDate    time.Time  `json:"start_date" validate:"required"`
	EndDate      *time.Time `json:"end_date"`
}

type UpdateClassRequest struct {
	Name         *string    `json:"name"`
	GradeLevel   *string    `json:"grade_level"`
	Section      *string    `json:"section"`
	TeacherID    *uint      `json:"teacher_id"`
	MaxStudents  *int       `json:"max_students" validate:"omitempty,min=1"`
	AcademicYear *string    `json:"academic_year"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	Active       *bool      `json:"active"`
}

type AddStudentRequest struct {
	StudentID uint   `json:"student_id" validate:"required"`
	Notes     string `json:"notes"`
}

type BulkAddStudentsRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"required,min=1"`
}

// exceedsCapacity reports whether adding the given number of students would
// push the class past its capacity. Both the single-add and the bulk-add
// paths use this against the committed active count inside one transaction.
func exceedsCapacity(activeCount int64, adding, maxStudents int) bool {
	return activeCount+int64(adding) > int64(maxStudents)
}

// enrollStudent checks for a duplicate and for capacity against the
// committed active count, then inserts the enrollment. Runs inside the
// caller's transaction.
func enrollStudent(tx *gorm.DB, classID, studentID uint, maxStudents int, notes string, now time.Time) (*models.Enrollment, error) {
	var existing models.Enrollment
	if err := tx.Where("class_id = ? AND student_id = ?", classID, studentID).First(&existing).Error; err == nil {
		return nil, errDuplicateEnrollment
	}

	var activeCount int64
	if err := tx.Model(&models.Enrollment{}).
		Where("class_id = ? AND status = ?", classID, "active").
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	if exceedsCapacity(activeCount, 1, maxStudents) {
		return nil, errCapacityExceeded
	}

	enrollment := models.Enrollment{
		ClassID:        classID,
		StudentID:      studentID,
		EnrollmentDate: now,
		Status:         "active",
		Notes:          notes,
	}
	if err := tx.Create(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// removeEnrollment drops a roster row for good. The unique
// (class_id, student_id) index covers soft-deleted rows, so a soft delete
// would block the student from ever re-enrolling; the row carries no blob,
// so nothing needs the sweep.
func removeEnrollment(tx *gorm.DB, enrollment *models.Enrollment) error {
	return tx.Unscoped().Delete(enrollment).Error
}

// findScopedClass loads a class and checks it against the request's school scope.
func findScopedClass(c *fiber.Ctx, id int) (*models.Class, error) {
	var class models.Class
	if err := database.DB.First(&class, id).Error; err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Class not found",
		})
	}

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(class.SchoolID) {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Class does not belong to your school",
		})
	}
	return &class, nil
}

// CreateClass creates a new class in the acting school
func (cc *ClassController) CreateClass(c *fiber.Ctx) error {
	var req CreateClassRequest
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

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}
	if scope.SchoolID == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "A school must be selected",
		})
	}

	if req.TeacherID != nil {
		var teacher models.User
		if err := database.DB.Where("id = ? AND role = ? AND school_id = ?",
			*req.TeacherID, models.RoleTeacher, scope.SchoolID).First(&teacher).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Teacher not found in this school",
			})
		}
	}

	class := models.Class{
		SchoolID:     scope.SchoolID,
		Name:         req.Name,
		GradeLevel:   req.GradeLevel,
		Section:      req.Section,
		TeacherID:    req.TeacherID,
		MaxStudents:  defaultClassCapacity,
		AcademicYear: req.AcademicYear,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Active:       true,
	}
	if req.MaxStudents != nil {
		class.MaxStudents = *req.MaxStudents
	}

	if err := database.DB.Create(&class).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create class",
		})
	}

	if err := database.DB.Preload("School").Preload("Teacher").First(&class, class.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load class details",
		})
	}

	middleware.LogActivity(c, "create", "classes", class.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Class created successfully",
		"class":   utils.ToClassDTO(class),
	})
}

// GetClasses retrieves classes for the acting school with optional filters
func (cc *ClassController) GetClasses(c *fiber.Ctx) error {
	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}

	query := database.DB.Model(&models.Class{}).
		Preload("School").
		Preload("Teacher").
		Preload("Enrollments")

	if scope.SchoolID != 0 {
		query = query.Where("school_id = ?", scope.SchoolID)
	}
	if gradeLevel := c.Query("grade_level"); gradeLevel != "" {
		query = query.Where("grade_level = ?", gradeLevel)
	}
	if year := c.Query("academic_year"); year != "" {
		query = query.Where("academic_year = ?", year)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("active = ?", active == "true")
	}

	page, perPage := parsePagination(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count classes"})
	}

	var classes []models.Class
	if err := query.Limit(perPage).Offset((page - 1) * perPage).Find(&classes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch classes",
		})
	}

	return c.JSON(fiber.Map{
		"classes":  utils.ToClassDTOs(classes),
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetClass retrieves a specific class with its roster
func (cc *ClassController) GetClass(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	if err := database.DB.
		Preload("School").
		Preload("Teacher").
		Preload("Enrollments").
		First(class, class.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load class details",
		})
	}

	return c.JSON(fiber.Map{"class": utils.ToClassDTO(*class)})
}

// UpdateClass updates class fields, preserving unspecified ones
func (cc *ClassController) UpdateClass(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	var req UpdateClassRequest
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

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.GradeLevel != nil {
		updates["grade_level"] = *req.GradeLevel
	}
	if req.Section != nil {
		updates["section"] = *req.Section
	}
	if req.TeacherID != nil {
		var teacher models.User
		if err := database.DB.Where("id = ? AND role = ? AND school_id = ?",
			*req.TeacherID, models.RoleTeacher, class.SchoolID).First(&teacher).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Teacher not found in this school",
			})
		}
		updates["teacher_id"] = *req.TeacherID
	}
	if req.MaxStudents != nil {
		updates["max_students"] = *req.MaxStudents
	}
	if req.AcademicYear != nil {
		updates["academic_year"] = *req.AcademicYear
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) > 0 {
		if err := database.DB.Model(class).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update class",
			})
		}
	}

	middleware.LogActivity(c, "update", "classes", class.ID, updates)
	return c.JSON(fiber.Map{
		"message": "Class updated successfully",
		"class":   utils.ToClassDTO(*class),
	})
}

// DeleteClass removes a class and cascades its enrollments
func (cc *ClassController) DeleteClass(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		// Join rows go for good: they carry no blobs, and their composite
		// unique indexes cover soft-deleted rows.
		if err := tx.Unscoped().Where("class_id = ?", class.ID).Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("class_id = ?", class.ID).Delete(&models.ClassSubject{}).Error; err != nil {
			return err
		}
		return tx.Delete(class).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete class",
		})
	}

	middleware.LogActivity(c, "delete", "classes", class.ID, nil)
	return c.JSON(fiber.Map{"message": "Class deleted successfully"})
}

// AddStudent enrolls a single student. Duplicate enrollments are rejected,
// and the capacity check runs against the committed active count inside the
// same transaction as the insert.
func (cc *ClassController) AddStudent(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	var req AddStudentRequest
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

	var student models.User
	if err := database.DB.Where("id = ? AND role = ? AND school_id = ?",
		req.StudentID, models.RoleStudent, class.SchoolID).First(&student).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found in this school",
		})
	}

	var enrollment models.Enrollment
	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		e, err := enrollStudent(tx, class.ID, req.StudentID, class.MaxStudents, req.Notes, time.Now())
		if err != nil {
			return err
		}
		enrollment = *e
		return nil
	})

	switch {
	case errors.Is(txErr, errDuplicateEnrollment):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Student is already enrolled in this class",
		})
	case errors.Is(txErr, errCapacityExceeded):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Class capacity exceeded",
		})
	case txErr != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enroll student",
		})
	}

	if err := database.DB.Preload("Student").First(&enrollment, enrollment.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load enrollment details",
		})
	}

	middleware.LogActivity(c, "enroll", "classes", class.ID, fiber.Map{"student_id": req.StudentID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Student enrolled successfully",
		"enrollment": utils.ToEnrollmentDTO(enrollment),
	})
}

// BulkAddStudents enrolls a batch of students all-or-nothing. The whole
// batch is rejected up front if it would exceed capacity or contains a
// duplicate.
func (cc *ClassController) BulkAddStudents(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	var req BulkAddStudentsRequest
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

	var studentCount int64
	database.DB.Model(&models.User{}).
		Where("id IN ? AND role = ? AND school_id = ?", req.StudentIDs, models.RoleStudent, class.SchoolID).
		Count(&studentCount)
	if int(studentCount) != len(req.StudentIDs) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "One or more students not found in this school",
		})
	}

	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		var dupes int64
		if err := tx.Model(&models.Enrollment{}).
			Where("class_id = ? AND student_id IN ?", class.ID, req.StudentIDs).
			Count(&dupes).Error; err != nil {
			return err
		}
		if dupes > 0 {
			return errDuplicateEnrollment
		}

		var activeCount int64
		if err := tx.Model(&models.Enrollment{}).
			Where("class_id = ? AND status = ?", class.ID, "active").
			Count(&activeCount).Error; err != nil {
			return err
		}
		if exceedsCapacity(activeCount, len(req.StudentIDs), class.MaxStudents) {
			return errCapacityExceeded
		}

		now := time.Now()
		enrollments := make([]models.Enrollment, 0, len(req.StudentIDs))
		for _, studentID := range req.StudentIDs {
			enrollments = append(enrollments, models.Enrollment{
				ClassID:        class.ID,
				StudentID:      studentID,
				EnrollmentDate: now,
				Status:         "active",
			})
		}
		return tx.Create(&enrollments).Error
	})

	switch {
	case errors.Is(txErr, errDuplicateEnrollment):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "One or more students are already enrolled in this class",
		})
	case errors.Is(txErr, errCapacityExceeded):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Batch would exceed class capacity",
		})
	case txErr != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enroll students",
		})
	}

	middleware.LogActivity(c, "bulk_enroll", "classes", class.ID, fiber.Map{"count": len(req.StudentIDs)})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Students enrolled successfully",
		"enrolled": len(req.StudentIDs),
	})
}

// RemoveStudent drops a student from the class roster. Removing a student
// who is not enrolled reports not-found and changes nothing.
func (cc *ClassController) RemoveStudent(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	studentID, err := strconv.Atoi(c.Params("student_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid student ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	var enrollment models.Enrollment
	if err := database.DB.Where("class_id = ? AND student_id = ?", class.ID, studentID).First(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student is not enrolled in this class",
		})
	}

	if err := removeEnrollment(database.DB, &enrollment); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove student",
		})
	}

	middleware.LogActivity(c, "unenroll", "classes", class.ID, fiber.Map{"student_id": studentID})
	return c.JSON(fiber.Map{"message": "Student removed from class successfully"})
}

// GetEnrolledStudents lists the class roster
func (cc *ClassController) GetEnrolledStudents(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	var enrollments []models.Enrollment
	if err := database.DB.Preload("Student").
		Where("class_id = ?", class.ID).
		Order("enrollment_date asc").
		Find(&enrollments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch enrollments",
		})
	}

	return c.JSON(fiber.Map{"enrollments": utils.ToEnrollmentDTOs(enrollments)})
}

// GetAvailableStudents lists students of the school not yet enrolled in this class
func (cc *ClassController) GetAvailableStudents(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, id)
	if class == nil {
		return err
	}

	var students []models.User
	subQuery := database.DB.Model(&models.Enrollment{}).
		Select("student_id").
		Where("class_id = ?", class.ID)
	if err := database.DB.
		Where("role = ? AND school_id = ? AND active = ?", models.RoleStudent, class.SchoolID, true).
		Where("id NOT IN (?)", subQuery).
		Find(&students).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch available students",
		})
	}

	dtos := make([]utils.UserShort, 0, len(students))
	for _, s := range students {
		dtos = append(dtos, utils.ToUserShort(s))
	}
	return c.JSON(fiber.Map{"students": dtos})
}
