package controllers

import (
	"strconv"
	"strings"

	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SubjectController struct{}

type MaterialStub struct {
	ID          *uint  `json:"id"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Type        string `json:"type" validate:"required,oneof=document lesson book video audio image archive"`
	Category    string `json:"category"`
	ExternalURL string `json:"external_url"`
}

type AttachSubjectRequest struct {
	Name        string         `json:"name" validate:"required"`
	Code        string         `json:"code"`
	Description string         `json:"description"`
	GradeLevel  string         `json:"grade_level"`
	Curriculum  string         `json:"curriculum"`
	TeacherID   *uint          `json:"teacher_id"`
	Schedule    string         `json:"schedule"`
	Notes       string         `json:"notes"`
	BookIDs     []uint         `json:"book_ids"`
	Materials   []MaterialStub `json:"materials" validate:"omitempty,dive"`
}

type UpdateSubjectRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	GradeLevel  *string        `json:"grade_level"`
	Curriculum  *string        `json:"curriculum"`
	TeacherID   *uint          `json:"teacher_id"`
	Schedule    *string        `json:"schedule"`
	Notes       *string        `json:"notes"`
	BookIDs     *[]uint        `json:"book_ids"` // nil = untouched, non-nil = replace the whole set
	Materials   []MaterialStub `json:"materials" validate:"omitempty,dive"`
}

// AttachSubject creates (or reuses) a subject and binds it to the class
// with a per-class teacher assignment and schedule.
func (sc *SubjectController) AttachSubject(c *fiber.Ctx) error {
	classID, err := strconv.Atoi(c.Params("class_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, classID)
	if class == nil {
		return err
	}

	var req AttachSubjectRequest
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

	if req.TeacherID != nil {
		var teacher models.User
		if err := database.DB.Where("id = ? AND role = ? AND school_id = ?",
			*req.TeacherID, models.RoleTeacher, class.SchoolID).First(&teacher).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Teacher not found in this school",
			})
		}
	}

	var join models.ClassSubject
	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		var subject models.Subject
		code := strings.ToUpper(strings.TrimSpace(req.Code))
		if code != "" {
			// Reuse an existing subject by code, or claim the code for a new one
			if err := tx.Where("code = ?", code).First(&subject).Error; err != nil {
				subject = models.Subject{
					Name:        req.Name,
					Code:        code,
					Description: req.Description,
					GradeLevel:  req.GradeLevel,
					Curriculum:  req.Curriculum,
				}
				if err := tx.Create(&subject).Error; err != nil {
					return err
				}
			}
		} else {
			subject = models.Subject{
				Name:        req.Name,
				Code:        utils.GenerateCode("SUB", 6),
				Description: req.Description,
				GradeLevel:  req.GradeLevel,
				Curriculum:  req.Curriculum,
			}
			if err := tx.Create(&subject).Error; err != nil {
				return err
			}
		}

		var existing models.ClassSubject
		if err := tx.Where("class_id = ? AND subject_id = ?", class.ID, subject.ID).First(&existing).Error; err == nil {
			return errDuplicateEnrollment
		}

		join = models.ClassSubject{
			ClassID:   class.ID,
			SubjectID: subject.ID,
			TeacherID: req.TeacherID,
			Schedule:  req.Schedule,
			Notes:     req.Notes,
		}
		if err := tx.Create(&join).Error; err != nil {
			return err
		}

		if len(req.BookIDs) > 0 {
			var books []models.Book
			if err := tx.Where("id IN ?", req.BookIDs).Find(&books).Error; err != nil {
				return err
			}
			if err := tx.Model(&subject).Association("Books").Replace(books); err != nil {
				return err
			}
		}

		for _, stub := range req.Materials {
			material := models.ReadingMaterial{
				ClassID:     class.ID,
				SubjectID:   subject.ID,
				Title:       stub.Title,
				Description: stub.Description,
				Type:        stub.Type,
				Category:    stub.Category,
				ExternalURL: stub.ExternalURL,
			}
			if err := tx.Create(&material).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if txErr == errDuplicateEnrollment {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Subject is already attached to this class",
		})
	}
	if txErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to attach subject",
		})
	}

	if err := database.DB.
		Preload("Subject").
		Preload("Subject.Books").
		Preload("Teacher").
		First(&join, join.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load subject details",
		})
	}

	middleware.LogActivity(c, "attach", "class_subjects", join.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Subject attached successfully",
		"subject": utils.ToClassSubjectDTO(join),
	})
}

// GetClassSubjects lists the subjects bound to a class
func (sc *SubjectController) GetClassSubjects(c *fiber.Ctx) error {
	classID, err := strconv.Atoi(c.Params("class_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}

	class, err := findScopedClass(c, classID)
	if class == nil {
		return err
	}

	var joins []models.ClassSubject
	if err := database.DB.
		Preload("Subject").
		Preload("Subject.Books").
		Preload("Teacher").
		Where("class_id = ?", class.ID).
		Find(&joins).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subjects",
		})
	}

	return c.JSON(fiber.Map{"subjects": utils.ToClassSubjectDTOs(joins)})
}

// UpdateSubject updates the subject's own fields in place, the per-class
// teacher/schedule through the join record, replaces the book set when one
// is given, and upserts inline materials by id.
func (sc *SubjectController) UpdateSubject(c *fiber.Ctx) error {
	classID, err := strconv.Atoi(c.Params("class_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}
	subjectID, err := strconv.Atoi(c.Params("subject_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subject ID",
		})
	}

	class, err := findScopedClass(c, classID)
	if class == nil {
		return err
	}

	var join models.ClassSubject
	if err := database.DB.Where("class_id = ? AND subject_id = ?", class.ID, subjectID).First(&join).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Subject is not attached to this class",
		})
	}

	var req UpdateSubjectRequest
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

	if req.TeacherID != nil {
		var teacher models.User
		if err := database.DB.Where("id = ? AND role = ? AND school_id = ?",
			*req.TeacherID, models.RoleTeacher, class.SchoolID).First(&teacher).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Teacher not found in this school",
			})
		}
	}

	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		subjectUpdates := map[string]interface{}{}
		if req.Name != nil {
			subjectUpdates["name"] = *req.Name
		}
		if req.Description != nil {
			subjectUpdates["description"] = *req.Description
		}
		if req.GradeLevel != nil {
			subjectUpdates["grade_level"] = *req.GradeLevel
		}
		if req.Curriculum != nil {
			subjectUpdates["curriculum"] = *req.Curriculum
		}
		if len(subjectUpdates) > 0 {
			if err := tx.Model(&models.Subject{}).Where("id = ?", subjectID).Updates(subjectUpdates).Error; err != nil {
				return err
			}
		}

		joinUpdates := map[string]interface{}{}
		if req.TeacherID != nil {
			joinUpdates["teacher_id"] = *req.TeacherID
		}
		if req.Schedule != nil {
			joinUpdates["schedule"] = *req.Schedule
		}
		if req.Notes != nil {
			joinUpdates["notes"] = *req.Notes
		}
		if len(joinUpdates) > 0 {
			if err := tx.Model(&join).Updates(joinUpdates).Error; err != nil {
				return err
			}
		}

		// Book association: sync semantics, the given set becomes the new set
		if req.BookIDs != nil {
			var subject models.Subject
			if err := tx.First(&subject, subjectID).Error; err != nil {
				return err
			}
			var books []models.Book
			if len(*req.BookIDs) > 0 {
				if err := tx.Where("id IN ?", *req.BookIDs).Find(&books).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&subject).Association("Books").Replace(books); err != nil {
				return err
			}
		}

		// Materials: present id updates in place, absent id creates new
		for _, stub := range req.Materials {
			if stub.ID != nil {
				updates := map[string]interface{}{
					"title":        stub.Title,
					"description":  stub.Description,
					"type":         stub.Type,
					"category":     stub.Category,
					"external_url": stub.ExternalURL,
				}
				if err := tx.Model(&models.ReadingMaterial{}).
					Where("id = ? AND class_id = ? AND subject_id = ?", *stub.ID, class.ID, subjectID).
					Updates(updates).Error; err != nil {
					return err
				}
			} else {
				material := models.ReadingMaterial{
					ClassID:     class.ID,
					SubjectID:   uint(subjectID),
					Title:       stub.Title,
					Description: stub.Description,
					Type:        stub.Type,
					Category:    stub.Category,
					ExternalURL: stub.ExternalURL,
				}
				if err := tx.Create(&material).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if txErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update subject",
		})
	}

	if err := database.DB.
		Preload("Subject").
		Preload("Subject.Books").
		Preload("Teacher").
		First(&join, join.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load subject details",
		})
	}

	middleware.LogActivity(c, "update", "class_subjects", join.ID, nil)
	return c.JSON(fiber.Map{
		"message": "Subject updated successfully",
		"subject": utils.ToClassSubjectDTO(join),
	})
}

// DetachSubject removes only the class-subject binding. The subject and its
// materials survive for reuse by other classes.
func (sc *SubjectController) DetachSubject(c *fiber.Ctx) error {
	classID, err := strconv.Atoi(c.Params("class_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}
	subjectID, err := strconv.Atoi(c.Params("subject_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subject ID",
		})
	}

	class, err := findScopedClass(c, classID)
	if class == nil {
		return err
	}

	var join models.ClassSubject
	if err := database.DB.Where("class_id = ? AND subject_id = ?", class.ID, subjectID).First(&join).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Subject is not attached to this class",
		})
	}

	// Hard delete: the unique (class_id, subject_id) index covers
	// soft-deleted rows and would block a later re-attach.
	if err := database.DB.Unscoped().Delete(&join).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to detach subject",
		})
	}

	middleware.LogActivity(c, "detach", "class_subjects", join.ID, nil)
	return c.JSON(fiber.Map{"message": "Subject detached from class successfully"})
}

// GetSubjects lists all subjects in the catalog
func (sc *SubjectController) GetSubjects(c *fiber.Ctx) error {
	query := database.DB.Model(&models.Subject{}).Preload("Books")
	if gradeLevel := c.Query("grade_level"); gradeLevel != "" {
		query = query.Where("grade_level = ?", gradeLevel)
	}
	if q := c.Query("q"); q != "" {
		query = query.Where("name LIKE ? OR code LIKE ?", "%"+q+"%", "%"+q+"%")
	}

	var subjects []models.Subject
	if err := query.Order("name asc").Find(&subjects).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subjects",
		})
	}

	return c.JSON(fiber.Map{"subjects": subjects})
}
