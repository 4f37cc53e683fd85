package controllers

import (
	"strconv"
	"time"

	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserController struct{}

// findScopedUser loads a user and checks the caller's school scope. Users
// without a school (super admins, unlinked parents) are only visible to
// super admins.
func findScopedUser(c *fiber.Ctx, id int) (*models.User, error) {
	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return nil, err
	}
	if !scope.SuperAdmin {
		if user.SchoolID == nil || !scope.Allows(*user.SchoolID) {
			return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "User belongs to another school",
			})
		}
	}
	return &user, nil
}

// GetUsers lists users in the caller's school with optional filters
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}

	query := database.DB.Model(&models.User{}).
		Preload("StudentProfile").
		Preload("TeacherProfile")
	if !scope.SuperAdmin {
		query = query.Where("school_id = ?", scope.SchoolID)
	} else if schoolID := c.Query("school_id"); schoolID != "" {
		query = query.Where("school_id = ?", schoolID)
	}
	if role := c.Query("role"); role != "" {
		if !utils.IsValidRole(role) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid role filter",
			})
		}
		query = query.Where("role = ?", role)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("active = ?", active == "true")
	}
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", like, like)
	}

	page, perPage := parsePagination(c)
	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Order("name asc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch users",
		})
	}

	return c.JSON(fiber.Map{
		"users": utils.ToUserShorts(users),
		"pagination": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetUser retrieves one user with role profiles
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	user, err := findScopedUser(c, id)
	if user == nil {
		return err
	}

	if err := database.DB.
		Preload("School").
		Preload("StudentProfile").
		Preload("StudentProfile.Parent").
		Preload("TeacherProfile").
		Preload("AdminProfiles").
		First(user, user.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load user details",
		})
	}

	return c.JSON(fiber.Map{"user": user})
}

type UpdateUserRequest struct {
	Name           string     `json:"name"`
	GradeLevel     string     `json:"grade_level"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         string     `json:"gender"`
	Address        string     `json:"address"`
	Qualification  string     `json:"qualification"`
	Specialization string     `json:"specialization"`
	HireDate       *time.Time `json:"hire_date"`
}

// UpdateUser overwrites provided base and profile fields
func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	user, err := findScopedUser(c, id)
	if user == nil {
		return err
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		if req.Name != "" {
			if err := tx.Model(user).Update("name", utils.SanitizeString(req.Name)).Error; err != nil {
				return err
			}
		}

		if user.Role == models.RoleStudent {
			profileUpdates := map[string]interface{}{}
			if req.GradeLevel != "" {
				profileUpdates["grade_level"] = req.GradeLevel
			}
			if req.DateOfBirth != nil {
				profileUpdates["date_of_birth"] = req.DateOfBirth
			}
			if req.Gender != "" {
				profileUpdates["gender"] = req.Gender
			}
			if req.Address != "" {
				profileUpdates["address"] = req.Address
			}
			if len(profileUpdates) > 0 {
				if err := tx.Model(&models.StudentProfile{}).
					Where("user_id = ?", user.ID).Updates(profileUpdates).Error; err != nil {
					return err
				}
			}
		}

		if user.Role == models.RoleTeacher {
			profileUpdates := map[string]interface{}{}
			if req.Qualification != "" {
				profileUpdates["qualification"] = req.Qualification
			}
			if req.Specialization != "" {
				profileUpdates["specialization"] = req.Specialization
			}
			if req.HireDate != nil {
				profileUpdates["hire_date"] = req.HireDate
			}
			if len(profileUpdates) > 0 {
				if err := tx.Model(&models.TeacherProfile{}).
					Where("user_id = ?", user.ID).Updates(profileUpdates).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if txErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update user",
		})
	}

	middleware.LogActivity(c, "update", "users", user.ID, nil)
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    utils.ToUserShort(*user),
	})
}

// SetUserActive toggles a user's active flag. Deactivated users cannot
// authenticate; their rows and history stay intact.
func (uc *UserController) SetUserActive(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	user, err := findScopedUser(c, id)
	if user == nil {
		return err
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := database.DB.Model(user).Update("active", req.Active).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update user",
		})
	}

	middleware.LogActivity(c, "update", "users", user.ID, fiber.Map{"active": req.Active})
	return c.JSON(fiber.Map{"message": "User status updated successfully"})
}

type LinkParentRequest struct {
	ParentID uint `json:"parent_id" validate:"required"`
}

// LinkParent attaches a parent account to a student's profile
func (uc *UserController) LinkParent(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	student, err := findScopedUser(c, id)
	if student == nil {
		return err
	}
	if student.Role != models.RoleStudent {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "User is not a student",
		})
	}

	var req LinkParentRequest
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

	var parent models.User
	if err := database.DB.Where("id = ? AND role = ?", req.ParentID, models.RoleParent).First(&parent).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Parent not found",
		})
	}

	if err := database.DB.Model(&models.StudentProfile{}).
		Where("user_id = ?", student.ID).
		Update("parent_id", parent.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to link parent",
		})
	}

	middleware.LogActivity(c, "link_parent", "users", student.ID, fiber.Map{"parent_id": parent.ID})
	return c.JSON(fiber.Map{"message": "Parent linked successfully"})
}

// GetMyChildren lists the students linked to the calling parent
func (uc *UserController) GetMyChildren(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	if user.Role != models.RoleParent {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only parents can list their children",
		})
	}

	var profiles []models.StudentProfile
	if err := database.DB.
		Preload("User").
		Where("parent_id = ?", user.ID).
		Find(&profiles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch children",
		})
	}

	children := make([]models.User, 0, len(profiles))
	for _, p := range profiles {
		children = append(children, p.User)
	}
	return c.JSON(fiber.Map{"children": utils.ToUserShorts(children)})
}
