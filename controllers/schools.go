package controllers

import (
	"strconv"

	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
)

type SchoolController struct{}

type CreateSchoolRequest struct {
	Name               string `json:"name" validate:"required"`
	DistrictID         uint   `json:"district_id" validate:"required"`
	Type               string `json:"type" validate:"omitempty,oneof=primary secondary combined"`
	ConnectivityStatus string `json:"connectivity_status" validate:"omitempty,oneof=online hybrid offline"`
	Address            string `json:"address"`
	Phone              string `json:"phone"`
	Email              string `json:"email" validate:"omitempty,email"`
}

type UpdateSchoolRequest struct {
	Name               *string `json:"name"`
	DistrictID         *uint   `json:"district_id"`
	Type               *string `json:"type" validate:"omitempty,oneof=primary secondary combined"`
	ConnectivityStatus *string `json:"connectivity_status" validate:"omitempty,oneof=online hybrid offline"`
	Address            *string `json:"address"`
	Phone              *string `json:"phone"`
	Email              *string `json:"email" validate:"omitempty,email"`
}

// parsePagination extracts teacher-style page/per_page query values.
func parsePagination(c *fiber.Ctx) (page, perPage int) {
	page = 1
	perPage = 20
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			perPage = v
		}
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// CreateSchool creates a new school under a district
func (sc *SchoolController) CreateSchool(c *fiber.Ctx) error {
	var req CreateSchoolRequest
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

	var district models.District
	if err := database.DB.First(&district, req.DistrictID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "District not found",
		})
	}

	school := models.School{
		Name:               req.Name,
		DistrictID:         req.DistrictID,
		Type:               req.Type,
		ConnectivityStatus: req.ConnectivityStatus,
		Address:            req.Address,
		Phone:              req.Phone,
		Email:              req.Email,
		Code:               utils.GenerateCode("SCH", 8),
	}
	if school.Type == "" {
		school.Type = "combined"
	}
	if school.ConnectivityStatus == "" {
		school.ConnectivityStatus = "offline"
	}

	if err := database.DB.Create(&school).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create school",
		})
	}

	middleware.LogActivity(c, "create", "schools", school.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "School created successfully",
		"school":  school,
	})
}

// GetSchools retrieves schools with optional filters
func (sc *SchoolController) GetSchools(c *fiber.Ctx) error {
	query := database.DB.Model(&models.School{}).Preload("District")

	if districtID := c.Query("district_id"); districtID != "" {
		query = query.Where("district_id = ?", districtID)
	}
	if schoolType := c.Query("type"); schoolType != "" {
		query = query.Where("type = ?", schoolType)
	}
	if q := c.Query("q"); q != "" {
		query = query.Where("name LIKE ? OR code LIKE ?", "%"+q+"%", "%"+q+"%")
	}

	page, perPage := parsePagination(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count schools"})
	}

	var schools []models.School
	if err := query.Limit(perPage).Offset((page - 1) * perPage).Order("name asc").Find(&schools).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch schools",
		})
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return c.JSON(fiber.Map{
		"schools":     schools,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages,
	})
}

// GetSchool retrieves a specific school by ID
func (sc *SchoolController) GetSchool(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var school models.School
	if err := database.DB.Preload("District").Preload("Classes").First(&school, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "School not found",
		})
	}

	return c.JSON(fiber.Map{"school": school})
}

// UpdateSchool updates school fields, preserving unspecified ones
func (sc *SchoolController) UpdateSchool(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var school models.School
	if err := database.DB.First(&school, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "School not found",
		})
	}

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}
	if !scope.Allows(school.ID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "School does not match your scope",
		})
	}

	var req UpdateSchoolRequest
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
	if req.DistrictID != nil {
		var district models.District
		if err := database.DB.First(&district, *req.DistrictID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "District not found",
			})
		}
		updates["district_id"] = *req.DistrictID
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.ConnectivityStatus != nil {
		updates["connectivity_status"] = *req.ConnectivityStatus
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&school).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update school",
			})
		}
	}

	middleware.LogActivity(c, "update", "schools", school.ID, updates)
	return c.JSON(fiber.Map{
		"message": "School updated successfully",
		"school":  school,
	})
}

// DeleteSchool removes a school
func (sc *SchoolController) DeleteSchool(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}

	var school models.School
	if err := database.DB.First(&school, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "School not found",
		})
	}

	if err := database.DB.Delete(&school).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete school",
		})
	}

	middleware.LogActivity(c, "delete", "schools", school.ID, nil)
	return c.JSON(fiber.Map{"message": "School deleted successfully"})
}
