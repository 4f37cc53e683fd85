package controllers

import (
	"strconv"

	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
)

type DistrictController struct{}

type CreateDistrictRequest struct {
	Name         string `json:"name" validate:"required"`
	Region       string `json:"region"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string `json:"contact_phone"`
}

type UpdateDistrictRequest struct {
	Name         *string `json:"name"`
	Region       *string `json:"region"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone"`
}

// CreateDistrict creates a new district with a generated unique code
func (dc *DistrictController) CreateDistrict(c *fiber.Ctx) error {
	var req CreateDistrictRequest
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

	district := models.District{
		Name:         req.Name,
		Region:       req.Region,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Code:         utils.GenerateCode("DST", 8),
	}

	if err := database.DB.Create(&district).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create district",
		})
	}

	middleware.LogActivity(c, "create", "districts", district.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "District created successfully",
		"district": district,
	})
}

// GetDistricts retrieves all districts with their school counts
func (dc *DistrictController) GetDistricts(c *fiber.Ctx) error {
	query := database.DB.Model(&models.District{})
	if q := c.Query("q"); q != "" {
		query = query.Where("name LIKE ? OR region LIKE ?", "%"+q+"%", "%"+q+"%")
	}

	var districts []models.District
	if err := query.Preload("Schools").Order("name asc").Find(&districts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch districts",
		})
	}

	return c.JSON(fiber.Map{"districts": districts})
}

// GetDistrict retrieves a specific district by ID
func (dc *DistrictController) GetDistrict(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid district ID",
		})
	}

	var district models.District
	if err := database.DB.Preload("Schools").First(&district, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "District not found",
		})
	}

	return c.JSON(fiber.Map{"district": district})
}

// UpdateDistrict updates district fields, preserving unspecified ones
func (dc *DistrictController) UpdateDistrict(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid district ID",
		})
	}

	var district models.District
	if err := database.DB.First(&district, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "District not found",
		})
	}

	var req UpdateDistrictRequest
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
	if req.Region != nil {
		updates["region"] = *req.Region
	}
	if req.ContactEmail != nil {
		updates["contact_email"] = *req.ContactEmail
	}
	if req.ContactPhone != nil {
		updates["contact_phone"] = *req.ContactPhone
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&district).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update district",
			})
		}
	}

	middleware.LogActivity(c, "update", "districts", district.ID, updates)
	return c.JSON(fiber.Map{
		"message":  "District updated successfully",
		"district": district,
	})
}

// DeleteDistrict removes a district. Blocked while it still owns schools.
func (dc *DistrictController) DeleteDistrict(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid district ID",
		})
	}

	var district models.District
	if err := database.DB.First(&district, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "District not found",
		})
	}

	var schoolCount int64
	database.DB.Model(&models.School{}).Where("district_id = ?", id).Count(&schoolCount)
	if schoolCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot delete a district that still owns schools",
		})
	}

	if err := database.DB.Delete(&district).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete district",
		})
	}

	middleware.LogActivity(c, "delete", "districts", district.ID, nil)
	return c.JSON(fiber.Map{"message": "District deleted successfully"})
}
