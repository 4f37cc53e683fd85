package controllers

import (
	"strconv"
	"strings"
	"time"

	"ilearnz_go/config"
	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/storage"
	"ilearnz_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type MaterialController struct{}

// findScopedMaterialParent resolves the class/subject pair a material
// operation targets and checks the school scope.
func findScopedMaterialParent(c *fiber.Ctx) (*models.Class, *models.ClassSubject, error) {
	classID, err := strconv.Atoi(c.Params("class_id"))
	if err != nil {
		return nil, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}
	subjectID, err := strconv.Atoi(c.Params("subject_id"))
	if err != nil {
		return nil, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subject ID",
		})
	}

	class, err := findScopedClass(c, classID)
	if class == nil {
		return nil, nil, err
	}

	var join models.ClassSubject
	if err := database.DB.Where("class_id = ? AND subject_id = ?", class.ID, subjectID).First(&join).Error; err != nil {
		return nil, nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Subject is not attached to this class",
		})
	}

	return class, &join, nil
}

// UploadMaterial stores a new reading material. Accepts either a multipart
// file or an external_url form value for link-only materials.
func (mc *MaterialController) UploadMaterial(c *fiber.Ctx) error {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	title := utils.SanitizeString(c.FormValue("title"))
	if title == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	materialType := c.FormValue("type")
	if !utils.IsValidMaterialType(materialType) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Invalid material type",
		})
	}

	material := models.ReadingMaterial{
		ClassID:     class.ID,
		SubjectID:   join.SubjectID,
		Title:       title,
		Description: c.FormValue("description"),
		Type:        materialType,
		Category:    c.FormValue("category"),
		Tags:        c.FormValue("tags"),
		Author:      c.FormValue("author"),
		Publisher:   c.FormValue("publisher"),
	}
	if year := c.FormValue("published_year"); year != "" {
		if y, err := strconv.Atoi(year); err == nil {
			material.PublishedYear = y
		}
	}

	file, fileErr := c.FormFile("file")
	externalURL := strings.TrimSpace(c.FormValue("external_url"))

	switch {
	case fileErr == nil && file != nil:
		allowed := strings.Split(config.AppConfig.AllowedExtensions, ",")
		if !utils.IsValidFileExtension(file.Filename, allowed) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Unsupported file type",
			})
		}
		if file.Size > config.AppConfig.MaxFileSize {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "File exceeds the maximum allowed size",
			})
		}

		storageService, err := storage.NewStorageService()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Storage service unavailable",
			})
		}

		key := storage.MaterialKey(class.ID, join.SubjectID, title, file.Filename, time.Now())
		size, err := storageService.UploadFile(file, key)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Failed to store file",
			})
		}
		material.FilePath = key
		material.FileType = storage.FileExtension(file.Filename)
		material.FileSize = size

	case externalURL != "":
		material.ExternalURL = externalURL

	default:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Either a file or an external_url is required",
		})
	}

	if err := database.DB.Create(&material).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save material",
		})
	}

	middleware.LogActivity(c, "upload", "materials", material.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Material uploaded successfully",
		"material": utils.ToMaterialDTO(material),
	})
}

// GetMaterials lists materials for a class/subject with optional filters
func (mc *MaterialController) GetMaterials(c *fiber.Ctx) error {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	query := database.DB.Model(&models.ReadingMaterial{}).
		Where("class_id = ? AND subject_id = ?", class.ID, join.SubjectID)
	if materialType := c.Query("type"); materialType != "" {
		query = query.Where("type = ?", materialType)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if q := c.Query("q"); q != "" {
		query = query.Where("title LIKE ? OR tags LIKE ?", "%"+q+"%", "%"+q+"%")
	}

	var materials []models.ReadingMaterial
	if err := query.Order("created_at desc").Find(&materials).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch materials",
		})
	}

	return c.JSON(fiber.Map{"materials": utils.ToMaterialDTOs(materials)})
}

// UpdateMaterial overwrites provided fields. When a new file is attached,
// the old blob is deleted only after the new one has been stored.
func (mc *MaterialController) UpdateMaterial(c *fiber.Ctx) error {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid material ID",
		})
	}

	var material models.ReadingMaterial
	if err := database.DB.
		Where("id = ? AND class_id = ? AND subject_id = ?", id, class.ID, join.SubjectID).
		First(&material).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Material not found",
		})
	}

	updates := map[string]interface{}{}
	if title := c.FormValue("title"); title != "" {
		updates["title"] = utils.SanitizeString(title)
	}
	if description := c.FormValue("description"); description != "" {
		updates["description"] = description
	}
	if materialType := c.FormValue("type"); materialType != "" {
		if !utils.IsValidMaterialType(materialType) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Invalid material type",
			})
		}
		updates["type"] = materialType
	}
	if category := c.FormValue("category"); category != "" {
		updates["category"] = category
	}
	if tags := c.FormValue("tags"); tags != "" {
		updates["tags"] = tags
	}
	if author := c.FormValue("author"); author != "" {
		updates["author"] = author
	}
	if publisher := c.FormValue("publisher"); publisher != "" {
		updates["publisher"] = publisher
	}
	if year := c.FormValue("published_year"); year != "" {
		if y, err := strconv.Atoi(year); err == nil {
			updates["published_year"] = y
		}
	}
	if externalURL := c.FormValue("external_url"); externalURL != "" {
		updates["external_url"] = strings.TrimSpace(externalURL)
	}

	if file, fileErr := c.FormFile("file"); fileErr == nil && file != nil {
		allowed := strings.Split(config.AppConfig.AllowedExtensions, ",")
		if !utils.IsValidFileExtension(file.Filename, allowed) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Unsupported file type",
			})
		}
		if file.Size > config.AppConfig.MaxFileSize {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "File exceeds the maximum allowed size",
			})
		}

		storageService, err := storage.NewStorageService()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Storage service unavailable",
			})
		}

		title := material.Title
		if t, ok := updates["title"].(string); ok {
			title = t
		}
		key := storage.MaterialKey(class.ID, join.SubjectID, title, file.Filename, time.Now())
		size, err := storageService.ReplaceFile(file, key, material.FilePath)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Failed to store file",
			})
		}
		updates["file_path"] = key
		updates["file_type"] = storage.FileExtension(file.Filename)
		updates["file_size"] = size
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&material).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update material",
			})
		}
	}

	middleware.LogActivity(c, "update", "materials", material.ID, nil)
	return c.JSON(fiber.Map{
		"message":  "Material updated successfully",
		"material": utils.ToMaterialDTO(material),
	})
}

// deleteMaterialBlob tries to drop a material's blob. On failure the path
// stays on the soft-deleted row so the maintenance sweep can retry.
func deleteMaterialBlob(material *models.ReadingMaterial) {
	if material.FilePath == "" {
		return
	}
	storageService, err := storage.NewStorageService()
	if err != nil {
		logrus.WithError(err).Warn("Storage service unavailable, leaving blob for sweep")
		return
	}
	if err := storageService.DeleteFile(material.FilePath); err != nil {
		logrus.WithError(err).WithField("key", material.FilePath).Warn("Blob delete failed, leaving for sweep")
		return
	}
	database.DB.Unscoped().Model(material).Update("file_path", "")
}

// DeleteMaterial removes a material and its blob
func (mc *MaterialController) DeleteMaterial(c *fiber.Ctx) error {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid material ID",
		})
	}

	var material models.ReadingMaterial
	if err := database.DB.
		Where("id = ? AND class_id = ? AND subject_id = ?", id, class.ID, join.SubjectID).
		First(&material).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Material not found",
		})
	}

	if err := database.DB.Delete(&material).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete material",
		})
	}
	deleteMaterialBlob(&material)

	middleware.LogActivity(c, "delete", "materials", material.ID, nil)
	return c.JSON(fiber.Map{"message": "Material deleted successfully"})
}

type BatchDeleteMaterialsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1"`
}

// BatchDeleteMaterials removes a set of materials scoped to the class and
// subject. Ids outside that scope are silently ignored.
func (mc *MaterialController) BatchDeleteMaterials(c *fiber.Ctx) error {
	class, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	var req BatchDeleteMaterialsRequest
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

	var materials []models.ReadingMaterial
	if err := database.DB.
		Where("id IN ? AND class_id = ? AND subject_id = ?", req.IDs, class.ID, join.SubjectID).
		Find(&materials).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch materials",
		})
	}

	deleted := 0
	for i := range materials {
		if err := database.DB.Delete(&materials[i]).Error; err != nil {
			logrus.WithError(err).Error("Failed to delete material in batch")
			continue
		}
		deleteMaterialBlob(&materials[i])
		deleted++
	}

	middleware.LogActivity(c, "batch_delete", "materials", 0, fiber.Map{"deleted": deleted})
	return c.JSON(fiber.Map{
		"message": "Materials deleted successfully",
		"deleted": deleted,
	})
}

// GetCategories returns the union of folder names declared on the subject
// and the distinct category values already used by its materials.
func (mc *MaterialController) GetCategories(c *fiber.Ctx) error {
	_, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	var declared []string
	if err := database.DB.Model(&models.SubjectCategory{}).
		Where("subject_id = ?", join.SubjectID).
		Order("created_at asc").
		Pluck("name", &declared).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch categories",
		})
	}

	var used []string
	if err := database.DB.Model(&models.ReadingMaterial{}).
		Where("subject_id = ? AND category <> ''", join.SubjectID).
		Distinct().
		Pluck("category", &used).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch categories",
		})
	}

	return c.JSON(fiber.Map{"categories": utils.MergeCategories(declared, used)})
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateCategory declares a new material folder for the subject. Appends
// only if the name is not already declared.
func (mc *MaterialController) CreateCategory(c *fiber.Ctx) error {
	_, join, err := findScopedMaterialParent(c)
	if join == nil {
		return err
	}

	var req CreateCategoryRequest
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

	name := utils.SanitizeString(req.Name)
	var existing models.SubjectCategory
	if err := database.DB.Where("subject_id = ? AND name = ?", join.SubjectID, name).First(&existing).Error; err != nil {
		category := models.SubjectCategory{SubjectID: join.SubjectID, Name: name}
		if err := database.DB.Create(&category).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create category",
			})
		}
		middleware.LogActivity(c, "create", "subject_categories", category.ID, nil)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Category available",
		"category": name,
	})
}
