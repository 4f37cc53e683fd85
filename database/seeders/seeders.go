package seeders

import (
	"log"
	"os"

	"ilearnz_go/database"
	"ilearnz_go/models"
	"ilearnz_go/utils"
)

// Seed populates the database with the bootstrap super admin and a demo
// district, school and subject set. Safe to run repeatedly.
func Seed() {
	seedSuperAdmin()
	seedDemoDistrict()
	log.Println("Database seeding completed")
}

func seedSuperAdmin() {
	var count int64
	database.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "changeme123"
		log.Println("ADMIN_PASSWORD not set, using default seed password")
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		log.Printf("Failed to hash admin password: %v", err)
		return
	}

	admin := models.User{
		Name:     "System Administrator",
		Email:    "admin@ilearnz.local",
		Password: hashed,
		Role:     models.RoleAdmin,
		Active:   true,
	}
	if err := database.DB.Create(&admin).Error; err != nil {
		log.Printf("Failed to seed super admin: %v", err)
		return
	}
	log.Println("Super admin seeded")
}

func seedDemoDistrict() {
	var count int64
	database.DB.Model(&models.District{}).Count(&count)
	if count > 0 {
		return
	}

	district := models.District{
		Name:   "Central District",
		Region: "Central Province",
		Code:   utils.GenerateCode("DST", 8),
	}
	if err := database.DB.Create(&district).Error; err != nil {
		log.Printf("Failed to seed district: %v", err)
		return
	}

	school := models.School{
		Name:               "Central Demo School",
		DistrictID:         district.ID,
		Type:               "combined",
		ConnectivityStatus: "online",
		Code:               utils.GenerateCode("SCH", 8),
	}
	if err := database.DB.Create(&school).Error; err != nil {
		log.Printf("Failed to seed school: %v", err)
		return
	}

	subjects := []models.Subject{
		{Name: "Mathematics", Code: utils.GenerateCode("SUB", 6), GradeLevel: "all", Curriculum: "national"},
		{Name: "English", Code: utils.GenerateCode("SUB", 6), GradeLevel: "all", Curriculum: "national"},
		{Name: "Science", Code: utils.GenerateCode("SUB", 6), GradeLevel: "all", Curriculum: "national"},
		{Name: "Social Studies", Code: utils.GenerateCode("SUB", 6), GradeLevel: "all", Curriculum: "national"},
	}
	for i := range subjects {
		if err := database.DB.Create(&subjects[i]).Error; err != nil {
			log.Printf("Failed to seed subject %s: %v", subjects[i].Name, err)
		}
	}

	log.Println("Demo district, school and subjects seeded")
}
