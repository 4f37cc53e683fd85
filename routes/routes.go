package routes

import (
	"ilearnz_go/controllers"
	"ilearnz_go/middleware"
	"ilearnz_go/services"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, maintenance *services.MaintenanceService) {
	authController := &controllers.AuthController{}
	healthController := &controllers.HealthController{}
	districtController := &controllers.DistrictController{}
	schoolController := &controllers.SchoolController{}
	userController := &controllers.UserController{}
	classController := &controllers.ClassController{}
	subjectController := &controllers.SubjectController{}
	materialController := &controllers.MaterialController{}
	assessmentController := &controllers.AssessmentController{}
	bookController := &controllers.BookController{}
	reportController := &controllers.ReportController{}

	app.Get("/health", healthController.GetHealth)

	api := app.Group("/api/v1")

	// Public routes
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)

	// Protected routes
	protected := api.Group("", middleware.JWTMiddleware(), middleware.SchoolScopeMiddleware(), middleware.LogActivityMiddleware())

	protected.Get("/profile", authController.GetProfile)
	protected.Post("/auth/change-password", authController.ChangePassword)
	protected.Post("/auth/register", middleware.RequireSchoolAdminOrAbove(), authController.Register)

	// Districts (super admin only for writes)
	districts := protected.Group("/districts")
	districts.Get("/", districtController.GetDistricts)
	districts.Get("/:id", districtController.GetDistrict)
	districts.Post("/", middleware.RequireAdmin(), districtController.CreateDistrict)
	districts.Put("/:id", middleware.RequireAdmin(), districtController.UpdateDistrict)
	districts.Delete("/:id", middleware.RequireAdmin(), districtController.DeleteDistrict)

	// Schools
	schools := protected.Group("/schools")
	schools.Get("/", schoolController.GetSchools)
	schools.Get("/:id", schoolController.GetSchool)
	schools.Post("/", middleware.RequireAdmin(), schoolController.CreateSchool)
	schools.Put("/:id", middleware.RequireSchoolAdminOrAbove(), schoolController.UpdateSchool)
	schools.Delete("/:id", middleware.RequireAdmin(), schoolController.DeleteSchool)

	// Users
	users := protected.Group("/users")
	users.Get("/", middleware.RequireTeacherOrAbove(), userController.GetUsers)
	users.Get("/children", userController.GetMyChildren)
	users.Get("/:id", middleware.RequireTeacherOrAbove(), userController.GetUser)
	users.Put("/:id", middleware.RequireSchoolAdminOrAbove(), userController.UpdateUser)
	users.Patch("/:id/active", middleware.RequireSchoolAdminOrAbove(), userController.SetUserActive)
	users.Post("/:id/parent", middleware.RequireSchoolAdminOrAbove(), userController.LinkParent)

	// Classes and enrollment
	classes := protected.Group("/classes")
	classes.Get("/", classController.GetClasses)
	classes.Get("/:id", classController.GetClass)
	classes.Post("/", middleware.RequireSchoolAdminOrAbove(), classController.CreateClass)
	classes.Put("/:id", middleware.RequireSchoolAdminOrAbove(), classController.UpdateClass)
	classes.Delete("/:id", middleware.RequireSchoolAdminOrAbove(), classController.DeleteClass)
	classes.Get("/:id/students", middleware.RequireTeacherOrAbove(), classController.GetEnrolledStudents)
	classes.Get("/:id/students/available", middleware.RequireSchoolAdminOrAbove(), classController.GetAvailableStudents)
	classes.Post("/:id/students", middleware.RequireSchoolAdminOrAbove(), classController.AddStudent)
	classes.Post("/:id/students/bulk", middleware.RequireSchoolAdminOrAbove(), classController.BulkAddStudents)
	classes.Delete("/:id/students/:student_id", middleware.RequireSchoolAdminOrAbove(), classController.RemoveStudent)

	// Subjects per class
	protected.Get("/classes/:class_id/subjects", subjectController.GetClassSubjects)
	protected.Post("/classes/:class_id/subjects", middleware.RequireSchoolAdminOrAbove(), subjectController.AttachSubject)
	protected.Put("/classes/:class_id/subjects/:subject_id", middleware.RequireSchoolAdminOrAbove(), subjectController.UpdateSubject)
	protected.Delete("/classes/:class_id/subjects/:subject_id", middleware.RequireSchoolAdminOrAbove(), subjectController.DetachSubject)
	protected.Get("/subjects", subjectController.GetSubjects)

	// Materials per class subject
	materials := protected.Group("/classes/:class_id/subjects/:subject_id/materials")
	materials.Get("/", materialController.GetMaterials)
	materials.Post("/", middleware.RequireTeacherOrAbove(), materialController.UploadMaterial)
	materials.Put("/:id", middleware.RequireTeacherOrAbove(), materialController.UpdateMaterial)
	materials.Delete("/batch", middleware.RequireTeacherOrAbove(), materialController.BatchDeleteMaterials)
	materials.Delete("/:id", middleware.RequireTeacherOrAbove(), materialController.DeleteMaterial)

	// Material categories per class subject
	protected.Get("/classes/:class_id/subjects/:subject_id/categories", materialController.GetCategories)
	protected.Post("/classes/:class_id/subjects/:subject_id/categories", middleware.RequireTeacherOrAbove(), materialController.CreateCategory)

	// Assessments per class subject
	assessments := protected.Group("/classes/:class_id/subjects/:subject_id/assessments")
	assessments.Get("/", assessmentController.GetAssessments)
	assessments.Post("/", middleware.RequireTeacherOrAbove(), assessmentController.CreateAssessment)
	assessments.Get("/:id", assessmentController.GetAssessment)
	assessments.Put("/:id", middleware.RequireTeacherOrAbove(), assessmentController.UpdateAssessment)
	assessments.Delete("/:id", middleware.RequireTeacherOrAbove(), assessmentController.DeleteAssessment)
	assessments.Post("/:id/submit", middleware.RequireRole("student"), assessmentController.SubmitAssessment)
	assessments.Get("/:id/submissions", middleware.RequireTeacherOrAbove(), assessmentController.GetSubmissions)
	assessments.Post("/:id/submissions/:submission_id/grade", middleware.RequireTeacherOrAbove(), assessmentController.GradeSubmission)

	// Library
	books := protected.Group("/books")
	books.Get("/", bookController.GetBooks)
	books.Get("/:id", bookController.GetBook)
	books.Post("/", middleware.RequireSchoolAdminOrAbove(), bookController.CreateBook)
	books.Put("/:id", middleware.RequireSchoolAdminOrAbove(), bookController.UpdateBook)
	books.Delete("/:id", middleware.RequireSchoolAdminOrAbove(), bookController.DeleteBook)
	books.Post("/:id/borrow", bookController.BorrowBook)
	books.Post("/:id/return", bookController.ReturnBook)
	protected.Get("/borrowings", middleware.RequireTeacherOrAbove(), bookController.GetBorrowings)

	// Reports
	reports := protected.Group("/reports", middleware.RequireSchoolAdminOrAbove())
	reports.Get("/", reportController.GetReports)
	reports.Post("/", reportController.GenerateReport)
	reports.Get("/:id", reportController.GetReport)
	reports.Get("/:id/download", reportController.DownloadReport)
	reports.Get("/:id/export", reportController.ExportReportExcel)
	protected.Get("/dashboard", reportController.GetDashboardStats)

	// Maintenance trigger for operators
	if maintenance != nil {
		protected.Post("/admin/maintenance/run", middleware.RequireAdmin(), func(c *fiber.Ctx) error {
			go maintenance.RunNightly()
			return c.JSON(fiber.Map{"message": "Maintenance sweep started"})
		})
	}
}
