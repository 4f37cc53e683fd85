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

const defaultLoanDays = 14

type BookController struct{}

type CreateBookRequest struct {
	SchoolID uint   `json:"school_id"`
	Title    string `json:"title" validate:"required,min=1,max=255"`
	Author   string `json:"author" validate:"max=255"`
	ISBN     string `json:"isbn" validate:"max=50"`
	Category string `json:"category" validate:"max=100"`
	Copies   int    `json:"copies" validate:"min=0"`
}

// copiesExhausted reports whether another loan would push a book past its
// copy count.
func copiesExhausted(openCount int64, copies int) bool {
	return openCount >= int64(copies)
}

// openBorrowing inserts a loan after checking that the borrower has no open
// borrowing of this book and that a copy is still in. Runs inside the
// caller's transaction.
func openBorrowing(tx *gorm.DB, book *models.Book, borrowerID uint, now, dueDate time.Time) (*models.BookBorrowing, error) {
	var existing models.BookBorrowing
	if err := tx.Where("book_id = ? AND user_id = ? AND returned_at IS NULL",
		book.ID, borrowerID).First(&existing).Error; err == nil {
		return nil, errAlreadyBorrowed
	}

	var out int64
	if err := tx.Model(&models.BookBorrowing{}).
		Where("book_id = ? AND returned_at IS NULL", book.ID).
		Count(&out).Error; err != nil {
		return nil, err
	}
	if copiesExhausted(out, book.Copies) {
		return nil, errCapacityExceeded
	}

	borrowing := models.BookBorrowing{
		BookID:     book.ID,
		UserID:     borrowerID,
		BorrowedAt: now,
		DueDate:    dueDate,
	}
	if err := tx.Create(&borrowing).Error; err != nil {
		return nil, err
	}
	return &borrowing, nil
}

// findScopedBook loads a book and checks it against the request's school scope.
func findScopedBook(c *fiber.Ctx, id int) (*models.Book, error) {
	var book models.Book
	if err := database.DB.First(&book, id).Error; err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Book not found",
		})
	}

	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(book.SchoolID) {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Book belongs to another school",
		})
	}
	return &book, nil
}

// CreateBook adds a book to a school's catalogue
func (bc *BookController) CreateBook(c *fiber.Ctx) error {
	var req CreateBookRequest
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
	schoolID := req.SchoolID
	if !scope.SuperAdmin {
		schoolID = scope.SchoolID
	}
	if schoolID == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "school_id is required",
		})
	}

	copies := req.Copies
	if copies == 0 {
		copies = 1
	}

	book := models.Book{
		SchoolID: schoolID,
		Title:    utils.SanitizeString(req.Title),
		Author:   req.Author,
		ISBN:     req.ISBN,
		Category: req.Category,
		Copies:   copies,
	}
	if err := database.DB.Create(&book).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create book",
		})
	}

	middleware.LogActivity(c, "create", "books", book.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Book created successfully",
		"book":    book,
	})
}

// GetBooks lists books in the caller's school, with optional filters
func (bc *BookController) GetBooks(c *fiber.Ctx) error {
	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}

	query := database.DB.Model(&models.Book{})
	if !scope.SuperAdmin {
		query = query.Where("school_id = ?", scope.SchoolID)
	} else if schoolID := c.Query("school_id"); schoolID != "" {
		query = query.Where("school_id = ?", schoolID)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", like, like, like)
	}

	page, perPage := parsePagination(c)
	var total int64
	query.Count(&total)

	var books []models.Book
	if err := query.Order("title asc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&books).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch books",
		})
	}

	return c.JSON(fiber.Map{
		"books": books,
		"pagination": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetBook retrieves a single book with its open borrowings
func (bc *BookController) GetBook(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid book ID",
		})
	}

	book, err := findScopedBook(c, id)
	if book == nil {
		return err
	}

	if err := database.DB.
		Preload("Borrowings", "returned_at IS NULL").
		Preload("Borrowings.User").
		First(book, book.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load book details",
		})
	}

	return c.JSON(fiber.Map{"book": book})
}

// UpdateBook overwrites provided fields
func (bc *BookController) UpdateBook(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid book ID",
		})
	}

	book, err := findScopedBook(c, id)
	if book == nil {
		return err
	}

	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	for _, field := range []string{"title", "author", "isbn", "category", "copies"} {
		if v, ok := req[field]; ok {
			updates[field] = v
		}
	}
	if len(updates) > 0 {
		if err := database.DB.Model(book).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update book",
			})
		}
	}

	middleware.LogActivity(c, "update", "books", book.ID, nil)
	return c.JSON(fiber.Map{
		"message": "Book updated successfully",
		"book":    book,
	})
}

// DeleteBook removes a book. Refused while copies are still out.
func (bc *BookController) DeleteBook(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid book ID",
		})
	}

	book, err := findScopedBook(c, id)
	if book == nil {
		return err
	}

	var open int64
	database.DB.Model(&models.BookBorrowing{}).
		Where("book_id = ? AND returned_at IS NULL", book.ID).
		Count(&open)
	if open > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Book has unreturned copies",
		})
	}

	if err := database.DB.Delete(book).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete book",
		})
	}

	middleware.LogActivity(c, "delete", "books", book.ID, nil)
	return c.JSON(fiber.Map{"message": "Book deleted successfully"})
}

type BorrowBookRequest struct {
	UserID  uint   `json:"user_id"`
	DueDate string `json:"due_date"`
}

// BorrowBook opens a borrowing for a user. A user may hold at most one
// open borrowing per book, and a book cannot go out past its copy count.
func (bc *BookController) BorrowBook(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid book ID",
		})
	}

	book, err := findScopedBook(c, id)
	if book == nil {
		return err
	}

	var req BorrowBookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	borrowerID := user.ID
	if req.UserID != 0 && user.Role != models.RoleStudent {
		borrowerID = req.UserID
	}

	now := time.Now()
	dueDate := now.AddDate(0, 0, defaultLoanDays)
	if req.DueDate != "" {
		t, err := parseAssessmentTime(req.DueDate)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "Invalid due_date",
			})
		}
		dueDate = t
	}

	var borrowing models.BookBorrowing
	txErr := database.DB.Transaction(func(tx *gorm.DB) error {
		b, err := openBorrowing(tx, book, borrowerID, now, dueDate)
		if err != nil {
			return err
		}
		borrowing = *b
		return nil
	})

	if errors.Is(txErr, errAlreadyBorrowed) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "User already has this book out",
		})
	}
	if errors.Is(txErr, errCapacityExceeded) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "All copies of this book are out",
		})
	}
	if txErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to borrow book",
		})
	}

	middleware.LogActivity(c, "borrow", "books", book.ID, fiber.Map{"user_id": borrowerID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Book borrowed successfully",
		"borrowing": borrowing,
	})
}

// ReturnBook closes the open borrowing for a user and book
func (bc *BookController) ReturnBook(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid book ID",
		})
	}

	book, err := findScopedBook(c, id)
	if book == nil {
		return err
	}

	var req BorrowBookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	borrowerID := user.ID
	if req.UserID != 0 && user.Role != models.RoleStudent {
		borrowerID = req.UserID
	}

	var borrowing models.BookBorrowing
	if err := database.DB.Where("book_id = ? AND user_id = ? AND returned_at IS NULL",
		book.ID, borrowerID).First(&borrowing).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No open borrowing for this book",
		})
	}

	now := time.Now()
	if err := database.DB.Model(&borrowing).Update("returned_at", now).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to return book",
		})
	}

	middleware.LogActivity(c, "return", "books", book.ID, fiber.Map{"user_id": borrowerID})
	return c.JSON(fiber.Map{
		"message":   "Book returned successfully",
		"borrowing": borrowing,
	})
}

// GetBorrowings lists borrowings in the caller's school
func (bc *BookController) GetBorrowings(c *fiber.Ctx) error {
	scope, err := middleware.GetSchoolScope(c)
	if err != nil {
		return err
	}

	query := database.DB.Model(&models.BookBorrowing{}).
		Joins("JOIN books ON books.id = book_borrowings.book_id").
		Preload("Book").
		Preload("User")
	if !scope.SuperAdmin {
		query = query.Where("books.school_id = ?", scope.SchoolID)
	}
	if c.Query("open") == "true" {
		query = query.Where("book_borrowings.returned_at IS NULL")
	}
	if c.Query("overdue") == "true" {
		query = query.Where("book_borrowings.returned_at IS NULL AND book_borrowings.due_date < ?", time.Now())
	}
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("book_borrowings.user_id = ?", userID)
	}

	page, perPage := parsePagination(c)
	var total int64
	query.Count(&total)

	var borrowings []models.BookBorrowing
	if err := query.Order("book_borrowings.borrowed_at desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&borrowings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch borrowings",
		})
	}

	return c.JSON(fiber.Map{
		"borrowings": borrowings,
		"pagination": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}
