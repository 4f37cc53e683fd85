package controllers

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"ilearnz_go/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with just the tables the
// roster, borrowing and submission transactions touch. The composite unique
// indexes match the model tags so index behaviour is part of the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	stmts := []string{
		`CREATE TABLE enrollments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at DATETIME, updated_at DATETIME, deleted_at DATETIME,
			class_id INTEGER NOT NULL, student_id INTEGER NOT NULL,
			enrollment_date DATETIME, status TEXT, notes TEXT)`,
		`CREATE UNIQUE INDEX idx_class_student ON enrollments(class_id, student_id)`,
		`CREATE TABLE books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at DATETIME, updated_at DATETIME, deleted_at DATETIME,
			school_id INTEGER NOT NULL, title TEXT, author TEXT,
			isbn TEXT, category TEXT, copies INTEGER)`,
		`CREATE TABLE book_borrowings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at DATETIME, updated_at DATETIME, deleted_at DATETIME,
			book_id INTEGER NOT NULL, user_id INTEGER NOT NULL,
			borrowed_at DATETIME, due_date DATETIME, returned_at DATETIME)`,
		`CREATE TABLE assessment_submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at DATETIME, updated_at DATETIME, deleted_at DATETIME,
			assessment_id INTEGER NOT NULL, student_id INTEGER NOT NULL,
			file_path TEXT, comments TEXT, submitted_at DATETIME,
			is_late BOOLEAN, score INTEGER, feedback TEXT,
			graded_by INTEGER, graded_at DATETIME)`,
		`CREATE UNIQUE INDEX idx_assessment_student ON assessment_submissions(assessment_id, student_id)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	return db
}

func TestReenrollAfterRemoval(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	first, err := enrollStudent(db, 1, 7, 30, "", now)
	if err != nil {
		t.Fatalf("initial enrollment failed: %v", err)
	}
	if _, err := enrollStudent(db, 1, 7, 30, "", now); !errors.Is(err, errDuplicateEnrollment) {
		t.Fatalf("expected duplicate enrollment error, got %v", err)
	}

	if err := removeEnrollment(db, first); err != nil {
		t.Fatalf("removal failed: %v", err)
	}

	// The (class_id, student_id) slot must be free again after removal.
	if _, err := enrollStudent(db, 1, 7, 30, "", now); err != nil {
		t.Fatalf("re-enrollment after removal failed: %v", err)
	}
}

func TestEnrollStudentCapacity(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	for studentID := uint(1); studentID <= 2; studentID++ {
		if _, err := enrollStudent(db, 1, studentID, 2, "", now); err != nil {
			t.Fatalf("enrollment %d failed: %v", studentID, err)
		}
	}
	if _, err := enrollStudent(db, 1, 3, 2, "", now); !errors.Is(err, errCapacityExceeded) {
		t.Fatalf("expected capacity error, got %v", err)
	}
}

func TestOpenBorrowingLimits(t *testing.T) {
	db := newTestDB(t)
	book := &models.Book{SchoolID: 1, Title: "Atlas of Zambia", Copies: 2}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("failed to create book: %v", err)
	}

	now := time.Now()
	due := now.AddDate(0, 0, defaultLoanDays)

	if _, err := openBorrowing(db, book, 1, now, due); err != nil {
		t.Fatalf("first borrowing failed: %v", err)
	}
	if _, err := openBorrowing(db, book, 1, now, due); !errors.Is(err, errAlreadyBorrowed) {
		t.Fatalf("expected already-borrowed error, got %v", err)
	}
	if _, err := openBorrowing(db, book, 2, now, due); err != nil {
		t.Fatalf("second copy failed: %v", err)
	}
	if _, err := openBorrowing(db, book, 3, now, due); !errors.Is(err, errCapacityExceeded) {
		t.Fatalf("expected all-copies-out error, got %v", err)
	}

	// Returning a copy frees a slot for the next borrower.
	if err := db.Model(&models.BookBorrowing{}).
		Where("book_id = ? AND user_id = ?", book.ID, 2).
		Update("returned_at", now).Error; err != nil {
		t.Fatalf("failed to return copy: %v", err)
	}
	if _, err := openBorrowing(db, book, 3, now, due); err != nil {
		t.Fatalf("borrowing after a return failed: %v", err)
	}
}

func TestHasSubmission(t *testing.T) {
	db := newTestDB(t)

	if hasSubmission(db, 5, 9) {
		t.Fatalf("expected no submission before creation")
	}

	sub := models.AssessmentSubmission{AssessmentID: 5, StudentID: 9, SubmittedAt: time.Now()}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}
	if !hasSubmission(db, 5, 9) {
		t.Fatalf("expected submission to be found")
	}

	dup := models.AssessmentSubmission{AssessmentID: 5, StudentID: 9, SubmittedAt: time.Now()}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique index to reject a second submission")
	}
}
