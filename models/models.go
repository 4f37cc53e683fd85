package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User roles. A user carries exactly one of these; role-specific data lives
// in the matching profile table (StudentProfile, TeacherProfile,
// SchoolAdminProfile) and a user never owns more than one profile type.
const (
	RoleAdmin       = "admin"
	RoleSchoolAdmin = "school_admin"
	RoleTeacher     = "teacher"
	RoleStudent     = "student"
	RoleParent      = "parent"
)

// District model
type District struct {
	BaseModel
	Name         string `json:"name" gorm:"size:255;not null"`
	Region       string `json:"region" gorm:"size:255"`
	ContactEmail string `json:"contact_email" gorm:"size:255"`
	ContactPhone string `json:"contact_phone" gorm:"size:20"`
	Code         string `json:"code" gorm:"size:50;not null;uniqueIndex"`

	// Relationships
	Schools []School `json:"schools,omitempty" gorm:"foreignKey:DistrictID"`
}

// School model
type School struct {
	BaseModel
	Name               string `json:"name" gorm:"size:255;not null"`
	DistrictID         uint   `json:"district_id" gorm:"not null"`
	Type               string `json:"type" gorm:"size:50;not null;default:'combined';type:enum('primary','secondary','combined')"` // primary, secondary, combined
	ConnectivityStatus string `json:"connectivity_status" gorm:"size:50;default:'offline';type:enum('online','hybrid','offline')"` // online, hybrid, offline
	Address            string `json:"address" gorm:"size:500"`
	Phone              string `json:"phone" gorm:"size:20"`
	Email              string `json:"email" gorm:"size:255"`
	Code               string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	StudentCount       int    `json:"student_count" gorm:"default:0"` // denormalized, refreshed by the maintenance sweep
	TeacherCount       int    `json:"teacher_count" gorm:"default:0"` // denormalized, refreshed by the maintenance sweep

	// Relationships
	District District `json:"district,omitempty" gorm:"foreignKey:DistrictID"`
	Classes  []Class  `json:"classes,omitempty" gorm:"foreignKey:SchoolID"`
	Books    []Book   `json:"books,omitempty" gorm:"foreignKey:SchoolID"`
	Users    []User   `json:"users,omitempty" gorm:"foreignKey:SchoolID"`
}

// User model
type User struct {
	BaseModel
	Name     string `json:"name" gorm:"size:255;not null"`
	Email    string `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Password string `json:"-" gorm:"size:255;not null"`
	Role     string `json:"role" gorm:"size:50;not null;default:'student';type:enum('admin','school_admin','teacher','student','parent')"`
	SchoolID *uint  `json:"school_id"` // nullable for unaffiliated users (super admins, parents)
	Active   bool   `json:"active" gorm:"default:true"`

	// Relationships
	School         *School              `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
	StudentProfile *StudentProfile      `json:"student_profile,omitempty" gorm:"foreignKey:UserID"`
	TeacherProfile *TeacherProfile      `json:"teacher_profile,omitempty" gorm:"foreignKey:UserID"`
	AdminProfiles  []SchoolAdminProfile `json:"admin_profiles,omitempty" gorm:"foreignKey:UserID"`
}

// StudentProfile model
type StudentProfile struct {
	BaseModel
	UserID      uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	GradeLevel  string     `json:"grade_level" gorm:"size:50"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" gorm:"size:20"`
	Address     string     `json:"address" gorm:"size:500"`
	ParentID    *uint      `json:"parent_id"` // parent User owning this student, nullable

	// Relationships
	User   User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Parent *User `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
}

// TeacherProfile model
type TeacherProfile struct {
	BaseModel
	UserID         uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	Qualification  string     `json:"qualification" gorm:"size:255"`
	Specialization string     `json:"specialization" gorm:"size:255"`
	HireDate       *time.Time `json:"hire_date"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// SchoolAdminProfile model
type SchoolAdminProfile struct {
	BaseModel
	UserID   uint   `json:"user_id" gorm:"not null"`
	SchoolID uint   `json:"school_id" gorm:"not null"`
	Position string `json:"position" gorm:"size:100"`

	// Relationships
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	School School `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
}

// Class model
type Class struct {
	BaseModel
	SchoolID     uint       `json:"school_id" gorm:"not null;index"`
	Name         string     `json:"name" gorm:"size:255;not null"`
	GradeLevel   string     `json:"grade_level" gorm:"size:50;not null"`
	Section      string     `json:"section" gorm:"size:50"`
	TeacherID    *uint      `json:"teacher_id"` // optional homeroom teacher
	MaxStudents  int        `json:"max_students" gorm:"not null;default:40"`
	AcademicYear string     `json:"academic_year" gorm:"size:20;not null"`
	StartDate    time.Time  `json:"start_date" gorm:"not null"`
	EndDate      *time.Time `json:"end_date"`
	Active       bool       `json:"active" gorm:"default:true"`

	// Relationships
	School      School         `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
	Teacher     *User          `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Enrollments []Enrollment   `json:"enrollments,omitempty" gorm:"foreignKey:ClassID"`
	Subjects    []ClassSubject `json:"subjects,omitempty" gorm:"foreignKey:ClassID"`
}

// Enrollment model. (class_id, student_id) is unique: a student cannot be
// enrolled twice in the same class, and active enrollments must not exceed
// the class capacity. Roster removals delete the row outright so the pair
// is free for re-enrollment; the unique index covers soft-deleted rows.
type Enrollment struct {
	BaseModel
	ClassID        uint      `json:"class_id" gorm:"not null;uniqueIndex:idx_class_student"`
	StudentID      uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_class_student"`
	EnrollmentDate time.Time `json:"enrollment_date" gorm:"not null"`
	Status         string    `json:"status" gorm:"size:50;not null;default:'active';type:enum('active','transferred','withdrawn')"` // active, transferred, withdrawn
	Notes          string    `json:"notes" gorm:"type:text"`

	// Relationships
	Class   Class `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Student User  `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// Subject model
type Subject struct {
	BaseModel
	Name        string `json:"name" gorm:"size:255;not null"`
	Code        string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Description string `json:"description" gorm:"type:text"`
	GradeLevel  string `json:"grade_level" gorm:"size:50"`
	Curriculum  string `json:"curriculum" gorm:"size:100"`

	// Relationships
	Classes    []ClassSubject    `json:"classes,omitempty" gorm:"foreignKey:SubjectID"`
	Books      []Book            `json:"books,omitempty" gorm:"many2many:subject_books;"`
	Categories []SubjectCategory `json:"categories,omitempty" gorm:"foreignKey:SubjectID"`
}

// ClassSubject joins a subject to a class with per-class teacher assignment
// and schedule. Detaching removes only this row; the subject survives.
type ClassSubject struct {
	BaseModel
	ClassID   uint   `json:"class_id" gorm:"not null;uniqueIndex:idx_class_subject"`
	SubjectID uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_class_subject"`
	TeacherID *uint  `json:"teacher_id"`
	Schedule  string `json:"schedule" gorm:"size:255"`
	Notes     string `json:"notes" gorm:"type:text"`

	// Relationships
	Class   Class   `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Subject Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Teacher *User   `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

// SubjectCategory is a material folder name owned by a subject.
type SubjectCategory struct {
	BaseModel
	SubjectID uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_subject_category"`
	Name      string `json:"name" gorm:"size:100;not null;uniqueIndex:idx_subject_category"`
}

// Book model
type Book struct {
	BaseModel
	SchoolID uint   `json:"school_id" gorm:"not null;index"`
	Title    string `json:"title" gorm:"size:255;not null"`
	Author   string `json:"author" gorm:"size:255"`
	ISBN     string `json:"isbn" gorm:"size:50"`
	Category string `json:"category" gorm:"size:100"`
	Copies   int    `json:"copies" gorm:"default:1"`

	// Relationships
	School     School          `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
	Borrowings []BookBorrowing `json:"borrowings,omitempty" gorm:"foreignKey:BookID"`
}

// BookBorrowing model. At most one row per book with returned_at IS NULL.
type BookBorrowing struct {
	BaseModel
	BookID     uint       `json:"book_id" gorm:"not null;index"`
	UserID     uint       `json:"user_id" gorm:"not null"`
	BorrowedAt time.Time  `json:"borrowed_at" gorm:"not null"`
	DueDate    time.Time  `json:"due_date" gorm:"not null"`
	ReturnedAt *time.Time `json:"returned_at"`

	// Relationships
	Book Book `json:"book,omitempty" gorm:"foreignKey:BookID"`
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Material types accepted by the library.
const (
	MaterialTypeDocument = "document"
	MaterialTypeLesson   = "lesson"
	MaterialTypeBook     = "book"
	MaterialTypeVideo    = "video"
	MaterialTypeAudio    = "audio"
	MaterialTypeImage    = "image"
	MaterialTypeArchive  = "archive"
)

// ReadingMaterial model. Either FilePath or ExternalURL is set: uploads
// carry a stored blob, link-only materials carry just the URL.
type ReadingMaterial struct {
	BaseModel
	ClassID       uint   `json:"class_id" gorm:"not null;index"`
	SubjectID     uint   `json:"subject_id" gorm:"not null;index"`
	Title         string `json:"title" gorm:"size:255;not null"`
	Description   string `json:"description" gorm:"type:text"`
	Type          string `json:"type" gorm:"size:50;not null;type:enum('document','lesson','book','video','audio','image','archive')"`
	Category      string `json:"category" gorm:"size:100"`
	Tags          string `json:"tags" gorm:"size:500"`
	FilePath      string `json:"file_path" gorm:"size:500"`
	FileType      string `json:"file_type" gorm:"size:50"`
	FileSize      int64  `json:"file_size"`
	ExternalURL   string `json:"external_url" gorm:"size:500"`
	Author        string `json:"author" gorm:"size:255"`
	Publisher     string `json:"publisher" gorm:"size:255"`
	PublishedYear int    `json:"published_year"`

	// Relationships
	Class   Class   `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Subject Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
}

// Assessment model. Status (scheduled/open/closed/late-window) is derived
// from the time fields, never stored.
type Assessment struct {
	BaseModel
	ClassID              uint      `json:"class_id" gorm:"not null;index"`
	SubjectID            uint      `json:"subject_id" gorm:"not null;index"`
	CreatedBy            uint      `json:"created_by" gorm:"not null"`
	Title                string    `json:"title" gorm:"size:255;not null"`
	Instructions         string    `json:"instructions" gorm:"type:text"`
	DueDate              time.Time `json:"due_date" gorm:"not null"`
	AvailableFrom        time.Time `json:"available_from" gorm:"not null"`
	MaxScore             int       `json:"max_score" gorm:"not null;default:100"`
	Published            bool      `json:"published" gorm:"default:false"`
	AllowLateSubmissions bool      `json:"allow_late_submissions" gorm:"default:false"`
	AttachmentPath       string    `json:"attachment_path" gorm:"size:500"`

	// Relationships
	Class       Class                  `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Subject     Subject                `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Creator     User                   `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Submissions []AssessmentSubmission `json:"submissions,omitempty" gorm:"foreignKey:AssessmentID"`
}

// AssessmentStatus is derived from an assessment's time fields.
type AssessmentStatus string

const (
	AssessmentScheduled  AssessmentStatus = "scheduled"   // now < available_from
	AssessmentOpen       AssessmentStatus = "open"        // available_from <= now <= due_date
	AssessmentClosed     AssessmentStatus = "closed"      // past due, late submissions disallowed
	AssessmentLateWindow AssessmentStatus = "late_window" // past due, late submissions allowed
)

// StatusAt derives the assessment state at the given instant.
func (a *Assessment) StatusAt(now time.Time) AssessmentStatus {
	if now.Before(a.AvailableFrom) {
		return AssessmentScheduled
	}
	if !now.After(a.DueDate) {
		return AssessmentOpen
	}
	if a.AllowLateSubmissions {
		return AssessmentLateWindow
	}
	return AssessmentClosed
}

// IsPastDueAt reports whether the due date has passed. Submissions stamped
// past-due carry is_late, evaluated at submission time.
func (a *Assessment) IsPastDueAt(now time.Time) bool {
	return now.After(a.DueDate)
}

// AcceptsSubmissionsAt reports whether a submission would be accepted. Only
// the open and late-window states accept; the late window has no hard end.
func (a *Assessment) AcceptsSubmissionsAt(now time.Time) bool {
	s := a.StatusAt(now)
	return s == AssessmentOpen || s == AssessmentLateWindow
}

// AssessmentSubmission model. (assessment_id, student_id) is unique;
// IsLate is stamped from the due date at submission time.
type AssessmentSubmission struct {
	BaseModel
	AssessmentID uint       `json:"assessment_id" gorm:"not null;uniqueIndex:idx_assessment_student"`
	StudentID    uint       `json:"student_id" gorm:"not null;uniqueIndex:idx_assessment_student"`
	FilePath     string     `json:"file_path" gorm:"size:500"`
	Comments     string     `json:"comments" gorm:"type:text"`
	SubmittedAt  time.Time  `json:"submitted_at" gorm:"not null"`
	IsLate       bool       `json:"is_late" gorm:"default:false"`
	Score        *int       `json:"score"`
	Feedback     string     `json:"feedback" gorm:"type:text"`
	GradedBy     *uint      `json:"graded_by"`
	GradedAt     *time.Time `json:"graded_at"`

	// Relationships
	Assessment Assessment `json:"assessment,omitempty" gorm:"foreignKey:AssessmentID"`
	Student    User       `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Grader     *User      `json:"grader,omitempty" gorm:"foreignKey:GradedBy"`
}

// Report kinds.
const (
	ReportSchoolPerformance    = "school_performance"
	ReportTeacherEffectiveness = "teacher_effectiveness"
	ReportResourceUtilization  = "resource_utilization"
	ReportStudentProgress      = "student_progress"
	ReportDistrictComparison   = "district_comparison"
)

// Report model. Immutable once generated; regeneration creates a new row.
// TargetID is the entity the report ran over (school, district or class);
// SchoolID is the owning school, nil for district-wide reports.
type Report struct {
	BaseModel
	Name        string    `json:"name" gorm:"size:255;not null"`
	Type        string    `json:"type" gorm:"size:50;not null;type:enum('school_performance','teacher_effectiveness','resource_utilization','student_progress','district_comparison')"`
	TargetID    uint      `json:"target_id" gorm:"not null;default:0"`
	SchoolID    *uint     `json:"school_id" gorm:"index"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	GeneratedBy uint      `json:"generated_by" gorm:"not null"`
	FilePath    string    `json:"file_path" gorm:"size:500"`
	FileSize    int64     `json:"file_size"`

	// Relationships
	Generator User `json:"generator,omitempty" gorm:"foreignKey:GeneratedBy"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
