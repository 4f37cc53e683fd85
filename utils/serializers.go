package utils

import (
	"strings"
	"time"

	"ilearnz_go/models"
)

// Compact representations used across APIs
type UserShort struct {
	ID    uint   `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type SchoolShort struct {
	ID   uint   `json:"id"`
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}

func ToUserShort(u models.User) UserShort {
	return UserShort{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func ToUserShorts(users []models.User) []UserShort {
	out := make([]UserShort, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserShort(u))
	}
	return out
}

type ClassDTO struct {
	ID            uint        `json:"id"`
	Name          string      `json:"name"`
	GradeLevel    string      `json:"grade_level"`
	Section       string      `json:"section,omitempty"`
	MaxStudents   int         `json:"max_students"`
	AcademicYear  string      `json:"academic_year"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       *time.Time  `json:"end_date,omitempty"`
	Active        bool        `json:"active"`
	EnrolledCount int         `json:"enrolled_count"`
	School        SchoolShort `json:"school"`
	Teacher       *UserShort  `json:"teacher,omitempty"`
}

// ToClassDTO maps a models.Class to the compact DTO.
// Assumptions: caller has preloaded School, Teacher and Enrollments.
func ToClassDTO(cl models.Class) ClassDTO {
	dto := ClassDTO{
		ID:           cl.ID,
		Name:         cl.Name,
		GradeLevel:   cl.GradeLevel,
		Section:      cl.Section,
		MaxStudents:  cl.MaxStudents,
		AcademicYear: cl.AcademicYear,
		StartDate:    cl.StartDate,
		EndDate:      cl.EndDate,
		Active:       cl.Active,
		School:       SchoolShort{ID: cl.School.ID, Name: cl.School.Name, Code: cl.School.Code},
	}
	for _, e := range cl.Enrollments {
		if e.Status == "active" {
			dto.EnrolledCount++
		}
	}
	if cl.Teacher != nil {
		t := ToUserShort(*cl.Teacher)
		dto.Teacher = &t
	}
	return dto
}

func ToClassDTOs(classes []models.Class) []ClassDTO {
	out := make([]ClassDTO, 0, len(classes))
	for _, cl := range classes {
		out = append(out, ToClassDTO(cl))
	}
	return out
}

type EnrollmentDTO struct {
	ID             uint      `json:"id"`
	ClassID        uint      `json:"class_id"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	Student        UserShort `json:"student"`
}

func ToEnrollmentDTO(e models.Enrollment) EnrollmentDTO {
	return EnrollmentDTO{
		ID:             e.ID,
		ClassID:        e.ClassID,
		EnrollmentDate: e.EnrollmentDate,
		Status:         e.Status,
		Notes:          e.Notes,
		Student:        ToUserShort(e.Student),
	}
}

func ToEnrollmentDTOs(enrollments []models.Enrollment) []EnrollmentDTO {
	out := make([]EnrollmentDTO, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, ToEnrollmentDTO(e))
	}
	return out
}

type ClassSubjectDTO struct {
	ID          uint       `json:"id"`
	ClassID     uint       `json:"class_id"`
	SubjectID   uint       `json:"subject_id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	GradeLevel  string     `json:"grade_level,omitempty"`
	Schedule    string     `json:"schedule,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Teacher     *UserShort `json:"teacher,omitempty"`
	BookIDs     []uint     `json:"book_ids"`
}

// ToClassSubjectDTO maps a join row plus its subject to the binder DTO.
// Assumptions: caller has preloaded Subject, Subject.Books and Teacher.
func ToClassSubjectDTO(cs models.ClassSubject) ClassSubjectDTO {
	dto := ClassSubjectDTO{
		ID:          cs.ID,
		ClassID:     cs.ClassID,
		SubjectID:   cs.SubjectID,
		Name:        cs.Subject.Name,
		Code:        cs.Subject.Code,
		Description: cs.Subject.Description,
		GradeLevel:  cs.Subject.GradeLevel,
		Schedule:    cs.Schedule,
		Notes:       cs.Notes,
		BookIDs:     make([]uint, 0, len(cs.Subject.Books)),
	}
	for _, b := range cs.Subject.Books {
		dto.BookIDs = append(dto.BookIDs, b.ID)
	}
	if cs.Teacher != nil {
		t := ToUserShort(*cs.Teacher)
		dto.Teacher = &t
	}
	return dto
}

func ToClassSubjectDTOs(joins []models.ClassSubject) []ClassSubjectDTO {
	out := make([]ClassSubjectDTO, 0, len(joins))
	for _, cs := range joins {
		out = append(out, ToClassSubjectDTO(cs))
	}
	return out
}

type MaterialDTO struct {
	ID            uint     `json:"id"`
	ClassID       uint     `json:"class_id"`
	SubjectID     uint     `json:"subject_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Type          string   `json:"type"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags"`
	FilePath      string   `json:"file_path,omitempty"`
	FileType      string   `json:"file_type,omitempty"`
	FileSize      int64    `json:"file_size,omitempty"`
	ExternalURL   string   `json:"external_url,omitempty"`
	Author        string   `json:"author,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
}

func ToMaterialDTO(m models.ReadingMaterial) MaterialDTO {
	tags := []string{}
	for _, t := range strings.Split(m.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return MaterialDTO{
		ID:            m.ID,
		ClassID:       m.ClassID,
		SubjectID:     m.SubjectID,
		Title:         m.Title,
		Description:   m.Description,
		Type:          m.Type,
		Category:      m.Category,
		Tags:          tags,
		FilePath:      m.FilePath,
		FileType:      m.FileType,
		FileSize:      m.FileSize,
		ExternalURL:   m.ExternalURL,
		Author:        m.Author,
		Publisher:     m.Publisher,
		PublishedYear: m.PublishedYear,
	}
}

func ToMaterialDTOs(materials []models.ReadingMaterial) []MaterialDTO {
	out := make([]MaterialDTO, 0, len(materials))
	for _, m := range materials {
		out = append(out, ToMaterialDTO(m))
	}
	return out
}

type AssessmentDTO struct {
	ID                   uint      `json:"id"`
	ClassID              uint      `json:"class_id"`
	SubjectID            uint      `json:"subject_id"`
	Title                string    `json:"title"`
	Instructions         string    `json:"instructions,omitempty"`
	DueDate              time.Time `json:"due_date"`
	AvailableFrom        time.Time `json:"available_from"`
	MaxScore             int       `json:"max_score"`
	Published            bool      `json:"published"`
	AllowLateSubmissions bool      `json:"allow_late_submissions"`
	AttachmentPath       string    `json:"attachment_path,omitempty"`
	Status               string    `json:"status"`
	SubmissionCount      int       `json:"submission_count"`
	Creator              UserShort `json:"creator"`
}

// ToAssessmentDTO maps an assessment with its derived status at now.
// Assumptions: caller has preloaded Creator and Submissions.
func ToAssessmentDTO(a models.Assessment, now time.Time) AssessmentDTO {
	return AssessmentDTO{
		ID:                   a.ID,
		ClassID:              a.ClassID,
		SubjectID:            a.SubjectID,
		Title:                a.Title,
		Instructions:         a.Instructions,
		DueDate:              a.DueDate,
		AvailableFrom:        a.AvailableFrom,
		MaxScore:             a.MaxScore,
		Published:            a.Published,
		AllowLateSubmissions: a.AllowLateSubmissions,
		AttachmentPath:       a.AttachmentPath,
		Status:               string(a.StatusAt(now)),
		SubmissionCount:      len(a.Submissions),
		Creator:              ToUserShort(a.Creator),
	}
}

func ToAssessmentDTOs(assessments []models.Assessment, now time.Time) []AssessmentDTO {
	out := make([]AssessmentDTO, 0, len(assessments))
	for _, a := range assessments {
		out = append(out, ToAssessmentDTO(a, now))
	}
	return out
}

type SubmissionDTO struct {
	ID           uint       `json:"id"`
	AssessmentID uint       `json:"assessment_id"`
	FilePath     string     `json:"file_path,omitempty"`
	Comments     string     `json:"comments,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	IsLate       bool       `json:"is_late"`
	Score        *int       `json:"score,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	Student      UserShort  `json:"student"`
	Grader       *UserShort `json:"grader,omitempty"`
}

func ToSubmissionDTO(s models.AssessmentSubmission) SubmissionDTO {
	dto := SubmissionDTO{
		ID:           s.ID,
		AssessmentID: s.AssessmentID,
		FilePath:     s.FilePath,
		Comments:     s.Comments,
		SubmittedAt:  s.SubmittedAt,
		IsLate:       s.IsLate,
		Score:        s.Score,
		Feedback:     s.Feedback,
		GradedAt:     s.GradedAt,
		Student:      ToUserShort(s.Student),
	}
	if s.Grader != nil {
		g := ToUserShort(*s.Grader)
		dto.Grader = &g
	}
	return dto
}

func ToSubmissionDTOs(submissions []models.AssessmentSubmission) []SubmissionDTO {
	out := make([]SubmissionDTO, 0, len(submissions))
	for _, s := range submissions {
		out = append(out, ToSubmissionDTO(s))
	}
	return out
}

type ReportDTO struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	TargetID    uint      `json:"target_id"`
	SchoolID    *uint     `json:"school_id,omitempty"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
	Generator   UserShort `json:"generator"`
}

func ToReportDTO(r models.Report) ReportDTO {
	return ReportDTO{
		ID:          r.ID,
		Name:        r.Name,
		Type:        r.Type,
		TargetID:    r.TargetID,
		SchoolID:    r.SchoolID,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		FilePath:    r.FilePath,
		FileSize:    r.FileSize,
		CreatedAt:   r.CreatedAt,
		Generator:   ToUserShort(r.Generator),
	}
}

func ToReportDTOs(reports []models.Report) []ReportDTO {
	out := make([]ReportDTO, 0, len(reports))
	for _, r := range reports {
		out = append(out, ToReportDTO(r))
	}
	return out
}
