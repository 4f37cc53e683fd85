package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateCode produces a unique reference code like "SCH-3FA85F64".
// The prefix identifies the entity kind (DST, SCH, SUB).
func GenerateCode(prefix string, length int) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	if length > len(id) {
		length = len(id)
	}
	return fmt.Sprintf("%s-%s", strings.ToUpper(prefix), id[:length])
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	validRoles := []string{"admin", "school_admin", "teacher", "student", "parent"}
	for _, validRole := range validRoles {
		if role == validRole {
			return true
		}
	}
	return false
}

// IsValidMaterialType checks if a reading material type is valid
func IsValidMaterialType(t string) bool {
	validTypes := []string{"document", "lesson", "book", "video", "audio", "image", "archive"}
	for _, validType := range validTypes {
		if t == validType {
			return true
		}
	}
	return false
}

// IsValidReportType checks if a report kind is valid
func IsValidReportType(t string) bool {
	validTypes := []string{
		"school_performance",
		"teacher_effectiveness",
		"resource_utilization",
		"student_progress",
		"district_comparison",
	}
	for _, validType := range validTypes {
		if t == validType {
			return true
		}
	}
	return false
}

// IsValidFileExtension checks if file extension is allowed
func IsValidFileExtension(filename string, allowedExtensions []string) bool {
	if filename == "" {
		return false
	}

	parts := strings.Split(filename, ".")
	if len(parts) < 2 {
		return false
	}

	ext := strings.ToLower(parts[len(parts)-1])

	for _, allowedExt := range allowedExtensions {
		if ext == strings.ToLower(allowedExt) {
			return true
		}
	}
	return false
}

// MergeCategories unions folder names declared on the subject with the
// distinct category values already used by materials, preserving order of
// first appearance and dropping duplicates and blanks.
func MergeCategories(declared, used []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(declared)+len(used))
	for _, list := range [][]string{declared, used} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// SanitizeString removes dangerous characters from string
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
