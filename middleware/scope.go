package middleware

import (
	"strconv"

	"ilearnz_go/models"

	"github.com/gofiber/fiber/v2"
)

// SchoolScope is the acting school for a request, resolved once and passed
// to every controller through Locals instead of re-deriving it per endpoint.
type SchoolScope struct {
	SchoolID   uint
	SuperAdmin bool
}

// Allows reports whether the scope may touch a resource owned by schoolID.
func (s SchoolScope) Allows(schoolID uint) bool {
	return s.SuperAdmin || s.SchoolID == schoolID
}

// SchoolScopeMiddleware resolves the acting school from the authenticated
// user. Super admins may act on any school and can pick one explicitly with
// ?school_id; everyone else is pinned to their own school.
func SchoolScopeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authenticated user",
			})
		}

		scope := SchoolScope{SuperAdmin: user.Role == models.RoleAdmin}
		if scope.SuperAdmin {
			if q := c.Query("school_id"); q != "" {
				if id, err := strconv.Atoi(q); err == nil && id > 0 {
					scope.SchoolID = uint(id)
				}
			}
		} else {
			if user.SchoolID == nil {
				// Parents may exist without a school; they keep a zero scope
				// that only passes endpoints with no school-owned resources.
				if user.Role != models.RoleParent {
					return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
						"error": "User is not assigned to a school",
					})
				}
			} else {
				scope.SchoolID = *user.SchoolID
			}
		}

		c.Locals("schoolScope", scope)
		return c.Next()
	}
}

// GetSchoolScope returns the resolved school scope for the request.
func GetSchoolScope(c *fiber.Ctx) (SchoolScope, error) {
	scope, ok := c.Locals("schoolScope").(SchoolScope)
	if !ok {
		return SchoolScope{}, fiber.NewError(fiber.StatusForbidden, "School scope not resolved")
	}
	return scope, nil
}
