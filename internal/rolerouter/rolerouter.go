// Package rolerouter maps a role to its dashboard home. It is the only place
// that mapping lives; the route guard, the post-login redirect and the
// landing page all ask it.
package rolerouter

import "github.com/noah-isme/nexlearn-dashboard/internal/models"

// Dashboard routes.
const (
	Login             = "/login"
	Dashboard         = "/dashboard"
	AdminHome         = "/dashboard/admin"
	AdminUsers        = "/dashboard/admin/users"
	InstructorHome    = "/dashboard/courses"
	InstructorCourses = "/dashboard/instructor/courses"
	StudentHome       = "/dashboard/my-courses"
	Profile           = "/dashboard/profile"
)

// HomeFor returns the dashboard home of role. Unknown roles land on the
// student home.
func HomeFor(role models.UserRole) string {
	switch {
	case IsAdmin(role):
		return AdminHome
	case role == models.RoleInstructor:
		return InstructorHome
	default:
		return StudentHome
	}
}

// IsAdmin reports whether role belongs to the admin group.
func IsAdmin(role models.UserRole) bool {
	switch role {
	case models.RoleAdmin, models.RoleTenantAdmin, models.RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// AdminRoles may open the admin dashboard.
var AdminRoles = []models.UserRole{models.RoleAdmin, models.RoleTenantAdmin, models.RoleSuperAdmin}

// UserManagerRoles may manage users.
var UserManagerRoles = []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}

// CourseAuthorRoles may open instructor course screens.
var CourseAuthorRoles = []models.UserRole{models.RoleInstructor, models.RoleAdmin, models.RoleTenantAdmin, models.RoleSuperAdmin}
