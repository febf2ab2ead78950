package models

import "time"

// UserRole represents one of the five authorization levels a user carries.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "superadmin"
	RoleAdmin       UserRole = "admin"
	RoleTenantAdmin UserRole = "tenant_admin"
	RoleInstructor  UserRole = "instructor"
	RoleStudent     UserRole = "student"
)

// Roles lists every valid role.
var Roles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleTenantAdmin, RoleInstructor, RoleStudent}

// Valid reports whether r is one of the enumerated roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTenantAdmin, RoleInstructor, RoleStudent:
		return true
	default:
		return false
	}
}

// Profile holds the optional public profile of a user.
type Profile struct {
	Bio      string `json:"bio,omitempty"`
	Website  string `json:"website,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
}

// User mirrors the user record returned by the remote LMS API.
type User struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenantId"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Role            UserRole   `json:"role"`
	Avatar          string     `json:"avatar,omitempty"`
	Profile         *Profile   `json:"profile,omitempty"`
	EnrolledCourses []string   `json:"enrolledCourses,omitempty"`
	CreatedCourses  []string   `json:"createdCourses,omitempty"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so callers can never mutate session state
// through a returned pointer.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Profile != nil {
		p := *u.Profile
		c.Profile = &p
	}
	if u.EnrolledCourses != nil {
		c.EnrolledCourses = append([]string(nil), u.EnrolledCourses...)
	}
	if u.CreatedCourses != nil {
		c.CreatedCourses = append([]string(nil), u.CreatedCourses...)
	}
	if u.CreatedAt != nil {
		t := *u.CreatedAt
		c.CreatedAt = &t
	}
	if u.UpdatedAt != nil {
		t := *u.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// UserFilter captures filtering criteria for the admin user listing.
type UserFilter struct {
	Page   int      `form:"page"`
	Limit  int      `form:"limit"`
	Search string   `form:"search"`
	Role   UserRole `form:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalUsers  int `json:"totalUsers"`
	Limit       int `json:"limit"`
}

// UserList is the payload of GET /users.
type UserList struct {
	Users      []User      `json:"users"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// CreateUserRequest creates a user from the admin screens.
type CreateUserRequest struct {
	Email     string   `json:"email" binding:"required,email"`
	Username  string   `json:"username" binding:"required,min=3"`
	Password  string   `json:"password" binding:"required,min=6"`
	FirstName string   `json:"firstName" binding:"required"`
	LastName  string   `json:"lastName" binding:"required"`
	Role      UserRole `json:"role,omitempty" binding:"omitempty,oneof=student instructor admin"`
}

// UpdateUserRequest patches a user from the admin screens.
type UpdateUserRequest struct {
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	Avatar    *string  `json:"avatar,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
}

// ChangeRoleRequest moves a user to another role.
type ChangeRoleRequest struct {
	Role UserRole `json:"role" binding:"required,oneof=superadmin admin tenant_admin instructor student"`
}
