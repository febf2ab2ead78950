package models

import "encoding/json"

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" form:"password" binding:"required" validate:"required"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email     string `json:"email" form:"email" binding:"required,email" validate:"required,email"`
	Username  string `json:"username" form:"username" binding:"required,min=3" validate:"required,min=3"`
	Password  string `json:"password" form:"password" binding:"required,min=6" validate:"required,min=6"`
	FirstName string `json:"firstName" form:"firstName" binding:"required" validate:"required"`
	LastName  string `json:"lastName" form:"lastName" binding:"required" validate:"required"`
	TenantID  string `json:"tenantId,omitempty" form:"tenantId"`
}

// ProfileUpdateRequest is a partial profile edit. Nil fields are left alone.
type ProfileUpdateRequest struct {
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	Avatar    *string  `json:"avatar,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
}

// Apply merges the patch onto a copy of u.
func (p ProfileUpdateRequest) Apply(u *User) *User {
	merged := u.Clone()
	if merged == nil {
		return nil
	}
	if p.FirstName != nil {
		merged.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		merged.LastName = *p.LastName
	}
	if p.Avatar != nil {
		merged.Avatar = *p.Avatar
	}
	if p.Profile != nil {
		profile := *p.Profile
		merged.Profile = &profile
	}
	return merged
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required" validate:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6" validate:"required,min=6"`
}

// ForgotPasswordRequest payload for initiating the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" binding:"required,email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token    string `json:"token" form:"token" binding:"required" validate:"required"`
	Password string `json:"password" form:"password" binding:"required,min=6" validate:"required,min=6"`
}

// AuthData is the data member of login and register responses.
type AuthData struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// UserData wraps a user for endpoints answering {data: {user}}.
type UserData struct {
	User *User `json:"user"`
}

// APIResponse is the envelope the remote LMS API answers with.
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Decode unmarshals the data member into dest. An absent or null data member
// leaves dest untouched and reports false.
func (r *APIResponse) Decode(dest interface{}) (bool, error) {
	if r == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(r.Data, dest); err != nil {
		return false, err
	}
	return true, nil
}
