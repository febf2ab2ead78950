package models

// SessionState is the per-visitor record of authentication status.
type SessionState struct {
	User            *User  `json:"user"`
	Token           string `json:"-"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
}

// Clone returns a copy that shares nothing with s.
func (s SessionState) Clone() SessionState {
	s.User = s.User.Clone()
	return s
}

// Role returns the role of the session user, or "" when there is none.
func (s SessionState) Role() UserRole {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Operation names a session store entry point.
type Operation string

const (
	OpRehydrate      Operation = "rehydrate"
	OpLogin          Operation = "login"
	OpRegister       Operation = "register"
	OpFetchProfile   Operation = "fetchProfile"
	OpUpdateProfile  Operation = "updateProfile"
	OpChangePassword Operation = "changePassword"
	OpForgotPassword Operation = "forgotPassword"
	OpResetPassword  Operation = "resetPassword"
	OpUploadAvatar   Operation = "uploadAvatar"
	OpLogout         Operation = "logout"
	OpSetCredentials Operation = "setCredentials"
	OpUpdateAvatar   Operation = "updateAvatar"
	OpClearError     Operation = "clearError"
)

// Phase is the observable stage of an operation.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// SessionEvent is published to store subscribers after every commit.
type SessionEvent struct {
	Operation  Operation    `json:"operation"`
	Phase      Phase        `json:"phase"`
	State      SessionState `json:"state"`
	Generation uint64       `json:"generation"`
}
