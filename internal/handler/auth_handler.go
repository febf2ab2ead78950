package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/rolerouter"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
	"github.com/noah-isme/nexlearn-dashboard/pkg/response"
)

// AuthHandler wires the auth endpoints to the visitor's session store.
type AuthHandler struct {
	registry *session.Registry
	logger   *zap.Logger
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(registry *session.Registry, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{registry: registry, logger: logger}
}

// SessionResponse is the public view of a session.
type SessionResponse struct {
	Session models.SessionState `json:"session"`
	Message string              `json:"message,omitempty"`
}

// MessageResponse carries a confirmation from the remote API.
type MessageResponse struct {
	Message string `json:"message"`
}

// AvatarPatch replaces the avatar URI without uploading a file.
type AvatarPatch struct {
	Avatar string `json:"avatar" binding:"required"`
}

// CredentialsRequest installs a session obtained outside the login flow.
type CredentialsRequest struct {
	User  *models.User `json:"user" binding:"required"`
	Token string       `json:"token" binding:"required"`
}

// Login godoc
// @Summary Sign in
// @Description Authenticate against the LMS API and store the session for this visitor
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Success 303 "Redirect to the role home"
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	tenant := c.GetHeader(gateway.TenantHeader)

	state, err := store.Login(gateway.WithTenant(c.Request.Context(), tenant), req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	h.rememberTenant(c, tenant)

	response.Navigate(c, rolerouter.HomeFor(state.Role()), SessionResponse{Session: state})
}

// Register godoc
// @Summary Create account
// @Description Register with the LMS API and sign the new account in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Register payload"
// @Success 200 {object} response.Envelope
// @Success 303 "Redirect to the role home"
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid register payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	tenant := req.TenantID
	if tenant == "" {
		tenant = c.GetHeader(gateway.TenantHeader)
	}

	state, err := store.Register(gateway.WithTenant(c.Request.Context(), tenant), req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	h.rememberTenant(c, tenant)

	response.Navigate(c, rolerouter.HomeFor(state.Role()), SessionResponse{Session: state})
}

// Logout godoc
// @Summary Sign out
// @Description Clear the visitor's session and its persisted copy
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Success 303 "Redirect to login"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	state := store.Logout(c.Request.Context())
	response.Navigate(c, rolerouter.Login, SessionResponse{Session: state})
}

// Session godoc
// @Summary Current session
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	response.JSON(c, http.StatusOK, SessionResponse{Session: store.State()}, nil)
}

// SetCredentials godoc
// @Summary Install credentials
// @Description Store a user and token obtained outside the login flow. Not exposed in production.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body CredentialsRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/session [post]
func (h *AuthHandler) SetCredentials(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid credentials payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	state := store.SetCredentials(c.Request.Context(), req.User, req.Token)
	response.Navigate(c, rolerouter.HomeFor(state.Role()), SessionResponse{Session: state})
}

// ClearError godoc
// @Summary Dismiss the session error
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/session/error [delete]
func (h *AuthHandler) ClearError(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	response.JSON(c, http.StatusOK, SessionResponse{Session: store.ClearError(c.Request.Context())}, nil)
}

// Profile godoc
// @Summary Refresh profile
// @Description Re-fetch the signed-in user from the LMS API
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	state, err := store.FetchProfile(c.Request.Context())
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, SessionResponse{Session: state}, nil)
}

// UpdateProfile godoc
// @Summary Update profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body models.ProfileUpdateRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	state, err := store.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, SessionResponse{Session: state}, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/change-password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	message, err := store.ChangePassword(c.Request.Context(), req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, MessageResponse{Message: message}, nil)
}

// ForgotPassword godoc
// @Summary Request a password reset email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Email"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	tenant := c.GetHeader(gateway.TenantHeader)

	message, err := store.ForgotPassword(gateway.WithTenant(c.Request.Context(), tenant), req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	h.rememberTenant(c, tenant)
	response.JSON(c, http.StatusOK, MessageResponse{Message: message}, nil)
}

// ResetPassword godoc
// @Summary Reset password with a token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Token and new password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	tenant := c.GetHeader(gateway.TenantHeader)

	message, err := store.ResetPassword(gateway.WithTenant(c.Request.Context(), tenant), req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	h.rememberTenant(c, tenant)
	response.Navigate(c, rolerouter.Login, MessageResponse{Message: message})
}

// UploadAvatar godoc
// @Summary Upload avatar
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Param avatar formData file true "JPEG, PNG or WebP up to 2MB"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /auth/avatar [post]
func (h *AuthHandler) UploadAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "avatar file is required"))
		return
	}
	if header.Size > gateway.MaxAvatarBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "avatar must be 2MB or smaller"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable avatar file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, gateway.MaxAvatarBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable avatar file"))
		return
	}
	if _, err := gateway.ValidateAvatar(data); err != nil {
		response.Error(c, err)
		return
	}

	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	state, err := store.UploadAvatar(c.Request.Context(), header.Filename, data)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, SessionResponse{Session: state}, nil)
}

// UpdateAvatar godoc
// @Summary Set avatar URI
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body AvatarPatch true "Avatar URI"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/avatar [patch]
func (h *AuthHandler) UpdateAvatar(c *gin.Context) {
	var req AvatarPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid avatar payload"))
		return
	}
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	response.JSON(c, http.StatusOK, SessionResponse{Session: store.UpdateAvatar(c.Request.Context(), req.Avatar)}, nil)
}

// rememberTenant keeps the tenant of a fulfilled request for the visitor's
// later anonymous calls. Failed requests leave persistence untouched.
func (h *AuthHandler) rememberTenant(c *gin.Context, tenantID string) {
	if tenantID == "" || h.registry == nil {
		return
	}
	if err := h.registry.RememberTenant(c.Request.Context(), visitor.Value(c), tenantID); err != nil {
		h.logger.Warn("failed to remember tenant", zap.Error(err))
	}
}
