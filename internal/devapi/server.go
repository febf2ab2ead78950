package devapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
)

const (
	tenantHeader = "X-Tenant-ID"
	claimsKey    = "devapiClaims"

	maxAvatarBytes = 2 << 20
	avatarPrefix   = "/uploads/avatars/"
)

var avatarTypes = map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true}

// Envelope is the response contract of the remote API.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Server exposes a Service over HTTP.
type Server struct {
	service *Service
	logger  *zap.Logger
}

// NewServer constructs the HTTP layer.
func NewServer(service *Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{service: service, logger: logger}
}

// Register mounts the API routes on r.
func (s *Server) Register(r gin.IRouter) {
	auth := r.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/register", s.register)
	auth.POST("/forgot-password", s.forgotPassword)
	auth.POST("/reset-password", s.resetPassword)

	secured := auth.Group("", s.authenticate)
	secured.GET("/profile", s.profile)
	secured.PUT("/profile", s.updateProfile)
	secured.PUT("/change-password", s.changePassword)
	secured.POST("/avatar", s.uploadAvatar)

	users := r.Group("/users", s.authenticate, s.requireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	users.GET("", s.listUsers)
	users.POST("", s.createUser)
	users.GET("/:id", s.getUser)
	users.PUT("/:id", s.updateUser)
	users.PUT("/:id/role", s.changeRole)
	users.DELETE("/:id", s.deleteUser)
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if !bind(c, &req) {
		return
	}
	data, err := s.service.Login(c.Request.Context(), c.GetHeader(tenantHeader), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Login successful", data)
}

func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if !bind(c, &req) {
		return
	}
	data, err := s.service.Register(c.Request.Context(), c.GetHeader(tenantHeader), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Registration successful", data)
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := s.service.ForgotPassword(c.Request.Context(), c.GetHeader(tenantHeader), req); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Password reset email sent", nil)
}

func (s *Server) resetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := s.service.ResetPassword(c.Request.Context(), req); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Password reset successful", nil)
}

func (s *Server) profile(c *gin.Context) {
	user, err := s.service.Profile(c.Request.Context(), claimsFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", models.UserData{User: user})
}

func (s *Server) updateProfile(c *gin.Context) {
	var req models.ProfileUpdateRequest
	if !bind(c, &req) {
		return
	}
	user, err := s.service.UpdateProfile(c.Request.Context(), claimsFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated", models.UserData{User: user})
}

func (s *Server) changePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := s.service.ChangePassword(c.Request.Context(), claimsFrom(c), req); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Password changed successfully", nil)
}

func (s *Server) uploadAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		fail(c, appErrors.Clone(appErrors.ErrValidation, "No file uploaded"))
		return
	}
	if header.Size > maxAvatarBytes {
		fail(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "File too large"))
		return
	}
	file, err := header.Open()
	if err != nil {
		fail(c, appErrors.Clone(appErrors.ErrValidation, "Unreadable file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil || len(data) == 0 {
		fail(c, appErrors.Clone(appErrors.ErrValidation, "Unreadable file"))
		return
	}
	if len(data) > maxAvatarBytes {
		fail(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "File too large"))
		return
	}
	detected := mimetype.Detect(data)
	if !avatarTypes[detected.String()] {
		fail(c, appErrors.Clone(appErrors.ErrUnsupportedMedia, "Only JPEG, PNG and WebP images are allowed"))
		return
	}

	uri := avatarPrefix + uuid.NewString() + detected.Extension()
	user, err := s.service.SetAvatar(c.Request.Context(), claimsFrom(c), uri)
	if err != nil {
		fail(c, err)
		return
	}
	s.logger.Info("avatar stored", zap.String("user_id", user.ID), zap.String("uri", uri), zap.Int("bytes", len(data)))
	respond(c, http.StatusOK, "Avatar uploaded", models.UserData{User: user})
}

func (s *Server) listUsers(c *gin.Context) {
	var filter models.UserFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, appErrors.Clone(appErrors.ErrValidation, "Invalid query parameters"))
		return
	}
	list, err := s.service.ListUsers(c.Request.Context(), claimsFrom(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", list)
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.service.GetUser(c.Request.Context(), claimsFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", models.UserData{User: user})
}

func (s *Server) createUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !bind(c, &req) {
		return
	}
	user, err := s.service.CreateUser(c.Request.Context(), claimsFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "User created", models.UserData{User: user})
}

func (s *Server) updateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if !bind(c, &req) {
		return
	}
	user, err := s.service.UpdateUser(c.Request.Context(), claimsFrom(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "User updated", models.UserData{User: user})
}

func (s *Server) changeRole(c *gin.Context) {
	var req models.ChangeRoleRequest
	if !bind(c, &req) {
		return
	}
	user, err := s.service.ChangeRole(c.Request.Context(), claimsFrom(c), c.Param("id"), req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Role updated", models.UserData{User: user})
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.service.DeleteUser(c.Request.Context(), claimsFrom(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "User deleted", nil)
}

func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		fail(c, appErrors.Clone(appErrors.ErrUnauthorized, "No token provided"))
		c.Abort()
		return
	}
	claims, err := s.service.Authenticate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		fail(c, err)
		c.Abort()
		return
	}
	if tenant := c.GetHeader(tenantHeader); tenant != "" && tenant != claims.TenantID {
		fail(c, appErrors.Clone(appErrors.ErrForbidden, "Tenant mismatch"))
		c.Abort()
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

func (s *Server) requireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		for _, role := range roles {
			if claims != nil && claims.Role == role {
				c.Next()
				return
			}
		}
		fail(c, appErrors.Clone(appErrors.ErrForbidden, "Access denied"))
		c.Abort()
	}
}

func claimsFrom(c *gin.Context) *Claims {
	if v, exists := c.Get(claimsKey); exists {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

func bind(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBind(dest); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Validation failed"))
		return false
	}
	return true
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, Envelope{Success: false, Message: appErr.Message})
}
