package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
	"github.com/noah-isme/nexlearn-dashboard/pkg/response"
)

// UsersAPI is the remote user management surface.
type UsersAPI interface {
	List(ctx context.Context, filter models.UserFilter) (*models.UserList, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error)
	ChangeRole(ctx context.Context, id string, role models.UserRole) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// UsersFactory binds the users API to a visitor's credentials.
type UsersFactory func(creds gateway.CredentialSource) UsersAPI

// UsersHandler proxies the admin user screens to the remote API with the
// visitor's token.
type UsersHandler struct {
	registry *session.Registry
	usersFor UsersFactory
}

// NewUsersHandler constructs the handler.
func NewUsersHandler(registry *session.Registry, usersFor UsersFactory) *UsersHandler {
	return &UsersHandler{registry: registry, usersFor: usersFor}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Search by name or email"
// @Param role query string false "Role filter, all for every role"
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin/users/api [get]
func (h *UsersHandler) List(c *gin.Context) {
	var filter models.UserFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	api, ok := h.api(c)
	if !ok {
		return
	}
	list, err := api.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, list.Users, list.Pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/admin/users/api/{id} [get]
func (h *UsersHandler) Get(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	api, ok := h.api(c)
	if !ok {
		return
	}
	user, err := api.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dashboard/admin/users/api [post]
func (h *UsersHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	api, ok := h.api(c)
	if !ok {
		return
	}
	user, err := api.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusCreated, user, nil)
}

// Update godoc
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.UpdateUserRequest true "User fields"
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin/users/api/{id} [put]
func (h *UsersHandler) Update(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	api, ok := h.api(c)
	if !ok {
		return
	}
	user, err := api.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ChangeRole godoc
// @Summary Change user role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.ChangeRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin/users/api/{id}/role [put]
func (h *UsersHandler) ChangeRole(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	var req models.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	api, ok := h.api(c)
	if !ok {
		return
	}
	user, err := api.ChangeRole(c.Request.Context(), id, req.Role)
	if err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Delete user
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Router /dashboard/admin/users/api/{id} [delete]
func (h *UsersHandler) Delete(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	api, ok := h.api(c)
	if !ok {
		return
	}
	if err := api.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, remoteError(err))
		return
	}
	response.NoContent(c)
}

func (h *UsersHandler) api(c *gin.Context) (UsersAPI, bool) {
	if h.registry == nil || h.usersFor == nil {
		response.Error(c, appErrors.ErrInternal)
		return nil, false
	}
	return h.usersFor(h.registry.Credentials(c.Request.Context(), visitor.Value(c))), true
}

func userIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "user id is required"))
		return "", false
	}
	return id, true
}
