package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/nexlearn-dashboard/internal/middleware"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/rolerouter"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
	"github.com/noah-isme/nexlearn-dashboard/pkg/response"
)

// DashboardView describes the page a guarded route renders.
type DashboardView struct {
	View     string       `json:"view"`
	Title    string       `json:"title"`
	Home     string       `json:"home"`
	User     *models.User `json:"user"`
	CourseID string       `json:"courseId,omitempty"`
}

// LandingView is served to visitors who are not signed in.
type LandingView struct {
	View  string `json:"view"`
	Login string `json:"login"`
}

// DashboardHandler serves the landing page and the guarded dashboard views.
type DashboardHandler struct{}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Landing godoc
// @Summary Landing page
// @Description Signed-in visitors are sent to their role home
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Success 303 "Redirect to the role home"
// @Router / [get]
func (h *DashboardHandler) Landing(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	state := store.State()
	if state.IsAuthenticated && state.User != nil {
		response.Redirect(c, rolerouter.HomeFor(state.Role()))
		return
	}
	response.JSON(c, http.StatusOK, LandingView{View: "landing", Login: rolerouter.Login}, nil)
}

// Login godoc
// @Summary Login page
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Success 303 "Redirect to the role home"
// @Router /login [get]
func (h *DashboardHandler) Login(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		response.Error(c, sessionMissing())
		return
	}
	state := store.State()
	if state.IsAuthenticated && state.User != nil {
		response.Redirect(c, rolerouter.HomeFor(state.Role()))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"view": "login", "session": state}, nil)
}

// Home godoc
// @Summary Dashboard entry
// @Description Redirects to the home of the signed-in role
// @Tags Dashboard
// @Produce json
// @Success 303 "Redirect to the role home"
// @Router /dashboard [get]
func (h *DashboardHandler) Home(c *gin.Context) {
	state, ok := middleware.State(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.Redirect(c, rolerouter.HomeFor(state.Role()))
}

// Admin godoc
// @Summary Admin dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	h.render(c, "admin", "Admin Dashboard")
}

// AdminUsers godoc
// @Summary User management page
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin/users [get]
func (h *DashboardHandler) AdminUsers(c *gin.Context) {
	h.render(c, "admin-users", "User Management")
}

// Courses godoc
// @Summary Instructor dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/courses [get]
func (h *DashboardHandler) Courses(c *gin.Context) {
	h.render(c, "courses", "Courses")
}

// InstructorCourses godoc
// @Summary Instructor course list
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/instructor/courses [get]
func (h *DashboardHandler) InstructorCourses(c *gin.Context) {
	h.render(c, "instructor-courses", "My Courses")
}

// CreateCourse godoc
// @Summary Course creation form
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/instructor/courses/create [get]
func (h *DashboardHandler) CreateCourse(c *gin.Context) {
	h.render(c, "course-create", "Create Course")
}

// Course godoc
// @Summary Course editor
// @Tags Dashboard
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dashboard/instructor/courses/{id} [get]
func (h *DashboardHandler) Course(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course id is required"))
		return
	}
	h.render(c, "course-edit", "Edit Course", id)
}

// MyCourses godoc
// @Summary Student dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/my-courses [get]
func (h *DashboardHandler) MyCourses(c *gin.Context) {
	h.render(c, "my-courses", "My Learning")
}

// Profile godoc
// @Summary Profile page
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/profile [get]
func (h *DashboardHandler) Profile(c *gin.Context) {
	h.render(c, "profile", "Profile")
}

func (h *DashboardHandler) render(c *gin.Context, view, title string, courseID ...string) {
	state, ok := middleware.State(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payload := DashboardView{
		View:  view,
		Title: title,
		Home:  rolerouter.HomeFor(state.Role()),
		User:  state.User,
	}
	if len(courseID) > 0 {
		payload.CourseID = courseID[0]
	}
	response.JSON(c, http.StatusOK, payload, nil)
}
