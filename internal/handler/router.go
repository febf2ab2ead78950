package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/middleware"
	"github.com/noah-isme/nexlearn-dashboard/internal/rolerouter"
	"github.com/noah-isme/nexlearn-dashboard/internal/service"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
)

// Dependencies holds what the HTTP surface is built from.
type Dependencies struct {
	Registry *session.Registry
	Metrics  *service.MetricsService
	Users    UsersFactory
	Checks   map[string]ReadinessCheck
	Visitor  visitor.Options
	Logger   *zap.Logger

	// ExposeCredentials mounts POST /auth/session. Never enabled in production.
	ExposeCredentials bool
	EventsOptions     []EventsOption
}

// RegisterRoutes mounts the observability endpoints, the auth API, the
// session event stream and the guarded dashboard views on r.
func RegisterRoutes(r gin.IRouter, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	metricsHandler := NewMetricsHandler(deps.Metrics, deps.Checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	authHandler := NewAuthHandler(deps.Registry, logger.Named("auth"))
	eventsHandler := NewEventsHandler(deps.Metrics, logger.Named("events"), deps.EventsOptions...)
	dashboardHandler := NewDashboardHandler()
	usersHandler := NewUsersHandler(deps.Registry, deps.Users)

	app := r.Group("", visitor.Middleware(deps.Visitor), middleware.Session(deps.Registry))
	app.GET("/", dashboardHandler.Landing)
	app.GET(rolerouter.Login, dashboardHandler.Login)

	auth := app.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.GET("/session", authHandler.Session)
	auth.DELETE("/session/error", authHandler.ClearError)
	auth.GET("/session/events", eventsHandler.Stream)
	auth.GET("/profile", authHandler.Profile)
	auth.PUT("/profile", authHandler.UpdateProfile)
	auth.PUT("/change-password", authHandler.ChangePassword)
	auth.POST("/avatar", authHandler.UploadAvatar)
	auth.PATCH("/avatar", authHandler.UpdateAvatar)
	if deps.ExposeCredentials {
		auth.POST("/session", authHandler.SetCredentials)
	}

	rec := deps.Metrics
	dashboard := app.Group(rolerouter.Dashboard)
	dashboard.GET("", middleware.Guard(rec), dashboardHandler.Home)
	dashboard.GET("/admin", middleware.Guard(rec, rolerouter.AdminRoles...), dashboardHandler.Admin)
	dashboard.GET("/courses", middleware.Guard(rec, rolerouter.CourseAuthorRoles...), dashboardHandler.Courses)
	dashboard.GET("/my-courses", middleware.Guard(rec), dashboardHandler.MyCourses)
	dashboard.GET("/profile", middleware.Guard(rec), dashboardHandler.Profile)

	instructor := dashboard.Group("/instructor/courses", middleware.Guard(rec, rolerouter.CourseAuthorRoles...))
	instructor.GET("", dashboardHandler.InstructorCourses)
	instructor.GET("/create", dashboardHandler.CreateCourse)
	instructor.GET("/:id", dashboardHandler.Course)

	users := dashboard.Group("/admin/users", middleware.Guard(rec, rolerouter.UserManagerRoles...))
	users.GET("", dashboardHandler.AdminUsers)
	users.GET("/api", usersHandler.List)
	users.POST("/api", usersHandler.Create)
	users.GET("/api/:id", usersHandler.Get)
	users.PUT("/api/:id", usersHandler.Update)
	users.PUT("/api/:id/role", usersHandler.ChangeRole)
	users.DELETE("/api/:id", usersHandler.Delete)
}
