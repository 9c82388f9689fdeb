package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/unitir-dev/syllabus-api/api/swagger"
	"github.com/unitir-dev/syllabus-api/internal/handler"
	"github.com/unitir-dev/syllabus-api/internal/middleware"
	"github.com/unitir-dev/syllabus-api/internal/models"
	"github.com/unitir-dev/syllabus-api/internal/service"
	"github.com/unitir-dev/syllabus-api/internal/session"
	"github.com/unitir-dev/syllabus-api/pkg/config"
	"github.com/unitir-dev/syllabus-api/pkg/logger"
	corsmiddleware "github.com/unitir-dev/syllabus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unitir-dev/syllabus-api/pkg/middleware/requestid"
)

// Dependencies collects everything the router needs to register routes.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Gate     *session.Gate
	Auth     *service.AuthService
	Users    *service.UserService
	Depts    *service.DepartmentService
	Subjects *service.SubjectService
	Syllabi  *service.SyllabusService
	Metrics  *service.MetricsService
}

// New assembles the gin engine with middleware and all route groups.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	authHandler := handler.NewAuthHandler(deps.Auth)
	userHandler := handler.NewUserHandler(deps.Users)
	deptHandler := handler.NewDepartmentHandler(deps.Depts)
	subjectHandler := handler.NewSubjectHandler(deps.Subjects)
	syllabusHandler := handler.NewSyllabusHandler(deps.Syllabi)
	metricsHandler := handler.NewMetricsHandler(deps.Metrics)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(deps.Auth, deps.Gate, deps.Metrics))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	users := authed.Group("/users", adminOnly)
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	departments := authed.Group("/departments")
	{
		departments.GET("", deptHandler.List)
		departments.GET("/:id", deptHandler.Get)
		departments.POST("", adminOnly, deptHandler.Create)
		departments.PUT("/:id", adminOnly, deptHandler.Update)
		departments.DELETE("/:id", adminOnly, deptHandler.Delete)
	}

	subjects := authed.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/my", middleware.RequireRoles(models.RoleTeacher), subjectHandler.My)
		subjects.POST("/assign", adminOnly, subjectHandler.Assign)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", adminOnly, subjectHandler.Create)
		subjects.PUT("/:id", adminOnly, subjectHandler.Update)
		subjects.DELETE("/:id", adminOnly, subjectHandler.Delete)
	}

	syllabi := authed.Group("/syllabi")
	{
		syllabi.POST("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), syllabusHandler.Create)
		syllabi.GET("/my", middleware.RequireRoles(models.RoleTeacher), syllabusHandler.My)
		syllabi.GET("/all", adminOnly, syllabusHandler.All)
		syllabi.GET("/pending", middleware.RequireRoles(models.RoleHead, models.RoleAdmin), syllabusHandler.Pending)
		syllabi.POST("/preview", syllabusHandler.Preview)
		syllabi.GET("/:id", syllabusHandler.Get)
		syllabi.PUT("/:id", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), syllabusHandler.Update)
		syllabi.PUT("/:id/status", middleware.RequireRoles(models.RoleTeacher, models.RoleHead, models.RoleAdmin), syllabusHandler.UpdateStatus)
		syllabi.DELETE("/:id", adminOnly, syllabusHandler.Delete)
		syllabi.GET("/:id/versions", syllabusHandler.Versions)
		syllabi.GET("/:id/pdf", syllabusHandler.PDF)
	}

	return r
}
