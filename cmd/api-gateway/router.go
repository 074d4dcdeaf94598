package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-registration-api/api/swagger"
	"github.com/noah-isme/course-registration-api/internal/handler"
	"github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	"github.com/noah-isme/course-registration-api/pkg/config"
	"github.com/noah-isme/course-registration-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-registration-api/pkg/middleware/requestid"
)

type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	metrics *service.MetricsService

	auth          *service.AuthService
	registrations *service.RegistrationService
	waitlists     *service.WaitlistService
	catalog       *service.CatalogService
	registrar     *service.RegistrarService
	rosters       *service.RosterService
}

func (a *application) router() *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	if a.metrics != nil {
		r.Use(middleware.Metrics(a.metrics))
	}
	r.Use(middleware.WithResponseMeta())

	var metricsHandler *handler.MetricsHandler
	if a.metrics != nil {
		metricsHandler = handler.NewMetricsHandler(a.metrics, a.db)
		r.GET(a.cfg.Metrics.Path, metricsHandler.Prometheus)
	} else {
		metricsHandler = handler.NewMetricsHandler(nil, a.db)
	}
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)

	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth)
	registrationHandler := handler.NewRegistrationHandler(a.registrations)
	waitlistHandler := handler.NewWaitlistHandler(a.waitlists)
	catalogHandler := handler.NewCatalogHandler(a.catalog)
	registrarHandler := handler.NewRegistrarHandler(a.registrar)
	instructorHandler := handler.NewInstructorHandler(a.rosters, a.registrations)

	api := r.Group(a.cfg.APIPrefix)
	api.POST("/users", authHandler.CreateUser)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/classes", catalogHandler.List)

	student := middleware.RequireRoles(models.RoleStudent, models.RoleRegistrar)
	secured.POST("/registrations", student, registrationHandler.Enroll)
	secured.POST("/registrations/drop", student, registrationHandler.Drop)
	secured.GET("/students/:id/waitlist", middleware.RBAC(string(models.RoleRegistrar), string(models.RoleInstructor), middleware.Self), waitlistHandler.StudentPositions)
	secured.GET("/sections/:courseCode/:sectionNumber/waitlist", middleware.RequireRoles(models.RoleInstructor, models.RoleRegistrar), waitlistHandler.Section)

	instructor := secured.Group("/instructor", middleware.RequireRoles(models.RoleInstructor))
	instructor.GET("/roster", instructorHandler.Roster)
	instructor.GET("/roster/export", instructorHandler.Export)
	instructor.POST("/drops", middleware.Audit(a.logger, "instructor_drop"), instructorHandler.DropStudent)

	registrar := secured.Group("/registrar", middleware.RequireRoles(models.RoleRegistrar))
	registrar.POST("/classes", middleware.Audit(a.logger, "add_class"), registrarHandler.AddClass)
	registrar.DELETE("/sections/:courseCode/:sectionNumber", middleware.Audit(a.logger, "delete_section"), registrarHandler.DeleteSection)
	registrar.PUT("/sections/:courseCode/:sectionNumber/instructor", middleware.Audit(a.logger, "change_instructor"), registrarHandler.ChangeInstructor)
	registrar.POST("/sections/:courseCode/:sectionNumber/freeze", middleware.Audit(a.logger, "freeze_enrollment"), registrarHandler.Freeze)
	registrar.GET("/sections/:courseCode/:sectionNumber/audit", registrarHandler.Audit)
	registrar.GET("/metrics/summary", metricsHandler.Summary)

	return r
}
