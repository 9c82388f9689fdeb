package main

import (
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	"github.com/unitir-dev/syllabus-api/internal/repository"
	"github.com/unitir-dev/syllabus-api/internal/router"
	"github.com/unitir-dev/syllabus-api/internal/service"
	"github.com/unitir-dev/syllabus-api/internal/session"
	"github.com/unitir-dev/syllabus-api/pkg/cache"
	"github.com/unitir-dev/syllabus-api/pkg/config"
	"github.com/unitir-dev/syllabus-api/pkg/database"
	"github.com/unitir-dev/syllabus-api/pkg/logger"
	"github.com/unitir-dev/syllabus-api/pkg/pdf"
	"github.com/unitir-dev/syllabus-api/pkg/storage"
)

// @title Syllabus API
// @version 0.1.0
// @description Syllabus management backend with role-based review and PDF assembly
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	var archive *storage.LocalArchive
	if cfg.Archive.Enabled {
		archive, err = storage.NewLocalArchive(cfg.Archive.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare archive storage", "error", err)
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	syllabusRepo := repository.NewSyllabusRepository(db)

	sessions := session.NewRedisStore(redisClient)
	gate := session.NewGate(sessions, logr)

	authConfig := service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	}

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, sessions, validate, logr, authConfig)
	userService := service.NewUserService(userRepo, validate, logr)
	deptService := service.NewDepartmentService(deptRepo, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, validate, logr)

	syllabusService := service.NewSyllabusService(
		syllabusRepo,
		subjectRepo,
		deptRepo,
		pdf.NewTemplateRenderer(cfg.PDF.Institution),
		pdf.NewImageRenderer(),
		archive,
		validate,
		logr,
		metricsService,
		service.SyllabusConfig{Engine: cfg.PDF.Engine, ArchiveEnabled: cfg.Archive.Enabled},
	)

	r := router.New(router.Dependencies{
		Config:   cfg,
		Logger:   logr,
		Gate:     gate,
		Auth:     authService,
		Users:    userService,
		Depts:    deptService,
		Subjects: subjectService,
		Syllabi:  syllabusService,
		Metrics:  metricsService,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "pdf_engine", cfg.PDF.Engine)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
