package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/paperlens/exam-insight-api/api/swagger"
	"github.com/paperlens/exam-insight-api/internal/handler"
	"github.com/paperlens/exam-insight-api/internal/middleware"
	"github.com/paperlens/exam-insight-api/internal/models"
	"github.com/paperlens/exam-insight-api/internal/repository"
	"github.com/paperlens/exam-insight-api/internal/service"
	"github.com/paperlens/exam-insight-api/pkg/cache"
	"github.com/paperlens/exam-insight-api/pkg/config"
	"github.com/paperlens/exam-insight-api/pkg/database"
	"github.com/paperlens/exam-insight-api/pkg/logger"
	corsmiddleware "github.com/paperlens/exam-insight-api/pkg/middleware/cors"
	reqidmiddleware "github.com/paperlens/exam-insight-api/pkg/middleware/requestid"
	"github.com/paperlens/exam-insight-api/pkg/storage"
)

// @title Exam Insight API
// @version 1.0.0
// @description Exam grading and score analytics service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Analytics.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, true)
		}
	}

	examRepo := repository.NewExamRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	reviewerRepo := repository.NewReviewerRepository(db)
	sheetRepo := repository.NewSheetRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	recordRepo := repository.NewGradeRecordRepository(db)
	cohortRepo := repository.NewCohortRepository(db)
	userRepo := repository.NewUserRepository(db)

	ranking := service.NewRankingService(logr)
	scoring := service.NewScoringService(models.ScoringPolicy{
		DefaultTolerance: cfg.Grading.DefaultTolerance,
		ToleranceByType:  cfg.Grading.ToleranceByType,
		ScorePrecision:   cfg.Grading.ScorePrecision,
	}, logr)
	simulation := service.NewSimulationService(ranking, logr)
	bias := service.NewBiasService(ranking, service.BiasConfig{
		Margin:          cfg.Analytics.BiasMargin,
		ExcellentOffset: cfg.Analytics.ExcellentOffset,
		PassOffset:      cfg.Analytics.PassOffset,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	examSvc := service.NewExamService(examRepo, subjectRepo, questionRepo, reviewerRepo, validate, logr)
	rosterSvc := service.NewRosterService(studentRepo, reviewerRepo, validate, logr)
	sheetSvc := service.NewSheetService(sheetRepo, studentRepo, answerRepo, questionRepo, validate, logr)
	gradingSvc := service.NewGradingService(answerRepo, recordRepo, reviewerRepo, questionRepo, subjectRepo, scoring, cacheSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(cohortRepo, ranking, simulation, bias, cacheSvc, metricsSvc, cfg.Analytics.CacheTTL, cfg.Analytics.PassRateThreshold, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		exportJobRepo := repository.NewExportJobRepository(db)
		exportSvc = service.NewExportService(exportJobRepo, analyticsSvc, store, signer, service.ExportConfig{
			APIPrefix:  cfg.APIPrefix,
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
		}, logr, nil, nil)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
		go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	examHandler := handler.NewExamHandler(examSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	sheetHandler := handler.NewSheetHandler(sheetSvc)
	gradingHandler := handler.NewGradingHandler(gradingSvc)
	analysisHandler := handler.NewAnalysisHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("", middleware.JWT(authSvc))
	teacherOnly := middleware.RequireRoles(models.RoleTeacher)

	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/register", teacherOnly, authHandler.Register)
	secured.GET("/system/metrics", teacherOnly, metricsHandler.Snapshot)

	secured.POST("/exams", teacherOnly, examHandler.Create)
	secured.GET("/exams", examHandler.List)
	secured.GET("/exams/:id", examHandler.Get)
	secured.PATCH("/exams/:id", teacherOnly, examHandler.Update)
	secured.POST("/exams/:id/subjects", teacherOnly, examHandler.CreateSubject)
	secured.GET("/exams/:id/subjects", examHandler.ListSubjects)
	secured.POST("/subjects/:subjectId/questions", teacherOnly, examHandler.CreateQuestion)
	secured.GET("/subjects/:subjectId/questions", examHandler.ListQuestions)
	secured.POST("/questions/:questionId/reviewers", teacherOnly, examHandler.AssignReviewer)
	secured.GET("/questions/:questionId/reviewers", teacherOnly, examHandler.ListReviewers)

	secured.POST("/students", teacherOnly, rosterHandler.RegisterStudent)
	secured.GET("/students", teacherOnly, rosterHandler.ListStudents)
	secured.GET("/students/:id", rosterHandler.GetStudent)
	secured.POST("/reviewers", teacherOnly, rosterHandler.CreateReviewer)
	secured.GET("/reviewers/:id", teacherOnly, rosterHandler.GetReviewer)

	secured.POST("/sheets", teacherOnly, sheetHandler.Ingest)
	secured.GET("/sheets/:id", teacherOnly, sheetHandler.Get)
	secured.POST("/sheets/:id/bind", teacherOnly, sheetHandler.Bind)
	secured.POST("/sheets/:id/answers", teacherOnly, sheetHandler.RecordAnswer)
	secured.GET("/exams/:id/sheets/unbound", teacherOnly, sheetHandler.ListUnbound)

	secured.POST("/answers/:id/grades", teacherOnly, gradingHandler.Submit)
	secured.GET("/answers/:id/grades", teacherOnly, gradingHandler.Trail)
	secured.POST("/answers/:id/resolve", teacherOnly, gradingHandler.Resolve)
	secured.GET("/exams/:id/arbitration", teacherOnly, gradingHandler.PendingArbitration)

	secured.GET("/exams/:id/students/:studentId/scores", analysisHandler.Scores)
	secured.GET("/exams/:id/students/:studentId/position", analysisHandler.Position)
	secured.GET("/exams/:id/students/:studentId/pk", analysisHandler.PK)
	secured.POST("/exams/:id/students/:studentId/simulate", analysisHandler.Simulate)
	secured.GET("/exams/:id/students/:studentId/bias", analysisHandler.Bias)
	secured.GET("/exams/:id/students/:studentId/subjects/:subjectId/knowledge", analysisHandler.Knowledge)
	secured.GET("/exams/:id/students/:studentId/subjects/:subjectId/questions", analysisHandler.Questions)
	secured.GET("/exams/:id/students/:studentId/loss", analysisHandler.Loss)
	secured.GET("/exams/:id/classes/:classId/scores", teacherOnly, analysisHandler.ClassScores)
	secured.DELETE("/exams/:id/analysis/cache", teacherOnly, analysisHandler.Invalidate)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		api.GET("/exports/download/:token", exportHandler.Download)
		secured.POST("/exports", teacherOnly, exportHandler.Request)
		secured.GET("/exports/:id", teacherOnly, exportHandler.Status)
		secured.GET("/exports/:id/link", teacherOnly, exportHandler.DownloadLink)
		secured.GET("/exams/:id/exports", teacherOnly, exportHandler.ListByExam)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("shutdown failed", zap.Error(err))
	}
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("export artifacts removed", zap.Int("count", len(removed)))
			}
		}
	}
}
