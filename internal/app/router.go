package app

import (
	"coder_assessment_backend/docs"
	"coder_assessment_backend/internal/config"
	"coder_assessment_backend/internal/middleware"
	"coder_assessment_backend/internal/model"
	"coder_assessment_backend/pkg/monitoring"
	"coder_assessment_backend/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学员作答接口
		a.registerLearnerRoutes(authGroup, c, cfg)

		// 教师组卷与题库接口
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers, cfg *config.Config) {
	codeLimit := security.KeyedRateLimiter("code run",
		cfg.RateLimit.CodeMaxRequests,
		time.Duration(cfg.RateLimit.CodeWindowSeconds)*time.Second,
		middleware.LearnerKey)

	group.GET("/questions/mcq", c.bank.LearnerMCQ)
	group.GET("/questions/coding", c.bank.LearnerCoding)

	group.POST("/tests/:id/attempts", c.attempt.Start)
	group.POST("/tests/:id/submissions", c.submission.SubmitDirect)

	attempts := group.Group("/attempts/:id")
	{
		attempts.GET("", c.attempt.Get)
		attempts.DELETE("", c.attempt.Close)
		attempts.POST("/sections/:section/select", c.attempt.SelectSection)
		attempts.POST("/sections/:section/finish", c.attempt.FinishSection)
		attempts.POST("/questions/:index/select", c.attempt.SelectQuestion)
		attempts.POST("/answers", c.attempt.Answer)
		attempts.POST("/code/run", codeLimit, c.attempt.RunCode)
		attempts.POST("/code/submit", codeLimit, c.attempt.SubmitCode)
		attempts.POST("/submit", c.attempt.Submit)
	}

	quizzes := group.Group("/quizzes")
	{
		quizzes.POST("", c.quiz.Start)
		quizzes.GET("/:id", c.quiz.Get)
		quizzes.POST("/:id/answer", c.quiz.Answer)
		quizzes.POST("/:id/exit", c.quiz.Exit)
	}

	my := group.Group("/my")
	{
		my.GET("/submissions", c.submission.ListMine)
		my.GET("/submissions/:attemptId", c.submission.GetMine)
		my.GET("/quiz-results", c.submission.ListMyQuizResults)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/questions/mcq", c.bank.CreateMCQ)
		teacher.GET("/questions/mcq", c.bank.ListMCQ)
		teacher.GET("/questions/mcq/:id", c.bank.GetMCQ)
		teacher.DELETE("/questions/mcq/:id", c.bank.DeleteMCQ)
		teacher.POST("/questions/coding", c.bank.CreateCoding)
		teacher.GET("/questions/coding", c.bank.ListCoding)
		teacher.GET("/questions/coding/:id", c.bank.GetCoding)
		teacher.DELETE("/questions/coding/:id", c.bank.DeleteCoding)

		teacher.POST("/test-drafts", c.test.CreateDraft)
		teacher.GET("/test-drafts/:id", c.test.GetDraft)
		teacher.DELETE("/test-drafts/:id", c.test.DeleteDraft)
		teacher.POST("/test-drafts/:id/ops", c.test.ApplyDraftOp)
		teacher.GET("/test-drafts/:id/sections/:sectionId/picker", c.test.DraftPicker)
		teacher.POST("/test-drafts/:id/save", c.test.SaveDraft)

		teacher.POST("/tests", c.test.CreateTest)
		teacher.GET("/tests", c.test.ListTests)
		teacher.GET("/tests/:id", c.test.GetTest)
		teacher.DELETE("/tests/:id", c.test.DeleteTest)
		teacher.GET("/tests/:id/submissions", c.submission.ListByTest)
	}
}
