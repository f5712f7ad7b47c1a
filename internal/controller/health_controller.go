package controller

import (
	"coder_assessment_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SessionCounter 报告进程内仍在运行的作答与测验数量
type SessionCounter interface {
	ActiveCounts() (attempts, quizzes int)
}

type HealthController struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Sessions SessionCounter
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, sessions SessionCounter) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Sessions: sessions}
}

// @Summary 健康检查
// @Description 检查数据库、Redis 以及进程内会话数量
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Redis unavailable")
		return
	}

	attempts, quizzes := c.Sessions.ActiveCounts()
	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"redis":    "up",
		},
		"sessions": gin.H{
			"attempts": attempts,
			"quizzes":  quizzes,
		},
	})
}
