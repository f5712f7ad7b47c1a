package controller

import (
	"coder_assessment_backend/internal/service"
	"coder_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// QuizController 单题限时测验
type QuizController struct {
	Service *service.DeliveryService
}

func NewQuizController(svc *service.DeliveryService) *QuizController {
	return &QuizController{Service: svc}
}

// @Summary 开始限时测验
// @Description 从题库随机抽题，每题独立计时，超时自动跳到下一题
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.StartQuizRequest false "抽题条件"
// @Success 201 {object} util.Response{data=assessment.QuizView}
// @Failure 404 {object} util.Response
// @Router /quizzes [post]
func (c *QuizController) Start(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.StartQuizRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	view, err := c.Service.StartQuiz(ctx.Request.Context(), user.LearnerID(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// @Summary 测验状态
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=assessment.QuizView}
// @Router /quizzes/{id} [get]
func (c *QuizController) Get(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	view, err := c.Service.GetQuiz(user.LearnerID(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 测验作答
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param body body service.QuizAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=service.QuizAnswerResult}
// @Router /quizzes/{id}/answer [post]
func (c *QuizController) Answer(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.QuizAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.AnswerQuiz(ctx.Request.Context(), user.LearnerID(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 退出测验
// @Description 已得分数照常保存
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=assessment.QuizOutcome}
// @Router /quizzes/{id}/exit [post]
func (c *QuizController) Exit(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	out, err := c.Service.ExitQuiz(ctx.Request.Context(), user.LearnerID(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}
