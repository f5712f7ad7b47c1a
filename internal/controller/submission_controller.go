package controller

import (
	"coder_assessment_backend/internal/service"
	"coder_assessment_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	Service *service.SubmissionService
}

func NewSubmissionController(svc *service.SubmissionService) *SubmissionController {
	return &SubmissionController{Service: svc}
}

// @Summary 直接提交作答结果
// @Description 供离线作答的客户端使用，成绩由服务端按试卷重新计算
// @Tags 成绩
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Param body body service.DirectSubmitRequest true "各分区结果"
// @Success 201 {object} util.Response{data=assessment.SubmissionReceipt}
// @Failure 409 {object} util.Response
// @Router /tests/{id}/submissions [post]
func (c *SubmissionController) SubmitDirect(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.DirectSubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	receipt, err := c.Service.SubmitDirect(ctx.Request.Context(), user.LearnerID(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, receipt)
}

// @Summary 试卷的提交记录
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /teacher/tests/{id}/submissions [get]
func (c *SubmissionController) ListByTest(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)
	list, total, err := c.Service.ListByTest(ctx.Request.Context(), ctx.Param("id"), page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// @Summary 我的提交记录
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /my/submissions [get]
func (c *SubmissionController) ListMine(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	page, limit := util.ParsePagination(ctx)
	list, total, err := c.Service.ListByLearner(ctx.Request.Context(), user.LearnerID(), page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// @Summary 某次作答的提交详情
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "作答ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /my/submissions/{attemptId} [get]
func (c *SubmissionController) GetMine(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	row, err := c.Service.GetByAttempt(ctx.Request.Context(), ctx.Param("attemptId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if row.LearnerID != user.LearnerID() {
		util.Forbidden(ctx)
		return
	}
	util.Success(ctx, row)
}

// @Summary 我的测验成绩
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "条数" default(20)
// @Success 200 {object} util.Response
// @Router /my/quiz-results [get]
func (c *SubmissionController) ListMyQuizResults(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(util.DefaultLimit)))
	if err != nil || limit < 1 || limit > util.MaxLimit {
		limit = util.DefaultLimit
	}
	list, err := c.Service.ListQuizResults(ctx.Request.Context(), user.LearnerID(), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
