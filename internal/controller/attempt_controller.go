package controller

import (
	"coder_assessment_backend/internal/service"
	"coder_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AttemptController 多分区测评的作答接口，每个请求对应一次学员操作
type AttemptController struct {
	Service *service.DeliveryService
}

func NewAttemptController(svc *service.DeliveryService) *AttemptController {
	return &AttemptController{Service: svc}
}

// @Summary 开始作答
// @Description 加载试卷及全部题目，失败时不创建会话
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 201 {object} util.Response{data=assessment.SessionView}
// @Failure 404 {object} util.Response
// @Router /tests/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	view, err := c.Service.StartAttempt(ctx.Request.Context(), user.LearnerID(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// @Summary 作答状态
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=assessment.SessionView}
// @Router /attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	view, err := c.Service.GetAttempt(user.LearnerID(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 切换分区
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param section path int true "分区下标"
// @Success 200 {object} util.Response{data=assessment.SessionView}
// @Router /attempts/{id}/sections/{section}/select [post]
func (c *AttemptController) SelectSection(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	index, ok := util.ParseIndex(ctx, "section")
	if !ok {
		util.BadRequest(ctx, "invalid section index")
		return
	}
	view, err := c.Service.SelectSection(user.LearnerID(), ctx.Param("id"), index)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 切换当前分区内的题目
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param index path int true "题目下标"
// @Success 200 {object} util.Response{data=assessment.SessionView}
// @Router /attempts/{id}/questions/{index}/select [post]
func (c *AttemptController) SelectQuestion(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	index, ok := util.ParseIndex(ctx, "index")
	if !ok {
		util.BadRequest(ctx, "invalid question index")
		return
	}
	view, err := c.Service.SelectQuestion(user.LearnerID(), ctx.Param("id"), index)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 选择题作答
// @Description 每题只能作答一次，作答后锁定
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param body body service.AnswerRequest true "答案"
// @Success 200 {object} util.Response{data=assessment.AnswerOutcome}
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/answers [post]
func (c *AttemptController) Answer(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	out, err := c.Service.Answer(user.LearnerID(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

// @Summary 完成选择题分区
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param section path string true "分区ID"
// @Success 200 {object} util.Response{data=assessment.SectionResult}
// @Router /attempts/{id}/sections/{section}/finish [post]
func (c *AttemptController) FinishSection(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	res, err := c.Service.FinishSection(user.LearnerID(), ctx.Param("id"), ctx.Param("section"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 运行代码
// @Description 调用远程判题，只展示结果，不计分
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param body body service.CodeRequest true "代码"
// @Success 200 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /attempts/{id}/code/run [post]
func (c *AttemptController) RunCode(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.CodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	results, err := c.Service.RunCode(ctx.Request.Context(), user.LearnerID(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"results": results})
}

// @Summary 提交代码
// @Description 判题结果计入编程分区成绩，分区随即结束
// @Tags 测评
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param body body service.CodeRequest true "代码"
// @Success 200 {object} util.Response{data=assessment.AnswerOutcome}
// @Failure 502 {object} util.Response
// @Router /attempts/{id}/code/submit [post]
func (c *AttemptController) SubmitCode(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.CodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	out, err := c.Service.SubmitCode(ctx.Request.Context(), user.LearnerID(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

// @Summary 交卷
// @Description 未完成的分区按零分计入
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=assessment.SubmissionReceipt}
// @Failure 409 {object} util.Response
// @Failure 410 {object} util.Response
// @Router /attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	receipt, err := c.Service.Submit(ctx.Request.Context(), user.LearnerID(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, receipt)
}

// @Summary 放弃作答
// @Description 停止计时，不自动交卷
// @Tags 测评
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /attempts/{id} [delete]
func (c *AttemptController) Close(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	id := ctx.Param("id")
	if err := c.Service.CloseAttempt(user.LearnerID(), id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"closed": id})
}
