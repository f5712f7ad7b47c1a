package controller

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/service"
	"coder_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestController struct {
	Service *service.TestService
}

func NewTestController(svc *service.TestService) *TestController {
	return &TestController{Service: svc}
}

// @Summary 新建试卷草稿
// @Description 草稿保存在 Redis 中，过期未保存自动丢弃
// @Tags 组卷
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateDraftRequest true "草稿基本信息"
// @Success 201 {object} util.Response
// @Router /teacher/test-drafts [post]
func (c *TestController) CreateDraft(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.CreateDraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	draft, err := c.Service.CreateDraft(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, draft)
}

// @Summary 获取试卷草稿
// @Tags 组卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "草稿ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /teacher/test-drafts/{id} [get]
func (c *TestController) GetDraft(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	draft, err := c.Service.GetDraft(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, draft)
}

// @Summary 丢弃试卷草稿
// @Tags 组卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "草稿ID"
// @Success 200 {object} util.Response
// @Router /teacher/test-drafts/{id} [delete]
func (c *TestController) DeleteDraft(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	id := ctx.Param("id")
	if err := c.Service.DeleteDraft(ctx.Request.Context(), user.UserID, id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary 编辑试卷草稿
// @Description op 取值：set_title, set_time_limit, set_total_marks, set_course, add_section, remove_section,
// @Description reorder_sections, set_section_type, set_section_title, set_section_genre, toggle_question, reorder_questions
// @Tags 组卷
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "草稿ID"
// @Param body body service.DraftOpRequest true "编辑操作"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /teacher/test-drafts/{id}/ops [post]
func (c *TestController) ApplyDraftOp(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.DraftOpRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.ApplyDraftOp(ctx.Request.Context(), user.UserID, ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 分区选题列表
// @Description 按分区题型和类别返回题库中的候选题目
// @Tags 组卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "草稿ID"
// @Param sectionId path string true "分区ID"
// @Success 200 {object} util.Response
// @Router /teacher/test-drafts/{id}/sections/{sectionId}/picker [get]
func (c *TestController) DraftPicker(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	view, err := c.Service.DraftPicker(ctx.Request.Context(), user.UserID, ctx.Param("id"), ctx.Param("sectionId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 保存草稿为试卷
// @Description 校验失败时返回按分区定位的错误，草稿保留
// @Tags 组卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "草稿ID"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /teacher/test-drafts/{id}/save [post]
func (c *TestController) SaveDraft(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	id, err := c.Service.SaveDraft(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"testId": id})
}

// @Summary 一次性创建试卷
// @Tags 组卷
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body assessment.Test true "试卷"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /teacher/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req assessment.Test
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	id, err := c.Service.CreateTest(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"testId": id})
}

// @Summary 我创建的试卷
// @Tags 组卷
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /teacher/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	page, limit := util.ParsePagination(ctx)
	list, total, err := c.Service.ListTests(ctx.Request.Context(), user.UserID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// @Summary 试卷详情
// @Tags 组卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /teacher/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	test, err := c.Service.GetTest(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// @Summary 删除试卷
// @Tags 组卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /teacher/tests/{id} [delete]
func (c *TestController) DeleteTest(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.Service.DeleteTest(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}
