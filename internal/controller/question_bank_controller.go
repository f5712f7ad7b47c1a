package controller

import (
	"coder_assessment_backend/internal/service"
	"coder_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionBankController struct {
	Service *service.QuestionBankService
}

func NewQuestionBankController(svc *service.QuestionBankService) *QuestionBankController {
	return &QuestionBankController{Service: svc}
}

// @Summary 创建选择题
// @Description 答案可以是选项下标、字母（A/B/C…）或选项原文
// @Tags 题库
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.MCQQuestionRequest true "选择题"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /teacher/questions/mcq [post]
func (c *QuestionBankController) CreateMCQ(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.MCQQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.CreateMCQ(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// @Summary 选择题列表（含答案）
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param genre query string false "题目类别"
// @Success 200 {object} util.Response
// @Router /teacher/questions/mcq [get]
func (c *QuestionBankController) ListMCQ(ctx *gin.Context) {
	list, err := c.Service.ListMCQ(ctx.Request.Context(), ctx.Query("genre"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 选择题详情
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "题目ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /teacher/questions/mcq/{id} [get]
func (c *QuestionBankController) GetMCQ(ctx *gin.Context) {
	q, err := c.Service.GetMCQ(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary 删除选择题
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /teacher/questions/mcq/{id} [delete]
func (c *QuestionBankController) DeleteMCQ(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.Service.DeleteMCQ(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary 创建编程题
// @Tags 题库
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CodingQuestionRequest true "编程题"
// @Success 201 {object} util.Response
// @Router /teacher/questions/coding [post]
func (c *QuestionBankController) CreateCoding(ctx *gin.Context) {
	user := currentUser(ctx)
	if user == nil {
		return
	}

	var req service.CodingQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.CreateCoding(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// @Summary 编程题列表（含测试用例）
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param genre query string false "题目类别"
// @Success 200 {object} util.Response
// @Router /teacher/questions/coding [get]
func (c *QuestionBankController) ListCoding(ctx *gin.Context) {
	list, err := c.Service.ListCoding(ctx.Request.Context(), ctx.Query("genre"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 编程题详情
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /teacher/questions/coding/{id} [get]
func (c *QuestionBankController) GetCoding(ctx *gin.Context) {
	q, err := c.Service.GetCoding(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary 删除编程题
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /teacher/questions/coding/{id} [delete]
func (c *QuestionBankController) DeleteCoding(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.Service.DeleteCoding(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary 学员可见的选择题
// @Description 不返回答案
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param genre query string false "题目类别"
// @Success 200 {object} util.Response
// @Router /questions/mcq [get]
func (c *QuestionBankController) LearnerMCQ(ctx *gin.Context) {
	list, err := c.Service.LearnerMCQ(ctx.Request.Context(), ctx.Query("genre"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 学员可见的编程题
// @Description 不返回测试用例
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param genre query string false "题目类别"
// @Success 200 {object} util.Response
// @Router /questions/coding [get]
func (c *QuestionBankController) LearnerCoding(ctx *gin.Context) {
	list, err := c.Service.LearnerCoding(ctx.Request.Context(), ctx.Query("genre"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
