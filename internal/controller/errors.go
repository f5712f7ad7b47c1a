package controller

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/repository"
	"coder_assessment_backend/internal/service"
	"coder_assessment_backend/internal/util"
	"coder_assessment_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var notFoundErrors = []error{
	repository.ErrTestNotFound,
	repository.ErrQuestionNotFound,
	repository.ErrSubmissionNotFound,
	repository.ErrDraftNotFound,
	assessment.ErrQuestionNotFound,
	assessment.ErrSectionNotFound,
	assessment.ErrEmptyQuiz,
	util.ErrAttemptNotFound,
	util.ErrQuizNotFound,
}

// 请求合法但与当前作答状态冲突
var conflictErrors = []error{
	assessment.ErrSubmitInFlight,
	assessment.ErrQuestionLocked,
	assessment.ErrSectionFinished,
}

var badRequestErrors = []error{
	assessment.ErrWrongSectionType,
	assessment.ErrSubmitRequired,
	assessment.ErrInvalidOption,
	assessment.ErrIndexOutOfRange,
	assessment.ErrInvalidSectionType,
	assessment.ErrInvalidAnswerKey,
	service.ErrUnknownDraftOp,
	service.ErrInvalidTrigger,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondError 把服务层错误映射为统一响应
func respondError(ctx *gin.Context, err error) {
	var verr *assessment.ValidationError
	switch {
	case errors.As(err, &verr):
		util.ValidationFailed(ctx, verr.Errors)
	case isAny(err, notFoundErrors):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrPermissionDenied), errors.Is(err, service.ErrNotDraftOwner):
		util.Forbidden(ctx)
	case errors.Is(err, assessment.ErrJudgeUnavailable):
		logger.Log.Warn("judge unavailable", zap.String("path", ctx.FullPath()), zap.Error(err))
		util.Error(ctx, http.StatusBadGateway, "code runner is unavailable, please try again")
	case errors.Is(err, assessment.ErrAttemptClosed):
		util.Gone(ctx, err.Error())
	case isAny(err, conflictErrors):
		util.Conflict(ctx, err.Error())
	case isAny(err, badRequestErrors):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// currentUser 读取认证信息，缺失时直接写 401
func currentUser(ctx *gin.Context) *util.Claims {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
	}
	return user
}
