package service

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/model"
	"coder_assessment_backend/internal/repository"
	"coder_assessment_backend/internal/util"
	"coder_assessment_backend/pkg/logger"
	"coder_assessment_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidTrigger = errors.New("trigger must be manual or timeout")

type SubmissionStore interface {
	Create(ctx context.Context, s *model.TestSubmission) error
	FindByAttemptID(ctx context.Context, attemptID string) (*model.TestSubmission, error)
	UpdateArchiveURL(ctx context.Context, id, url string) error
	ListByTest(ctx context.Context, testID string, page, limit int) ([]model.TestSubmission, int64, error)
	ListByLearner(ctx context.Context, learnerID string, page, limit int) ([]model.TestSubmission, int64, error)
}

type QuizResultStore interface {
	Save(ctx context.Context, q *model.QuizResult) error
	ListByLearner(ctx context.Context, learnerID string, limit int) ([]model.QuizResult, error)
}

// SubmitLocker 跨实例的单次提交互斥，由 repository.CacheRepository 实现
type SubmitLocker interface {
	AcquireSubmitLock(ctx context.Context, attemptID string, ttl time.Duration) (bool, error)
	ReleaseSubmitLock(ctx context.Context, attemptID string) error
}

type Archiver interface {
	ArchiveSubmission(ctx context.Context, p assessment.SubmissionPayload) (string, error)
}

type DeliveryLoader interface {
	LoadForDelivery(ctx context.Context, id string) (*Delivery, error)
}

// SubmissionService 实现 assessment.Submitter 与 assessment.QuizRecorder。
// 分数以服务端按已存试卷重新计算的结果为准。
type SubmissionService struct {
	Repo    SubmissionStore
	Quizzes QuizResultStore
	Locks   SubmitLocker
	Tests   DeliveryLoader
	Archive Archiver // 为 nil 时不归档
	LockTTL time.Duration
}

func NewSubmissionService(repo SubmissionStore, quizzes QuizResultStore, locks SubmitLocker, tests DeliveryLoader, archive Archiver, lockTTL time.Duration) *SubmissionService {
	return &SubmissionService{
		Repo:    repo,
		Quizzes: quizzes,
		Locks:   locks,
		Tests:   tests,
		Archive: archive,
		LockTTL: lockTTL,
	}
}

// SubmitAttempt 持久化整卷提交。同一 attempt 重复提交返回已有回执
func (s *SubmissionService) SubmitAttempt(ctx context.Context, p assessment.SubmissionPayload) (assessment.SubmissionReceipt, error) {
	ok, err := s.Locks.AcquireSubmitLock(ctx, p.AttemptID, s.LockTTL)
	if err != nil {
		return assessment.SubmissionReceipt{}, err
	}
	if !ok {
		return assessment.SubmissionReceipt{}, assessment.ErrSubmitInFlight
	}
	defer func() {
		if err := s.Locks.ReleaseSubmitLock(context.Background(), p.AttemptID); err != nil {
			logger.Log.Warn("Failed to release submit lock", zap.String("attemptId", p.AttemptID), zap.Error(err))
		}
	}()

	existing, err := s.Repo.FindByAttemptID(ctx, p.AttemptID)
	if err == nil {
		if existing.LearnerID != p.LearnerID {
			return assessment.SubmissionReceipt{}, util.ErrPermissionDenied
		}
		return existing.Receipt(), nil
	}
	if !errors.Is(err, repository.ErrSubmissionNotFound) {
		return assessment.SubmissionReceipt{}, err
	}

	d, err := s.Tests.LoadForDelivery(ctx, p.TestID)
	if err != nil {
		return assessment.SubmissionReceipt{}, err
	}
	p = Rescore(p, d)

	row, err := model.NewTestSubmission(p)
	if err != nil {
		return assessment.SubmissionReceipt{}, err
	}
	if err := s.Repo.Create(ctx, row); err != nil {
		monitoring.SubmissionCounter.WithLabelValues(string(p.Trigger), "error").Inc()
		return assessment.SubmissionReceipt{}, err
	}
	monitoring.SubmissionCounter.WithLabelValues(string(p.Trigger), "ok").Inc()
	logger.Log.Info("Submission persisted",
		zap.String("attemptId", p.AttemptID),
		zap.String("testId", p.TestID),
		zap.String("learnerId", p.LearnerID),
		zap.String("trigger", string(p.Trigger)),
		zap.Int("score", p.Score),
		zap.Int("maxScore", p.MaxScore))

	if s.Archive != nil {
		url, err := s.Archive.ArchiveSubmission(ctx, p)
		if err != nil {
			logger.Log.Error("Failed to archive submission", zap.String("attemptId", p.AttemptID), zap.Error(err))
		} else if err := s.Repo.UpdateArchiveURL(ctx, row.ID, url); err != nil {
			logger.Log.Error("Failed to record archive url", zap.String("attemptId", p.AttemptID), zap.Error(err))
		} else {
			row.ArchiveURL = url
		}
	}
	return row.Receipt(), nil
}

// DirectSubmitRequest 不经过进程内会话、由客户端直接提交的整卷结果。
// 作答 ID 由服务端生成；编程题没有服务端判题记录，结果一律按 0 分计
type DirectSubmitRequest struct {
	CourseID         string                              `json:"courseId"`
	Results          map[string]assessment.SectionResult `json:"results" binding:"required"`
	SubmittedAt      *time.Time                          `json:"submittedAt"`
	RemainingSeconds *int                                `json:"remainingSeconds"`
	Trigger          assessment.Trigger                  `json:"trigger"`
}

// SubmitDirect 学员与试卷 ID 取自鉴权信息与路径，不信任请求体
func (s *SubmissionService) SubmitDirect(ctx context.Context, learnerID, testID string, req DirectSubmitRequest) (assessment.SubmissionReceipt, error) {
	results := make(map[string]assessment.SectionResult, len(req.Results))
	for id, r := range req.Results {
		if r.Type == assessment.SectionCoding {
			if r.PassedCount > 0 {
				logger.Log.Debug("Ignoring self-reported coding result",
					zap.String("testId", testID),
					zap.String("learnerId", learnerID),
					zap.String("sectionId", id),
					zap.Int("passedCount", r.PassedCount))
			}
			continue
		}
		results[id] = r
	}
	p := assessment.SubmissionPayload{
		AttemptID:        uuid.New().String(),
		TestID:           testID,
		LearnerID:        learnerID,
		CourseID:         req.CourseID,
		Results:          results,
		RemainingSeconds: req.RemainingSeconds,
		Trigger:          req.Trigger,
		SubmittedAt:      time.Now().UTC(),
	}
	if req.SubmittedAt != nil {
		p.SubmittedAt = req.SubmittedAt.UTC()
	}
	switch p.Trigger {
	case "":
		p.Trigger = assessment.TriggerManual
	case assessment.TriggerManual, assessment.TriggerTimeout:
	default:
		return assessment.SubmissionReceipt{}, ErrInvalidTrigger
	}
	if p.RemainingSeconds != nil && *p.RemainingSeconds < 0 {
		zero := 0
		p.RemainingSeconds = &zero
	}
	return s.SubmitAttempt(ctx, p)
}

// Rescore 按试卷重新计算每个分区的成绩：
// 选择题按答案键重新判分，编程题通过数截断在 [0, 用例总数]，
// 缺失的分区计 0 分，试卷中不存在的分区丢弃。
func Rescore(p assessment.SubmissionPayload, d *Delivery) assessment.SubmissionPayload {
	out := make(map[string]assessment.SectionResult, len(d.Test.Sections))
	for _, sec := range d.Test.Sections {
		submitted, present := p.Results[sec.ID]
		if present && submitted.Type != sec.Type {
			present = false
		}
		switch sec.Type {
		case assessment.SectionMCQ:
			r := assessment.SectionResult{
				SectionID: sec.ID,
				Type:      assessment.SectionMCQ,
				Total:     len(sec.Questions),
				Answers:   make(map[string]*int, len(sec.Questions)),
				Forced:    !present || submitted.Forced,
			}
			for _, qid := range sec.Questions {
				var sel *int
				if present {
					sel = submitted.Answers[qid]
				}
				r.Answers[qid] = sel
				if sel == nil {
					continue
				}
				q := d.MCQ[qid]
				key, err := assessment.NormalizeAnswerKey(q.Answer, q.Options)
				if err == nil && *sel == key {
					r.Score++
				}
			}
			out[sec.ID] = r
		case assessment.SectionCoding:
			r := assessment.SectionResult{
				SectionID: sec.ID,
				Type:      assessment.SectionCoding,
				Forced:    !present || submitted.Forced,
			}
			for _, qid := range sec.Questions {
				r.Total += len(d.Coding[qid].TestCases)
			}
			if present {
				r.PassedCount = clamp(submitted.PassedCount, 0, r.Total)
			}
			out[sec.ID] = r
		}
	}
	p.Results = out
	p.Score, p.MaxScore = assessment.AggregateMap(out)
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *SubmissionService) GetByAttempt(ctx context.Context, attemptID string) (*model.TestSubmission, error) {
	return s.Repo.FindByAttemptID(ctx, attemptID)
}

func (s *SubmissionService) ListByTest(ctx context.Context, testID string, page, limit int) ([]model.TestSubmission, int64, error) {
	return s.Repo.ListByTest(ctx, testID, page, limit)
}

func (s *SubmissionService) ListByLearner(ctx context.Context, learnerID string, page, limit int) ([]model.TestSubmission, int64, error) {
	return s.Repo.ListByLearner(ctx, learnerID, page, limit)
}

// SaveQuizResult 单题测验结果，同一测验重复写入覆盖
func (s *SubmissionService) SaveQuizResult(ctx context.Context, o assessment.QuizOutcome) error {
	if err := s.Quizzes.Save(ctx, model.NewQuizResult(o)); err != nil {
		return fmt.Errorf("save quiz result %s: %w", o.QuizID, err)
	}
	logger.Log.Info("Quiz result saved",
		zap.String("quizId", o.QuizID),
		zap.String("learnerId", o.LearnerID),
		zap.String("status", string(o.Status)),
		zap.Int("score", o.Score),
		zap.Int("total", o.Total))
	return nil
}

func (s *SubmissionService) ListQuizResults(ctx context.Context, learnerID string, limit int) ([]model.QuizResult, error) {
	return s.Quizzes.ListByLearner(ctx, learnerID, limit)
}
