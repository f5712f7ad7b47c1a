package service

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/config"
	"coder_assessment_backend/internal/util"
	"coder_assessment_backend/pkg/logger"
	"coder_assessment_backend/pkg/monitoring"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 结束后的会话保留一段时间，便于学员查看回执
const finishedRetention = 10 * time.Minute

type QuizSource interface {
	RandomMCQ(ctx context.Context, genre string, n int) ([]assessment.MCQQuestion, error)
}

// DeliveryService 管理进程内的作答会话。计时器在服务端运行，到期自动交卷
type DeliveryService struct {
	Tests     DeliveryLoader
	Bank      QuizSource
	Judge     assessment.Judge
	Submitter assessment.Submitter
	Recorder  assessment.QuizRecorder
	Clock     assessment.Clock

	mu       sync.RWMutex
	cfg      config.AssessmentConfig
	sessions map[string]*assessment.Session
	idle     map[string]*assessment.Countdown
	quizzes  map[string]*assessment.QuizSession
}

func NewDeliveryService(tests DeliveryLoader, bank QuizSource, judge assessment.Judge, submitter assessment.Submitter, recorder assessment.QuizRecorder, cfg config.AssessmentConfig) *DeliveryService {
	return &DeliveryService{
		Tests:     tests,
		Bank:      bank,
		Judge:     judge,
		Submitter: submitter,
		Recorder:  recorder,
		Clock:     assessment.RealClock,
		cfg:       cfg,
		sessions:  make(map[string]*assessment.Session),
		idle:      make(map[string]*assessment.Countdown),
		quizzes:   make(map[string]*assessment.QuizSession),
	}
}

// ApplyConfig 配置热更新：新的每题时长对进行中的测验从下一题开始生效
func (s *DeliveryService) ApplyConfig(cfg config.AssessmentConfig) {
	s.mu.Lock()
	s.cfg = cfg
	quizzes := make([]*assessment.QuizSession, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		quizzes = append(quizzes, q)
	}
	s.mu.Unlock()

	d := cfg.QuizQuestionTime()
	for _, q := range quizzes {
		q.SetQuestionTime(d)
	}
	logger.Log.Info("Assessment config reloaded",
		zap.Duration("quizQuestionTime", d),
		zap.Int("activeQuizzes", len(quizzes)))
}

func (s *DeliveryService) currentConfig() config.AssessmentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// StartAttempt 加载试卷与全部题目后创建会话；任何加载失败都不会创建会话
func (s *DeliveryService) StartAttempt(ctx context.Context, learnerID, testID string) (assessment.SessionView, error) {
	d, err := s.Tests.LoadForDelivery(ctx, testID)
	if err != nil {
		return assessment.SessionView{}, err
	}
	cfg := s.currentConfig()
	attemptID := uuid.New().String()
	sess, err := assessment.NewSession(assessment.SessionConfig{
		AttemptID:         attemptID,
		LearnerID:         learnerID,
		Test:              d.Test,
		MCQ:               d.MCQ,
		Coding:            d.Coding,
		Judge:             s.Judge,
		Submitter:         s.Submitter,
		Clock:             s.Clock,
		Logger:            logger.Log,
		AutoSubmitTimeout: cfg.AutoSubmitTimeout(),
		OnFinished:        s.retireAttempt,
	})
	if err != nil {
		return assessment.SessionView{}, err
	}

	idleTTL := cfg.IdleAttemptTTL() + time.Duration(d.Test.TimeLimit)*time.Minute
	idle := assessment.NewCountdown(s.Clock, idleTTL, func(gen uint64) { s.expireIdle(attemptID, gen) })

	s.mu.Lock()
	s.sessions[attemptID] = sess
	s.idle[attemptID] = idle
	s.mu.Unlock()
	monitoring.ActiveSessions.WithLabelValues("attempt").Inc()

	idle.Start()
	sess.Start()
	logger.Log.Info("Attempt started",
		zap.String("attemptId", attemptID),
		zap.String("testId", testID),
		zap.String("learnerId", learnerID),
		zap.Int("timeLimit", d.Test.TimeLimit))
	return sess.Snapshot(), nil
}

// retireAttempt 交卷或关闭后延迟移除会话
func (s *DeliveryService) retireAttempt(attemptID string) {
	s.Clock.AfterFunc(finishedRetention, func() { s.removeAttempt(attemptID) })
}

// expireIdle 长时间无操作的会话直接关闭，不提交
func (s *DeliveryService) expireIdle(attemptID string, gen uint64) {
	s.mu.RLock()
	sess, ok := s.sessions[attemptID]
	idle := s.idle[attemptID]
	s.mu.RUnlock()
	if !ok || idle == nil || !idle.Current(gen) {
		return
	}
	logger.Log.Info("Idle attempt closed",
		zap.String("attemptId", attemptID),
		zap.String("learnerId", sess.LearnerID()),
		zap.String("state", string(sess.State())))
	sess.Close()
	s.removeAttempt(attemptID)
}

func (s *DeliveryService) removeAttempt(attemptID string) {
	s.mu.Lock()
	_, ok := s.sessions[attemptID]
	idle := s.idle[attemptID]
	delete(s.sessions, attemptID)
	delete(s.idle, attemptID)
	s.mu.Unlock()
	if idle != nil {
		idle.Stop()
	}
	if ok {
		monitoring.ActiveSessions.WithLabelValues("attempt").Dec()
	}
}

func (s *DeliveryService) attempt(learnerID, attemptID string) (*assessment.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[attemptID]
	idle := s.idle[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	if sess.LearnerID() != learnerID {
		return nil, util.ErrPermissionDenied
	}
	if idle != nil {
		idle.Reset()
	}
	return sess, nil
}

func (s *DeliveryService) GetAttempt(learnerID, attemptID string) (assessment.SessionView, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return assessment.SessionView{}, err
	}
	return sess.Snapshot(), nil
}

func (s *DeliveryService) SelectSection(learnerID, attemptID string, index int) (assessment.SessionView, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return assessment.SessionView{}, err
	}
	if err := sess.SelectSection(index); err != nil {
		return assessment.SessionView{}, err
	}
	return sess.Snapshot(), nil
}

func (s *DeliveryService) SelectQuestion(learnerID, attemptID string, index int) (assessment.SessionView, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return assessment.SessionView{}, err
	}
	if err := sess.SelectQuestion(index); err != nil {
		return assessment.SessionView{}, err
	}
	return sess.Snapshot(), nil
}

type AnswerRequest struct {
	SectionID  string `json:"sectionId" binding:"required"`
	QuestionID string `json:"questionId" binding:"required"`
	Option     *int   `json:"option" binding:"required,min=0"`
}

func (s *DeliveryService) Answer(learnerID, attemptID string, req AnswerRequest) (assessment.AnswerOutcome, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return assessment.AnswerOutcome{}, err
	}
	return sess.Answer(req.SectionID, req.QuestionID, *req.Option)
}

func (s *DeliveryService) FinishSection(learnerID, attemptID, sectionID string) (assessment.SectionResult, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return assessment.SectionResult{}, err
	}
	return sess.FinishSection(sectionID)
}

type CodeRequest struct {
	SectionID  string `json:"sectionId" binding:"required"`
	QuestionID string `json:"questionId" binding:"required"`
	Code       string `json:"code" binding:"required"`
	Language   string `json:"language"`
}

func (s *DeliveryService) RunCode(ctx context.Context, learnerID, attemptID string, req CodeRequest) ([]assessment.CaseResult, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	return sess.RunCode(ctx, req.SectionID, req.QuestionID, req.Code, req.Language)
}

func (s *DeliveryService) SubmitCode(ctx context.Context, learnerID, attemptID string, req CodeRequest) (assessment.AnswerOutcome, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return assessment.AnswerOutcome{}, err
	}
	return sess.SubmitCode(ctx, req.SectionID, req.QuestionID, req.Code, req.Language)
}

func (s *DeliveryService) Submit(ctx context.Context, learnerID, attemptID string) (assessment.SubmissionReceipt, error) {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return assessment.SubmissionReceipt{}, err
	}
	return sess.Submit(ctx)
}

// CloseAttempt 离开作答页：停止计时并立即移除，不提交
func (s *DeliveryService) CloseAttempt(learnerID, attemptID string) error {
	sess, err := s.attempt(learnerID, attemptID)
	if err != nil {
		return err
	}
	sess.Close()
	s.removeAttempt(attemptID)
	return nil
}

type StartQuizRequest struct {
	Genre    string `json:"genre"`
	Size     int    `json:"size" binding:"min=0,max=50"`
	CourseID string `json:"courseId"`
}

// StartQuiz 从题库随机抽题开始单题测验
func (s *DeliveryService) StartQuiz(ctx context.Context, learnerID string, req StartQuizRequest) (assessment.QuizView, error) {
	cfg := s.currentConfig()
	size := req.Size
	if size <= 0 {
		size = cfg.QuizSize
	}
	if size <= 0 {
		size = 10
	}
	qs, err := s.Bank.RandomMCQ(ctx, req.Genre, size)
	if err != nil {
		return assessment.QuizView{}, err
	}
	quizID := uuid.New().String()
	quiz, err := assessment.NewQuizSession(assessment.QuizConfig{
		QuizID:         quizID,
		LearnerID:      learnerID,
		CourseID:       req.CourseID,
		Questions:      qs,
		QuestionTime:   cfg.QuizQuestionTime(),
		Clock:          s.Clock,
		Recorder:       s.Recorder,
		Logger:         logger.Log,
		PersistTimeout: cfg.AutoSubmitTimeout(),
		OnFinished:     s.retireQuiz,
	})
	if err != nil {
		return assessment.QuizView{}, err
	}

	s.mu.Lock()
	s.quizzes[quizID] = quiz
	s.mu.Unlock()
	monitoring.ActiveSessions.WithLabelValues("quiz").Inc()

	quiz.Start()
	logger.Log.Info("Quiz started",
		zap.String("quizId", quizID),
		zap.String("learnerId", learnerID),
		zap.String("genre", req.Genre),
		zap.Int("questions", len(qs)))
	return quiz.Snapshot(), nil
}

func (s *DeliveryService) retireQuiz(quizID string) {
	s.Clock.AfterFunc(finishedRetention, func() { s.removeQuiz(quizID) })
}

func (s *DeliveryService) removeQuiz(quizID string) {
	s.mu.Lock()
	q, ok := s.quizzes[quizID]
	delete(s.quizzes, quizID)
	s.mu.Unlock()
	if ok {
		q.Close()
		monitoring.ActiveSessions.WithLabelValues("quiz").Dec()
	}
}

func (s *DeliveryService) quiz(learnerID, quizID string) (*assessment.QuizSession, error) {
	s.mu.RLock()
	q, ok := s.quizzes[quizID]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrQuizNotFound
	}
	if q.LearnerID() != learnerID {
		return nil, util.ErrPermissionDenied
	}
	return q, nil
}

func (s *DeliveryService) GetQuiz(learnerID, quizID string) (assessment.QuizView, error) {
	q, err := s.quiz(learnerID, quizID)
	if err != nil {
		return assessment.QuizView{}, err
	}
	return q.Snapshot(), nil
}

type QuizAnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	Option     *int   `json:"option" binding:"required,min=0"`
}

type QuizAnswerResult struct {
	Outcome assessment.AnswerOutcome `json:"outcome"`
	Quiz    assessment.QuizView      `json:"quiz"`
}

func (s *DeliveryService) AnswerQuiz(ctx context.Context, learnerID, quizID string, req QuizAnswerRequest) (*QuizAnswerResult, error) {
	q, err := s.quiz(learnerID, quizID)
	if err != nil {
		return nil, err
	}
	out, err := q.Answer(ctx, req.QuestionID, *req.Option)
	if err != nil {
		return nil, err
	}
	return &QuizAnswerResult{Outcome: out, Quiz: q.Snapshot()}, nil
}

// ExitQuiz 中途退出，保存已累计分数
func (s *DeliveryService) ExitQuiz(ctx context.Context, learnerID, quizID string) (assessment.QuizOutcome, error) {
	q, err := s.quiz(learnerID, quizID)
	if err != nil {
		return assessment.QuizOutcome{}, err
	}
	return q.Exit(ctx)
}

// Shutdown 停止全部计时器，进程退出前调用
func (s *DeliveryService) Shutdown() {
	s.mu.Lock()
	sessions := make([]*assessment.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	quizzes := make([]*assessment.QuizSession, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		quizzes = append(quizzes, q)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	s.mu.Lock()
	for id, idle := range s.idle {
		idle.Stop()
		delete(s.idle, id)
	}
	s.mu.Unlock()
	for _, q := range quizzes {
		q.Close()
	}
	logger.Log.Info("Delivery sessions closed",
		zap.Int("attempts", len(sessions)),
		zap.Int("quizzes", len(quizzes)))
}

func (s *DeliveryService) ActiveCounts() (attempts, quizzes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), len(s.quizzes)
}
