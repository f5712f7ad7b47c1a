package assessment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type QuizStatus string

const (
	QuizInProgress QuizStatus = "in_progress"
	QuizCompleted  QuizStatus = "completed"
	QuizExited     QuizStatus = "exited"
)

const DefaultQuestionTime = 20 * time.Second

// QuizOutcome 单题测验的持久化内容
type QuizOutcome struct {
	QuizID     string     `json:"quizId"`
	LearnerID  string     `json:"learnerId"`
	CourseID   string     `json:"courseId,omitempty"`
	Score      int        `json:"score"`
	Total      int        `json:"total"`
	Answered   int        `json:"answered"`
	Status     QuizStatus `json:"status"`
	FinishedAt time.Time  `json:"finishedAt"`
}

type QuizRecorder interface {
	SaveQuizResult(ctx context.Context, o QuizOutcome) error
}

type QuizConfig struct {
	QuizID       string
	LearnerID    string
	CourseID     string
	Questions    []MCQQuestion
	QuestionTime time.Duration
	Clock        Clock
	Recorder     QuizRecorder
	Logger       *zap.Logger

	PersistTimeout time.Duration
	OnFinished     func(quizID string)
}

// QuizSession 单题测验：没有分区和整卷计时，每道题独立倒计时，
// 作答或超时都会进入下一题，分数逐题累计。
type QuizSession struct {
	mu  sync.Mutex
	cfg QuizConfig
	log *zap.Logger

	mcq       *MCQStrategy
	questions []MCQQuestion
	current   int
	answered  int
	status    QuizStatus
	countdown *Countdown
	persisted bool
	outcome   *QuizOutcome
}

func NewQuizSession(cfg QuizConfig) (*QuizSession, error) {
	if len(cfg.Questions) == 0 {
		return nil, ErrEmptyQuiz
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.QuestionTime <= 0 {
		cfg.QuestionTime = DefaultQuestionTime
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 15 * time.Second
	}

	sec := Section{ID: cfg.QuizID, Title: "quiz", Type: SectionMCQ}
	for _, q := range cfg.Questions {
		sec.Questions = append(sec.Questions, q.ID)
	}
	mcq, err := NewMCQStrategy(sec, cfg.Questions)
	if err != nil {
		return nil, err
	}
	q := &QuizSession{
		cfg:       cfg,
		log:       cfg.Logger.With(zap.String("quizId", cfg.QuizID)),
		mcq:       mcq,
		questions: append([]MCQQuestion(nil), cfg.Questions...),
		status:    QuizInProgress,
	}
	q.countdown = NewCountdown(cfg.Clock, cfg.QuestionTime, q.expire)
	return q, nil
}

func (q *QuizSession) ID() string { return q.cfg.QuizID }

func (q *QuizSession) LearnerID() string { return q.cfg.LearnerID }

// Start 开始第一题的倒计时
func (q *QuizSession) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status == QuizInProgress && !q.countdown.Running() {
		q.countdown.Reset()
	}
}

// SetQuestionTime 配置热更新后从下一题开始生效
func (q *QuizSession) SetQuestionTime(d time.Duration) {
	if d > 0 {
		q.countdown.SetDuration(d)
	}
}

// Answer 只接受当前题目；答完最后一题时写入最终成绩
func (q *QuizSession) Answer(ctx context.Context, questionID string, option int) (AnswerOutcome, error) {
	q.mu.Lock()
	if q.status != QuizInProgress {
		q.mu.Unlock()
		return AnswerOutcome{}, ErrAttemptClosed
	}
	if cur := q.questions[q.current].ID; cur != questionID {
		i, known := q.mcq.index[questionID]
		current := q.current
		q.mu.Unlock()
		if known && i < current {
			return AnswerOutcome{}, ErrQuestionLocked
		}
		return AnswerOutcome{}, fmt.Errorf("%w: %s is not the current question", ErrQuestionNotFound, questionID)
	}
	out, err := q.mcq.RecordAnswer(Answer{QuestionID: questionID, Option: &option})
	if err != nil {
		q.mu.Unlock()
		return AnswerOutcome{}, err
	}
	q.answered++
	done := q.advanceLocked()
	q.mu.Unlock()

	if done {
		if _, err := q.persist(ctx, QuizCompleted); err != nil {
			return out, err
		}
	}
	return out, nil
}

// expire 当前题超时：按未作答锁定并进入下一题。
// 触发后到拿到锁之间如果已经作答并换题，gen 就不再是当前代次，直接忽略
func (q *QuizSession) expire(gen uint64) {
	q.mu.Lock()
	if q.status != QuizInProgress || !q.countdown.Current(gen) {
		q.mu.Unlock()
		return
	}
	id := q.questions[q.current].ID
	if _, err := q.mcq.RecordAnswer(Answer{QuestionID: id}); err != nil {
		q.mu.Unlock()
		q.log.Warn("quiz timeout on locked question", zap.String("questionId", id), zap.Error(err))
		return
	}
	done := q.advanceLocked()
	q.mu.Unlock()

	if done {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.PersistTimeout)
		defer cancel()
		if _, err := q.persist(ctx, QuizCompleted); err != nil {
			q.log.Error("persist quiz result failed", zap.Error(err))
		}
	}
}

// advanceLocked 进入下一题并重置倒计时，返回测验是否已结束
func (q *QuizSession) advanceLocked() bool {
	q.current++
	if q.current >= len(q.questions) {
		q.current = len(q.questions) - 1
		q.status = QuizCompleted
		q.countdown.Stop()
		return true
	}
	q.countdown.Reset()
	return false
}

// Exit 中途退出时保存已累计的分数，而不是丢弃本次测验
func (q *QuizSession) Exit(ctx context.Context) (QuizOutcome, error) {
	q.mu.Lock()
	status := q.status
	if status == QuizInProgress {
		status = QuizExited
		q.status = QuizExited
		q.countdown.Stop()
	}
	q.mu.Unlock()
	return q.persist(ctx, status)
}

// persist 只成功写入一次；失败后可通过 Exit 重试
func (q *QuizSession) persist(ctx context.Context, status QuizStatus) (QuizOutcome, error) {
	q.mu.Lock()
	if q.persisted && q.outcome != nil {
		o := *q.outcome
		q.mu.Unlock()
		return o, nil
	}
	o := q.outcomeLocked(status)
	q.mu.Unlock()

	if q.cfg.Recorder != nil {
		if err := q.cfg.Recorder.SaveQuizResult(ctx, o); err != nil {
			return o, err
		}
	}

	q.mu.Lock()
	q.persisted = true
	q.outcome = &o
	q.mu.Unlock()

	q.log.Info("quiz finished",
		zap.String("status", string(o.Status)),
		zap.Int("score", o.Score),
		zap.Int("total", o.Total))
	if q.cfg.OnFinished != nil {
		q.cfg.OnFinished(q.cfg.QuizID)
	}
	return o, nil
}

func (q *QuizSession) outcomeLocked(status QuizStatus) QuizOutcome {
	r := q.mcq.Finalize()
	return QuizOutcome{
		QuizID:     q.cfg.QuizID,
		LearnerID:  q.cfg.LearnerID,
		CourseID:   q.cfg.CourseID,
		Score:      r.Score,
		Total:      len(q.questions),
		Answered:   q.answered,
		Status:     status,
		FinishedAt: q.cfg.Clock.Now().UTC(),
	}
}

type QuizView struct {
	QuizID           string        `json:"quizId"`
	Status           QuizStatus    `json:"status"`
	Current          int           `json:"current"`
	Total            int           `json:"total"`
	Score            int           `json:"score"`
	Answered         int           `json:"answered"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Question         *QuestionView `json:"question,omitempty"`
	Persisted        bool          `json:"persisted"`
}

func (q *QuizSession) Snapshot() QuizView {
	q.mu.Lock()
	defer q.mu.Unlock()
	v := QuizView{
		QuizID:           q.cfg.QuizID,
		Status:           q.status,
		Current:          q.current,
		Total:            len(q.questions),
		Score:            q.mcq.Finalize().Score,
		Answered:         q.answered,
		RemainingSeconds: int(q.countdown.Remaining() / time.Second),
		Persisted:        q.persisted,
	}
	if q.status == QuizInProgress {
		sv := q.mcq.Render()
		qv := sv.Questions[q.current]
		v.Question = &qv
	}
	return v
}

// Close 视图销毁：只停止倒计时
func (q *QuizSession) Close() {
	q.countdown.Stop()
}
