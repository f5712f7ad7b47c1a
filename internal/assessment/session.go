package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	StateLoading         State = "loading"
	StatePresenting      State = "presenting"
	StateSectionComplete State = "section_complete"
	StateAllComplete     State = "all_complete"
	StateSubmitting      State = "submitting"
	StateSubmitted       State = "submitted"
	StateClosed          State = "closed"
)

// Submitter 持久化整卷提交并返回服务端回执
type Submitter interface {
	SubmitAttempt(ctx context.Context, p SubmissionPayload) (SubmissionReceipt, error)
}

type SessionConfig struct {
	AttemptID string
	LearnerID string
	CourseID  string
	Test      Test
	MCQ       map[string]MCQQuestion
	Coding    map[string]CodingQuestion

	Judge     Judge
	Submitter Submitter
	Clock     Clock
	Logger    *zap.Logger

	// AutoSubmitTimeout 超时自动提交时使用的持久化超时
	AutoSubmitTimeout time.Duration
	// OnFinished 提交成功或会话关闭后回调（在锁外执行）
	OnFinished func(attemptID string)
}

// Session 多分区试卷的作答会话，只属于创建它的学员
type Session struct {
	mu  sync.Mutex
	cfg SessionConfig
	log *zap.Logger

	state           State
	strategies      []SectionStrategy
	results         map[string]SectionResult
	currentSection  int
	currentQuestion int
	countdown       *Countdown
	timedOut        bool
	startedAt       time.Time
	receipt         *SubmissionReceipt
	lastErr         string
}

// NewSession 加载阶段：为每个分区构造策略，任何题目缺失都会使会话无法开始
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.AutoSubmitTimeout <= 0 {
		cfg.AutoSubmitTimeout = 15 * time.Second
	}
	if cfg.CourseID == "" {
		cfg.CourseID = cfg.Test.CourseID
	}
	cfg.Test = cfg.Test.clone()

	s := &Session{
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("attemptId", cfg.AttemptID), zap.String("testId", cfg.Test.ID)),
		state:   StateLoading,
		results: make(map[string]SectionResult, len(cfg.Test.Sections)),
	}
	for _, sec := range cfg.Test.Sections {
		st, err := NewStrategy(sec, cfg.MCQ, cfg.Coding)
		if err != nil {
			return nil, err
		}
		s.strategies = append(s.strategies, st)
	}
	return s, nil
}

// Start 进入作答状态，试卷设置了限时则开始整卷倒计时
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading {
		return
	}
	s.state = StatePresenting
	s.startedAt = s.cfg.Clock.Now()
	if s.cfg.Test.TimeLimit > 0 {
		s.countdown = NewCountdown(s.cfg.Clock, time.Duration(s.cfg.Test.TimeLimit)*time.Minute, s.expire)
		s.countdown.Start()
	}
	if len(s.strategies) == 0 {
		s.state = StateAllComplete
	}
}

func (s *Session) ID() string { return s.cfg.AttemptID }

func (s *Session) LearnerID() string { return s.cfg.LearnerID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// open 可编辑状态。整卷超时后只允许交卷
func (s *Session) open() bool {
	if s.timedOut {
		return false
	}
	switch s.state {
	case StatePresenting, StateSectionComplete, StateAllComplete:
		return true
	}
	return false
}

func (s *Session) sectionByID(id string) (int, SectionStrategy, error) {
	for i, st := range s.strategies {
		if st.Section().ID == id {
			return i, st, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: %s", ErrSectionNotFound, id)
}

// SelectSection 分区标签可随时切换；已完成的分区只能查看
func (s *Session) SelectSection(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open() {
		return ErrAttemptClosed
	}
	if index < 0 || index >= len(s.strategies) {
		return fmt.Errorf("%w: section %d", ErrIndexOutOfRange, index)
	}
	s.currentSection = index
	s.currentQuestion = 0
	return nil
}

func (s *Session) SelectQuestion(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open() {
		return ErrAttemptClosed
	}
	if len(s.strategies) == 0 {
		return fmt.Errorf("%w: question %d", ErrIndexOutOfRange, index)
	}
	n := len(s.strategies[s.currentSection].Section().Questions)
	if index < 0 || index >= n {
		return fmt.Errorf("%w: question %d", ErrIndexOutOfRange, index)
	}
	s.currentQuestion = index
	return nil
}

// Answer 选择题作答，同一题只接受一次
func (s *Session) Answer(sectionID, questionID string, option int) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open() {
		return AnswerOutcome{}, ErrAttemptClosed
	}
	_, st, err := s.sectionByID(sectionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if st.Kind() != SectionMCQ {
		return AnswerOutcome{}, ErrWrongSectionType
	}
	if _, done := s.results[sectionID]; done {
		return AnswerOutcome{}, ErrSectionFinished
	}
	return st.RecordAnswer(Answer{QuestionID: questionID, Option: &option})
}

// FinishSection 写入分区成绩，之后该分区不可再作答。编程题分区只能通过提交代码完成
func (s *Session) FinishSection(sectionID string) (SectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open() {
		return SectionResult{}, ErrAttemptClosed
	}
	i, st, err := s.sectionByID(sectionID)
	if err != nil {
		return SectionResult{}, err
	}
	if _, done := s.results[sectionID]; done {
		return SectionResult{}, ErrSectionFinished
	}
	if _, judged := st.(judgedStrategy); judged {
		return SectionResult{}, ErrSubmitRequired
	}
	return s.finishLocked(i, st), nil
}

func (s *Session) finishLocked(i int, st SectionStrategy) SectionResult {
	r := st.Finalize()
	s.results[r.SectionID] = r
	s.state = StateSectionComplete
	if len(s.results) == len(s.strategies) {
		s.state = StateAllComplete
		return r
	}
	if i == s.currentSection {
		for j := 1; j <= len(s.strategies); j++ {
			next := (i + j) % len(s.strategies)
			if _, done := s.results[s.strategies[next].Section().ID]; !done {
				s.currentSection = next
				s.currentQuestion = 0
				s.state = StatePresenting
				break
			}
		}
	}
	return r
}

func (s *Session) judgedSection(sectionID string) (int, judgedStrategy, error) {
	if !s.open() {
		return 0, nil, ErrAttemptClosed
	}
	i, st, err := s.sectionByID(sectionID)
	if err != nil {
		return 0, nil, err
	}
	js, ok := st.(judgedStrategy)
	if !ok {
		return 0, nil, ErrWrongSectionType
	}
	if _, done := s.results[sectionID]; done {
		return 0, nil, ErrSectionFinished
	}
	return i, js, nil
}

// RunCode 调用远程判题并展示结果，不影响成绩。判题期间不持有会话锁
func (s *Session) RunCode(ctx context.Context, sectionID, questionID, code, language string) ([]CaseResult, error) {
	s.mu.Lock()
	_, js, err := s.judgedSection(sectionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req, err := js.PrepareRun(questionID, code, language)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	cases, err := s.cfg.Judge.Run(ctx, req)
	if err != nil {
		return nil, judgeError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open() {
		if _, done := s.results[sectionID]; !done {
			if _, err := js.RecordAnswer(Answer{QuestionID: questionID, Code: code, Cases: cases}); err != nil && !errors.Is(err, ErrQuestionLocked) {
				return nil, err
			}
		}
	}
	return cases, nil
}

// SubmitCode 判题后记录该题成绩；分区全部提交后自动完成。同一分区提交互斥
func (s *Session) SubmitCode(ctx context.Context, sectionID, questionID, code, language string) (AnswerOutcome, error) {
	s.mu.Lock()
	i, js, err := s.judgedSection(sectionID)
	if err != nil {
		s.mu.Unlock()
		return AnswerOutcome{}, err
	}
	if err := js.BeginSubmit(); err != nil {
		s.mu.Unlock()
		return AnswerOutcome{}, err
	}
	defer js.EndSubmit()
	req, err := js.PrepareRun(questionID, code, language)
	s.mu.Unlock()
	if err != nil {
		return AnswerOutcome{}, err
	}

	cases, err := s.cfg.Judge.Run(ctx, req)
	if err != nil {
		return AnswerOutcome{}, judgeError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open() {
		return AnswerOutcome{}, ErrAttemptClosed
	}
	if _, done := s.results[sectionID]; done {
		return AnswerOutcome{}, ErrSectionFinished
	}
	out, err := js.RecordAnswer(Answer{QuestionID: questionID, Code: code, Cases: cases, Final: true})
	if err != nil {
		return AnswerOutcome{}, err
	}
	if out.SectionComplete {
		s.finishLocked(i, js)
	}
	return out, nil
}

func judgeError(err error) error {
	if errors.Is(err, ErrJudgeUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
}

// Submit 学员主动交卷；超时自动提交失败后的重试仍记为 timeout
func (s *Session) Submit(ctx context.Context) (SubmissionReceipt, error) {
	return s.submit(ctx, TriggerManual)
}

// expire 整卷倒计时到期：走与手动交卷相同的路径
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if !s.countdown.Current(gen) {
		s.mu.Unlock()
		return
	}
	if s.state == StateSubmitting {
		// 手动提交在途时不再发起提交；若它失败，会话停在超时状态只允许交卷
		s.timedOut = true
		s.mu.Unlock()
		return
	}
	if !s.open() {
		s.mu.Unlock()
		return
	}
	s.timedOut = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AutoSubmitTimeout)
	defer cancel()
	if _, err := s.submit(ctx, TriggerTimeout); err != nil {
		s.log.Error("auto submission failed", zap.Error(err))
	}
}

func (s *Session) submit(ctx context.Context, trigger Trigger) (SubmissionReceipt, error) {
	s.mu.Lock()
	switch s.state {
	case StateSubmitting:
		s.mu.Unlock()
		return SubmissionReceipt{}, ErrSubmitInFlight
	case StateSubmitted, StateClosed, StateLoading:
		s.mu.Unlock()
		return SubmissionReceipt{}, ErrAttemptClosed
	}
	if s.timedOut {
		trigger = TriggerTimeout
	}
	prev := s.state
	s.state = StateSubmitting
	payload := s.payloadLocked(trigger)
	s.mu.Unlock()

	receipt, err := s.cfg.Submitter.SubmitAttempt(ctx, payload)

	s.mu.Lock()
	if err != nil {
		s.state = prev
		s.lastErr = err.Error()
		s.mu.Unlock()
		return SubmissionReceipt{}, err
	}
	s.state = StateSubmitted
	s.results = payload.Results
	s.receipt = &receipt
	s.lastErr = ""
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.mu.Unlock()

	s.log.Info("attempt submitted",
		zap.String("trigger", string(trigger)),
		zap.Int("score", receipt.Score),
		zap.Int("maxScore", receipt.MaxScore))
	if s.cfg.OnFinished != nil {
		s.cfg.OnFinished(s.cfg.AttemptID)
	}
	return receipt, nil
}

// payloadLocked 未完成的分区按当前记录强制结算，不会写回 s.results
func (s *Session) payloadLocked(trigger Trigger) SubmissionPayload {
	results := make(map[string]SectionResult, len(s.strategies))
	for _, st := range s.strategies {
		id := st.Section().ID
		if r, ok := s.results[id]; ok {
			results[id] = r
			continue
		}
		r := st.Finalize()
		r.Forced = true
		results[id] = r
	}
	score, maxScore := AggregateMap(results)

	p := SubmissionPayload{
		AttemptID:   s.cfg.AttemptID,
		TestID:      s.cfg.Test.ID,
		LearnerID:   s.cfg.LearnerID,
		CourseID:    s.cfg.CourseID,
		Results:     results,
		SubmittedAt: s.cfg.Clock.Now().UTC(),
		Trigger:     trigger,
		Score:       score,
		MaxScore:    maxScore,
	}
	if s.countdown != nil {
		remaining := int(s.countdown.Remaining() / time.Second)
		if trigger == TriggerTimeout {
			remaining = 0
		}
		p.RemainingSeconds = &remaining
	}
	return p
}

// Close 视图销毁：停止计时器，不提交
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateSubmitted || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.mu.Unlock()

	if s.cfg.OnFinished != nil {
		s.cfg.OnFinished(s.cfg.AttemptID)
	}
}

type SessionView struct {
	AttemptID        string                   `json:"attemptId"`
	TestID           string                   `json:"testId"`
	Title            string                   `json:"title"`
	State            State                    `json:"state"`
	TimedOut         bool                     `json:"timedOut"`
	CurrentSection   int                      `json:"currentSection"`
	CurrentQuestion  int                      `json:"currentQuestion"`
	RemainingSeconds *int                     `json:"remainingSeconds"`
	Sections         []SectionView            `json:"sections"`
	Results          map[string]SectionResult `json:"results"`
	Score            int                      `json:"score"`
	MaxScore         int                      `json:"maxScore"`
	Receipt          *SubmissionReceipt       `json:"receipt,omitempty"`
	LastError        string                   `json:"lastError,omitempty"`
}

// Snapshot 当前会话的展示数据。提交后分数以服务端回执为准
func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SessionView{
		AttemptID:       s.cfg.AttemptID,
		TestID:          s.cfg.Test.ID,
		Title:           s.cfg.Test.Title,
		State:           s.state,
		TimedOut:        s.timedOut,
		CurrentSection:  s.currentSection,
		CurrentQuestion: s.currentQuestion,
		Results:         make(map[string]SectionResult, len(s.results)),
		LastError:       s.lastErr,
	}
	for i, st := range s.strategies {
		sv := st.Render()
		_, sv.Finished = s.results[sv.ID]
		if sv.Type == SectionMCQ && i == s.currentSection {
			sv.CurrentQuestion = s.currentQuestion
		}
		v.Sections = append(v.Sections, sv)
	}
	for id, r := range s.results {
		v.Results[id] = r
	}
	v.Score, v.MaxScore = AggregateMap(v.Results)
	if s.countdown != nil {
		remaining := int(s.countdown.Remaining() / time.Second)
		v.RemainingSeconds = &remaining
	}
	if s.receipt != nil {
		r := *s.receipt
		v.Receipt = &r
		v.Score, v.MaxScore = r.Score, r.MaxScore
	}
	return v
}
