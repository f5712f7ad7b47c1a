package assessment

import (
	"fmt"
	"sync"
)

type codingItem struct {
	q         CodingQuestion
	buffer    string
	lastRun   []CaseResult
	submitted bool
	passed    int
}

// CodingStrategy 编程题分区。run 只更新展示用的最近一次结果；
// submit 记录 {passed,total} 并推进到下一题，全部提交后分区完成。
type CodingStrategy struct {
	mu         sync.Mutex
	section    Section
	items      []*codingItem
	index      map[string]int
	current    int
	submitting bool
}

func NewCodingStrategy(sec Section, questions []CodingQuestion) *CodingStrategy {
	s := &CodingStrategy{section: sec.clone(), index: make(map[string]int, len(questions))}
	for i, q := range questions {
		s.items = append(s.items, &codingItem{q: q, buffer: q.StarterCode})
		s.index[q.ID] = i
	}
	return s
}

func (s *CodingStrategy) Kind() SectionType { return SectionCoding }

func (s *CodingStrategy) Section() Section { return s.section.clone() }

func (s *CodingStrategy) Render() SectionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SectionView{ID: s.section.ID, Title: s.section.Title, Type: SectionCoding, CurrentQuestion: s.current}
	for _, it := range s.items {
		v.Questions = append(v.Questions, QuestionView{
			ID:           it.q.ID,
			Title:        it.q.Title,
			Description:  it.q.Description,
			Constraints:  it.q.Constraints,
			StarterCode:  it.q.StarterCode,
			FunctionName: it.q.FunctionName,
			Difficulty:   it.q.Difficulty,
			TestCases:    append([]TestCase(nil), it.q.TestCases...),
			Buffer:       it.buffer,
			LastRun:      append([]CaseResult(nil), it.lastRun...),
			Submitted:    it.submitted,
			Locked:       it.submitted,
		})
	}
	return v
}

func (s *CodingStrategy) item(questionID string) (*codingItem, error) {
	i, ok := s.index[questionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}
	return s.items[i], nil
}

// PrepareRun 组装判题请求并暂存学员代码
func (s *CodingStrategy) PrepareRun(questionID, code, language string) (RunRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.item(questionID)
	if err != nil {
		return RunRequest{}, err
	}
	if it.submitted {
		return RunRequest{}, ErrQuestionLocked
	}
	it.buffer = code
	return RunRequest{
		Code:         code,
		Language:     language,
		TestCases:    append([]TestCase(nil), it.q.TestCases...),
		FunctionName: it.q.FunctionName,
	}, nil
}

// BeginSubmit 同一分区同时只允许一个提交在途
func (s *CodingStrategy) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return ErrSubmitInFlight
	}
	s.submitting = true
	return nil
}

func (s *CodingStrategy) EndSubmit() {
	s.mu.Lock()
	s.submitting = false
	s.mu.Unlock()
}

func (s *CodingStrategy) RecordAnswer(a Answer) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.item(a.QuestionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if it.submitted {
		return AnswerOutcome{}, ErrQuestionLocked
	}
	if len(a.Cases) != len(it.q.TestCases) {
		return AnswerOutcome{}, fmt.Errorf("%w: expected %d case results, got %d", ErrJudgeUnavailable, len(it.q.TestCases), len(a.Cases))
	}

	passed := 0
	for _, c := range a.Cases {
		if c.Pass {
			passed++
		}
	}
	if a.Code != "" {
		it.buffer = a.Code
	}
	it.lastRun = append([]CaseResult(nil), a.Cases...)

	if a.Final {
		it.submitted = true
		it.passed = passed
		for s.current < len(s.items) && s.items[s.current].submitted {
			s.current++
		}
	}

	return AnswerOutcome{
		QuestionID:      it.q.ID,
		Passed:          passed,
		Total:           len(it.q.TestCases),
		Cases:           append([]CaseResult(nil), a.Cases...),
		SectionComplete: s.completeLocked(),
	}, nil
}

func (s *CodingStrategy) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked()
}

func (s *CodingStrategy) completeLocked() bool {
	for _, it := range s.items {
		if !it.submitted {
			return false
		}
	}
	return true
}

// Finalize 未提交的题目按 0 通过计入，分母为全部测试用例数
func (s *CodingStrategy) Finalize() SectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := SectionResult{SectionID: s.section.ID, Type: SectionCoding}
	for _, it := range s.items {
		r.Total += len(it.q.TestCases)
		if it.submitted {
			r.PassedCount += it.passed
		}
	}
	if s.current > 0 && s.current <= len(s.items) {
		r.LastRun = append([]CaseResult(nil), s.items[s.current-1].lastRun...)
	}
	return r
}
