package assessment

import (
	"fmt"
	"sync"
)

type mcqItem struct {
	q        MCQQuestion
	key      int
	locked   bool
	selected *int
}

// MCQStrategy 选择题分区。每道题只接受一次作答（或一次超时），之后锁定
type MCQStrategy struct {
	mu      sync.Mutex
	section Section
	items   []*mcqItem
	index   map[string]int
}

func NewMCQStrategy(sec Section, questions []MCQQuestion) (*MCQStrategy, error) {
	s := &MCQStrategy{section: sec.clone(), index: make(map[string]int, len(questions))}
	for i, q := range questions {
		key, err := NormalizeAnswerKey(q.Answer, q.Options)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		s.items = append(s.items, &mcqItem{q: q, key: key})
		s.index[q.ID] = i
	}
	return s, nil
}

func (s *MCQStrategy) Kind() SectionType { return SectionMCQ }

func (s *MCQStrategy) Section() Section { return s.section.clone() }

func (s *MCQStrategy) Render() SectionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SectionView{ID: s.section.ID, Title: s.section.Title, Type: SectionMCQ}
	for _, it := range s.items {
		qv := QuestionView{
			ID:      it.q.ID,
			Prompt:  it.q.Prompt,
			Options: append([]string(nil), it.q.Options...),
			Locked:  it.locked,
		}
		if it.selected != nil {
			sel := *it.selected
			qv.Selected = &sel
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

// RecordAnswer Option 为 nil 表示该题超时，按未作答锁定
func (s *MCQStrategy) RecordAnswer(a Answer) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[a.QuestionID]
	if !ok {
		return AnswerOutcome{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, a.QuestionID)
	}
	it := s.items[i]
	if it.locked {
		return AnswerOutcome{}, ErrQuestionLocked
	}
	if a.Option != nil && (*a.Option < 0 || *a.Option >= len(it.q.Options)) {
		return AnswerOutcome{}, fmt.Errorf("%w: %d", ErrInvalidOption, *a.Option)
	}

	it.locked = true
	correct := false
	if a.Option != nil {
		sel := *a.Option
		it.selected = &sel
		correct = sel == it.key
	}

	out := AnswerOutcome{QuestionID: it.q.ID, Correct: &correct, Total: 1, SectionComplete: s.completeLocked()}
	if correct {
		out.Passed = 1
	}
	return out, nil
}

func (s *MCQStrategy) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked()
}

func (s *MCQStrategy) completeLocked() bool {
	for _, it := range s.items {
		if !it.locked {
			return false
		}
	}
	return true
}

func (s *MCQStrategy) Finalize() SectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := SectionResult{
		SectionID: s.section.ID,
		Type:      SectionMCQ,
		Total:     len(s.items),
		Answers:   make(map[string]*int, len(s.items)),
	}
	for _, it := range s.items {
		if it.selected != nil {
			sel := *it.selected
			r.Answers[it.q.ID] = &sel
			if sel == it.key {
				r.Score++
			}
		} else {
			r.Answers[it.q.ID] = nil
		}
	}
	return r
}
