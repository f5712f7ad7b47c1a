package assessment

import (
	"context"
	"fmt"
)

// Judge 远程判题：执行代码并返回每个测试用例的通过情况。运行和提交共用同一调用
type Judge interface {
	Run(ctx context.Context, req RunRequest) ([]CaseResult, error)
}

type RunRequest struct {
	Code         string     `json:"code"`
	Language     string     `json:"language"`
	TestCases    []TestCase `json:"testCases"`
	FunctionName string     `json:"functionName"`
}

// Answer 学员的一次作答。选择题使用 Option（nil 表示超时未答），
// 编程题使用 Code/Cases，Final 区分"运行"和"提交"。
type Answer struct {
	QuestionID string
	Option     *int
	Code       string
	Cases      []CaseResult
	Final      bool
}

type AnswerOutcome struct {
	QuestionID      string       `json:"questionId"`
	Correct         *bool        `json:"correct,omitempty"`
	Passed          int          `json:"passed"`
	Total           int          `json:"total"`
	Cases           []CaseResult `json:"cases,omitempty"`
	SectionComplete bool         `json:"sectionComplete"`
}

// SectionStrategy 题型策略的最小公共契约，运行时只通过它与分区交互
type SectionStrategy interface {
	Kind() SectionType
	Section() Section
	Render() SectionView
	RecordAnswer(a Answer) (AnswerOutcome, error)
	Complete() bool
	Finalize() SectionResult
}

// judgedStrategy 需要远程判题的策略额外实现
type judgedStrategy interface {
	SectionStrategy
	PrepareRun(questionID, code, language string) (RunRequest, error)
	BeginSubmit() error
	EndSubmit()
}

type SectionView struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Type            SectionType    `json:"type"`
	Finished        bool           `json:"finished"`
	CurrentQuestion int            `json:"currentQuestion"`
	Questions       []QuestionView `json:"questions"`
}

type QuestionView struct {
	ID string `json:"id"`

	Prompt   string   `json:"prompt,omitempty"`
	Options  []string `json:"options,omitempty"`
	Selected *int     `json:"selected,omitempty"`
	Locked   bool     `json:"locked"`

	Title        string       `json:"title,omitempty"`
	Description  string       `json:"description,omitempty"`
	Constraints  string       `json:"constraints,omitempty"`
	StarterCode  string       `json:"starterCode,omitempty"`
	FunctionName string       `json:"functionName,omitempty"`
	Difficulty   string       `json:"difficulty,omitempty"`
	TestCases    []TestCase   `json:"testCases,omitempty"`
	Buffer       string       `json:"buffer,omitempty"`
	LastRun      []CaseResult `json:"lastRun,omitempty"`
	Submitted    bool         `json:"submitted"`
}

// NewStrategy 按分区类型构造策略，题目缺失视为致命错误
func NewStrategy(sec Section, mcq map[string]MCQQuestion, coding map[string]CodingQuestion) (SectionStrategy, error) {
	switch sec.Type {
	case SectionMCQ:
		qs := make([]MCQQuestion, 0, len(sec.Questions))
		for _, id := range sec.Questions {
			q, ok := mcq[id]
			if !ok {
				return nil, fmt.Errorf("%w: mcq %s in section %s", ErrQuestionNotFound, id, sec.ID)
			}
			qs = append(qs, q)
		}
		st, err := NewMCQStrategy(sec, qs)
		if err != nil {
			return nil, err
		}
		return st, nil
	case SectionCoding:
		qs := make([]CodingQuestion, 0, len(sec.Questions))
		for _, id := range sec.Questions {
			q, ok := coding[id]
			if !ok {
				return nil, fmt.Errorf("%w: coding %s in section %s", ErrQuestionNotFound, id, sec.ID)
			}
			qs = append(qs, q)
		}
		return NewCodingStrategy(sec, qs), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSectionType, sec.Type)
	}
}
