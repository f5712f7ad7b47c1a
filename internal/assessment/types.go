// Package assessment 实现测评引擎：试卷编排（Composer）、答题运行时（Session / QuizSession）、
// 两种题型策略（选择题、编程题）、倒计时原语以及成绩汇总。
//
// 本包不依赖 HTTP 与数据库，外部协作方（题库、持久化、远程判题）均通过接口注入。
package assessment

import (
	"encoding/json"
	"strings"
	"time"
)

type SectionType string

const (
	SectionMCQ    SectionType = "mcq"
	SectionCoding SectionType = "coding"
)

func (t SectionType) Valid() bool {
	return t == SectionMCQ || t == SectionCoding
}

// Test 试卷。Sections 的顺序即作答顺序，编排、存储、作答全程保持不变
type Test struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	TimeLimit  int       `json:"timeLimit"` // 分钟，0 表示不限时
	TotalMarks int       `json:"totalMarks,omitempty"`
	CourseID   string    `json:"courseId,omitempty"`
	Sections   []Section `json:"sections"`
}

// Section 试卷分区。ID 为稳定标识，不随位置变化
type Section struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Type      SectionType  `json:"type"`
	Genre     string       `json:"genre,omitempty"`
	Questions QuestionRefs `json:"questions"`
}

// QuestionRefs 分区内有序的题目 ID 列表。
// 反序列化时兼容纯字符串数组和带 id 字段的对象数组（前端本地状态会带上整题对象）。
type QuestionRefs []string

func (q *QuestionRefs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	refs := make([]string, 0, len(raw))
	for _, item := range raw {
		var id string
		if err := json.Unmarshal(item, &id); err == nil {
			refs = append(refs, id)
			continue
		}
		var obj struct {
			ID    string `json:"id"`
			MgoID string `json:"_id"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			// 数字等其它形态按空 ID 处理，由校验环节报告
			refs = append(refs, "")
			continue
		}
		if obj.ID == "" {
			obj.ID = obj.MgoID
		}
		refs = append(refs, obj.ID)
	}
	*q = refs
	return nil
}

func (t Test) clone() Test {
	out := t
	out.Sections = make([]Section, len(t.Sections))
	for i, s := range t.Sections {
		out.Sections[i] = s.clone()
	}
	return out
}

func (s Section) clone() Section {
	out := s
	out.Questions = append(QuestionRefs{}, s.Questions...)
	return out
}

// MCQQuestion 选择题。Answer 可能是数字下标、字母或选项原文，进入运行时即归一化为下标
type MCQQuestion struct {
	ID      string    `json:"id"`
	Prompt  string    `json:"prompt"`
	Options []string  `json:"options"`
	Answer  AnswerKey `json:"answer"`
	Genre   string    `json:"genre,omitempty"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// CodingQuestion 编程题，运行时只读
type CodingQuestion struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Constraints  string     `json:"constraints"`
	StarterCode  string     `json:"starterCode"`
	FunctionName string     `json:"functionName"`
	TestCases    []TestCase `json:"testCases"`
	Difficulty   string     `json:"difficulty"`
	Genre        string     `json:"genre,omitempty"`
}

// CaseResult 远程判题对单个测试用例的结果
type CaseResult struct {
	Pass   bool   `json:"pass"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

// SubmissionPayload 整卷提交内容。Score / MaxScore 仅供前端展示，以服务端回执为准
type SubmissionPayload struct {
	AttemptID        string                   `json:"attemptId"`
	TestID           string                   `json:"testId"`
	LearnerID        string                   `json:"learnerId"`
	CourseID         string                   `json:"courseId,omitempty"`
	Results          map[string]SectionResult `json:"results"`
	SubmittedAt      time.Time                `json:"submittedAt"`
	RemainingSeconds *int                     `json:"remainingSeconds"`
	Trigger          Trigger                  `json:"trigger"`
	Score            int                      `json:"score"`
	MaxScore         int                      `json:"maxScore"`
}

type SubmissionReceipt struct {
	ID          string    `json:"id"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"maxScore"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func genreMatches(filter, genre string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return strings.EqualFold(filter, strings.TrimSpace(genre))
}
