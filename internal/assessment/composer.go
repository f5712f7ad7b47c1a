package assessment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TestCreator 持久化一份已校验的试卷，返回试卷 ID
type TestCreator interface {
	CreateTest(ctx context.Context, t Test) (string, error)
}

// Composer 试卷编排。所有分区操作按分区 ID 定位，避免并发重排时删错元素
type Composer struct {
	test  Test
	newID func() string
}

func NewComposer(t Test) *Composer {
	return &Composer{test: t.clone(), newID: func() string { return uuid.New().String() }}
}

// WithIDGenerator 替换分区 ID 生成方式
func (c *Composer) WithIDGenerator(f func() string) *Composer {
	c.newID = f
	return c
}

// Test 返回当前草稿的副本
func (c *Composer) Test() Test { return c.test.clone() }

func (c *Composer) SetTitle(title string) { c.test.Title = title }

func (c *Composer) SetTimeLimit(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("time limit must not be negative: %d", minutes)
	}
	c.test.TimeLimit = minutes
	return nil
}

func (c *Composer) SetTotalMarks(marks int) error {
	if marks < 0 {
		return fmt.Errorf("total marks must not be negative: %d", marks)
	}
	c.test.TotalMarks = marks
	return nil
}

func (c *Composer) SetCourseID(courseID string) { c.test.CourseID = courseID }

// AddSection 追加一个空分区，总是成功
func (c *Composer) AddSection(t SectionType) Section {
	sec := Section{ID: c.newID(), Type: t, Questions: QuestionRefs{}}
	c.test.Sections = append(c.test.Sections, sec)
	return sec.clone()
}

// RemoveSection 不存在时无操作
func (c *Composer) RemoveSection(id string) {
	for i, s := range c.test.Sections {
		if s.ID == id {
			c.test.Sections = append(c.test.Sections[:i], c.test.Sections[i+1:]...)
			return
		}
	}
}

func (c *Composer) ReorderSections(from, to int) error {
	return moveItem(c.test.Sections, from, to)
}

func (c *Composer) section(id string) (*Section, error) {
	for i := range c.test.Sections {
		if c.test.Sections[i].ID == id {
			return &c.test.Sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, id)
}

// SetSectionType 类型变化时清空题目列表
func (c *Composer) SetSectionType(id string, t SectionType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSectionType, t)
	}
	sec, err := c.section(id)
	if err != nil {
		return err
	}
	if sec.Type != t {
		sec.Type = t
		sec.Questions = QuestionRefs{}
	}
	return nil
}

func (c *Composer) SetSectionTitle(id, title string) error {
	sec, err := c.section(id)
	if err != nil {
		return err
	}
	sec.Title = title
	return nil
}

// SetSectionGenre 只影响选题器的候选范围，不改动已选题目
func (c *Composer) SetSectionGenre(id, genre string) error {
	sec, err := c.section(id)
	if err != nil {
		return err
	}
	sec.Genre = strings.TrimSpace(genre)
	return nil
}

// ToggleQuestion 未选中则追加到末尾，已选中则移除；返回操作后的选中状态
func (c *Composer) ToggleQuestion(sectionID, questionID string) (bool, error) {
	sec, err := c.section(sectionID)
	if err != nil {
		return false, err
	}
	for i, q := range sec.Questions {
		if q == questionID {
			sec.Questions = append(sec.Questions[:i], sec.Questions[i+1:]...)
			return false, nil
		}
	}
	sec.Questions = append(sec.Questions, questionID)
	return true, nil
}

func (c *Composer) ReorderQuestions(sectionID string, from, to int) error {
	sec, err := c.section(sectionID)
	if err != nil {
		return err
	}
	return moveItem(sec.Questions, from, to)
}

// PickMCQ 选题器：分区类型不是选择题时返回空
func (c *Composer) PickMCQ(sectionID string, bank []MCQQuestion) ([]MCQQuestion, error) {
	sec, err := c.section(sectionID)
	if err != nil {
		return nil, err
	}
	out := []MCQQuestion{}
	if sec.Type != SectionMCQ {
		return out, nil
	}
	for _, q := range bank {
		if genreMatches(sec.Genre, q.Genre) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *Composer) PickCoding(sectionID string, bank []CodingQuestion) ([]CodingQuestion, error) {
	sec, err := c.section(sectionID)
	if err != nil {
		return nil, err
	}
	out := []CodingQuestion{}
	if sec.Type != SectionCoding {
		return out, nil
	}
	for _, q := range bank {
		if genreMatches(sec.Genre, q.Genre) {
			out = append(out, q)
		}
	}
	return out, nil
}

// Validate 逐分区校验，返回 *ValidationError 或 nil
func (c *Composer) Validate() error {
	return ValidateTest(c.test)
}

func ValidateTest(t Test) error {
	var errs []FieldError
	if t.TimeLimit < 0 {
		errs = append(errs, FieldError{Field: "timeLimit", Message: "must not be negative"})
	}
	if len(t.Sections) == 0 {
		errs = append(errs, FieldError{Field: "sections", Message: "at least one section is required"})
	}
	for _, s := range t.Sections {
		if strings.TrimSpace(s.Title) == "" {
			errs = append(errs, FieldError{SectionID: s.ID, Field: "title", Message: "is required"})
		}
		if !s.Type.Valid() {
			errs = append(errs, FieldError{SectionID: s.ID, Field: "type", Message: fmt.Sprintf("must be %q or %q", SectionMCQ, SectionCoding)})
		}
		for i, q := range s.Questions {
			if strings.TrimSpace(q) == "" {
				errs = append(errs, FieldError{SectionID: s.ID, Field: fmt.Sprintf("questions[%d]", i), Message: "must be a non-empty id"})
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Payload 规范化后的提交内容：去掉本地状态，只保留非空字符串题目 ID
func (c *Composer) Payload() Test {
	return NormalizeTest(c.test)
}

func NormalizeTest(t Test) Test {
	out := t.clone()
	out.Title = strings.TrimSpace(out.Title)
	for i := range out.Sections {
		s := &out.Sections[i]
		s.Title = strings.TrimSpace(s.Title)
		qs := make(QuestionRefs, 0, len(s.Questions))
		for _, q := range s.Questions {
			if q = strings.TrimSpace(q); q != "" {
				qs = append(qs, q)
			}
		}
		s.Questions = qs
	}
	return out
}

// Save 校验失败时不会调用 creator
func (c *Composer) Save(ctx context.Context, creator TestCreator) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	id, err := creator.CreateTest(ctx, c.Payload())
	if err != nil {
		return "", err
	}
	c.test.ID = id
	return id, nil
}

// moveItem 把 from 位置的元素移到 to，其余元素保持相对顺序
func moveItem[T any](s []T, from, to int) error {
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return fmt.Errorf("%w: move %d -> %d (len %d)", ErrIndexOutOfRange, from, to, len(s))
	}
	if from == to {
		return nil
	}
	item := s[from]
	if from < to {
		copy(s[from:to], s[from+1:to+1])
	} else {
		copy(s[to+1:from+1], s[to:from])
	}
	s[to] = item
	return nil
}
