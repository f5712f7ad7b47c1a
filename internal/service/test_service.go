package service

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/model"
	"coder_assessment_backend/internal/repository"
	"coder_assessment_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownDraftOp = errors.New("unknown draft operation")
	ErrNotDraftOwner  = errors.New("draft belongs to another user")
)

// TestStore 试卷持久化，由 repository.TestRepository 实现
type TestStore interface {
	Create(ctx context.Context, test *model.Test) error
	FindByID(ctx context.Context, id string) (*model.Test, error)
	List(ctx context.Context, creatorID uint, page, limit int) ([]model.Test, int64, error)
	Delete(ctx context.Context, id string) error
}

type DraftStore interface {
	Save(ctx context.Context, d *repository.Draft, ttl time.Duration) error
	Get(ctx context.Context, id string) (*repository.Draft, error)
	Delete(ctx context.Context, id string) error
}

// TestCache 已保存试卷的读缓存，GetTest 未命中返回 (nil, nil)
type TestCache interface {
	GetTest(ctx context.Context, id string) (*assessment.Test, error)
	SetTest(ctx context.Context, t assessment.Test, ttl time.Duration) error
	InvalidateTest(ctx context.Context, id string) error
}

type TestService struct {
	Repo     TestStore
	Drafts   DraftStore
	Cache    TestCache
	Bank     *QuestionBankService
	CacheTTL time.Duration
	DraftTTL time.Duration
}

func NewTestService(repo TestStore, drafts DraftStore, cache TestCache, bank *QuestionBankService, cacheTTL, draftTTL time.Duration) *TestService {
	return &TestService{
		Repo:     repo,
		Drafts:   drafts,
		Cache:    cache,
		Bank:     bank,
		CacheTTL: cacheTTL,
		DraftTTL: draftTTL,
	}
}

// DraftOpRequest 对草稿的一次编辑。按 Op 取用对应字段
type DraftOpRequest struct {
	Op         string `json:"op" binding:"required"`
	SectionID  string `json:"sectionId"`
	QuestionID string `json:"questionId"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Genre      string `json:"genre"`
	CourseID   string `json:"courseId"`
	Value      *int   `json:"value"`
	From       *int   `json:"from"`
	To         *int   `json:"to"`
}

const (
	OpSetTitle         = "set_title"
	OpSetTimeLimit     = "set_time_limit"
	OpSetTotalMarks    = "set_total_marks"
	OpSetCourse        = "set_course"
	OpAddSection       = "add_section"
	OpRemoveSection    = "remove_section"
	OpReorderSections  = "reorder_sections"
	OpSetSectionType   = "set_section_type"
	OpSetSectionTitle  = "set_section_title"
	OpSetSectionGenre  = "set_section_genre"
	OpToggleQuestion   = "toggle_question"
	OpReorderQuestions = "reorder_questions"
)

type DraftOpResult struct {
	Draft    *repository.Draft   `json:"draft"`
	Section  *assessment.Section `json:"section,omitempty"`
	Selected *bool               `json:"selected,omitempty"`
}

// DraftPickerView 某个分区可选的题目（按分区题型与 genre 过滤）
type DraftPickerView struct {
	SectionID string                      `json:"sectionId"`
	Type      assessment.SectionType      `json:"type"`
	MCQ       []MCQLearnerView            `json:"mcq,omitempty"`
	Coding    []assessment.CodingQuestion `json:"coding,omitempty"`
}

type CreateDraftRequest struct {
	Title     string `json:"title"`
	TimeLimit int    `json:"timeLimit" binding:"min=0"`
	CourseID  string `json:"courseId"`
}

func (s *TestService) CreateDraft(ctx context.Context, ownerID uint, req CreateDraftRequest) (*repository.Draft, error) {
	d := &repository.Draft{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Test: assessment.Test{
			Title:     req.Title,
			TimeLimit: req.TimeLimit,
			CourseID:  req.CourseID,
			Sections:  []assessment.Section{},
		},
		UpdatedAt: time.Now(),
	}
	if err := s.Drafts.Save(ctx, d, s.DraftTTL); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *TestService) GetDraft(ctx context.Context, ownerID uint, id string) (*repository.Draft, error) {
	d, err := s.Drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, ErrNotDraftOwner
	}
	return d, nil
}

func (s *TestService) DeleteDraft(ctx context.Context, ownerID uint, id string) error {
	if _, err := s.GetDraft(ctx, ownerID, id); err != nil {
		return err
	}
	return s.Drafts.Delete(ctx, id)
}

// ApplyDraftOp 在草稿上执行一次编排操作并写回
func (s *TestService) ApplyDraftOp(ctx context.Context, ownerID uint, id string, op DraftOpRequest) (*DraftOpResult, error) {
	d, err := s.GetDraft(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	c := assessment.NewComposer(d.Test)
	res := &DraftOpResult{}
	if err := applyOp(c, op, res); err != nil {
		return nil, err
	}
	d.Test = c.Test()
	d.UpdatedAt = time.Now()
	if err := s.Drafts.Save(ctx, d, s.DraftTTL); err != nil {
		return nil, err
	}
	res.Draft = d
	return res, nil
}

func intArg(name string, v *int) (int, error) {
	if v == nil {
		return 0, &assessment.ValidationError{Errors: []assessment.FieldError{{Field: name, Message: "is required"}}}
	}
	return *v, nil
}

func applyOp(c *assessment.Composer, op DraftOpRequest, res *DraftOpResult) error {
	switch op.Op {
	case OpSetTitle:
		c.SetTitle(op.Title)
	case OpSetTimeLimit:
		v, err := intArg("value", op.Value)
		if err != nil {
			return err
		}
		return c.SetTimeLimit(v)
	case OpSetTotalMarks:
		v, err := intArg("value", op.Value)
		if err != nil {
			return err
		}
		return c.SetTotalMarks(v)
	case OpSetCourse:
		c.SetCourseID(op.CourseID)
	case OpAddSection:
		t := assessment.SectionType(op.Type)
		if t == "" {
			t = assessment.SectionMCQ
		}
		if !t.Valid() {
			return assessment.ErrInvalidSectionType
		}
		sec := c.AddSection(t)
		if op.Title != "" {
			_ = c.SetSectionTitle(sec.ID, op.Title)
			sec.Title = op.Title
		}
		res.Section = &sec
	case OpRemoveSection:
		c.RemoveSection(op.SectionID)
	case OpReorderSections:
		from, err := intArg("from", op.From)
		if err != nil {
			return err
		}
		to, err := intArg("to", op.To)
		if err != nil {
			return err
		}
		return c.ReorderSections(from, to)
	case OpSetSectionType:
		return c.SetSectionType(op.SectionID, assessment.SectionType(op.Type))
	case OpSetSectionTitle:
		return c.SetSectionTitle(op.SectionID, op.Title)
	case OpSetSectionGenre:
		return c.SetSectionGenre(op.SectionID, op.Genre)
	case OpToggleQuestion:
		selected, err := c.ToggleQuestion(op.SectionID, op.QuestionID)
		if err != nil {
			return err
		}
		res.Selected = &selected
	case OpReorderQuestions:
		from, err := intArg("from", op.From)
		if err != nil {
			return err
		}
		to, err := intArg("to", op.To)
		if err != nil {
			return err
		}
		return c.ReorderQuestions(op.SectionID, from, to)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDraftOp, op.Op)
	}
	return nil
}

// DraftPicker 返回草稿中某分区的候选题目
func (s *TestService) DraftPicker(ctx context.Context, ownerID uint, id, sectionID string) (*DraftPickerView, error) {
	d, err := s.GetDraft(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	c := assessment.NewComposer(d.Test)
	out := &DraftPickerView{SectionID: sectionID}
	for _, sec := range d.Test.Sections {
		if sec.ID == sectionID {
			out.Type = sec.Type
		}
	}
	switch out.Type {
	case assessment.SectionMCQ:
		bank, err := s.Bank.ListMCQ(ctx, "")
		if err != nil {
			return nil, err
		}
		picked, err := c.PickMCQ(sectionID, bank)
		if err != nil {
			return nil, err
		}
		out.MCQ = make([]MCQLearnerView, 0, len(picked))
		for _, q := range picked {
			out.MCQ = append(out.MCQ, MCQLearnerView{ID: q.ID, Prompt: q.Prompt, Options: q.Options, Genre: q.Genre})
		}
	case assessment.SectionCoding:
		bank, err := s.Bank.ListCoding(ctx, "")
		if err != nil {
			return nil, err
		}
		if out.Coding, err = c.PickCoding(sectionID, bank); err != nil {
			return nil, err
		}
	default:
		return nil, assessment.ErrSectionNotFound
	}
	return out, nil
}

// draftCreator 把草稿保存接到 CreateTest 上，保留创建者
type draftCreator struct {
	svc       *TestService
	creatorID uint
}

func (d draftCreator) CreateTest(ctx context.Context, t assessment.Test) (string, error) {
	return d.svc.createValidated(ctx, d.creatorID, t)
}

// SaveDraft 校验草稿并写入数据库，成功后删除草稿
func (s *TestService) SaveDraft(ctx context.Context, ownerID uint, id string) (string, error) {
	d, err := s.GetDraft(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	testID, err := assessment.NewComposer(d.Test).Save(ctx, draftCreator{svc: s, creatorID: ownerID})
	if err != nil {
		return "", err
	}
	if err := s.Drafts.Delete(ctx, id); err != nil {
		logger.Log.Warn("Failed to delete saved draft", zap.String("draftId", id), zap.Error(err))
	}
	return testID, nil
}

// CreateTest 一次性提交整卷（前端本地编排后直接保存）
func (s *TestService) CreateTest(ctx context.Context, creatorID uint, t assessment.Test) (string, error) {
	if err := assessment.ValidateTest(t); err != nil {
		return "", err
	}
	return s.createValidated(ctx, creatorID, assessment.NormalizeTest(t))
}

func (s *TestService) createValidated(ctx context.Context, creatorID uint, t assessment.Test) (string, error) {
	missing, err := s.Bank.MissingReferences(ctx, t)
	if err != nil {
		return "", err
	}
	if len(missing) > 0 {
		return "", &assessment.ValidationError{Errors: missing}
	}
	// 试卷与分区 ID 一律由服务端生成，分区 ID 是全局主键
	t.ID = ""
	for i := range t.Sections {
		t.Sections[i].ID = uuid.New().String()
	}
	m, err := model.NewTestFromDomain(t, creatorID)
	if err != nil {
		return "", err
	}
	if err := s.Repo.Create(ctx, m); err != nil {
		return "", err
	}
	logger.Log.Info("Test created",
		zap.String("testId", m.ID),
		zap.Uint("creatorId", creatorID),
		zap.Int("sections", len(m.Sections)))
	return m.ID, nil
}

// GetTest 先查缓存，未命中再查库并回填
func (s *TestService) GetTest(ctx context.Context, id string) (*assessment.Test, error) {
	if cached, err := s.Cache.GetTest(ctx, id); err != nil {
		logger.Log.Warn("Test cache read failed", zap.String("testId", id), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	m, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := m.ToDomain()
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetTest(ctx, t, s.CacheTTL); err != nil {
		logger.Log.Warn("Test cache write failed", zap.String("testId", id), zap.Error(err))
	}
	return &t, nil
}

// Delivery 开始作答前需要的全部数据
type Delivery struct {
	Test   assessment.Test
	MCQ    map[string]assessment.MCQQuestion
	Coding map[string]assessment.CodingQuestion
}

// LoadForDelivery 加载试卷及其全部题目，试卷或任一题目缺失都不能开始作答
func (s *TestService) LoadForDelivery(ctx context.Context, id string) (*Delivery, error) {
	t, err := s.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}
	mcq, coding, err := s.Bank.LoadQuestions(ctx, *t)
	if err != nil {
		return nil, err
	}
	return &Delivery{Test: *t, MCQ: mcq, Coding: coding}, nil
}

func (s *TestService) ListTests(ctx context.Context, creatorID uint, page, limit int) ([]model.Test, int64, error) {
	return s.Repo.List(ctx, creatorID, page, limit)
}

func (s *TestService) DeleteTest(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.Cache.InvalidateTest(ctx, id); err != nil {
		logger.Log.Warn("Test cache invalidation failed", zap.String("testId", id), zap.Error(err))
	}
	return nil
}
