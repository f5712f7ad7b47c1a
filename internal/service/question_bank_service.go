package service

import (
	"coder_assessment_backend/internal/assessment"
	"coder_assessment_backend/internal/model"
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
)

// QuestionStore 题库持久化，由 repository.QuestionRepository 实现
type QuestionStore interface {
	CreateMCQ(ctx context.Context, q *model.MCQQuestion) error
	FindMCQByID(ctx context.Context, id string) (*model.MCQQuestion, error)
	ListMCQ(ctx context.Context, genre string) ([]model.MCQQuestion, error)
	FindMCQByIDs(ctx context.Context, ids []string) ([]model.MCQQuestion, error)
	RandomMCQ(ctx context.Context, genre string, n int) ([]model.MCQQuestion, error)
	DeleteMCQ(ctx context.Context, id string) error
	CreateCoding(ctx context.Context, q *model.CodingQuestion) error
	FindCodingByID(ctx context.Context, id string) (*model.CodingQuestion, error)
	ListCoding(ctx context.Context, genre string) ([]model.CodingQuestion, error)
	FindCodingByIDs(ctx context.Context, ids []string) ([]model.CodingQuestion, error)
	DeleteCoding(ctx context.Context, id string) error
}

type QuestionBankService struct {
	Repo QuestionStore
}

func NewQuestionBankService(repo QuestionStore) *QuestionBankService {
	return &QuestionBankService{Repo: repo}
}

type MCQQuestionRequest struct {
	Prompt  string               `json:"prompt" binding:"required"`
	Options []string             `json:"options" binding:"required,min=2"`
	Answer  assessment.AnswerKey `json:"answer"`
	Genre   string               `json:"genre"`
}

type CodingQuestionRequest struct {
	Title        string                `json:"title" binding:"required"`
	Description  string                `json:"description"`
	Constraints  string                `json:"constraints"`
	StarterCode  string                `json:"starterCode"`
	FunctionName string                `json:"functionName"`
	TestCases    []assessment.TestCase `json:"testCases" binding:"required,min=1"`
	Difficulty   string                `json:"difficulty"`
	Genre        string                `json:"genre"`
}

// MCQLearnerView 学员可见的选择题，不含答案
type MCQLearnerView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Genre   string   `json:"genre,omitempty"`
}

// CodingLearnerView 学员可见的编程题，不含测试用例
type CodingLearnerView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Constraints  string `json:"constraints"`
	StarterCode  string `json:"starterCode"`
	FunctionName string `json:"functionName"`
	Difficulty   string `json:"difficulty"`
	Genre        string `json:"genre,omitempty"`
}

func (s *QuestionBankService) CreateMCQ(ctx context.Context, creatorID uint, req MCQQuestionRequest) (*assessment.MCQQuestion, error) {
	q := assessment.MCQQuestion{
		Prompt:  strings.TrimSpace(req.Prompt),
		Options: req.Options,
		Answer:  req.Answer,
		Genre:   strings.TrimSpace(req.Genre),
	}
	if _, err := assessment.NormalizeAnswerKey(q.Answer, q.Options); err != nil {
		return nil, &assessment.ValidationError{Errors: []assessment.FieldError{{Field: "answer", Message: err.Error()}}}
	}
	m, err := model.NewMCQQuestion(q, creatorID)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.CreateMCQ(ctx, m); err != nil {
		return nil, err
	}
	q.ID = m.ID
	return &q, nil
}

func (s *QuestionBankService) CreateCoding(ctx context.Context, creatorID uint, req CodingQuestionRequest) (*assessment.CodingQuestion, error) {
	var q assessment.CodingQuestion
	if err := copier.Copy(&q, &req); err != nil {
		return nil, err
	}
	q.Title = strings.TrimSpace(q.Title)
	q.Genre = strings.TrimSpace(q.Genre)
	m, err := model.NewCodingQuestion(q, creatorID)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.CreateCoding(ctx, m); err != nil {
		return nil, err
	}
	q.ID = m.ID
	return &q, nil
}

// ListMCQ 按 genre 过滤（忽略大小写），空 genre 返回全部
func (s *QuestionBankService) ListMCQ(ctx context.Context, genre string) ([]assessment.MCQQuestion, error) {
	rows, err := s.Repo.ListMCQ(ctx, genre)
	if err != nil {
		return nil, err
	}
	return mcqToDomain(rows)
}

func (s *QuestionBankService) ListCoding(ctx context.Context, genre string) ([]assessment.CodingQuestion, error) {
	rows, err := s.Repo.ListCoding(ctx, genre)
	if err != nil {
		return nil, err
	}
	return codingToDomain(rows)
}

func (s *QuestionBankService) GetMCQ(ctx context.Context, id string) (*assessment.MCQQuestion, error) {
	row, err := s.Repo.FindMCQByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := row.ToDomain()
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *QuestionBankService) GetCoding(ctx context.Context, id string) (*assessment.CodingQuestion, error) {
	row, err := s.Repo.FindCodingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := row.ToDomain()
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *QuestionBankService) DeleteMCQ(ctx context.Context, id string) error {
	return s.Repo.DeleteMCQ(ctx, id)
}

func (s *QuestionBankService) DeleteCoding(ctx context.Context, id string) error {
	return s.Repo.DeleteCoding(ctx, id)
}

func (s *QuestionBankService) LearnerMCQ(ctx context.Context, genre string) ([]MCQLearnerView, error) {
	qs, err := s.ListMCQ(ctx, genre)
	if err != nil {
		return nil, err
	}
	views := make([]MCQLearnerView, 0, len(qs))
	if err := copier.Copy(&views, &qs); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *QuestionBankService) LearnerCoding(ctx context.Context, genre string) ([]CodingLearnerView, error) {
	qs, err := s.ListCoding(ctx, genre)
	if err != nil {
		return nil, err
	}
	views := make([]CodingLearnerView, 0, len(qs))
	if err := copier.Copy(&views, &qs); err != nil {
		return nil, err
	}
	return views, nil
}

// RandomMCQ 单题测验抽题
func (s *QuestionBankService) RandomMCQ(ctx context.Context, genre string, n int) ([]assessment.MCQQuestion, error) {
	rows, err := s.Repo.RandomMCQ(ctx, genre, n)
	if err != nil {
		return nil, err
	}
	return mcqToDomain(rows)
}

// LoadQuestions 取出试卷引用的全部题目，任何一道缺失都返回 ErrQuestionNotFound
func (s *QuestionBankService) LoadQuestions(ctx context.Context, t assessment.Test) (map[string]assessment.MCQQuestion, map[string]assessment.CodingQuestion, error) {
	var mcqIDs, codingIDs []string
	for _, sec := range t.Sections {
		switch sec.Type {
		case assessment.SectionMCQ:
			mcqIDs = append(mcqIDs, sec.Questions...)
		case assessment.SectionCoding:
			codingIDs = append(codingIDs, sec.Questions...)
		}
	}

	mcqRows, err := s.Repo.FindMCQByIDs(ctx, mcqIDs)
	if err != nil {
		return nil, nil, err
	}
	mcqs, err := mcqToDomain(mcqRows)
	if err != nil {
		return nil, nil, err
	}
	codingRows, err := s.Repo.FindCodingByIDs(ctx, codingIDs)
	if err != nil {
		return nil, nil, err
	}
	codings, err := codingToDomain(codingRows)
	if err != nil {
		return nil, nil, err
	}

	mcqMap := make(map[string]assessment.MCQQuestion, len(mcqs))
	for _, q := range mcqs {
		mcqMap[q.ID] = q
	}
	codingMap := make(map[string]assessment.CodingQuestion, len(codings))
	for _, q := range codings {
		codingMap[q.ID] = q
	}
	for _, id := range mcqIDs {
		if _, ok := mcqMap[id]; !ok {
			return nil, nil, fmt.Errorf("mcq %s: %w", id, assessment.ErrQuestionNotFound)
		}
	}
	for _, id := range codingIDs {
		if _, ok := codingMap[id]; !ok {
			return nil, nil, fmt.Errorf("coding %s: %w", id, assessment.ErrQuestionNotFound)
		}
	}
	return mcqMap, codingMap, nil
}

func mcqToDomain(rows []model.MCQQuestion) ([]assessment.MCQQuestion, error) {
	out := make([]assessment.MCQQuestion, 0, len(rows))
	for i := range rows {
		q, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func codingToDomain(rows []model.CodingQuestion) ([]assessment.CodingQuestion, error) {
	out := make([]assessment.CodingQuestion, 0, len(rows))
	for i := range rows {
		q, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// MissingReferences 逐分区检查题目 ID 是否存在于对应题库
func (s *QuestionBankService) MissingReferences(ctx context.Context, t assessment.Test) ([]assessment.FieldError, error) {
	var errs []assessment.FieldError
	for _, sec := range t.Sections {
		if len(sec.Questions) == 0 {
			continue
		}
		found := map[string]bool{}
		switch sec.Type {
		case assessment.SectionMCQ:
			rows, err := s.Repo.FindMCQByIDs(ctx, sec.Questions)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				found[r.ID] = true
			}
		case assessment.SectionCoding:
			rows, err := s.Repo.FindCodingByIDs(ctx, sec.Questions)
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				found[r.ID] = true
			}
		default:
			continue
		}
		for i, id := range sec.Questions {
			if !found[id] {
				errs = append(errs, assessment.FieldError{
					SectionID: sec.ID,
					Field:     fmt.Sprintf("questions[%d]", i),
					Message:   fmt.Sprintf("%s question %s does not exist", sec.Type, id),
				})
			}
		}
	}
	return errs, nil
}
