package repository

import (
	"coder_assessment_backend/internal/model"
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrQuestionNotFound = errors.New("question not found")

// QuestionRepository 选择题与编程题题库
type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// genreScope 空 genre 匹配全部，比较忽略大小写
func genreScope(genre string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		genre = strings.TrimSpace(genre)
		if genre == "" {
			return db
		}
		return db.Where("LOWER(genre) = ?", strings.ToLower(genre))
	}
}

func (r *QuestionRepository) CreateMCQ(ctx context.Context, q *model.MCQQuestion) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuestionRepository) FindMCQByID(ctx context.Context, id string) (*model.MCQQuestion, error) {
	var q model.MCQQuestion
	err := r.DB.WithContext(ctx).First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuestionNotFound
	}
	return &q, err
}

func (r *QuestionRepository) ListMCQ(ctx context.Context, genre string) ([]model.MCQQuestion, error) {
	var qs []model.MCQQuestion
	err := r.DB.WithContext(ctx).Scopes(genreScope(genre)).Order("created_at asc").Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) FindMCQByIDs(ctx context.Context, ids []string) ([]model.MCQQuestion, error) {
	var qs []model.MCQQuestion
	if len(ids) == 0 {
		return qs, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&qs).Error
	return qs, err
}

// RandomMCQ 单题测验抽题
func (r *QuestionRepository) RandomMCQ(ctx context.Context, genre string, n int) ([]model.MCQQuestion, error) {
	var qs []model.MCQQuestion
	err := r.DB.WithContext(ctx).Scopes(genreScope(genre)).Order("RAND()").Limit(n).Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) DeleteMCQ(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&model.MCQQuestion{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (r *QuestionRepository) CreateCoding(ctx context.Context, q *model.CodingQuestion) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuestionRepository) FindCodingByID(ctx context.Context, id string) (*model.CodingQuestion, error) {
	var q model.CodingQuestion
	err := r.DB.WithContext(ctx).First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuestionNotFound
	}
	return &q, err
}

func (r *QuestionRepository) ListCoding(ctx context.Context, genre string) ([]model.CodingQuestion, error) {
	var qs []model.CodingQuestion
	err := r.DB.WithContext(ctx).Scopes(genreScope(genre)).Order("created_at asc").Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) FindCodingByIDs(ctx context.Context, ids []string) ([]model.CodingQuestion, error) {
	var qs []model.CodingQuestion
	if len(ids) == 0 {
		return qs, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) DeleteCoding(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Delete(&model.CodingQuestion{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}
