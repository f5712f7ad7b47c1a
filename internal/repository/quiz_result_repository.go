package repository

import (
	"coder_assessment_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizResultRepository struct {
	DB *gorm.DB
}

func NewQuizResultRepository(db *gorm.DB) *QuizResultRepository {
	return &QuizResultRepository{DB: db}
}

// Save 同一测验重复写入时覆盖分数和状态
func (r *QuizResultRepository) Save(ctx context.Context, q *model.QuizResult) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "quiz_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "total", "answered", "status", "finished_at", "updated_at"}),
	}).Create(q).Error
}

func (r *QuizResultRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]model.QuizResult, error) {
	var rs []model.QuizResult
	err := r.DB.WithContext(ctx).Where("learner_id = ?", learnerID).Order("finished_at desc").Limit(limit).Find(&rs).Error
	return rs, err
}
