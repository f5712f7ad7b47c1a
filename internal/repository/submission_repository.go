package repository

import (
	"coder_assessment_backend/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrSubmissionNotFound = errors.New("submission not found")

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *model.TestSubmission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) FindByAttemptID(ctx context.Context, attemptID string) (*model.TestSubmission, error) {
	var s model.TestSubmission
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) UpdateArchiveURL(ctx context.Context, id, url string) error {
	return r.DB.WithContext(ctx).Model(&model.TestSubmission{}).Where("id = ?", id).Update("archive_url", url).Error
}

func (r *SubmissionRepository) ListByTest(ctx context.Context, testID string, page, limit int) ([]model.TestSubmission, int64, error) {
	var ss []model.TestSubmission
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.TestSubmission{}).Where("test_id = ?", testID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("submitted_at desc").Offset(offset).Limit(limit).Find(&ss).Error
	return ss, total, err
}

func (r *SubmissionRepository) ListByLearner(ctx context.Context, learnerID string, page, limit int) ([]model.TestSubmission, int64, error) {
	var ss []model.TestSubmission
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.TestSubmission{}).Where("learner_id = ?", learnerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("submitted_at desc").Offset(offset).Limit(limit).Find(&ss).Error
	return ss, total, err
}
