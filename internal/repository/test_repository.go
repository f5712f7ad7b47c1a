package repository

import (
	"coder_assessment_backend/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrTestNotFound = errors.New("test not found")

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

// Create 试卷与分区在同一事务中写入
func (r *TestRepository) Create(ctx context.Context, test *model.Test) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(test).Error
	})
}

func (r *TestRepository) FindByID(ctx context.Context, id string) (*model.Test, error) {
	var t model.Test
	err := r.DB.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TestRepository) List(ctx context.Context, creatorID uint, page, limit int) ([]model.Test, int64, error) {
	var ts []model.Test
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.Test{})
	if creatorID > 0 {
		query = query.Where("creator_id = ?", creatorID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ts).Error
	return ts, total, err
}

func (r *TestRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&model.TestSection{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Test{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTestNotFound
		}
		return nil
	})
}
