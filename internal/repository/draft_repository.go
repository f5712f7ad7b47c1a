package repository

import (
	"coder_assessment_backend/internal/assessment"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrDraftNotFound = errors.New("draft not found or expired")

// Draft 编排中的试卷草稿，只存在于 Redis
type Draft struct {
	ID        string          `json:"id"`
	OwnerID   uint            `json:"ownerId"`
	Test      assessment.Test `json:"test"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type DraftRepository struct {
	Redis *redis.Client
}

func NewDraftRepository(rdb *redis.Client) *DraftRepository {
	return &DraftRepository{Redis: rdb}
}

func draftKey(id string) string {
	return fmt.Sprintf("assessment:draft:%s", id)
}

// Save 每次写入都刷新过期时间
func (r *DraftRepository) Save(ctx context.Context, d *Draft, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, draftKey(d.ID), b, ttl).Err()
}

func (r *DraftRepository) Get(ctx context.Context, id string) (*Draft, error) {
	b, err := r.Redis.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	return r.Redis.Del(ctx, draftKey(id)).Err()
}
