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

// CacheRepository 已保存试卷的读缓存，以及跨实例的提交互斥锁
type CacheRepository struct {
	Redis *redis.Client
}

func NewCacheRepository(rdb *redis.Client) *CacheRepository {
	return &CacheRepository{Redis: rdb}
}

func testCacheKey(id string) string {
	return fmt.Sprintf("assessment:test:%s", id)
}

func submitLockKey(attemptID string) string {
	return fmt.Sprintf("assessment:submit-lock:%s", attemptID)
}

// GetTest 未命中时返回 (nil, nil)
func (r *CacheRepository) GetTest(ctx context.Context, id string) (*assessment.Test, error) {
	if r.Redis == nil {
		return nil, nil
	}
	b, err := r.Redis.Get(ctx, testCacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t assessment.Test
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CacheRepository) SetTest(ctx context.Context, t assessment.Test, ttl time.Duration) error {
	if r.Redis == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, testCacheKey(t.ID), b, ttl).Err()
}

func (r *CacheRepository) InvalidateTest(ctx context.Context, id string) error {
	if r.Redis == nil {
		return nil
	}
	return r.Redis.Del(ctx, testCacheKey(id)).Err()
}

// AcquireSubmitLock SETNX，返回是否拿到锁
func (r *CacheRepository) AcquireSubmitLock(ctx context.Context, attemptID string, ttl time.Duration) (bool, error) {
	if r.Redis == nil {
		return true, nil
	}
	return r.Redis.SetNX(ctx, submitLockKey(attemptID), time.Now().Unix(), ttl).Result()
}

func (r *CacheRepository) ReleaseSubmitLock(ctx context.Context, attemptID string) error {
	if r.Redis == nil {
		return nil
	}
	return r.Redis.Del(ctx, submitLockKey(attemptID)).Err()
}
