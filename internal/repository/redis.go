package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/melon-ruet/CornerCase/config"
	"github.com/melon-ruet/CornerCase/internal/model"
)

const (
	// ResultCacheKey 投票结果缓存的固定键，全部服务实例共享
	ResultCacheKey = "vote:result"
)

type RedisRepository struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisRepository() (*RedisRepository, error) {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr:         config.AppConfig.Redis.DataAddress,
		Password:     config.AppConfig.Redis.Password,
		DB:           config.AppConfig.Redis.DB,
		PoolSize:     config.AppConfig.Redis.PoolSize,
		MaxRetries:   config.AppConfig.Redis.MaxRetries,
		DialTimeout:  config.AppConfig.Redis.Timeout,
		ReadTimeout:  config.AppConfig.Redis.Timeout,
		WriteTimeout: config.AppConfig.Redis.Timeout,
	})

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接测试失败: %w", err)
	}

	return &RedisRepository{
		client: client,
		ctx:    ctx,
	}, nil
}

// GetResult 获取缓存的投票结果，未命中时返回found=false
func (r *RedisRepository) GetResult() ([]model.WinnerMenu, bool, error) {
	data, err := r.client.Get(r.ctx, ResultCacheKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, fmt.Errorf("获取投票结果缓存失败: %w", err)
	}

	var winners []model.WinnerMenu
	if err := json.Unmarshal([]byte(data), &winners); err != nil {
		return nil, false, fmt.Errorf("解析投票结果缓存失败: %w", err)
	}

	return winners, true, nil
}

// SetResult 写入投票结果缓存
// TTL只作兜底，缓存一致性由投票提交后的主动失效保证
func (r *RedisRepository) SetResult(winners []model.WinnerMenu) error {
	data, err := json.Marshal(winners)
	if err != nil {
		return fmt.Errorf("序列化投票结果失败: %w", err)
	}

	if err := r.client.Set(r.ctx, ResultCacheKey, data, config.AppConfig.Cache.ResultTTL).Err(); err != nil {
		return fmt.Errorf("设置投票结果缓存失败: %w", err)
	}

	return nil
}

// DeleteResult 删除投票结果缓存，键不存在时同样成功（幂等）
func (r *RedisRepository) DeleteResult() error {
	if err := r.client.Del(r.ctx, ResultCacheKey).Err(); err != nil {
		return fmt.Errorf("删除投票结果缓存失败: %w", err)
	}
	return nil
}

// Close 关闭Redis连接
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
