package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/melon-ruet/CornerCase/config"
)

// 只释放自己持有的锁
const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// 只刷新自己持有的锁
const refreshScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`

// RedLock 基于多个独立Redis节点的Redlock实现
type RedLock struct {
	clients     []*redis.Client
	ctx         context.Context
	mu          sync.Mutex
	locks       map[string]string // key是锁名，value是token值
	retries     int
	clusterSize int
}

// NewRedLock 创建新的Redlock客户端
func NewRedLock() (*RedLock, error) {
	ctx := context.Background()

	var clients []*redis.Client
	for _, addr := range config.AppConfig.Redis.LockAddresses {
		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     config.AppConfig.Redis.Password,
			DB:           config.AppConfig.Redis.DB,
			PoolSize:     config.AppConfig.Redis.PoolSize,
			MaxRetries:   config.AppConfig.Redis.MaxRetries,
			DialTimeout:  config.AppConfig.Redis.Timeout,
			ReadTimeout:  config.AppConfig.Redis.Timeout,
			WriteTimeout: config.AppConfig.Redis.Timeout,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, fmt.Errorf("Redis锁节点 %s 连接测试失败: %w", addr, err)
		}

		clients = append(clients, client)
	}

	return &RedLock{
		clients:     clients,
		ctx:         ctx,
		locks:       make(map[string]string),
		retries:     config.AppConfig.Lock.RetryCount,
		clusterSize: len(clients),
	}, nil
}

// AcquireLock 获取分布式锁，需要多数节点SetNX成功
func (r *RedLock) AcquireLock(lockName string, timeout time.Duration) (bool, error) {
	token := fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Unix())

	for attempt := 0; attempt < r.retries; attempt++ {
		success := 0
		start := time.Now()

		for i, client := range r.clients {
			ok, err := client.SetNX(r.ctx, lockName, token, timeout).Result()
			if err != nil {
				log.Printf("在节点 %s 获取锁 %s 失败: %v", config.AppConfig.Redis.LockAddresses[i], lockName, err)
				continue
			}
			if ok {
				success++
			}
		}

		// 多数节点成功且锁仍在有效期内才算获取成功
		validity := timeout - time.Since(start)
		if success >= r.quorum() && validity > 0 {
			r.mu.Lock()
			r.locks[lockName] = token
			r.mu.Unlock()
			return true, nil
		}

		r.unlockAll(lockName, token)
		time.Sleep(time.Millisecond * 100)
	}

	return false, nil
}

// RefreshLock 刷新锁的过期时间
func (r *RedLock) RefreshLock(lockName string, timeout time.Duration) (bool, error) {
	r.mu.Lock()
	token, exists := r.locks[lockName]
	r.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("锁 %s 不存在或未持有", lockName)
	}

	success := 0
	for i, client := range r.clients {
		result, err := client.Eval(r.ctx, refreshScript, []string{lockName}, token, int(timeout/time.Millisecond)).Result()
		if err != nil {
			log.Printf("在节点 %s 刷新锁 %s 失败: %v", config.AppConfig.Redis.LockAddresses[i], lockName, err)
			continue
		}
		if n, ok := result.(int64); ok && n == 1 {
			success++
		}
	}

	if success >= r.quorum() {
		return true, nil
	}

	r.mu.Lock()
	delete(r.locks, lockName)
	r.mu.Unlock()
	return false, nil
}

// ReleaseLock 释放分布式锁
func (r *RedLock) ReleaseLock(lockName string) error {
	r.mu.Lock()
	token, exists := r.locks[lockName]
	if exists {
		delete(r.locks, lockName)
	}
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("锁 %s 不存在或未持有", lockName)
	}

	r.unlockAll(lockName, token)
	return nil
}

// ReleaseAllLocks 释放所有持有的锁
func (r *RedLock) ReleaseAllLocks() {
	r.mu.Lock()
	held := r.locks
	r.locks = make(map[string]string)
	r.mu.Unlock()

	for name, token := range held {
		r.unlockAll(name, token)
	}
}

// Close 关闭全部Redis客户端
func (r *RedLock) Close() error {
	r.ReleaseAllLocks()

	for _, client := range r.clients {
		if err := client.Close(); err != nil {
			log.Printf("关闭Redis锁客户端失败: %v", err)
		}
	}

	return nil
}

// quorum 多数派节点数量
func (r *RedLock) quorum() int {
	return r.clusterSize/2 + 1
}

// unlockAll 在所有节点上释放锁
func (r *RedLock) unlockAll(lockName, token string) {
	for i, client := range r.clients {
		if _, err := client.Eval(r.ctx, unlockScript, []string{lockName}, token).Result(); err != nil {
			log.Printf("在节点 %s 释放锁 %s 失败: %v", config.AppConfig.Redis.LockAddresses[i], lockName, err)
		}
	}
}
