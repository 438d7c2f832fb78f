package lock

import (
	"fmt"
	"time"

	"github.com/melon-ruet/CornerCase/config"
)

// Lock 分布式锁接口
type Lock interface {
	// AcquireLock 获取分布式锁
	// 返回值：bool表示是否成功获取锁，error表示获取过程中的错误
	AcquireLock(lockName string, timeout time.Duration) (bool, error)

	// RefreshLock 刷新锁的过期时间
	RefreshLock(lockName string, timeout time.Duration) (bool, error)

	// ReleaseLock 释放分布式锁
	ReleaseLock(lockName string) error

	// ReleaseAllLocks 释放所有持有的锁
	ReleaseAllLocks()

	// Close 关闭分布式锁客户端
	Close() error
}

// New 根据配置创建分布式锁客户端
func New() (Lock, error) {
	switch config.AppConfig.Lock.Backend {
	case "etcd":
		return NewETCDLock()
	case "redlock", "":
		return NewRedLock()
	default:
		return nil, fmt.Errorf("不支持的锁后端: %s", config.AppConfig.Lock.Backend)
	}
}
