package model

import (
	"errors"
)

// 账本操作的错误分类，调用方通过 errors.Is 判断
var (
	// ErrDuplicateVote 同一员工同一天重复投票（违反唯一约束）
	ErrDuplicateVote = errors.New("employee already voted today")

	// ErrDuplicateMenu 同一餐厅同一天重复发布菜单
	ErrDuplicateMenu = errors.New("restaurant already published a menu today")

	// ErrDuplicateRestaurant 餐厅名称重复
	ErrDuplicateRestaurant = errors.New("restaurant name already exists")

	// ErrStaleMenu 投票目标菜单不是当天的菜单
	ErrStaleMenu = errors.New("menu is not from today")

	// ErrNotFound 引用的菜单或投票不存在
	ErrNotFound = errors.New("record not found")

	// ErrInvariantViolation 计数账本不变量被破坏（如票数将变为负数）
	// 属于不可恢复的服务端错误，只记录日志并上报，绝不静默修正
	ErrInvariantViolation = errors.New("vote count ledger invariant violated")
)
