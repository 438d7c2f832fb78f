package model

import (
	"time"
)

// DayLayout 日历日期的统一格式（数据库DATE列与接口参数均使用）
const DayLayout = "2006-01-02"

// Restaurant 餐厅模型
type Restaurant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Menu 菜单模型，每家餐厅每天只能发布一份菜单
// VoteCount 是对投票账本的反范式计数缓存，只允许投票事务修改
type Menu struct {
	ID           int64     `json:"id"`
	RestaurantID int64     `json:"restaurantId"`
	Restaurant   string    `json:"restaurant"`
	Name         string    `json:"name"`
	Details      string    `json:"details"`
	Day          string    `json:"day"`
	VoteCount    int       `json:"voteCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Vote 投票模型，每个员工每天只能投一票
type Vote struct {
	ID         int64     `json:"id"`
	MenuID     int64     `json:"menuId"`
	EmployeeID int64     `json:"employeeId"`
	Day        string    `json:"day"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// WinnerMenu 当日获胜菜单，只暴露展示所需字段
type WinnerMenu struct {
	Restaurant string `json:"restaurant"`
	Name       string `json:"name"`
	Details    string `json:"details"`
}

// VoteEvent Kafka投票事件，事务提交成功后发送
type VoteEvent struct {
	VoteID     int64     `json:"voteId"`
	MenuID     int64     `json:"menuId"`
	OldMenuID  int64     `json:"oldMenuId,omitempty"`
	EmployeeID int64     `json:"employeeId"`
	Day        string    `json:"day"`
	Action     string    `json:"action"`
	VotedAt    time.Time `json:"votedAt"`
}

// 投票事件类型
const (
	VoteActionCast = "cast"
	VoteActionMove = "move"
)

// VoteRequest 投票请求
type VoteRequest struct {
	EmployeeID int64 `json:"employeeId"`
	MenuID     int64 `json:"menuId"`
}

// MoveVoteRequest 改票请求
type MoveVoteRequest struct {
	MenuID int64 `json:"menuId"`
}

// VoteResponse 投票响应
type VoteResponse struct {
	VoteID    int64     `json:"voteId"`
	MenuID    int64     `json:"menuId"`
	Day       string    `json:"day"`
	Timestamp time.Time `json:"timestamp"`
}
