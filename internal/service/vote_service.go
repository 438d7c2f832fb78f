package service

import (
	"fmt"
	"log"
	"time"

	"github.com/melon-ruet/CornerCase/config"
	"github.com/melon-ruet/CornerCase/internal/lock"
	"github.com/melon-ruet/CornerCase/internal/model"
	"github.com/melon-ruet/CornerCase/internal/result"
)

const (
	// ResultRefreshLockName 结果重算分布式锁，用于限制缓存未命中时的重算风暴
	ResultRefreshLockName = "vote:result:refresh:lock"
)

// LedgerRepository 菜单/投票账本的事务性存储
type LedgerRepository interface {
	CastVote(employeeID, menuID int64, day string) (*model.Vote, error)
	MoveVote(voteID, newMenuID int64) (*model.Vote, int64, error)
	MenusForDays(days []string) ([]*model.Menu, error)
	SaveVoteLog(event *model.VoteEvent) error
}

// ResultCache 投票结果缓存，单一固定键，全实例共享
type ResultCache interface {
	GetResult() ([]model.WinnerMenu, bool, error)
	SetResult(winners []model.WinnerMenu) error
	DeleteResult() error
}

// EventPublisher 投票事件发布器
type EventPublisher interface {
	SendVoteEvent(event *model.VoteEvent) error
}

type VoteService struct {
	ledger    LedgerRepository
	cache     ResultCache
	publisher EventPublisher // 可为nil，事件发布是纯粹的优化路径
	locker    lock.Lock      // 可为nil，重算锁同样只是优化
	now       func() time.Time
}

func NewVoteService(
	ledger LedgerRepository,
	cache ResultCache,
	publisher EventPublisher,
	locker lock.Lock,
) *VoteService {
	return &VoteService{
		ledger:    ledger,
		cache:     cache,
		publisher: publisher,
		locker:    locker,
		now:       time.Now,
	}
}

// CastVote 投票，日期取当天，不接受调用方指定
// 事务提交成功后同步失效结果缓存，再尽力发布投票事件
func (s *VoteService) CastVote(employeeID, menuID int64) (*model.VoteResponse, error) {
	day := s.now().Format(model.DayLayout)

	vote, err := s.ledger.CastVote(employeeID, menuID, day)
	if err != nil {
		return nil, fmt.Errorf("投票失败: %w", err)
	}

	s.afterCommit(&model.VoteEvent{
		VoteID:     vote.ID,
		MenuID:     vote.MenuID,
		EmployeeID: vote.EmployeeID,
		Day:        vote.Day,
		Action:     model.VoteActionCast,
		VotedAt:    s.now(),
	})

	return &model.VoteResponse{
		VoteID:    vote.ID,
		MenuID:    vote.MenuID,
		Day:       vote.Day,
		Timestamp: s.now(),
	}, nil
}

// MoveVote 把已有投票改投到同一天的另一份菜单
// 目标菜单与当前相同时为no-op，不产生计数变更也不失效缓存
func (s *VoteService) MoveVote(voteID, newMenuID int64) (*model.VoteResponse, error) {
	vote, oldMenuID, err := s.ledger.MoveVote(voteID, newMenuID)
	if err != nil {
		return nil, fmt.Errorf("改票失败: %w", err)
	}

	if oldMenuID != vote.MenuID {
		s.afterCommit(&model.VoteEvent{
			VoteID:     vote.ID,
			MenuID:     vote.MenuID,
			OldMenuID:  oldMenuID,
			EmployeeID: vote.EmployeeID,
			Day:        vote.Day,
			Action:     model.VoteActionMove,
			VotedAt:    s.now(),
		})
	}

	return &model.VoteResponse{
		VoteID:    vote.ID,
		MenuID:    vote.MenuID,
		Day:       vote.Day,
		Timestamp: s.now(),
	}, nil
}

// afterCommit 投票事务提交后的副作用
// 缓存失效和事件发布都只记录日志，绝不让已提交的投票因此失败
func (s *VoteService) afterCommit(event *model.VoteEvent) {
	if err := s.cache.DeleteResult(); err != nil {
		log.Printf("失效投票结果缓存失败: %v", err)
	}

	if s.publisher != nil {
		if err := s.publisher.SendVoteEvent(event); err != nil {
			log.Printf("发布投票事件失败: %v", err)
		}
	}
}

// GetResult 获取今天的获胜菜单
// 先查缓存，未命中时从账本读取三天窗口重算并回填缓存
func (s *VoteService) GetResult() ([]model.WinnerMenu, error) {
	winners, found, err := s.cache.GetResult()
	if err != nil {
		log.Printf("读取投票结果缓存失败: %v", err)
	}
	if found {
		return winners, nil
	}

	// 重算锁只为抑制并发重算，拿不到锁时直接重算也不破坏正确性
	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ResultRefreshLockName, config.AppConfig.Lock.Timeout)
		if err != nil {
			log.Printf("获取结果重算锁失败: %v", err)
		}
		if acquired {
			defer s.locker.ReleaseLock(ResultRefreshLockName)

			// 拿到锁后再查一次，前一个持锁者可能已经回填
			winners, found, err = s.cache.GetResult()
			if err == nil && found {
				return winners, nil
			}
		}
	}

	return s.RefreshResult()
}

// RefreshResult 重算今天的获胜菜单并回填缓存
func (s *VoteService) RefreshResult() ([]model.WinnerMenu, error) {
	window := result.WindowFor(s.now())

	menus, err := s.ledger.MenusForDays(window.Days())
	if err != nil {
		return nil, fmt.Errorf("读取结果计算窗口菜单失败: %w", err)
	}

	winnerMenus := result.Calculate(menus, window)
	winners := make([]model.WinnerMenu, 0, len(winnerMenus))
	for _, menu := range winnerMenus {
		winners = append(winners, model.WinnerMenu{
			Restaurant: menu.Restaurant,
			Name:       menu.Name,
			Details:    menu.Details,
		})
	}

	if err := s.cache.SetResult(winners); err != nil {
		log.Printf("回填投票结果缓存失败: %v", err)
	}

	return winners, nil
}

// ProcessVoteEvent 处理Kafka投票事件（消费者使用）
// 写审计日志并预热结果缓存，让下一次结果读取直接命中
func (s *VoteService) ProcessVoteEvent(event *model.VoteEvent) error {
	if err := s.ledger.SaveVoteLog(event); err != nil {
		return fmt.Errorf("处理投票事件写审计日志失败: %w", err)
	}

	if _, err := s.RefreshResult(); err != nil {
		return fmt.Errorf("处理投票事件预热缓存失败: %w", err)
	}

	return nil
}
