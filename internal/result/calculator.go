package result

import (
	"time"

	"github.com/melon-ruet/CornerCase/internal/model"
)

// Window 结果计算所需的三天窗口
type Window struct {
	Today           string
	Yesterday       string
	DayBeforeYstday string
}

// WindowFor 以指定日期为今天构造三天窗口
func WindowFor(today time.Time) Window {
	return Window{
		Today:           today.Format(model.DayLayout),
		Yesterday:       today.AddDate(0, 0, -1).Format(model.DayLayout),
		DayBeforeYstday: today.AddDate(0, 0, -2).Format(model.DayLayout),
	}
}

// Days 返回窗口覆盖的全部日期
func (w Window) Days() []string {
	return []string{w.Today, w.Yesterday, w.DayBeforeYstday}
}

// Calculate 计算今天的获胜菜单集合，纯函数，不依赖任何存储
//
// 规则：昨天和前天各自取票数最高的餐厅集合（并列算共同获胜），
// 两个集合的交集即连续两天获胜的餐厅，今天被排除参选；
// 在今天未被排除的菜单中取票数最高的全部菜单（并列全部保留，
// 零票也照常参与取最大值）。今天没有候选菜单时返回空集。
func Calculate(menus []*model.Menu, window Window) []*model.Menu {
	var todayMenus []*model.Menu
	yesterdayWinners := dayWinners{}
	beforeWinners := dayWinners{}

	for _, menu := range menus {
		switch menu.Day {
		case window.Today:
			todayMenus = append(todayMenus, menu)
		case window.Yesterday:
			yesterdayWinners.observe(menu.RestaurantID, menu.VoteCount)
		case window.DayBeforeYstday:
			beforeWinners.observe(menu.RestaurantID, menu.VoteCount)
		}
	}

	excluded := yesterdayWinners.intersect(beforeWinners)

	maxVotes := -1
	var winners []*model.Menu
	for _, menu := range todayMenus {
		if _, ok := excluded[menu.RestaurantID]; ok {
			continue
		}
		if menu.VoteCount > maxVotes {
			maxVotes = menu.VoteCount
			winners = []*model.Menu{menu}
		} else if menu.VoteCount == maxVotes {
			winners = append(winners, menu)
		}
	}

	return winners
}

// dayWinners 单日票数最大值及达到最大值的餐厅集合
type dayWinners struct {
	max         int
	restaurants map[int64]struct{}
}

// observe 纳入一条菜单记录，维护最大票数餐厅集合
func (d *dayWinners) observe(restaurantID int64, votes int) {
	if d.restaurants == nil {
		d.max = votes
		d.restaurants = map[int64]struct{}{restaurantID: {}}
		return
	}

	switch {
	case votes > d.max:
		d.max = votes
		d.restaurants = map[int64]struct{}{restaurantID: {}}
	case votes == d.max:
		d.restaurants[restaurantID] = struct{}{}
	}
}

// intersect 返回两个获胜餐厅集合的交集
func (d *dayWinners) intersect(other dayWinners) map[int64]struct{} {
	result := make(map[int64]struct{})
	for id := range d.restaurants {
		if _, ok := other.restaurants[id]; ok {
			result[id] = struct{}{}
		}
	}
	return result
}
