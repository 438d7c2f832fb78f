package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melon-ruet/CornerCase/internal/model"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func testDay(offset int) string {
	return testNow.AddDate(0, 0, offset).Format(model.DayLayout)
}

// fakeLedger 内存账本，语义与MySQL仓库一致：
// 唯一约束 (employee, day)、日期校验、减票下限保护
type fakeLedger struct {
	menus      map[int64]*model.Menu
	votes      map[int64]*model.Vote
	nextVoteID int64

	windowQueries int // MenusForDays调用次数，观察结果重算
	voteLogs      []*model.VoteEvent
}

func newFakeLedger(menus ...*model.Menu) *fakeLedger {
	ledger := &fakeLedger{
		menus: make(map[int64]*model.Menu),
		votes: make(map[int64]*model.Vote),
	}
	for _, menu := range menus {
		ledger.menus[menu.ID] = menu
	}
	return ledger
}

func (f *fakeLedger) CastVote(employeeID, menuID int64, day string) (*model.Vote, error) {
	menu, ok := f.menus[menuID]
	if !ok {
		return nil, fmt.Errorf("菜单 %d 不存在: %w", menuID, model.ErrNotFound)
	}
	if menu.Day != day {
		return nil, fmt.Errorf("菜单 %d 属于 %s 而非 %s: %w", menuID, menu.Day, day, model.ErrStaleMenu)
	}
	for _, vote := range f.votes {
		if vote.EmployeeID == employeeID && vote.Day == day {
			return nil, fmt.Errorf("员工 %d 在 %s 已投过票: %w", employeeID, day, model.ErrDuplicateVote)
		}
	}

	f.nextVoteID++
	vote := &model.Vote{
		ID:         f.nextVoteID,
		MenuID:     menuID,
		EmployeeID: employeeID,
		Day:        day,
	}
	f.votes[vote.ID] = vote
	menu.VoteCount++
	return vote, nil
}

func (f *fakeLedger) MoveVote(voteID, newMenuID int64) (*model.Vote, int64, error) {
	vote, ok := f.votes[voteID]
	if !ok {
		return nil, 0, fmt.Errorf("投票 %d 不存在: %w", voteID, model.ErrNotFound)
	}

	oldMenuID := vote.MenuID
	if oldMenuID == newMenuID {
		copied := *vote
		return &copied, oldMenuID, nil
	}

	newMenu, ok := f.menus[newMenuID]
	if !ok {
		return nil, 0, fmt.Errorf("菜单 %d 不存在: %w", newMenuID, model.ErrNotFound)
	}
	if newMenu.Day != vote.Day {
		return nil, 0, fmt.Errorf("菜单 %d 属于 %s 而非 %s: %w", newMenuID, newMenu.Day, vote.Day, model.ErrStaleMenu)
	}

	oldMenu := f.menus[oldMenuID]
	if oldMenu.VoteCount <= 0 {
		return nil, 0, fmt.Errorf("菜单 %d 票数已为零无法扣减: %w", oldMenuID, model.ErrInvariantViolation)
	}

	oldMenu.VoteCount--
	newMenu.VoteCount++
	vote.MenuID = newMenuID
	copied := *vote
	return &copied, oldMenuID, nil
}

func (f *fakeLedger) MenusForDays(days []string) ([]*model.Menu, error) {
	f.windowQueries++

	var menus []*model.Menu
	for _, menu := range f.menus {
		for _, day := range days {
			if menu.Day == day {
				copied := *menu
				menus = append(menus, &copied)
				break
			}
		}
	}
	return menus, nil
}

func (f *fakeLedger) SaveVoteLog(event *model.VoteEvent) error {
	f.voteLogs = append(f.voteLogs, event)
	return nil
}

// votesOn 当前引用某菜单的投票行数，用于验证票数账本不变量
func (f *fakeLedger) votesOn(menuID int64) int {
	count := 0
	for _, vote := range f.votes {
		if vote.MenuID == menuID {
			count++
		}
	}
	return count
}

type fakeCache struct {
	winners   []model.WinnerMenu
	populated bool
	failAll   bool // 模拟缓存存储不可用
	deletes   int
}

func (f *fakeCache) GetResult() ([]model.WinnerMenu, bool, error) {
	if f.failAll {
		return nil, false, errors.New("cache store unreachable")
	}
	if !f.populated {
		return nil, false, nil
	}
	return f.winners, true, nil
}

func (f *fakeCache) SetResult(winners []model.WinnerMenu) error {
	if f.failAll {
		return errors.New("cache store unreachable")
	}
	f.winners = winners
	f.populated = true
	return nil
}

func (f *fakeCache) DeleteResult() error {
	f.deletes++
	if f.failAll {
		return errors.New("cache store unreachable")
	}
	f.winners = nil
	f.populated = false
	return nil
}

type fakePublisher struct {
	events []*model.VoteEvent
}

func (f *fakePublisher) SendVoteEvent(event *model.VoteEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newTestService(ledger *fakeLedger, cache *fakeCache, publisher *fakePublisher) *VoteService {
	var pub EventPublisher
	if publisher != nil {
		pub = publisher
	}
	svc := NewVoteService(ledger, cache, pub, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func todayMenu(id, restaurantID int64, name string) *model.Menu {
	return &model.Menu{
		ID:           id,
		RestaurantID: restaurantID,
		Restaurant:   fmt.Sprintf("restaurant-%d", restaurantID),
		Name:         name,
		Day:          testDay(0),
	}
}

func TestCastVote(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"))
	cache := &fakeCache{populated: true}
	publisher := &fakePublisher{}
	svc := newTestService(ledger, cache, publisher)

	resp, err := svc.CastVote(100, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.MenuID)
	assert.Equal(t, testDay(0), resp.Day)

	// 票数与投票行数一致，缓存被失效，事件已发布
	assert.Equal(t, 1, ledger.menus[1].VoteCount)
	assert.Equal(t, ledger.votesOn(1), ledger.menus[1].VoteCount)
	assert.False(t, cache.populated)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, model.VoteActionCast, publisher.events[0].Action)
}

func TestCastVoteDuplicate(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"), todayMenu(2, 2, "menu-b"))
	svc := newTestService(ledger, &fakeCache{}, &fakePublisher{})

	_, err := svc.CastVote(100, 1)
	require.NoError(t, err)

	// 同一员工当天不能再投，换一份菜单也不行
	_, err = svc.CastVote(100, 2)
	assert.ErrorIs(t, err, model.ErrDuplicateVote)
	assert.Equal(t, 1, ledger.menus[1].VoteCount)
	assert.Equal(t, 0, ledger.menus[2].VoteCount)
}

func TestCastVoteStaleMenu(t *testing.T) {
	yesterdayMenu := &model.Menu{ID: 9, RestaurantID: 1, Name: "old", Day: testDay(-1)}
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"), yesterdayMenu)
	cache := &fakeCache{populated: true}
	svc := newTestService(ledger, cache, &fakePublisher{})

	_, err := svc.CastVote(100, 9)
	assert.ErrorIs(t, err, model.ErrStaleMenu)

	// 失败的投票不留任何痕迹：票数不变，缓存不失效
	assert.Equal(t, 0, ledger.menus[1].VoteCount)
	assert.Equal(t, 0, ledger.menus[9].VoteCount)
	assert.True(t, cache.populated)
}

func TestCastVoteMenuNotFound(t *testing.T) {
	svc := newTestService(newFakeLedger(), &fakeCache{}, &fakePublisher{})

	_, err := svc.CastVote(100, 42)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMoveVoteRoundTrip(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"), todayMenu(2, 2, "menu-b"))
	svc := newTestService(ledger, &fakeCache{}, &fakePublisher{})

	resp, err := svc.CastVote(100, 1)
	require.NoError(t, err)

	// 改票后再改回来，两份菜单的票数恢复原状
	_, err = svc.MoveVote(resp.VoteID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.menus[1].VoteCount)
	assert.Equal(t, 1, ledger.menus[2].VoteCount)

	_, err = svc.MoveVote(resp.VoteID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.menus[1].VoteCount)
	assert.Equal(t, 0, ledger.menus[2].VoteCount)
}

func TestMoveVoteSameMenuNoOp(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"))
	cache := &fakeCache{}
	publisher := &fakePublisher{}
	svc := newTestService(ledger, cache, publisher)

	resp, err := svc.CastVote(100, 1)
	require.NoError(t, err)
	deletesBefore := cache.deletes
	eventsBefore := len(publisher.events)

	_, err = svc.MoveVote(resp.VoteID, 1)
	require.NoError(t, err)

	// no-op：票数不动，不失效缓存也不发事件
	assert.Equal(t, 1, ledger.menus[1].VoteCount)
	assert.Equal(t, deletesBefore, cache.deletes)
	assert.Len(t, publisher.events, eventsBefore)
}

func TestMoveVoteStaleMenu(t *testing.T) {
	yesterdayMenu := &model.Menu{ID: 9, RestaurantID: 2, Name: "old", Day: testDay(-1)}
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"), yesterdayMenu)
	svc := newTestService(ledger, &fakeCache{}, &fakePublisher{})

	resp, err := svc.CastVote(100, 1)
	require.NoError(t, err)

	_, err = svc.MoveVote(resp.VoteID, 9)
	assert.ErrorIs(t, err, model.ErrStaleMenu)
	assert.Equal(t, 1, ledger.menus[1].VoteCount)
	assert.Equal(t, 0, ledger.menus[9].VoteCount)
}

func TestMoveVoteNotFound(t *testing.T) {
	svc := newTestService(newFakeLedger(todayMenu(1, 1, "menu-a")), &fakeCache{}, &fakePublisher{})

	_, err := svc.MoveVote(42, 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMoveVoteUnderflowIsInvariantViolation(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"), todayMenu(2, 2, "menu-b"))
	svc := newTestService(ledger, &fakeCache{}, &fakePublisher{})

	resp, err := svc.CastVote(100, 1)
	require.NoError(t, err)

	// 人为破坏账本：票数与投票行数脱节
	ledger.menus[1].VoteCount = 0

	_, err = svc.MoveVote(resp.VoteID, 2)
	assert.ErrorIs(t, err, model.ErrInvariantViolation)
}

// 任意投票/改票序列之后，每份菜单的票数都等于引用它的投票行数
func TestVoteCountMatchesVoteRows(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"), todayMenu(2, 2, "menu-b"), todayMenu(3, 3, "menu-c"))
	svc := newTestService(ledger, &fakeCache{}, &fakePublisher{})

	voteIDs := make([]int64, 0, 10)
	for employee := int64(1); employee <= 10; employee++ {
		resp, err := svc.CastVote(employee, 1+employee%3)
		require.NoError(t, err)
		voteIDs = append(voteIDs, resp.VoteID)
	}
	for i, voteID := range voteIDs {
		_, err := svc.MoveVote(voteID, 1+int64(i)%2)
		require.NoError(t, err)
	}

	total := 0
	for menuID, menu := range ledger.menus {
		assert.Equal(t, ledger.votesOn(menuID), menu.VoteCount, "menu %d", menuID)
		total += menu.VoteCount
	}
	assert.Equal(t, 10, total)
}

func TestGetResultUsesCache(t *testing.T) {
	menuA := todayMenu(1, 1, "menu-a")
	menuB := todayMenu(2, 2, "menu-b")
	ledger := newFakeLedger(menuA, menuB)
	svc := newTestService(ledger, &fakeCache{}, &fakePublisher{})

	_, err := svc.CastVote(100, 1)
	require.NoError(t, err)

	// 第一次读取触发重算，第二次直接命中缓存
	winners, err := svc.GetResult()
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, "menu-a", winners[0].Name)
	assert.Equal(t, 1, ledger.windowQueries)

	again, err := svc.GetResult()
	require.NoError(t, err)
	assert.Equal(t, winners, again)
	assert.Equal(t, 1, ledger.windowQueries)

	// 新的投票失效缓存，下一次读取重算出并列获胜
	_, err = svc.CastVote(101, 2)
	require.NoError(t, err)

	winners, err = svc.GetResult()
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.windowQueries)
	names := make([]string, 0, len(winners))
	for _, winner := range winners {
		names = append(names, winner.Name)
	}
	assert.ElementsMatch(t, []string{"menu-a", "menu-b"}, names)
}

func TestGetResultEmptyDay(t *testing.T) {
	svc := newTestService(newFakeLedger(), &fakeCache{}, &fakePublisher{})

	winners, err := svc.GetResult()
	require.NoError(t, err)
	assert.Empty(t, winners)
}

func TestCacheFailureDoesNotFailVote(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"))
	cache := &fakeCache{failAll: true}
	svc := newTestService(ledger, cache, &fakePublisher{})

	// 缓存存储不可用时投票依然成功，结果读取退化为直接重算
	resp, err := svc.CastVote(100, 1)
	require.NoError(t, err)
	assert.NotZero(t, resp.VoteID)
	assert.Equal(t, 1, ledger.menus[1].VoteCount)

	winners, err := svc.GetResult()
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, "menu-a", winners[0].Name)
}

func TestProcessVoteEvent(t *testing.T) {
	ledger := newFakeLedger(todayMenu(1, 1, "menu-a"))
	cache := &fakeCache{}
	svc := newTestService(ledger, cache, nil)

	event := &model.VoteEvent{
		VoteID:     1,
		MenuID:     1,
		EmployeeID: 100,
		Day:        testDay(0),
		Action:     model.VoteActionCast,
		VotedAt:    testNow,
	}

	require.NoError(t, svc.ProcessVoteEvent(event))

	// 审计日志已写入，缓存已预热
	require.Len(t, ledger.voteLogs, 1)
	assert.Equal(t, event, ledger.voteLogs[0])
	assert.True(t, cache.populated)
}
