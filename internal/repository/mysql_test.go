package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 模拟parseTime=true的MySQL驱动行为：DATE列以time.Time（零点UTC）返回，
// 用于验证扫描层能把日期还原成统一的日历日期字符串
var stubMenuDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

type dateDriver struct{}

func (d *dateDriver) Open(name string) (driver.Conn, error) {
	return &dateConn{}, nil
}

type dateConn struct{}

func (c *dateConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("预期外的Prepare: %s", query)
}

func (c *dateConn) Close() error { return nil }

func (c *dateConn) Begin() (driver.Tx, error) { return &dateTx{}, nil }

func (c *dateConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	switch {
	case strings.Contains(query, "SELECT day FROM menus"):
		return &dateRows{
			cols: []string{"day"},
			data: [][]driver.Value{{stubMenuDate}},
		}, nil
	case strings.Contains(query, "JOIN restaurants"):
		return &dateRows{
			cols: []string{"id", "restaurant_id", "restaurant", "name", "details", "day", "vote_count", "created_at"},
			data: [][]driver.Value{
				{int64(1), int64(1), "家常菜馆", "红烧肉套餐", "含米饭和例汤", stubMenuDate, int64(3), stubMenuDate},
			},
		}, nil
	}
	return nil, fmt.Errorf("预期外的查询: %s", query)
}

func (c *dateConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	switch {
	case strings.Contains(query, "INSERT INTO votes"):
		return dateResult{lastID: 7, affected: 1}, nil
	case strings.Contains(query, "vote_count = vote_count + 1"):
		return dateResult{affected: 1}, nil
	}
	return nil, fmt.Errorf("预期外的写入: %s", query)
}

type dateTx struct{}

func (t *dateTx) Commit() error   { return nil }
func (t *dateTx) Rollback() error { return nil }

type dateRows struct {
	cols []string
	data [][]driver.Value
	pos  int
}

func (r *dateRows) Columns() []string { return r.cols }
func (r *dateRows) Close() error      { return nil }

func (r *dateRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

type dateResult struct {
	lastID   int64
	affected int64
}

func (r dateResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r dateResult) RowsAffected() (int64, error) { return r.affected, nil }

func init() {
	sql.Register("datestub", &dateDriver{})
}

func newDateRepo(t *testing.T) *MySQLRepository {
	t.Helper()
	db, err := sql.Open("datestub", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &MySQLRepository{masterDB: db, slaveDB: db}
}

// 驱动把菜单DATE列还原成time.Time后，当天投票不能被误判为过期菜单
func TestCastVoteAcceptsDateColumn(t *testing.T) {
	repo := newDateRepo(t)

	vote, err := repo.CastVote(42, 1, "2026-09-01")
	require.NoError(t, err)
	assert.EqualValues(t, 7, vote.ID)
	assert.Equal(t, "2026-09-01", vote.Day)
}

// 窗口查询返回的菜单日期必须是日历日期字符串，结果计算按日分桶依赖这一点
func TestMenusForDaysNormalizesDayFormat(t *testing.T) {
	repo := newDateRepo(t)

	menus, err := repo.MenusForDays([]string{"2026-09-01", "2026-08-31", "2026-08-30"})
	require.NoError(t, err)
	require.Len(t, menus, 1)
	assert.Equal(t, "2026-09-01", menus[0].Day)

	menu, err := repo.GetMenu(1)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", menu.Day)
}
