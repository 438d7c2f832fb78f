package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/melon-ruet/CornerCase/config"
	"github.com/melon-ruet/CornerCase/internal/model"
)

// MySQL唯一约束冲突错误码
const mysqlDuplicateEntry = 1062

type MySQLRepository struct {
	masterDB *sql.DB
	slaveDB  *sql.DB
}

func NewMySQLRepository() (*MySQLRepository, error) {
	masterDB, err := sql.Open("mysql", config.AppConfig.MySQL.Master)
	if err != nil {
		return nil, fmt.Errorf("连接主数据库失败: %w", err)
	}

	masterDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	masterDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	masterDB.SetConnMaxLifetime(time.Hour)

	if err = masterDB.Ping(); err != nil {
		return nil, fmt.Errorf("主数据库连接测试失败: %w", err)
	}

	slaveDB, err := sql.Open("mysql", config.AppConfig.MySQL.Slave)
	if err != nil {
		return nil, fmt.Errorf("连接从数据库失败: %w", err)
	}

	slaveDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	slaveDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	slaveDB.SetConnMaxLifetime(time.Hour)

	if err = slaveDB.Ping(); err != nil {
		log.Printf("从数据库连接测试失败: %v，将使用主数据库代替", err)
		slaveDB = masterDB
	}

	return &MySQLRepository{
		masterDB: masterDB,
		slaveDB:  slaveDB,
	}, nil
}

// isDuplicateEntry 判断是否为唯一约束冲突
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// CreateRestaurant 创建餐厅
func (r *MySQLRepository) CreateRestaurant(name string) (*model.Restaurant, error) {
	result, err := r.masterDB.Exec("INSERT INTO restaurants (name) VALUES (?)", name)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, fmt.Errorf("餐厅 %s 已存在: %w", name, model.ErrDuplicateRestaurant)
		}
		return nil, fmt.Errorf("创建餐厅失败: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("获取餐厅ID失败: %w", err)
	}

	return &model.Restaurant{ID: id, Name: name, CreatedAt: time.Now()}, nil
}

// ListRestaurants 获取所有餐厅
func (r *MySQLRepository) ListRestaurants() ([]*model.Restaurant, error) {
	rows, err := r.slaveDB.Query("SELECT id, name, created_at FROM restaurants ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("查询餐厅列表失败: %w", err)
	}
	defer rows.Close()

	var restaurants []*model.Restaurant
	for rows.Next() {
		var restaurant model.Restaurant
		if err := rows.Scan(&restaurant.ID, &restaurant.Name, &restaurant.CreatedAt); err != nil {
			return nil, fmt.Errorf("扫描餐厅记录失败: %w", err)
		}
		restaurants = append(restaurants, &restaurant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代餐厅记录失败: %w", err)
	}

	return restaurants, nil
}

// CreateMenu 发布菜单，每家餐厅每天只能发布一份，vote_count从0开始
func (r *MySQLRepository) CreateMenu(restaurantID int64, name, details, day string) (*model.Menu, error) {
	var exists int64
	err := r.masterDB.QueryRow("SELECT id FROM restaurants WHERE id = ?", restaurantID).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("餐厅 %d 不存在: %w", restaurantID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("查询餐厅失败: %w", err)
	}

	result, err := r.masterDB.Exec(
		"INSERT INTO menus (restaurant_id, name, details, day, vote_count) VALUES (?, ?, ?, ?, 0)",
		restaurantID, name, details, day,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, fmt.Errorf("餐厅 %d 当天菜单已发布: %w", restaurantID, model.ErrDuplicateMenu)
		}
		return nil, fmt.Errorf("发布菜单失败: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("获取菜单ID失败: %w", err)
	}

	return &model.Menu{
		ID:           id,
		RestaurantID: restaurantID,
		Name:         name,
		Details:      details,
		Day:          day,
		VoteCount:    0,
		CreatedAt:    time.Now(),
	}, nil
}

// GetMenu 获取单个菜单
func (r *MySQLRepository) GetMenu(menuID int64) (*model.Menu, error) {
	query := `SELECT m.id, m.restaurant_id, r.name, m.name, m.details, m.day, m.vote_count, m.created_at
			 FROM menus m JOIN restaurants r ON r.id = m.restaurant_id
			 WHERE m.id = ?`

	var menu model.Menu
	var day time.Time
	err := r.slaveDB.QueryRow(query, menuID).Scan(
		&menu.ID, &menu.RestaurantID, &menu.Restaurant,
		&menu.Name, &menu.Details, &day, &menu.VoteCount, &menu.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("菜单 %d 不存在: %w", menuID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("查询菜单失败: %w", err)
	}
	menu.Day = day.Format(model.DayLayout)

	return &menu, nil
}

// ListMenus 获取指定日期的全部菜单
func (r *MySQLRepository) ListMenus(day string) ([]*model.Menu, error) {
	return r.queryMenus("WHERE m.day = ?", day)
}

// MenusForDays 获取结果计算窗口内的全部菜单，供结果计算器使用
func (r *MySQLRepository) MenusForDays(days []string) ([]*model.Menu, error) {
	if len(days) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(days)), ",")
	args := make([]interface{}, len(days))
	for i, day := range days {
		args[i] = day
	}

	return r.queryMenus(fmt.Sprintf("WHERE m.day IN (%s)", placeholders), args...)
}

// queryMenus 按条件查询菜单，从库读取
func (r *MySQLRepository) queryMenus(where string, args ...interface{}) ([]*model.Menu, error) {
	query := fmt.Sprintf(`SELECT m.id, m.restaurant_id, r.name, m.name, m.details, m.day, m.vote_count, m.created_at
			 FROM menus m JOIN restaurants r ON r.id = m.restaurant_id
			 %s ORDER BY m.id`, where)

	rows, err := r.slaveDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询菜单失败: %w", err)
	}
	defer rows.Close()

	var menus []*model.Menu
	for rows.Next() {
		var menu model.Menu
		var day time.Time
		if err := rows.Scan(
			&menu.ID, &menu.RestaurantID, &menu.Restaurant,
			&menu.Name, &menu.Details, &day, &menu.VoteCount, &menu.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描菜单记录失败: %w", err)
		}
		// parseTime=true 时DATE列以time.Time返回，统一转回日历日期字符串
		menu.Day = day.Format(model.DayLayout)
		menus = append(menus, &menu)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代菜单记录失败: %w", err)
	}

	return menus, nil
}

// GetVote 获取单条投票
func (r *MySQLRepository) GetVote(voteID int64) (*model.Vote, error) {
	query := "SELECT id, menu_id, employee_id, day, created_at, updated_at FROM votes WHERE id = ?"

	var vote model.Vote
	var day time.Time
	err := r.slaveDB.QueryRow(query, voteID).Scan(
		&vote.ID, &vote.MenuID, &vote.EmployeeID, &day, &vote.CreatedAt, &vote.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("投票 %d 不存在: %w", voteID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("查询投票失败: %w", err)
	}
	vote.Day = day.Format(model.DayLayout)

	return &vote, nil
}

// CastVote 投票，整个操作在一个事务内完成：
// 锁定菜单行 -> 校验菜单日期 -> 插入投票（唯一键挡住并发重复投票）-> 累加票数
func (r *MySQLRepository) CastVote(employeeID, menuID int64, day string) (*model.Vote, error) {
	tx, err := r.masterDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("开始事务失败: %w", err)
	}

	// 锁定菜单行，后续计数更新在同一把行锁下进行
	var rawDay time.Time
	err = tx.QueryRow("SELECT day FROM menus WHERE id = ? FOR UPDATE", menuID).Scan(&rawDay)
	if err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("菜单 %d 不存在: %w", menuID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("锁定菜单失败: %w", err)
	}

	if menuDay := rawDay.Format(model.DayLayout); menuDay != day {
		tx.Rollback()
		return nil, fmt.Errorf("菜单 %d 属于 %s 而非 %s: %w", menuID, menuDay, day, model.ErrStaleMenu)
	}

	// 唯一键 (employee_id, day) 由存储层兜底，关闭先查后插的竞态窗口
	result, err := tx.Exec(
		"INSERT INTO votes (menu_id, employee_id, day) VALUES (?, ?, ?)",
		menuID, employeeID, day,
	)
	if err != nil {
		tx.Rollback()
		if isDuplicateEntry(err) {
			return nil, fmt.Errorf("员工 %d 在 %s 已投过票: %w", employeeID, day, model.ErrDuplicateVote)
		}
		return nil, fmt.Errorf("写入投票失败: %w", err)
	}

	voteID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("获取投票ID失败: %w", err)
	}

	if err := incrementVoteCount(tx, menuID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	now := time.Now()
	return &model.Vote{
		ID:         voteID,
		MenuID:     menuID,
		EmployeeID: employeeID,
		Day:        day,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// MoveVote 改票，同一事务内完成：旧菜单减票、新菜单加票、投票改指向
// 返回改票后的投票记录和旧菜单ID；目标菜单与当前相同时不做任何计数变更
func (r *MySQLRepository) MoveVote(voteID, newMenuID int64) (*model.Vote, int64, error) {
	tx, err := r.masterDB.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("开始事务失败: %w", err)
	}

	var vote model.Vote
	var voteDay time.Time
	err = tx.QueryRow(
		"SELECT id, menu_id, employee_id, day, created_at, updated_at FROM votes WHERE id = ? FOR UPDATE",
		voteID,
	).Scan(&vote.ID, &vote.MenuID, &vote.EmployeeID, &voteDay, &vote.CreatedAt, &vote.UpdatedAt)
	if err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return nil, 0, fmt.Errorf("投票 %d 不存在: %w", voteID, model.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("锁定投票失败: %w", err)
	}
	vote.Day = voteDay.Format(model.DayLayout)

	oldMenuID := vote.MenuID
	if oldMenuID == newMenuID {
		tx.Rollback()
		return &vote, oldMenuID, nil
	}

	// 按ID顺序锁定两个菜单行，避免并发改票互相死锁
	menuDays, err := lockMenus(tx, oldMenuID, newMenuID)
	if err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	newMenuDay, ok := menuDays[newMenuID]
	if !ok {
		tx.Rollback()
		return nil, 0, fmt.Errorf("菜单 %d 不存在: %w", newMenuID, model.ErrNotFound)
	}
	if _, ok := menuDays[oldMenuID]; !ok {
		// 投票引用的菜单必然存在，缺失说明账本被破坏
		tx.Rollback()
		return nil, 0, fmt.Errorf("投票 %d 引用的菜单 %d 缺失: %w", voteID, oldMenuID, model.ErrInvariantViolation)
	}

	if newMenuDay != vote.Day {
		tx.Rollback()
		return nil, 0, fmt.Errorf("菜单 %d 属于 %s 而非 %s: %w", newMenuID, newMenuDay, vote.Day, model.ErrStaleMenu)
	}

	if err := decrementVoteCount(tx, oldMenuID); err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	if err := incrementVoteCount(tx, newMenuID); err != nil {
		tx.Rollback()
		return nil, 0, err
	}

	if _, err := tx.Exec("UPDATE votes SET menu_id = ? WHERE id = ?", newMenuID, voteID); err != nil {
		tx.Rollback()
		return nil, 0, fmt.Errorf("更新投票指向失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("提交事务失败: %w", err)
	}

	vote.MenuID = newMenuID
	vote.UpdatedAt = time.Now()
	return &vote, oldMenuID, nil
}

// incrementVoteCount 菜单票数加一，必须在持有菜单行锁的事务内调用
func incrementVoteCount(tx *sql.Tx, menuID int64) error {
	result, err := tx.Exec("UPDATE menus SET vote_count = vote_count + 1 WHERE id = ?", menuID)
	if err != nil {
		return fmt.Errorf("累加菜单票数失败: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("获取累加结果失败: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("菜单 %d 不存在: %w", menuID, model.ErrNotFound)
	}

	return nil
}

// decrementVoteCount 菜单票数减一，带下限保护
// 票数绝不允许变负，减不动说明账本不变量已被破坏，绝不静默截断
func decrementVoteCount(tx *sql.Tx, menuID int64) error {
	result, err := tx.Exec("UPDATE menus SET vote_count = vote_count - 1 WHERE id = ? AND vote_count > 0", menuID)
	if err != nil {
		return fmt.Errorf("扣减菜单票数失败: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("获取扣减结果失败: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// 区分菜单缺失和票数下溢
	var count int
	if err := tx.QueryRow("SELECT vote_count FROM menus WHERE id = ?", menuID).Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("菜单 %d 不存在: %w", menuID, model.ErrNotFound)
		}
		return fmt.Errorf("查询菜单票数失败: %w", err)
	}

	return fmt.Errorf("菜单 %d 票数已为零无法扣减: %w", menuID, model.ErrInvariantViolation)
}

// lockMenus 按ID顺序锁定两个菜单行并返回各自的日期
func lockMenus(tx *sql.Tx, menuA, menuB int64) (map[int64]string, error) {
	rows, err := tx.Query(
		"SELECT id, day FROM menus WHERE id IN (?, ?) ORDER BY id FOR UPDATE",
		menuA, menuB,
	)
	if err != nil {
		return nil, fmt.Errorf("锁定菜单失败: %w", err)
	}
	defer rows.Close()

	menuDays := make(map[int64]string, 2)
	for rows.Next() {
		var id int64
		var day time.Time
		if err := rows.Scan(&id, &day); err != nil {
			return nil, fmt.Errorf("扫描菜单记录失败: %w", err)
		}
		menuDays[id] = day.Format(model.DayLayout)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代菜单记录失败: %w", err)
	}

	return menuDays, nil
}

// SaveVoteLog 记录投票审计日志（Kafka消费者写入）
func (r *MySQLRepository) SaveVoteLog(event *model.VoteEvent) error {
	query := "INSERT INTO vote_logs (vote_id, menu_id, old_menu_id, employee_id, day, action, voted_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := r.masterDB.Exec(query,
		event.VoteID,
		event.MenuID,
		event.OldMenuID,
		event.EmployeeID,
		event.Day,
		event.Action,
		event.VotedAt,
	)
	if err != nil {
		return fmt.Errorf("保存投票日志失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (r *MySQLRepository) Close() {
	if r.masterDB != nil {
		r.masterDB.Close()
	}
	if r.slaveDB != nil && r.slaveDB != r.masterDB {
		r.slaveDB.Close()
	}
}
