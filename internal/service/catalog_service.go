package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/melon-ruet/CornerCase/internal/model"
)

// CatalogRepository 餐厅与菜单的存储
type CatalogRepository interface {
	CreateRestaurant(name string) (*model.Restaurant, error)
	ListRestaurants() ([]*model.Restaurant, error)
	CreateMenu(restaurantID int64, name, details, day string) (*model.Menu, error)
	ListMenus(day string) ([]*model.Menu, error)
	GetMenu(menuID int64) (*model.Menu, error)
}

// CatalogService 餐厅/菜单维护服务
// 菜单发布属于协作方职责，这里只提供投票核心依赖的最小维护入口
type CatalogService struct {
	repo CatalogRepository
	now  func() time.Time
}

func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{
		repo: repo,
		now:  time.Now,
	}
}

// CreateRestaurant 创建餐厅
func (s *CatalogService) CreateRestaurant(name string) (*model.Restaurant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("餐厅名称不能为空")
	}

	return s.repo.CreateRestaurant(name)
}

// ListRestaurants 获取所有餐厅
func (s *CatalogService) ListRestaurants() ([]*model.Restaurant, error) {
	return s.repo.ListRestaurants()
}

// PublishMenu 发布当天菜单，票数从0开始
func (s *CatalogService) PublishMenu(restaurantID int64, name, details string) (*model.Menu, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("菜单名称不能为空")
	}

	day := s.now().Format(model.DayLayout)
	return s.repo.CreateMenu(restaurantID, name, details, day)
}

// ListTodayMenus 获取今天的所有菜单
func (s *CatalogService) ListTodayMenus() ([]*model.Menu, error) {
	return s.repo.ListMenus(s.now().Format(model.DayLayout))
}

// GetMenu 获取单个菜单
func (s *CatalogService) GetMenu(menuID int64) (*model.Menu, error) {
	return s.repo.GetMenu(menuID)
}
