package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/melon-ruet/CornerCase/config"
	"github.com/melon-ruet/CornerCase/internal/model"
	"github.com/melon-ruet/CornerCase/internal/service"
)

// Server REST服务器，承载餐厅/菜单维护接口与投票核心接口
type Server struct {
	engine  *gin.Engine
	votes   *service.VoteService
	catalog *service.CatalogService
}

func NewServer(votes *service.VoteService, catalog *service.CatalogService, graphqlHandler http.Handler) *Server {
	engine := gin.Default()

	s := &Server{
		engine:  engine,
		votes:   votes,
		catalog: catalog,
	}

	engine.POST("/restaurants", s.createRestaurant)
	engine.GET("/restaurants", s.listRestaurants)
	engine.POST("/menus", s.publishMenu)
	engine.GET("/menus", s.listTodayMenus)
	engine.POST("/votes", s.castVote)
	engine.PUT("/votes/:id", s.moveVote)
	engine.GET("/votes/result", s.voteResult)

	// GraphQL与REST共用一个端口
	if graphqlHandler != nil {
		engine.POST(config.AppConfig.Server.GraphQLPath, gin.WrapH(graphqlHandler))
	}

	return s
}

// Start 启动HTTP服务器
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("HTTP服务已启动，地址: %s", addr)
	return s.engine.Run(addr)
}

// statusFor 错误分类到HTTP状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateVote),
		errors.Is(err, model.ErrDuplicateMenu),
		errors.Is(err, model.ErrDuplicateRestaurant):
		return http.StatusConflict
	case errors.Is(err, model.ErrStaleMenu):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvariantViolation):
		// 账本不变量被破坏属于服务端错误，记录日志并上报
		log.Printf("账本不变量被破坏: %v", err)
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

type createRestaurantRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) createRestaurant(c *gin.Context) {
	var req createRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	restaurant, err := s.catalog.CreateRestaurant(req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, restaurant)
}

func (s *Server) listRestaurants(c *gin.Context) {
	restaurants, err := s.catalog.ListRestaurants()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if restaurants == nil {
		restaurants = []*model.Restaurant{}
	}

	c.JSON(http.StatusOK, restaurants)
}

type publishMenuRequest struct {
	RestaurantID int64  `json:"restaurantId" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Details      string `json:"details"`
}

func (s *Server) publishMenu(c *gin.Context) {
	var req publishMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	menu, err := s.catalog.PublishMenu(req.RestaurantID, req.Name, req.Details)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, menu)
}

func (s *Server) listTodayMenus(c *gin.Context) {
	menus, err := s.catalog.ListTodayMenus()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if menus == nil {
		menus = []*model.Menu{}
	}

	c.JSON(http.StatusOK, menus)
}

func (s *Server) castVote(c *gin.Context) {
	var req model.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	resp, err := s.votes.CastVote(req.EmployeeID, req.MenuID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) moveVote(c *gin.Context) {
	voteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的投票ID"})
		return
	}

	var req model.MoveVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	resp, err := s.votes.MoveVote(voteID, req.MenuID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) voteResult(c *gin.Context) {
	winners, err := s.votes.GetResult()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if winners == nil {
		winners = []model.WinnerMenu{}
	}

	c.JSON(http.StatusOK, winners)
}
