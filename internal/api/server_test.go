package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/melon-ruet/CornerCase/internal/model"
	"github.com/melon-ruet/CornerCase/internal/service"
	"github.com/stretchr/testify/assert"
)

type stubLedger struct{}

func (s *stubLedger) CastVote(employeeID, menuID int64, day string) (*model.Vote, error) {
	return &model.Vote{ID: 1, MenuID: menuID, EmployeeID: employeeID, Day: day}, nil
}

func (s *stubLedger) MoveVote(voteID, newMenuID int64) (*model.Vote, int64, error) {
	return &model.Vote{ID: voteID, MenuID: newMenuID, Day: "2026-09-01"}, newMenuID + 1, nil
}

func (s *stubLedger) MenusForDays(days []string) ([]*model.Menu, error) { return nil, nil }

func (s *stubLedger) SaveVoteLog(event *model.VoteEvent) error { return nil }

type stubCache struct{}

func (s *stubCache) GetResult() ([]model.WinnerMenu, bool, error) { return nil, false, nil }
func (s *stubCache) SetResult(winners []model.WinnerMenu) error   { return nil }
func (s *stubCache) DeleteResult() error                          { return nil }

type stubCatalog struct{}

func (s *stubCatalog) CreateRestaurant(name string) (*model.Restaurant, error) {
	return &model.Restaurant{ID: 1, Name: name}, nil
}

func (s *stubCatalog) ListRestaurants() ([]*model.Restaurant, error) { return nil, nil }

func (s *stubCatalog) CreateMenu(restaurantID int64, name, details, day string) (*model.Menu, error) {
	return &model.Menu{ID: 1, RestaurantID: restaurantID, Name: name, Details: details, Day: day}, nil
}

func (s *stubCatalog) ListMenus(day string) ([]*model.Menu, error) { return nil, nil }

func (s *stubCatalog) GetMenu(menuID int64) (*model.Menu, error) {
	return &model.Menu{ID: menuID}, nil
}

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	votes := service.NewVoteService(&stubLedger{}, &stubCache{}, nil, nil)
	catalog := service.NewCatalogService(&stubCatalog{})
	return NewServer(votes, catalog, nil)
}

// 投票ID必须是完整的十进制数字，带尾随垃圾的路径参数直接拒绝
func TestMoveVoteRejectsMalformedVoteID(t *testing.T) {
	server := newTestServer()

	for _, id := range []string{"12abc", "abc", "12.5", ""} {
		req := httptest.NewRequest(http.MethodPut, "/votes/"+id, strings.NewReader(`{"menuId": 3}`))
		req.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()
		server.engine.ServeHTTP(recorder, req)

		assert.NotEqual(t, http.StatusOK, recorder.Code, "投票ID %q 不应被接受", id)
	}
}

func TestMoveVoteAcceptsNumericVoteID(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodPut, "/votes/12", strings.NewReader(`{"menuId": 3}`))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.engine.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}
