package graph

import (
	"context"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/melon-ruet/CornerCase/internal/model"
	"github.com/melon-ruet/CornerCase/internal/service"
)

// GraphQLServer GraphQL服务器
type GraphQLServer struct {
	schema   *graphql.Schema
	handler  *relay.Handler
	resolver *Resolver
}

// GraphQL Schema定义
const schemaString = `
type Menu {
  id: Int!
  restaurantId: Int!
  restaurant: String!
  name: String!
  details: String!
  day: String!
  voteCount: Int!
}

type WinnerMenu {
  restaurant: String!
  name: String!
  details: String!
}

type VoteResponse {
  voteId: Int!
  menuId: Int!
  day: String!
  timestamp: String!
}

type Query {
  # 今天的获胜菜单
  result: [WinnerMenu!]!

  # 今天的全部菜单
  todayMenus: [Menu!]!
}

type Mutation {
  # 投票
  castVote(employeeId: Int!, menuId: Int!): VoteResponse!

  # 改票
  moveVote(voteId: Int!, menuId: Int!): VoteResponse!
}

schema {
  query: Query
  mutation: Mutation
}
`

// NewGraphQLServer 创建新的GraphQL服务器
func NewGraphQLServer(votes *service.VoteService, catalog *service.CatalogService) *GraphQLServer {
	resolver := NewResolver(votes, catalog)

	schema := graphql.MustParseSchema(schemaString, resolver,
		graphql.UseFieldResolvers(),
	)

	handler := &relay.Handler{Schema: schema}

	return &GraphQLServer{
		schema:   schema,
		handler:  handler,
		resolver: resolver,
	}
}

// Handler 返回可挂载到任意路由的HTTP处理器
func (s *GraphQLServer) Handler() http.Handler {
	return s.handler
}

// Resolver GraphQL解析器
type Resolver struct {
	votes   *service.VoteService
	catalog *service.CatalogService
}

// NewResolver 创建新的解析器
func NewResolver(votes *service.VoteService, catalog *service.CatalogService) *Resolver {
	return &Resolver{votes: votes, catalog: catalog}
}

// Result 今天的获胜菜单
func (r *Resolver) Result(ctx context.Context) ([]*WinnerResolver, error) {
	winners, err := r.votes.GetResult()
	if err != nil {
		return nil, err
	}

	resolvers := make([]*WinnerResolver, len(winners))
	for i := range winners {
		resolvers[i] = &WinnerResolver{winner: winners[i]}
	}

	return resolvers, nil
}

// TodayMenus 今天的全部菜单
func (r *Resolver) TodayMenus(ctx context.Context) ([]*MenuResolver, error) {
	menus, err := r.catalog.ListTodayMenus()
	if err != nil {
		return nil, err
	}

	resolvers := make([]*MenuResolver, len(menus))
	for i, menu := range menus {
		resolvers[i] = &MenuResolver{menu: menu}
	}

	return resolvers, nil
}

// CastVote 投票
func (r *Resolver) CastVote(ctx context.Context, args struct {
	EmployeeID int32
	MenuID     int32
}) (*VoteResponseResolver, error) {
	response, err := r.votes.CastVote(int64(args.EmployeeID), int64(args.MenuID))
	if err != nil {
		return nil, err
	}

	return &VoteResponseResolver{response: response}, nil
}

// MoveVote 改票
func (r *Resolver) MoveVote(ctx context.Context, args struct {
	VoteID int32
	MenuID int32
}) (*VoteResponseResolver, error) {
	response, err := r.votes.MoveVote(int64(args.VoteID), int64(args.MenuID))
	if err != nil {
		return nil, err
	}

	return &VoteResponseResolver{response: response}, nil
}

// MenuResolver 菜单解析器
type MenuResolver struct {
	menu *model.Menu
}

func (r *MenuResolver) ID() int32 {
	return int32(r.menu.ID)
}

func (r *MenuResolver) RestaurantID() int32 {
	return int32(r.menu.RestaurantID)
}

func (r *MenuResolver) Restaurant() string {
	return r.menu.Restaurant
}

func (r *MenuResolver) Name() string {
	return r.menu.Name
}

func (r *MenuResolver) Details() string {
	return r.menu.Details
}

func (r *MenuResolver) Day() string {
	return r.menu.Day
}

func (r *MenuResolver) VoteCount() int32 {
	return int32(r.menu.VoteCount)
}

// WinnerResolver 获胜菜单解析器
type WinnerResolver struct {
	winner model.WinnerMenu
}

func (r *WinnerResolver) Restaurant() string {
	return r.winner.Restaurant
}

func (r *WinnerResolver) Name() string {
	return r.winner.Name
}

func (r *WinnerResolver) Details() string {
	return r.winner.Details
}

// VoteResponseResolver 投票响应解析器
type VoteResponseResolver struct {
	response *model.VoteResponse
}

func (r *VoteResponseResolver) VoteID() int32 {
	return int32(r.response.VoteID)
}

func (r *VoteResponseResolver) MenuID() int32 {
	return int32(r.response.MenuID)
}

func (r *VoteResponseResolver) Day() string {
	return r.response.Day
}

func (r *VoteResponseResolver) Timestamp() string {
	return r.response.Timestamp.Format(time.RFC3339)
}
