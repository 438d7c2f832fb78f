package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/melon-ruet/CornerCase/config"
	"github.com/melon-ruet/CornerCase/internal/api"
	"github.com/melon-ruet/CornerCase/internal/api/graph"
	intkafka "github.com/melon-ruet/CornerCase/internal/kafka"
	"github.com/melon-ruet/CornerCase/internal/lock"
	"github.com/melon-ruet/CornerCase/internal/repository"
	"github.com/melon-ruet/CornerCase/internal/service"
)

const (
	// CacheWarmerLockName 缓存预热消费者的领导锁，同一时刻只有一个实例消费
	CacheWarmerLockName = "vote:cache:warmer:lock"
	LockAcquireTimeout  = 30 * time.Second
)

var (
	configPath = flag.String("config", "config/config.yaml", "配置文件路径")
	instanceID = flag.Int("instance", 1, "实例ID，用于区分多个实例")
)

func main() {
	// 解析命令行参数
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("配置加载成功，当前实例ID: %d", *instanceID)

	// 创建数据库连接
	mysqlRepo, err := repository.NewMySQLRepository()
	if err != nil {
		log.Fatalf("初始化MySQL仓库失败: %v", err)
	}
	defer mysqlRepo.Close()
	log.Printf("MySQL仓库初始化成功")

	// 创建Redis连接
	redisRepo, err := repository.NewRedisRepository()
	if err != nil {
		log.Fatalf("初始化Redis仓库失败: %v", err)
	}
	defer redisRepo.Close()
	log.Printf("Redis仓库初始化成功")

	// 创建分布式锁
	distributedLock, err := lock.New()
	if err != nil {
		log.Fatalf("初始化分布式锁失败: %v", err)
	}
	defer distributedLock.Close()
	log.Printf("分布式锁初始化成功，后端: %s", cfg.Lock.Backend)

	// 竞争缓存预热领导锁，拿到锁的实例负责消费投票事件
	isWarmer, err := distributedLock.AcquireLock(CacheWarmerLockName, LockAcquireTimeout)
	if err != nil {
		log.Printf("获取缓存预热领导锁失败: %v，以普通节点模式启动", err)
	}
	if isWarmer {
		log.Printf("实例 %d 获取缓存预热领导锁成功，将作为缓存预热节点启动", *instanceID)
		defer distributedLock.ReleaseLock(CacheWarmerLockName)
	} else {
		log.Printf("实例 %d 未获取到缓存预热领导锁，以普通节点模式启动", *instanceID)
	}

	// 创建Kafka生产者
	producer, err := intkafka.NewProducer()
	if err != nil {
		log.Fatalf("初始化Kafka生产者失败: %v", err)
	}
	defer producer.Close()
	log.Printf("Kafka生产者初始化成功")

	// 创建投票服务
	voteService := service.NewVoteService(mysqlRepo, redisRepo, producer, distributedLock)
	catalogService := service.NewCatalogService(mysqlRepo)
	log.Printf("投票服务初始化成功")

	// 缓存预热节点启动Kafka消费者，投票事件落审计日志并预热结果缓存
	if isWarmer {
		consumer, err := intkafka.NewConsumer()
		if err != nil {
			log.Fatalf("初始化Kafka消费者失败: %v", err)
		}
		defer consumer.Stop()

		consumer.StartConsuming(voteService.ProcessVoteEvent)
		log.Printf("Kafka消费者已启动")
	}

	// 创建GraphQL服务
	graphqlServer := graph.NewGraphQLServer(voteService, catalogService)
	log.Printf("GraphQL服务初始化成功")

	// 创建REST服务器，GraphQL挂载在同一端口
	server := api.NewServer(voteService, catalogService, graphqlServer.Handler())

	// 计算端口，支持多实例
	serverPort := cfg.Server.Port + *instanceID - 1

	// 启动HTTP服务器(异步)
	go func() {
		if err := server.Start(serverPort); err != nil {
			log.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	log.Printf("CornerCase 午餐投票系统 (实例 %d) 已启动，服务地址: http://localhost:%d", *instanceID, serverPort)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务...")
}
