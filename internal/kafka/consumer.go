package kafka

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/melon-ruet/CornerCase/config"
	"github.com/melon-ruet/CornerCase/internal/model"
	"github.com/segmentio/kafka-go"
)

// Consumer 投票事件消费者，消费者组模式
// 同一组内的多个实例自动分摊分区
type Consumer struct {
	reader *kafka.Reader
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type MessageHandler func(event *model.VoteEvent) error

func NewConsumer() (*Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  config.AppConfig.Kafka.Brokers,
		Topic:    config.AppConfig.Kafka.Topic,
		GroupID:  config.AppConfig.Kafka.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{
		reader: reader,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// StartConsuming 开始消费投票事件
func (c *Consumer) StartConsuming(handler MessageHandler) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeMessages(handler)
	}()

	log.Printf("Kafka消费者已启动，GroupID: %s", config.AppConfig.Kafka.GroupID)
}

// consumeMessages 消费循环
func (c *Consumer) consumeMessages(handler MessageHandler) {
	for {
		select {
		case <-c.ctx.Done():
			log.Println("Kafka消费者收到停止信号")
			return
		default:
			m, err := c.reader.ReadMessage(c.ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				log.Printf("读取投票事件失败: %v", err)
				time.Sleep(time.Second)
				continue
			}

			var event model.VoteEvent
			if err := json.Unmarshal(m.Value, &event); err != nil {
				log.Printf("解析投票事件失败: %v", err)
				continue
			}

			if err := handler(&event); err != nil {
				log.Printf("处理投票事件失败: %v", err)
			}
		}
	}
}

// Stop 停止消费
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		log.Printf("关闭Kafka消费者失败: %v", err)
		return err
	}

	log.Println("Kafka消费者已停止")
	return nil
}
