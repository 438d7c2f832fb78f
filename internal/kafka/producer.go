package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/melon-ruet/CornerCase/config"
	"github.com/melon-ruet/CornerCase/internal/model"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	ctx    context.Context
}

func NewProducer() (*Producer, error) {
	// 使用基于消息Key的Hash分区器，同一员工的投票事件进入同一分区
	writer := &kafka.Writer{
		Addr:     kafka.TCP(config.AppConfig.Kafka.Brokers...),
		Topic:    config.AppConfig.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}

	return &Producer{
		writer: writer,
		ctx:    context.Background(),
	}, nil
}

// SendVoteEvent 发送投票事件到Kafka
// 事件只用于缓存预热与审计，发送失败不影响已提交的投票
func (p *Producer) SendVoteEvent(event *model.VoteEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化投票事件失败: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", event.EmployeeID)),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(p.ctx, msg); err != nil {
		return fmt.Errorf("发送投票事件失败: %w", err)
	}

	return nil
}

// Close 关闭Kafka生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}
