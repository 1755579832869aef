// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"

	"careerforge-go/internal/config"
	"careerforge-go/internal/model"
	"careerforge-go/pkg/log"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 发布简历入库事件。
type Producer struct {
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者，brokers 用逗号分隔。
func NewProducer(cfg config.KafkaConfig) *Producer {
	var brokers []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Info("[Kafka] 生产者初始化成功")
	return &Producer{writer: w}
}

// PublishIngestion 发送一条入库事件，以文件 MD5 作为消息 key。
func (p *Producer) PublishIngestion(ctx context.Context, event model.IngestionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.FileMD5),
		Value: value,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}
