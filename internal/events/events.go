package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/newsdesk/internal/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// 文章生命周期事件类型
const (
	TypePostPublished = "post.published"
	TypePostDeleted   = "post.deleted"
)

// PostEvent 是发往消息队列的文章事件。
type PostEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	PostID     uint      `json:"post_id"`
	Slug       string    `json:"slug,omitempty"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewPostEvent fills the id and timestamp of an event.
func NewPostEvent(eventType string, postID uint, slug, title string) PostEvent {
	return PostEvent{
		EventID:    uuid.New().String(),
		Type:       eventType,
		PostID:     postID,
		Slug:       slug,
		Title:      title,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher 发布文章事件。实现必须可并发调用。
type Publisher interface {
	Publish(ctx context.Context, event PostEvent) error
	Close() error
}

// New 在配置了 broker 时返回 kafka 实现，否则返回 Noop。
func New(cfg config.EventsConfig, log *zap.Logger) Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.Brokers) == 0 {
		log.Info("event brokers not configured, post events disabled")
		return Noop{}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	log.Info("kafka publisher ready", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return NewKafkaPublisher(writer, log)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 以文章 ID 作为消息键，保证同一文章的事件有序。
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

// NewKafkaPublisher wraps a kafka writer.
func NewKafkaPublisher(writer messageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, log: log.Named("events")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event PostEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode post event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.PostID), 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		p.log.Error("publish post event failed", zap.String("type", event.Type), zap.Uint("post_id", event.PostID), zap.Error(err))
		return err
	}

	p.log.Debug("post event published", zap.String("type", event.Type), zap.Uint("post_id", event.PostID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop 丢弃所有事件。
type Noop struct{}

func (Noop) Publish(context.Context, PostEvent) error { return nil }

func (Noop) Close() error { return nil }
