package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TaskIngest  = "ingest"
	TaskCleanup = "cleanup"
)

type Task struct {
	Type    string `json:"type"`
	ImageID string `json:"imageId,omitempty"`
}

func (t Task) values() map[string]any {
	values := map[string]any{"type": t.Type}
	if t.ImageID != "" {
		values["imageId"] = t.ImageID
	}
	return values
}

// DecodeTask reads a task from the flat field map of a stream entry.
func DecodeTask(msg redis.XMessage) (Task, error) {
	raw, err := json.Marshal(msg.Values)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", msg.ID, err)
	}
	return task, nil
}

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, task Task) (string, error) {
	if p == nil || p.client == nil {
		return "", nil
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return id, nil
}
