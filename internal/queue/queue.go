package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypeDiploma marks a diploma issuance job published after an accepted scan.
const TypeDiploma = "diploma"

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// DiplomaJob asks the worker to run the issuance pipeline for one
// attendee/activity pair.
type DiplomaJob struct {
	AttendeeID int64 `json:"attendee_id"`
	ActivityID int64 `json:"activity_id"`
}

// NewDiplomaMessage encodes a job for publishing.
func NewDiplomaMessage(attendeeID, activityID int64) (Message, error) {
	body, err := json.Marshal(DiplomaJob{AttendeeID: attendeeID, ActivityID: activityID})
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeDiploma, Body: body}, nil
}

// ParseDiplomaJob decodes a diploma message body.
func ParseDiplomaJob(msg Message) (DiplomaJob, error) {
	var job DiplomaJob
	err := json.Unmarshal(msg.Body, &job)
	return job, err
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				out <- msg
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "checkin:diplomas"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return q.client.LPush(ctx, q.key, serialize(msg)).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				out <- deserialize(res[1])
			}
		}
	}()
	return out, nil
}

// Messages are stored as "type|body"; the body itself is JSON and may not
// contain an unescaped pipe before the first one, so Cut is safe.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, found := strings.Cut(s, "|")
	if !found {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
