package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker is the Redis connection shared by the notification queue's
// producer (the API) and consumer (the worker). The document store never
// touches Redis; this connection exists only to carry jobs between the
// two processes.
type Broker struct {
	client *redis.Client
}

// Dial connects to the broker with short timeouts. go-redis stretches the
// read timeout for blocking commands, so BRPOP is unaffected.
func Dial(addr string) *Broker {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Broker{client: client}
}

// Queue returns the job queue stored under key.
func (b *Broker) Queue(key string) *RedisQueue {
	return NewRedisQueue(b.client, key)
}

// Healthy reports whether the broker answers a ping.
func (b *Broker) Healthy(ctx context.Context) bool {
	if b == nil || b.client == nil {
		return false
	}
	return b.client.Ping(ctx).Err() == nil
}
