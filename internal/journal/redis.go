// Package journal records room chat activity in Redis: every broadcast is
// appended to a capped stream and each sender's message count is kept in a
// sorted set. Recording never blocks the caller.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// StreamKey holds one entry per room broadcast.
	StreamKey = "chat_broadcast_stream"
	// RankKey scores senders by number of broadcasts.
	RankKey = "chat_activity_rank"

	queueSize = 256
)

var droppedEntries = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "chat_journal_dropped_total",
	Help: "Journal entries dropped because the queue was full or Redis failed",
})

func init() {
	prometheus.MustRegister(droppedEntries)
}

type Options struct {
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64
}

// Entry is one recorded broadcast.
type Entry struct {
	Room   string
	Sender string
	Text   string
	At     time.Time
}

// Values renders e as stream fields.
func (e Entry) Values() map[string]interface{} {
	return map[string]interface{}{
		"room":      e.Room,
		"sender":    e.Sender,
		"text":      e.Text,
		"timestamp": e.At.UTC().Format(time.RFC3339),
	}
}

type Redis struct {
	client  *redis.Client
	maxLen  int64
	entries chan Entry
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int
	done    chan struct{}
}

// NewRedis connects and pings Redis. Call Run to start writing.
func NewRedis(opts Options, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return newRedis(client, opts.StreamMaxLen, logger), nil
}

func newRedis(client *redis.Client, maxLen int64, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &Redis{
		client:  client,
		maxLen:  maxLen,
		entries: make(chan Entry, queueSize),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Record queues a broadcast; it drops the entry when the queue is full.
func (r *Redis) Record(room, sender, text string) {
	select {
	case r.entries <- Entry{Room: room, Sender: sender, Text: text, At: time.Now()}:
	default:
		r.drop()
	}
}

// Dropped returns how many entries never reached Redis.
func (r *Redis) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Redis) drop() {
	droppedEntries.Inc()
	r.mu.Lock()
	r.dropped++
	r.mu.Unlock()
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left in the queue.
func (r *Redis) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case e := <-r.entries:
			r.write(ctx, e)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for {
				select {
				case e := <-r.entries:
					r.write(flushCtx, e)
				default:
					return
				}
			}
		}
	}
}

func (r *Redis) write(ctx context.Context, e Entry) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: StreamKey,
			MaxLen: r.maxLen,
			Approx: true,
			Values: e.Values(),
		})
		pipe.ZIncrBy(ctx, RankKey, 1, e.Sender)
		return nil
	})
	if err != nil {
		r.drop()
		r.logger.Warn("journal write failed", "room", e.Room, "error", err)
	}
}

// Close waits for Run to finish (after its context is cancelled) and closes
// the Redis client.
func (r *Redis) Close() error {
	<-r.done
	return r.client.Close()
}
