package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"mailpilot_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSweep queues one check-and-notify run. Uniqueness keeps an
// overlapping cron tick from double-running the sweep.
func (c *Client) EnqueueSweep(ctx context.Context, triggeredBy string) error {
	task, err := NewFollowupSweepTask(FollowupJobPayload{TriggeredBy: triggeredBy, EnqueuedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueAutoCreate queues one auto-create scan.
func (c *Client) EnqueueAutoCreate(ctx context.Context, triggeredBy string) error {
	task, err := NewFollowupAutoCreateTask(FollowupJobPayload{TriggeredBy: triggeredBy, EnqueuedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueCleanup queues one retention purge.
func (c *Client) EnqueueCleanup(ctx context.Context, triggeredBy string) error {
	task, err := NewFollowupCleanupTask(FollowupJobPayload{TriggeredBy: triggeredBy, EnqueuedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(time.Hour))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
