package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// Client wraps redis.Client with additional functionality
type Client struct {
	*redis.Client
	url    string
	logger *logger.Logger
}

// ClientOption represents an option for creating a new Redis client
type ClientOption func(*clientOptions)

type clientOptions struct {
	pingTimeout time.Duration
	poolSize    int
}

// WithPingTimeout overrides the connection check timeout (default 5s)
func WithPingTimeout(d time.Duration) ClientOption {
	return func(opts *clientOptions) {
		opts.pingTimeout = d
	}
}

// WithPoolSize overrides the pool size parsed from the URL
func WithPoolSize(n int) ClientOption {
	return func(opts *clientOptions) {
		opts.poolSize = n
	}
}

// NewClient creates a new Redis client from URL with options
func NewClient(redisURL string, log *logger.Logger, opts ...ClientOption) (*Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	options := &clientOptions{pingTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(options)
	}

	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if options.poolSize > 0 {
		redisOptions.PoolSize = options.poolSize
	}

	client := &Client{
		Client: redis.NewClient(redisOptions),
		url:    redisURL,
		logger: log.WithComponent("redisx"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), options.pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client.logger.Info("Redis client connected successfully",
		zap.String("addr", redisOptions.Addr),
		zap.Int("db", redisOptions.DB),
		zap.Int("pool_size", redisOptions.PoolSize),
	)

	return client, nil
}

// URL returns the connection URL the client was created with
func (c *Client) URL() string {
	return c.url
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.Client.Close()
}

// HealthCheck performs a health check on the Redis connection
func (c *Client) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := c.Ping(ctx).Err()
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Redis health check failed",
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return err
	}

	c.logger.Debug("Redis health check passed",
		zap.Duration("duration", duration),
	)

	return nil
}
