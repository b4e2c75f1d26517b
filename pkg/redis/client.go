// Package redis wraps the go-redis client with the connection lifecycle
// the router needs before handing the raw *redis.Client to
// workflow.RedisQueue and eventbus.RedisStreamBus: parse the URL, apply
// pool/timeout tuning, and ping once before declaring the connection
// usable.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/cognitive-bandwidth/router/pkg/config"
)

// Client wraps a tuned *redis.Client. instanceID is carried through to
// every log line this package emits, so a multi-instance deployment can
// tell which process a connect/close event came from.
type Client struct {
	rdb        *redis.Client
	logger     *logrus.Logger
	instanceID string
}

// ConnectionConfig tunes the underlying pool and timeouts. URL is the
// only field callers typically override; the rest default to
// DefaultConnectionConfig's production-ready values.
type ConnectionConfig struct {
	URL                string
	MaxRetries         int
	MinRetryBackoff    time.Duration
	MaxRetryBackoff    time.Duration
	DialTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	PoolSize           int
	MinIdleConns       int
	MaxConnAge         time.Duration
	PoolTimeout        time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration
}

// NewClientFromConfig builds a Client straight from the router's own
// Config: DefaultConnectionConfig tuning over cfg.RedisURL, tagged with
// cfg.InstanceID for logging. This is what cmd/router serve uses; NewClient
// stays available for callers that want to override the pool tuning.
func NewClientFromConfig(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	connConfig := DefaultConnectionConfig()
	connConfig.URL = cfg.RedisURL
	return NewClient(connConfig, cfg.InstanceID, logger)
}

// NewClient parses connConfig.URL, applies the rest of connConfig's
// tuning over it, and pings once before returning.
func NewClient(connConfig ConnectionConfig, instanceID string, logger *logrus.Logger) (*Client, error) {
	opt, err := redis.ParseURL(connConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.MaxRetries = connConfig.MaxRetries
	opt.MinRetryBackoff = connConfig.MinRetryBackoff
	opt.MaxRetryBackoff = connConfig.MaxRetryBackoff
	opt.DialTimeout = connConfig.DialTimeout
	opt.ReadTimeout = connConfig.ReadTimeout
	opt.WriteTimeout = connConfig.WriteTimeout
	opt.PoolSize = connConfig.PoolSize
	opt.MinIdleConns = connConfig.MinIdleConns
	opt.MaxConnAge = connConfig.MaxConnAge
	opt.PoolTimeout = connConfig.PoolTimeout
	opt.IdleTimeout = connConfig.IdleTimeout
	opt.IdleCheckFrequency = connConfig.IdleCheckFrequency

	client := &Client{
		rdb:        redis.NewClient(opt),
		logger:     logger,
		instanceID: instanceID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"instance_id": instanceID,
		"addr":        opt.Addr,
	}).Info("connected to redis")
	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	c.logger.WithField("instance_id", c.instanceID).Info("closing redis connection")
	return c.rdb.Close()
}

func (c *Client) GetRedisClient() *redis.Client {
	return c.rdb
}

// DefaultConnectionConfig returns production-ready pool and timeout
// tuning; callers only need to set URL.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxRetries:         3,
		MinRetryBackoff:    8 * time.Millisecond,
		MaxRetryBackoff:    512 * time.Millisecond,
		DialTimeout:        5 * time.Second,
		ReadTimeout:        3 * time.Second,
		WriteTimeout:       3 * time.Second,
		PoolSize:           10,
		MinIdleConns:       5,
		MaxConnAge:         30 * time.Minute,
		PoolTimeout:        4 * time.Second,
		IdleTimeout:        5 * time.Minute,
		IdleCheckFrequency: 1 * time.Minute,
	}
}
