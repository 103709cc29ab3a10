package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Client manages one ClickHouse connection pool. A single Client is
// shared by everything talking to the same cluster; nothing opens
// per-query sessions.
type Client struct {
	db *sql.DB
}

// NewClient creates a ClickHouse client with connection pool.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Port:            9000,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("at least one host is required")
	}

	addrs := make([]string, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		addrs = append(addrs, net.JoinHostPort(h, fmt.Sprintf("%d", cfg.Port)))
	}

	options := &clickhouse.Options{
		Addr: addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	}

	if cfg.MaxExecTime > 0 {
		options.Settings = clickhouse.Settings{
			"max_execution_time": int(cfg.MaxExecTime.Seconds()),
		}
	}

	// Cluster metadata advertises node names that may not resolve from
	// outside; the address map rewrites them before dialing.
	if len(cfg.AddressMap) > 0 {
		dialer := &net.Dialer{Timeout: cfg.DialTimeout}
		addressMap := cfg.AddressMap
		options.DialContext = func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", mapAddr(addr, addressMap))
		}
	}

	db := clickhouse.OpenDB(options)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() // best-effort close
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return &Client{db: db}, nil
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Health performs health check.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// mapAddr rewrites the host part of addr when the map has an entry for
// it. Map values may carry their own port, which then wins.
func mapAddr(addr string, m map[string]string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		if mapped, ok := m[addr]; ok {
			return mapped
		}
		return addr
	}
	mapped, ok := m[host]
	if !ok {
		return addr
	}
	if _, _, err := net.SplitHostPort(mapped); err == nil {
		return mapped
	}
	return net.JoinHostPort(mapped, port)
}
