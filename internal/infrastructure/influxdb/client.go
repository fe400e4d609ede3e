package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/eq3-bridge/internal/infrastructure/config"
)

const (
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client writes thermostat telemetry through the batching write API.
// Writes on a client that is not connected are dropped.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected atomic.Bool

	errMu   sync.Mutex
	onError func(err error)
}

// Connect pings the server and opens a non-blocking write API for the
// configured org and bucket.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize(cfg)).
		SetFlushInterval(uint(flushInterval(cfg).Milliseconds())) // #nosec G115 -- positive by construction
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*pingTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}
	c.connected.Store(true)
	go c.drainErrors(c.writeAPI.Errors())

	return c, nil
}

func batchSize(cfg config.InfluxDBConfig) uint {
	if cfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return uint(cfg.BatchSize)
}

func flushInterval(cfg config.InfluxDBConfig) time.Duration {
	if cfg.FlushInterval <= 0 {
		return defaultFlushInterval
	}
	return time.Duration(cfg.FlushInterval) * time.Second
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// drainErrors forwards asynchronous batch failures to the error callback.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.errMu.Lock()
		fn := c.onError
		c.errMu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
}

// SetOnError registers the callback for failed batch writes.
func (c *Client) SetOnError(fn func(err error)) {
	c.errMu.Lock()
	c.onError = fn
	c.errMu.Unlock()
}

// IsConnected reports the last known state. HealthCheck pings.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush blocks until buffered points are sent. No-op once closed.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes pending points and releases the client. It is safe to call
// more than once.
func (c *Client) Close() error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
