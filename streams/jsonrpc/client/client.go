package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// RpcNamespace is the namespace under which the maker API is registered.
	RpcNamespace           = "maker"
	LogsSubscriptionMethod = "logs"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint
	// From is the index of the first log to receive.
	From uint
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// StreamProcessor
// -----------------------------------------------------------------------------

// StreamProcessor decodes raw log messages, tracks the next expected index
// and broadcasts notifications. It is decoupled from the networking layer.
type StreamProcessor struct {
	next           uint
	notificationCh chan Notification
	logger         Logger
}

// NewStreamProcessor creates a pure logic processor without networking.
func NewStreamProcessor(logger Logger, bufferSize uint, from uint) *StreamProcessor {
	return &StreamProcessor{
		next:           from,
		notificationCh: make(chan Notification, bufferSize),
		logger:         logger,
	}
}

// Notifications returns a read-only channel of decoded maker logs.
func (sp *StreamProcessor) Notifications() <-chan Notification {
	return sp.notificationCh
}

// Next returns the index of the next log the processor expects.
func (sp *StreamProcessor) Next() uint {
	return sp.next
}

// ProcessMessage accepts a raw JSON log, decodes it and publishes it.
// Logs below the expected index are replays and are dropped.
func (sp *StreamProcessor) ProcessMessage(rawData json.RawMessage) error {
	var l types.Log
	if err := json.Unmarshal(rawData, &l); err != nil {
		return fmt.Errorf("failed to unmarshal log: %w", err)
	}

	if l.Index < sp.next {
		sp.logger.Debug("Dropping replayed log", "index", l.Index, "next", sp.next)
		return nil
	}
	if l.Index > sp.next {
		sp.logger.Warn("Gap in log stream", "expected", sp.next, "received", l.Index)
	}

	n, err := Decode(l)
	if err != nil {
		// Skip past it; a log that cannot be decoded now never will be.
		sp.next = l.Index + 1
		return fmt.Errorf("failed to decode log %d: %w", l.Index, err)
	}

	sp.next = l.Index + 1
	sp.logger.Debug("Log processed", "index", l.Index, "event", n.Name)
	sp.notificationCh <- n
	return nil
}

// -----------------------------------------------------------------------------
// Client (Networking Wrapper)
// -----------------------------------------------------------------------------

// Client manages the connection and uses StreamProcessor for logic.
// After a reconnect it resubscribes from the next unseen index.
type Client struct {
	processor *StreamProcessor
	errCh     chan error
	logger    Logger
}

// NewClient creates a new client with networking enabled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &Client{
		processor: NewStreamProcessor(cfg.Logger, cfg.BufferSize, cfg.From),
		errCh:     make(chan error, 1),
		logger:    cfg.Logger,
	}

	go client.run(ctx, cfg.URL)
	return client, nil
}

// Notifications delegates to the processor's channel.
func (c *Client) Notifications() <-chan Notification {
	return c.processor.Notifications()
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the networking lifecycle and feeds data to the processor.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err != nil {
			c.logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Successfully connected to RPC server.")
		reconnectDelay = initialReconnectDelay

		err = c.subscribeAndProcess(ctx, rpcClient)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled, shutting down.")
				return
			}
			c.logger.Error("Subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

func (c *Client) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	rawCh := make(chan json.RawMessage)
	from := c.processor.Next()
	sub, err := rpcClient.Subscribe(ctx, RpcNamespace, rawCh, LogsSubscriptionMethod, hexutil.Uint(from))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for logs...", "from", from)
	for {
		select {
		case rawData := <-rawCh:
			if err := c.processor.ProcessMessage(rawData); err != nil {
				c.logger.Error("Error processing message", "error", err)
			}
		case err := <-sub.Err():
			if err == nil {
				return errors.New("subscription closed by server")
			}
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
