package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"valuation-pipeline/internal/domain"
	"valuation-pipeline/internal/observability"
)

// ErrHandshake marks a fatal handshake failure: the feed answered with a
// status that is neither "connected" nor "auth_success". The connector does
// not reconnect from this; the process supervisor is expected to restart.
var ErrHandshake = errors.New("feed: handshake rejected")

// Handler receives every parsed bar update.
type Handler func(domain.BarUpdate)

// ConnectorConfig configures connector timing.
type ConnectorConfig struct {
	// ReconnectDelay is the fixed delay before every reconnect attempt.
	// Deliberately constant with no retry limit: the feed is assumed to
	// self-heal quickly and uptime matters more than connection-storm
	// avoidance.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// DefaultConnectorConfig returns default connector timing.
func DefaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		ReconnectDelay:   500 * time.Millisecond,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Connector maintains one long-lived streaming connection for one asset
// class: authenticate, subscribe to the wildcard topic, then forward every
// parsed bar to the handler. Transport errors trigger an unconditional
// reconnect after a fixed delay.
type Connector struct {
	profile Profile
	apiKey  string
	handler Handler
	config  ConnectorConfig
	logger  *zap.Logger
	metrics *observability.Metrics

	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewConnector creates a Connector for the given profile. config may be nil
// for defaults; metrics may be nil.
func NewConnector(profile Profile, apiKey string, handler Handler, logger *zap.Logger, config *ConnectorConfig, metrics *observability.Metrics) *Connector {
	cfg := DefaultConnectorConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Connector{
		profile: profile,
		apiKey:  apiKey,
		handler: handler,
		config:  cfg,
		logger:  logger.With(zap.String("asset_class", string(profile.AssetClass))),
		metrics: metrics,
	}
}

// feedRequest is an outbound control message.
type feedRequest struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

// Run connects and processes the stream until ctx is cancelled or the
// handshake fails fatally. Socket errors and closes are logged and recovered
// by a full reconnect (new socket, re-run handshake) after the fixed delay.
func (c *Connector) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrHandshake) {
			if c.metrics != nil {
				c.metrics.HandshakeFailures.WithLabelValues(string(c.profile.AssetClass)).Inc()
			}
			return err
		}

		c.logger.Warn("feed connection lost, reconnecting",
			zap.Duration("delay", c.config.ReconnectDelay),
			zap.Error(err),
		)
		if c.metrics != nil {
			c.metrics.FeedReconnects.WithLabelValues(string(c.profile.AssetClass)).Inc()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.ReconnectDelay):
		}
	}
}

// runOnce dials, authenticates, subscribes and reads until the socket fails.
func (c *Connector) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.profile.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	// Unblock the read loop when ctx is cancelled.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()
	defer conn.Close()

	if err := c.write(conn, feedRequest{Action: "auth", Params: c.apiKey}); err != nil {
		return fmt.Errorf("write auth: %w", err)
	}

	authed := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if c.metrics != nil {
			c.metrics.FramesReceived.WithLabelValues(string(c.profile.AssetClass)).Inc()
		}

		events, err := decodeEvents(message)
		if err != nil {
			c.logger.Warn("undecodable frame", zap.Error(err))
			continue
		}

		for _, raw := range events {
			if !authed {
				done, err := c.handleHandshakeEvent(conn, raw)
				if err != nil {
					return err
				}
				authed = done
				continue
			}

			if bar, ok := c.profile.ParseBar(raw); ok {
				if c.metrics != nil {
					c.metrics.BarsParsed.WithLabelValues(string(c.profile.AssetClass)).Inc()
				}
				c.handler(bar)
			}
		}
	}
}

// handleHandshakeEvent processes one status event before authentication
// completes. Returns true once the subscription has been sent.
func (c *Connector) handleHandshakeEvent(conn *websocket.Conn, raw json.RawMessage) (bool, error) {
	var status statusEvent
	if err := json.Unmarshal(raw, &status); err != nil || status.Ev != "status" {
		// Not a status frame; some feeds interleave data early. Ignore
		// until authenticated.
		return false, nil
	}

	switch status.Status {
	case "connected":
		return false, nil
	case "auth_success":
		if err := c.write(conn, feedRequest{Action: "subscribe", Params: c.profile.SubscribeTopic}); err != nil {
			return false, fmt.Errorf("write subscribe: %w", err)
		}
		c.logger.Info("feed authenticated and subscribed",
			zap.String("topic", c.profile.SubscribeTopic),
		)
		return true, nil
	default:
		return false, fmt.Errorf("%w: status %q (%s)", ErrHandshake, status.Status, status.Message)
	}
}

func (c *Connector) write(conn *websocket.Conn, req feedRequest) error {
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteJSON(req)
}
