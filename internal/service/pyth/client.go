package pyth

import (
	"context"
	"fmt"
	"strings"
	"time"

	drepo "SonicTrader/internal/domain/repository"
	pkghttp "SonicTrader/pkg/http"
	"SonicTrader/pkg/logger"

	"github.com/gorilla/websocket"
)

const latestPath = "/v2/updates/price/latest"

// Client talks to a Hermes price service: a websocket for pushed updates
// and the REST endpoint for one-off pulls.
type Client struct {
	websocketURL string
	httpURL      string
	pingInterval time.Duration
	dialTimeout  time.Duration

	dialer *websocket.Dialer
	http   *pkghttp.Client
	log    *logger.Logger
}

type Option func(*Client)

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

func WithHTTPClient(h *pkghttp.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Hermes client.
func New(websocketURL, httpURL string, opts ...Option) *Client {
	c := &Client{
		websocketURL: websocketURL,
		httpURL:      strings.TrimRight(httpURL, "/"),
		pingInterval: 20 * time.Second,
		dialTimeout:  10 * time.Second,
		log:          logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = pkghttp.NewClient()
	}
	c.dialer = &websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	return c
}

type subscribeMessage struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// Stream dials the websocket and subscribes to feedIDs over one connection.
func (c *Client) Stream(ctx context.Context, feedIDs []string) (drepo.OracleStream, error) {
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("hermes stream: no feed ids")
	}

	dctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dctx, c.websocketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("hermes connect: %w", err)
	}
	if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", IDs: feedIDs}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hermes subscribe: %w", err)
	}
	c.log.Info("hermes subscribed", logger.Strings("feed_ids", feedIDs))

	s := newStream(conn)
	go s.readLoop()
	if c.pingInterval > 0 {
		go s.pingLoop(c.pingInterval)
	}
	return s, nil
}

// Latest pulls the most recent parsed updates for feedIDs and returns the raw body.
func (c *Client) Latest(ctx context.Context, feedIDs []string) ([]byte, error) {
	if len(feedIDs) == 0 {
		return nil, fmt.Errorf("hermes latest: no feed ids")
	}
	var body []byte
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.httpURL + latestPath,
		QueryParams: map[string][]string{
			"ids[]":  feedIDs,
			"parsed": {"true"},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("hermes latest: %w", err)
	}
	return body, nil
}

var _ drepo.PriceOracle = (*Client)(nil)
