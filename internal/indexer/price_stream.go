package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sol-farm/tulipv2-sdk-sub000/decimal"
)

const (
	priceStreamReadLimitBytes = 4 * 1024 * 1024
	priceStreamWriteTimeout   = 10 * time.Second
)

// priceBook holds the latest streamed price per feed id.
type priceBook struct {
	mu     sync.RWMutex
	latest map[string]decimal.Decimal
}

func newPriceBook() *priceBook {
	return &priceBook{latest: make(map[string]decimal.Decimal)}
}

func (b *priceBook) Update(feedID string, price decimal.Decimal) {
	b.mu.Lock()
	b.latest[feedID] = price
	b.mu.Unlock()
}

func (b *priceBook) Latest(feedID string) (decimal.Decimal, bool) {
	b.mu.RLock()
	price, ok := b.latest[feedID]
	b.mu.RUnlock()
	return price, ok
}

type pythSubscribeRequest struct {
	Type    string   `json:"type"`
	IDs     []string `json:"ids"`
	Verbose bool     `json:"verbose"`
	Binary  bool     `json:"binary"`
}

type pythStreamMessage struct {
	Type      string        `json:"type"`
	PriceFeed pythPriceFeed `json:"price_feed"`
}

type pythPriceFeed struct {
	ID    string            `json:"id"`
	Price pythPriceSnapshot `json:"price"`
}

type pythPriceSnapshot struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

func (s *Service) runPriceStream(ctx context.Context) {
	feedIDs := s.streamFeedIDs()
	if len(feedIDs) == 0 {
		s.logger.Warn("price stream disabled, no vault names a pyth feed")
		return
	}

	reconnectDelay := s.cfg.PythReconnectInterval
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}

	s.logger.Info("pyth price stream enabled",
		"endpoint", s.cfg.PythStreamURL,
		"feeds", len(feedIDs),
		"reconnect_delay", reconnectDelay.String(),
	)

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		err := s.consumePriceStream(ctx, feedIDs)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("pyth price stream disconnected", "err", err, "retry_in", reconnectDelay.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Service) streamFeedIDs() []string {
	seen := make(map[string]struct{}, len(s.cfg.Vaults))
	feedIDs := make([]string, 0, len(s.cfg.Vaults))
	for _, target := range s.cfg.Vaults {
		if target.PythFeedID == "" {
			continue
		}
		if _, dup := seen[target.PythFeedID]; dup {
			continue
		}
		seen[target.PythFeedID] = struct{}{}
		feedIDs = append(feedIDs, target.PythFeedID)
	}
	return feedIDs
}

func (s *Service) consumePriceStream(ctx context.Context, feedIDs []string) error {
	conn, _, err := dialPriceStream(ctx, s.cfg.PythStreamURL)
	if err != nil {
		return fmt.Errorf("dial pyth stream: %w", err)
	}
	stopCloser := closeConnOnContextDone(ctx, conn)
	defer stopCloser()
	defer conn.Close()

	subscribe := pythSubscribeRequest{Type: "subscribe", IDs: feedIDs}
	if err := writeStreamJSON(conn, subscribe); err != nil {
		return fmt.Errorf("subscribe pyth feeds: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read pyth stream: %w", err)
		}

		if err := s.processPriceUpdate(ctx, payload); err != nil {
			s.logger.Warn("failed to process pyth price update", "err", err)
		}
	}
}

func (s *Service) processPriceUpdate(ctx context.Context, payload []byte) error {
	var message pythStreamMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return fmt.Errorf("decode pyth message: %w", err)
	}
	if message.Type != "price_update" {
		return nil
	}

	feedID := strings.ToLower(strings.TrimSpace(message.PriceFeed.ID))
	if feedID == "" {
		return nil
	}

	price, err := decodePythPrice(message.PriceFeed.Price.Price, message.PriceFeed.Price.Expo)
	if err != nil {
		return fmt.Errorf("decode price for feed %s: %w", feedID, err)
	}
	s.prices.Update(feedID, price)

	conf := message.PriceFeed.Price.Conf
	if decoded, confErr := decodePythPrice(conf, message.PriceFeed.Price.Expo); confErr == nil {
		conf = decoded.String()
	}

	return s.store.InsertPriceTick(ctx, PriceTickInput{
		FeedID:      feedID,
		PublishTime: message.PriceFeed.Price.PublishTime,
		Price:       price.String(),
		Conf:        conf,
		Expo:        message.PriceFeed.Price.Expo,
		ReceivedAt:  time.Now().Unix(),
	})
}

// decodePythPrice converts pyth's integer mantissa plus exponent into a
// decimal value.
func decodePythPrice(raw string, expo int32) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero(), fmt.Errorf("empty price")
	}
	mantissa, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return decimal.Zero(), fmt.Errorf("parse price mantissa %q: %w", raw, err)
	}

	value := decimal.FromU64(mantissa)
	if expo == 0 {
		return value, nil
	}

	scale, err := pow10(expo)
	if err != nil {
		return decimal.Zero(), err
	}
	if expo > 0 {
		return value.Mul(scale)
	}
	return value.Div(scale)
}

func pow10(expo int32) (decimal.Decimal, error) {
	magnitude := expo
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude > 18 {
		return decimal.Zero(), fmt.Errorf("unsupported pyth exponent %d", expo)
	}
	scale := uint64(1)
	for i := int32(0); i < magnitude; i++ {
		scale *= 10
	}
	return decimal.FromU64(scale), nil
}

func dialPriceStream(ctx context.Context, endpoint string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, resp, err
	}
	conn.SetReadLimit(priceStreamReadLimitBytes)
	return conn, resp, nil
}

func writeStreamJSON(conn *websocket.Conn, value any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(priceStreamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(value)
}

func closeConnOnContextDone(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
