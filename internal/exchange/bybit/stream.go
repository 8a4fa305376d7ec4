package bybit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
)

const (
	mainnetPublicLinearWS = "wss://stream.bybit.com/v5/public/linear"
	testnetPublicLinearWS = "wss://stream-testnet.bybit.com/v5/public/linear"

	// The venue drops public connections that stay silent; it expects
	// an op-level ping at least every 20 seconds.
	wsPingInterval    = 20 * time.Second
	wsReadTimeout     = 3 * wsPingInterval
	wsWriteTimeout    = 10 * time.Second
	wsHandshakeTimout = 10 * time.Second
	wsReconnectDelay  = 5 * time.Second
)

// PriceCallback receives last-price updates from the ticker stream.
type PriceCallback func(symbol string, price float64)

// TickerStream maintains a public websocket subscription delivering
// last-price updates for a fixed set of symbols. It reconnects and
// resubscribes on its own until Stop is called.
type TickerStream struct {
	url     string
	symbols []string
	onPrice PriceCallback
	log     *zap.Logger

	mu   sync.Mutex // guards conn
	conn *websocket.Conn

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewTickerStream prepares a stream for the given symbols. The demo
// environment shares mainnet market data.
func NewTickerStream(config Config, symbols []string, onPrice PriceCallback) *TickerStream {
	url := mainnetPublicLinearWS
	if config.Testnet {
		url = testnetPublicLinearWS
	}
	return &TickerStream{
		url:      url,
		symbols:  symbols,
		onPrice:  onPrice,
		log:      logger.Component("bybit_stream"),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start dials the stream and begins delivering updates. The first
// connect must succeed; later disconnects are handled internally.
func (s *TickerStream) Start() error {
	if len(s.symbols) == 0 {
		return boterrors.NewConfigurationError("bybit_stream", "start", "no symbols to subscribe")
	}
	if err := s.connect(); err != nil {
		return err
	}
	go s.run()
	go s.pingLoop()
	return nil
}

// Stop tears the connection down and waits for the read loop to exit.
func (s *TickerStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	<-s.doneChan
}

func (s *TickerStream) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimout}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return boterrors.NewConnectionError("bybit_stream", "connect", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	args := make([]string, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		args = append(args, "tickers."+symbol)
	}
	if err := s.writeJSON(map[string]interface{}{"op": "subscribe", "args": args}); err != nil {
		conn.Close()
		return boterrors.NewConnectionError("bybit_stream", "subscribe", err)
	}

	s.log.Info("ticker stream connected",
		zap.String("url", s.url),
		zap.Int("symbols", len(s.symbols)))
	return nil
}

func (s *TickerStream) run() {
	defer close(s.doneChan)
	for {
		err := s.readLoop()

		select {
		case <-s.stopChan:
			return
		default:
		}
		s.log.Warn("ticker stream disconnected", zap.Error(err))

		timer := time.NewTimer(wsReconnectDelay)
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := s.connect(); err != nil {
			s.log.Warn("ticker stream reconnect failed", zap.Error(err))
		}
	}
}

func (s *TickerStream) readLoop() error {
	conn := s.currentConn()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	for {
		select {
		case <-s.stopChan:
			return nil
		default:
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(message)
	}
}

// handleMessage parses ticker pushes. Subscription acks and pong
// frames fall through the topic check. Delta frames without a price
// field are skipped.
func (s *TickerStream) handleMessage(message []byte) {
	var frame struct {
		Topic string `json:"topic"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return
	}
	if !strings.HasPrefix(frame.Topic, "tickers.") {
		return
	}

	price := parseFloat64(frame.Data.LastPrice)
	if price <= 0 {
		return
	}
	symbol := frame.Data.Symbol
	if symbol == "" {
		symbol = strings.TrimPrefix(frame.Topic, "tickers.")
	}
	if s.onPrice != nil {
		s.onPrice(symbol, price)
	}
}

func (s *TickerStream) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.writeJSON(map[string]string{"op": "ping"}); err != nil {
				s.log.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

func (s *TickerStream) writeJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(v)
}

func (s *TickerStream) currentConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
