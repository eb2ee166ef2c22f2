package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyscan/internal/platform/polymarket"
)

const (
	handshakeTimeout = 15 * time.Second
	writeWait        = 10 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 1 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 30 * time.Second
)

// Feed subscribes to the MARKET channel for a set of outcome tokens and
// applies every decoded event to the State. It reconnects forever with
// exponential backoff and returns only when the context is cancelled.
type Feed struct {
	wsURL    string
	assetIDs []string
	state    *State
	logger   *slog.Logger
}

// New creates a feed over the given outcome token ids. Empty ids are
// dropped.
func New(wsURL string, assetIDs []string, state *State, logger *slog.Logger) *Feed {
	ids := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return &Feed{
		wsURL:    wsURL,
		assetIDs: ids,
		state:    state,
		logger:   logger.With(slog.String("component", "feed")),
	}
}

// Run connects, subscribes, and pumps messages into the State until ctx is
// cancelled. Connection errors are logged and retried with backoff (reset
// to the base delay after each successful connect); they are never fatal.
func (f *Feed) Run(ctx context.Context) error {
	delay := reconnectDelay

	f.logger.Info("feed starting",
		slog.String("url", f.wsURL),
		slog.Int("assets", len(f.assetIDs)),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		connected, err := f.runConn(ctx)
		if connected {
			delay = reconnectDelay
		}
		if ctx.Err() != nil {
			f.logger.Info("feed stopped")
			return ctx.Err()
		}
		if err != nil {
			f.logger.Warn("feed connection lost",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
		}

		select {
		case <-ctx.Done():
			f.logger.Info("feed stopped")
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConn performs one connection lifecycle: dial, subscribe, read until
// failure or cancellation. connected reports whether the subscription was
// established, which resets the caller's backoff.
func (f *Feed) runConn(ctx context.Context) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Unblock the read loop when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	sub, err := polymarket.MarketSubscribeCommand(f.assetIDs)
	if err != nil {
		return false, err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, err
	}

	f.logger.Info("feed connected", slog.Int("assets", len(f.assetIDs)))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		f.dispatch(raw)
	}
}

// dispatch decodes one frame and applies its events to the State. Malformed
// frames are dropped without logging noise at info level.
func (f *Feed) dispatch(raw []byte) {
	events := polymarket.ParseStreamMessages(raw)
	for _, ev := range events {
		switch {
		case ev.Book != nil:
			f.state.ApplyBookSnapshot(ev.Book.TokenID, ev.Book.Book)
		case ev.Trade != nil:
			f.state.AppendTrade(*ev.Trade)
		}
	}
	if len(events) == 0 {
		f.logger.Debug("dropped frame", slog.Int("payload_len", len(raw)))
	}
}
