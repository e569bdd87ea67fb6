package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MessageHandler receives every broadcast message in arrival order.
type MessageHandler func(ctx context.Context, msg models.Message)

// Subscriber keeps a websocket connection to the gateway open and feeds
// every message to its handler. After each (re)connect it runs the
// bootstrap function so that nothing published while disconnected is lost.
type Subscriber struct {
	url           string
	handle        MessageHandler
	bootstrap     func(ctx context.Context) error
	dialer        *websocket.Dialer
	clock         clockwork.Clock
	reconnectWait time.Duration
	onConnect     func()
}

type SubscriberOption func(*Subscriber)

func WithBootstrap(fn func(ctx context.Context) error) SubscriberOption {
	return func(s *Subscriber) {
		s.bootstrap = fn
	}
}

func WithReconnectWait(d time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.reconnectWait = d
	}
}

func WithSubscriberClock(clock clockwork.Clock) SubscriberOption {
	return func(s *Subscriber) {
		s.clock = clock
	}
}

func WithDialer(dialer *websocket.Dialer) SubscriberOption {
	return func(s *Subscriber) {
		s.dialer = dialer
	}
}

// WithOnConnect is called after every successful dial and bootstrap.
func WithOnConnect(fn func()) SubscriberOption {
	return func(s *Subscriber) {
		s.onConnect = fn
	}
}

func NewSubscriber(url string, handle MessageHandler, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:           url,
		handle:        handle,
		dialer:        websocket.DefaultDialer,
		clock:         clockwork.NewRealClock(),
		reconnectWait: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled, reconnecting after every failure.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().
			Err(err).
			Str("url", s.url).
			Dur("retry_in", s.reconnectWait).
			Msg("broadcast connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.reconnectWait):
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	log.Info().Str("url", s.url).Msg("subscribed to broadcast channel")

	// The connection is open before the bootstrap so that messages published
	// during it are queued rather than lost.
	if s.bootstrap != nil {
		if err := s.bootstrap(ctx); err != nil {
			log.Warn().Err(err).Msg("bootstrap sync failed")
		}
	}
	if s.onConnect != nil {
		s.onConnect()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("gateway closed the connection")
			}
			return fmt.Errorf("read message: %w", err)
		}

		msg, err := models.DecodeMessage(data)
		if err != nil {
			log.Error().Err(err).Int("bytes", len(data)).Msg("dropping undecodable message")
			if s.bootstrap != nil {
				if err := s.bootstrap(ctx); err != nil {
					log.Warn().Err(err).Msg("resync after undecodable message failed")
				}
			}
			continue
		}
		s.handle(ctx, msg)
	}
}
