// Package gateway serves the "message" broadcast channel to websocket
// displays and exposes the current game state over HTTP.
package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/broadcast"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/rs/zerolog/log"
)

// Service wires the connection manager, the HTTP handlers and an optional
// JetStream consumer.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	eventConsumer     *EventConsumer
	mirror            *engine.Engine
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

func NewService(config ConnectionConfig, stateProvider StateProvider) *Service {
	connectionManager := NewConnectionManager(config)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(stateProvider),
	}
}

// NewJetStreamService builds a standalone gateway: messages arrive over
// JetStream and are mirrored into a local engine that serves the state
// endpoint, then forwarded to the displays.
func NewJetStreamService(config Config, backend engine.Backend) (*Service, error) {
	mirror := engine.New(backend)
	s := NewService(config.ConnectionConfig, NewEngineStateProvider(mirror))

	sink := broadcast.Multi{NewMirror(mirror), s.connectionManager}
	consumer, err := NewEventConsumer(sink, config.JetStreamConfig)
	if err != nil {
		return nil, err
	}
	s.eventConsumer = consumer
	s.mirror = mirror
	return s, nil
}

// Publisher is where backend messages must be published for delivery.
func (s *Service) Publisher() broadcast.Publisher {
	return s.connectionManager
}

// Start runs until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting smash quiz gateway")

	go s.connectionManager.Start(ctx)

	if s.mirror != nil {
		if _, err := s.mirror.Sync(ctx); err != nil {
			log.Warn().Err(err).Msg("initial state sync failed, waiting for the next snapshot")
		}
	}

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("smash quiz gateway shutting down")
	return s.Stop()
}

func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("smash quiz gateway stopped")
	return nil
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

// Mirror applies every forwarded message to an engine. Resync failures are
// logged, not returned, so the message is still delivered to displays.
type Mirror struct {
	engine *engine.Engine
}

func NewMirror(e *engine.Engine) *Mirror {
	return &Mirror{engine: e}
}

func (m *Mirror) Publish(ctx context.Context, msg models.Message) error {
	if msg.Event.UI != nil {
		return nil
	}
	if _, err := m.engine.Handle(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("gateway mirror could not resync")
	}
	return nil
}
