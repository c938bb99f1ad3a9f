package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/coordinator"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/mqtt"
	"github.com/dokzlo13/wledd/internal/registry"
)

// MQTTService mirrors entities to an MQTT broker. Topics carry the device
// MAC, so the connection is made once the first snapshot is known.
type MQTTService struct {
	cfg      *config.Config
	coord    *coordinator.Coordinator
	registry *registry.Registry
	bus      *eventbus.Bus

	once        sync.Once
	mu          sync.Mutex
	client      *mqtt.Client
	closed      bool
	unsubscribe func()
}

// NewMQTTService creates a new MQTTService.
func NewMQTTService(cfg *config.Config, coord *coordinator.Coordinator, reg *registry.Registry, bus *eventbus.Bus) *MQTTService {
	return &MQTTService{cfg: cfg, coord: coord, registry: reg, bus: bus}
}

// Start connects as soon as the device MAC is known.
func (s *MQTTService) Start(ctx context.Context) {
	if !s.cfg.MQTT.Enabled {
		log.Debug().Msg("MQTT disabled")
		return
	}

	try := func() {
		d := s.coord.Current()
		if d == nil {
			return
		}
		s.once.Do(func() {
			go s.connect(ctx, d.Info.MACAddress)
		})
	}
	s.unsubscribe = s.coord.Subscribe(try)
	try()
}

func (s *MQTTService) connect(ctx context.Context, mac string) {
	topics := mqtt.Topics{Prefix: s.cfg.MQTT.TopicPrefix, MAC: mac}

	client, err := mqtt.Connect(s.cfg.MQTT, topics.Availability())
	if err != nil {
		log.Error().Err(err).Str("broker", s.cfg.MQTT.Broker).Msg("MQTT connection failed, mirroring disabled")
		return
	}

	s.mu.Lock()
	if s.closed || ctx.Err() != nil {
		s.mu.Unlock()
		client.Close()
		return
	}
	s.client = client
	s.mu.Unlock()

	bridge := mqtt.NewBridge(client, topics, s.registry)
	if err := bridge.Start(s.bus); err != nil {
		log.Error().Err(err).Msg("Failed to start MQTT bridge")
		return
	}
	log.Info().Str("prefix", topics.Prefix).Str("mac", mac).Msg("MQTT bridge started")
}

// Close disconnects from the broker.
func (s *MQTTService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.client != nil {
		s.client.Close()
	}
}
