package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/eventbus"
)

const commandTimeout = 30 * time.Second

// Broker is the part of Client the bridge uses
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

// Entities resolves entities by unique id
type Entities interface {
	Get(uniqueID string) (entity.Entity, bool)
	States() []entity.State
}

// Command is the payload accepted on a set topic. Lights take "state"
// ("ON"/"OFF") with optional turn on fields and color slots, selects take
// "option".
type Command struct {
	State *string `json:"state,omitempty"`
	entity.TurnOnRequest
	entity.ColorsRequest
	Option *string `json:"option,omitempty"`
}

// Bridge mirrors entity states to MQTT and routes set commands back
type Bridge struct {
	broker   Broker
	topics   Topics
	entities Entities
}

// NewBridge creates a bridge
func NewBridge(broker Broker, topics Topics, entities Entities) *Bridge {
	return &Bridge{broker: broker, topics: topics, entities: entities}
}

// Start subscribes to the command topics and the bus, then publishes every
// known state so retained topics are complete.
func (b *Bridge) Start(bus *eventbus.Bus) error {
	if err := b.broker.Subscribe(b.topics.SetFilter(), b.HandleCommand); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topics.SetFilter(), err)
	}

	bus.Subscribe(eventbus.EventTypeStateChanged, b.HandleEvent)
	bus.Subscribe(eventbus.EventTypeAvailability, b.HandleEvent)

	for _, st := range b.entities.States() {
		b.publishState(st)
	}
	return nil
}

// HandleEvent publishes state and availability events
func (b *Bridge) HandleEvent(event eventbus.Event) {
	switch event.Type {
	case eventbus.EventTypeStateChanged:
		st, ok := event.Data["state"].(entity.State)
		if !ok {
			return
		}
		b.publishState(st)
	case eventbus.EventTypeAvailability:
		available, _ := event.Data["available"].(bool)
		payload := "offline"
		if available {
			payload = "online"
		}
		if err := b.broker.Publish(b.topics.Availability(), []byte(payload), true); err != nil {
			log.Warn().Err(err).Msg("Failed to publish availability")
		}
	}
}

func (b *Bridge) publishState(st entity.State) {
	payload, err := json.Marshal(st)
	if err != nil {
		log.Error().Err(err).Str("entity", st.UniqueID).Msg("Failed to encode state")
		return
	}
	if err := b.broker.Publish(b.topics.State(st.UniqueID), payload, true); err != nil {
		log.Warn().Err(err).Str("entity", st.UniqueID).Msg("Failed to publish state")
	}
}

// HandleCommand routes one message from a set topic
func (b *Bridge) HandleCommand(topic string, payload []byte) error {
	id, ok := b.topics.ParseSet(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	e, ok := b.entities.Get(id)
	if !ok {
		return fmt.Errorf("unknown entity %q", id)
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	log.Debug().Str("entity", id).RawJSON("command", payload).Msg("MQTT command")
	return b.execute(ctx, e, cmd)
}

func (b *Bridge) execute(ctx context.Context, e entity.Entity, cmd Command) error {
	if cmd.Option != nil {
		return entity.SelectOption(ctx, e, entity.SelectRequest{Option: *cmd.Option})
	}
	if cmd.State == nil {
		if cmd.ColorsRequest.IsEmpty() {
			return fmt.Errorf("command has neither state nor option")
		}
		return entity.SetColors(ctx, e, cmd.ColorsRequest)
	}

	switch strings.ToUpper(*cmd.State) {
	case "ON":
		if err := entity.TurnOn(ctx, e, cmd.TurnOnRequest); err != nil {
			return err
		}
		if cmd.ColorsRequest.IsEmpty() {
			return nil
		}
		return entity.SetColors(ctx, e, cmd.ColorsRequest)
	case "OFF":
		return entity.TurnOff(ctx, e, entity.TurnOffRequest{Transition: cmd.Transition})
	default:
		return fmt.Errorf("unknown state %q", *cmd.State)
	}
}
