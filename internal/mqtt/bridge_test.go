package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/eventbus"
)

type message struct {
	topic    string
	payload  string
	retained bool
}

type fakeBroker struct {
	mu       sync.Mutex
	messages []message
	filters  []string
}

func (b *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message{topic, string(payload), retained})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ MessageHandler) error {
	b.filters = append(b.filters, topic)
	return nil
}

func (b *fakeBroker) sent() []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]message(nil), b.messages...)
}

type fakeLight struct {
	id     string
	on     *entity.TurnOnOptions
	off    *entity.TurnOffOptions
	colors *entity.ColorsRequest
}

func (l *fakeLight) UniqueID() string    { return l.id }
func (l *fakeLight) Name() string        { return l.id }
func (l *fakeLight) Kind() entity.Kind   { return entity.KindLight }
func (l *fakeLight) Available() bool     { return true }
func (l *fakeLight) State() entity.State { return entity.State{UniqueID: l.id, Kind: entity.KindLight} }
func (l *fakeLight) IsOn() bool          { return l.on != nil }
func (l *fakeLight) Brightness() uint8   { return 0 }

func (l *fakeLight) TurnOn(_ context.Context, opts entity.TurnOnOptions) error {
	l.on = &opts
	return nil
}

func (l *fakeLight) TurnOff(_ context.Context, opts entity.TurnOffOptions) error {
	l.off = &opts
	return nil
}

func (l *fakeLight) SetColors(_ context.Context, req entity.ColorsRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	l.colors = &req
	return nil
}

type fakeSelect struct {
	id       string
	selected string
}

func (s *fakeSelect) UniqueID() string    { return s.id }
func (s *fakeSelect) Name() string        { return s.id }
func (s *fakeSelect) Kind() entity.Kind   { return entity.KindSelect }
func (s *fakeSelect) Available() bool     { return true }
func (s *fakeSelect) State() entity.State { return entity.State{UniqueID: s.id, Kind: entity.KindSelect} }
func (s *fakeSelect) Options() []string   { return []string{"a", "b"} }
func (s *fakeSelect) CurrentOption() string {
	return s.selected
}

func (s *fakeSelect) SelectOption(_ context.Context, option string) error {
	s.selected = option
	return nil
}

type fakeEntities map[string]entity.Entity

func (f fakeEntities) Get(id string) (entity.Entity, bool) {
	e, ok := f[id]
	return e, ok
}

func (f fakeEntities) States() []entity.State {
	out := make([]entity.State, 0, len(f))
	for _, e := range f {
		out = append(out, e.State())
	}
	return out
}

var testTopics = Topics{Prefix: "wledd", MAC: "aabbccddeeff"}

func newBridge() (*Bridge, *fakeBroker, *fakeLight, *fakeSelect) {
	light := &fakeLight{id: "aabbccddeeff_0"}
	sel := &fakeSelect{id: "aabbccddeeff_palette_0"}
	broker := &fakeBroker{}
	b := NewBridge(broker, testTopics, fakeEntities{light.id: light, sel.id: sel})
	return b, broker, light, sel
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "wledd/aabbccddeeff/x_0/state", testTopics.State("x_0"))
	assert.Equal(t, "wledd/aabbccddeeff/+/set", testTopics.SetFilter())
	assert.Equal(t, "wledd/aabbccddeeff/availability", testTopics.Availability())

	tests := []struct {
		topic string
		id    string
		ok    bool
	}{
		{"wledd/aabbccddeeff/x_0/set", "x_0", true},
		{"wledd/aabbccddeeff/x_0/state", "", false},
		{"wledd/other/x_0/set", "", false},
		{"wledd/aabbccddeeff//set", "", false},
		{"wledd/aabbccddeeff/a/b/set", "", false},
	}
	for _, tt := range tests {
		id, ok := testTopics.ParseSet(tt.topic)
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.id, id, tt.topic)
	}
}

func TestStart_PublishesKnownStates(t *testing.T) {
	b, broker, _, _ := newBridge()
	bus := eventbus.New()
	defer bus.Close(context.Background())

	require.NoError(t, b.Start(bus))
	assert.Equal(t, []string{"wledd/aabbccddeeff/+/set"}, broker.filters)

	sent := broker.sent()
	require.Len(t, sent, 2)
	for _, m := range sent {
		assert.True(t, m.retained)
		assert.Contains(t, m.topic, "/state")
	}
}

func TestHandleEvent(t *testing.T) {
	b, broker, _, _ := newBridge()

	on := true
	b.HandleEvent(eventbus.Event{
		Type: eventbus.EventTypeStateChanged,
		Data: map[string]any{"entity": "x_1", "state": entity.State{UniqueID: "x_1", On: &on}},
	})
	b.HandleEvent(eventbus.Event{
		Type: eventbus.EventTypeAvailability,
		Data: map[string]any{"available": false},
	})

	sent := broker.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "wledd/aabbccddeeff/x_1/state", sent[0].topic)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(sent[0].payload), &decoded))
	assert.Equal(t, true, decoded["on"])

	assert.Equal(t, message{"wledd/aabbccddeeff/availability", "offline", true}, sent[1])
}

func TestHandleCommand_Light(t *testing.T) {
	b, _, light, _ := newBridge()
	topic := testTopics.Set(light.id)

	require.NoError(t, b.HandleCommand(topic, []byte(`{"state":"ON","brightness":200,"transition":2.3,"color_name_secondary":"navy"}`)))
	require.NotNil(t, light.on)
	assert.Equal(t, uint8(200), *light.on.Brightness)
	assert.Equal(t, 2.3, *light.on.Transition)
	require.NotNil(t, light.colors)
	assert.Equal(t, "navy", light.colors.ColorNameSecondary)

	require.NoError(t, b.HandleCommand(topic, []byte(`{"state":"off","transition":1}`)))
	require.NotNil(t, light.off)
	assert.Equal(t, 1.0, *light.off.Transition)

	err := b.HandleCommand(topic, []byte(`{"state":"ON","brightness":300}`))
	assert.ErrorIs(t, err, entity.ErrBrightnessRange)

	err = b.HandleCommand(topic, []byte(`{"color_primary":[1,2,3],"color_name_primary":"red"}`))
	assert.ErrorIs(t, err, entity.ErrExclusiveColor)

	err = b.HandleCommand(topic, []byte(`{"option":"a"}`))
	assert.ErrorIs(t, err, entity.ErrNotSelect)
}

func TestHandleCommand_Select(t *testing.T) {
	b, _, _, sel := newBridge()

	require.NoError(t, b.HandleCommand(testTopics.Set(sel.id), []byte(`{"option":"b"}`)))
	assert.Equal(t, "b", sel.selected)

	err := b.HandleCommand(testTopics.Set(sel.id), []byte(`{"state":"ON"}`))
	assert.ErrorIs(t, err, entity.ErrNotLight)
}

func TestHandleCommand_Rejects(t *testing.T) {
	b, _, _, _ := newBridge()

	assert.ErrorIs(t, b.HandleCommand("wledd/aabbccddeeff/state", nil), ErrInvalidTopic)
	assert.Error(t, b.HandleCommand(testTopics.Set("missing"), []byte(`{}`)))
	assert.Error(t, b.HandleCommand(testTopics.Set("aabbccddeeff_0"), []byte(`not json`)))
	assert.Error(t, b.HandleCommand(testTopics.Set("aabbccddeeff_0"), []byte(`{}`)))
	assert.Error(t, b.HandleCommand(testTopics.Set("aabbccddeeff_0"), []byte(`{"state":"DIM"}`)))
}
