package entity_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/wledd/internal/color"
	"github.com/dokzlo13/wledd/internal/coordinator"
	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/wled"
	"github.com/dokzlo13/wledd/internal/wled/wledtest"
)

const mac = "aabbccddeeff"

type collector struct {
	mu       sync.Mutex
	entities []entity.Entity
}

func (c *collector) Add(es ...entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = append(c.entities, es...)
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.entities))
	for i, e := range c.entities {
		ids[i] = e.UniqueID()
	}
	return ids
}

func (c *collector) get(t *testing.T, id string) entity.Entity {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entities {
		if e.UniqueID() == id {
			return e
		}
	}
	t.Fatalf("entity %s not registered", id)
	return nil
}

type events struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (e *events) Publish(ev eventbus.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *events) count(typ eventbus.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (e *events) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

type harness struct {
	srv      *wledtest.Server
	coord    *coordinator.Coordinator
	platform *entity.Platform
	reg      *collector
	bus      *events
}

func newHarness(t *testing.T, keepMaster bool, segs ...wledtest.Segment) *harness {
	t.Helper()
	srv := wledtest.NewServer()
	t.Cleanup(srv.Close)
	if len(segs) > 0 {
		srv.SetSegments(segs...)
	}

	c := coordinator.New(wled.NewClient(srv.URL, time.Second), coordinator.Options{
		KeepMasterLight: keepMaster,
		RateLimitRPS:    1000,
	})
	t.Cleanup(c.Close)

	h := &harness{srv: srv, coord: c, reg: &collector{}, bus: &events{}}
	h.refresh(t)
	h.platform = entity.NewPlatform(c, h.reg, h.bus)
	h.platform.Setup()
	return h
}

func (h *harness) refresh(t *testing.T) {
	t.Helper()
	_, err := h.coord.Refresh(context.Background())
	require.NoError(t, err)
}

func seg(id, bri int, on bool) wledtest.Segment {
	return wledtest.Segment{
		ID: id, On: on, Bri: bri, Start: id * 10, Stop: id*10 + 10,
		Col: [][]int{{255, 0, 0}, {0, 0, 0}, {0, 0, 0}},
	}
}

func u8(v uint8) *uint8      { return &v }
func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func TestPlatform_SingleSegmentEntities(t *testing.T) {
	h := newHarness(t, false)

	assert.Equal(t, []string{
		mac + "_live_override",
		mac + "_playlist",
		mac + "_preset",
		mac + "_0",
		mac + "_palette_0",
		mac + "_primary_color_0",
		mac + "_secondary_color_0",
		mac + "_tertiary_color_0",
	}, h.reg.ids())
	assert.False(t, h.coord.HasMasterLight())
	assert.Equal(t, "Desk", h.reg.get(t, mac+"_0").Name())

	h.refresh(t)
	assert.Len(t, h.reg.ids(), 8, "refreshing the same snapshot adds nothing")
}

func TestPlatform_KeepMasterLight(t *testing.T) {
	h := newHarness(t, true)

	master := h.reg.get(t, mac).(*entity.MasterLight)
	assert.Equal(t, "Desk Master", master.Name())
	assert.True(t, master.Available())
	assert.True(t, h.coord.HasMasterLight())
}

func TestPlatform_MasterMaterializedOnce(t *testing.T) {
	h := newHarness(t, false)

	h.srv.SetSegments(seg(0, 255, true), seg(1, 255, true))
	h.refresh(t)

	master := h.reg.get(t, mac).(*entity.MasterLight)
	assert.True(t, master.Available())
	assert.True(t, h.coord.HasMasterLight())
	h.reg.get(t, mac+"_1")

	h.srv.SetSegments(seg(0, 255, true))
	h.refresh(t)
	h.srv.SetSegments(seg(0, 255, true), seg(2, 255, true))
	h.refresh(t)

	masters := 0
	for _, id := range h.reg.ids() {
		if id == mac {
			masters++
		}
	}
	assert.Equal(t, 1, masters)
	assert.True(t, master.Available(), "master presence is never retracted")
}

func TestSegmentLight_RemovedSegmentUnavailable(t *testing.T) {
	h := newHarness(t, false, seg(0, 255, true), seg(1, 255, true))

	light := h.reg.get(t, mac+"_1").(*entity.SegmentLight)
	palette := h.reg.get(t, mac+"_palette_1").(entity.Select)
	require.True(t, light.Available())

	h.srv.SetSegments(seg(0, 255, true))
	h.refresh(t)

	assert.False(t, light.Available())
	assert.False(t, palette.Available())
	assert.True(t, h.platform.Tracker().Has(1))
	assert.False(t, light.IsOn())
	assert.Equal(t, uint8(0), light.Brightness())

	st := light.State()
	assert.False(t, st.Available)
	assert.Nil(t, st.On)

	// and it comes back under the same identity
	h.srv.SetSegments(seg(0, 255, true), seg(1, 255, true))
	h.refresh(t)
	assert.True(t, light.Available())
	assert.Len(t, h.reg.ids(), 14)
}

func TestSegmentLight_CompositeState(t *testing.T) {
	h := newHarness(t, false, seg(0, 200, true))
	light := h.reg.get(t, mac+"_0").(*entity.SegmentLight)

	h.srv.SetMaster(true, 100)
	h.refresh(t)
	assert.Equal(t, uint8(78), light.Brightness())
	assert.True(t, light.IsOn())

	h.srv.SetMaster(false, 100)
	h.refresh(t)
	assert.False(t, light.IsOn(), "segment is off while the device is off")
}

func TestSegmentLight_RawStateWithMaster(t *testing.T) {
	h := newHarness(t, true, seg(0, 200, true))
	light := h.reg.get(t, mac+"_0").(*entity.SegmentLight)

	h.srv.SetMaster(false, 100)
	h.refresh(t)
	assert.Equal(t, uint8(200), light.Brightness())
	assert.True(t, light.IsOn())

	master := h.reg.get(t, mac).(*entity.MasterLight)
	assert.Equal(t, uint8(100), master.Brightness())
	assert.False(t, master.IsOn())
}

func TestSegmentLight_TurnOnWithoutMaster(t *testing.T) {
	h := newHarness(t, false, seg(0, 128, false))
	light := h.reg.get(t, mac+"_0").(*entity.SegmentLight)
	h.srv.SetMaster(false, 50)
	h.refresh(t)

	err := light.TurnOn(context.Background(), entity.TurnOnOptions{Brightness: u8(200), Transition: f64(2.3)})
	require.NoError(t, err)
	h.refresh(t)

	on, bri := h.srv.Master()
	assert.True(t, on)
	assert.Equal(t, 200, bri)
	s, _ := h.srv.Segment(0)
	assert.Equal(t, 255, s.Bri)
	assert.True(t, s.On)
	assert.Equal(t, uint8(200), light.Brightness())

	posts := h.srv.Posts()
	require.Len(t, posts, 2)
	assert.Contains(t, posts[0], "seg", "segment command goes first")
	assert.NotContains(t, posts[0], "transition")
	assert.Equal(t, float64(23), posts[1]["transition"])
}

func TestSegmentLight_TurnOnWithMaster(t *testing.T) {
	h := newHarness(t, true, seg(0, 128, false))
	light := h.reg.get(t, mac+"_0").(*entity.SegmentLight)

	err := light.TurnOn(context.Background(), entity.TurnOnOptions{
		Brightness: u8(10),
		Transition: f64(1),
		Effect:     str("Blink"),
	})
	require.NoError(t, err)

	posts := h.srv.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, float64(10), posts[0]["transition"])
	s, _ := h.srv.Segment(0)
	assert.Equal(t, 10, s.Bri)
	assert.Equal(t, 1, s.Fx)
	_, bri := h.srv.Master()
	assert.Equal(t, 255, bri, "device brightness untouched")
}

func TestSegmentLight_TurnOff(t *testing.T) {
	t.Run("without master", func(t *testing.T) {
		h := newHarness(t, false)
		light := h.reg.get(t, mac+"_0").(entity.Light)

		require.NoError(t, light.TurnOff(context.Background(), entity.TurnOffOptions{}))
		on, _ := h.srv.Master()
		assert.False(t, on)
		s, _ := h.srv.Segment(0)
		assert.True(t, s.On)
	})

	t.Run("with master", func(t *testing.T) {
		h := newHarness(t, false, seg(0, 255, true), seg(1, 255, true))
		light := h.reg.get(t, mac+"_1").(entity.Light)

		require.NoError(t, light.TurnOff(context.Background(), entity.TurnOffOptions{Transition: f64(0.5)}))
		on, _ := h.srv.Master()
		assert.True(t, on)
		s, _ := h.srv.Segment(1)
		assert.False(t, s.On)
		assert.Equal(t, float64(5), h.srv.Posts()[0]["transition"])
	})

	t.Run("negative transition", func(t *testing.T) {
		h := newHarness(t, false)
		light := h.reg.get(t, mac+"_0").(entity.Light)
		err := light.TurnOff(context.Background(), entity.TurnOffOptions{Transition: f64(-1)})
		assert.ErrorIs(t, err, entity.ErrInvalidTransition)
		assert.Empty(t, h.srv.Posts())
	})

	t.Run("transition beyond device range", func(t *testing.T) {
		h := newHarness(t, false)
		light := h.reg.get(t, mac+"_0").(entity.Light)
		err := light.TurnOff(context.Background(), entity.TurnOffOptions{Transition: f64(1e300)})
		assert.ErrorIs(t, err, entity.ErrInvalidTransition)
		assert.Empty(t, h.srv.Posts())
	})
}

func TestGuard_ConnectionErrorMarksUnavailable(t *testing.T) {
	h := newHarness(t, false)
	light := h.reg.get(t, mac+"_0").(entity.Light)
	require.True(t, light.Available())

	h.srv.Close()
	err := light.TurnOn(context.Background(), entity.TurnOnOptions{})
	assert.NoError(t, err, "communication errors never reach the caller")
	assert.False(t, h.coord.Available())
	assert.False(t, light.Available())
}

func TestGuard_RejectedRequestLogged(t *testing.T) {
	h := newHarness(t, false)
	light := h.reg.get(t, mac+"_0").(entity.Light)

	h.srv.SetFailing(http.StatusBadRequest)
	assert.NoError(t, light.TurnOn(context.Background(), entity.TurnOnOptions{}))
	assert.True(t, h.coord.Available())
}

func TestGuard_InputErrorReturned(t *testing.T) {
	h := newHarness(t, false)
	light := h.reg.get(t, mac+"_0").(entity.Light)

	err := light.TurnOn(context.Background(), entity.TurnOnOptions{Effect: str("Nope")})
	assert.ErrorIs(t, err, wled.ErrUnknownEffect)
}

func TestSegmentLight_SetColors(t *testing.T) {
	h := newHarness(t, false)
	light := h.reg.get(t, mac+"_0").(entity.Light)
	ctx := context.Background()

	err := light.SetColors(ctx, entity.ColorsRequest{ColorPrimary: []int{1, 2, 3}, ColorNamePrimary: "red"})
	assert.ErrorIs(t, err, entity.ErrExclusiveColor)
	err = light.SetColors(ctx, entity.ColorsRequest{ColorNameSecondary: "notacolor"})
	assert.ErrorIs(t, err, color.ErrUnknownColorName)
	assert.Empty(t, h.srv.Posts())

	err = light.SetColors(ctx, entity.ColorsRequest{ColorPrimary: []int{10, 20, 30}, ColorNameTertiary: "Navy"})
	require.NoError(t, err)

	navy, _ := color.Lookup("navy")
	s, _ := h.srv.Segment(0)
	assert.Equal(t, []int{10, 20, 30}, s.Col[0])
	assert.Equal(t, []int{0, 0, 0}, s.Col[1])
	assert.Equal(t, []int{int(navy.R), int(navy.G), int(navy.B)}, s.Col[2])
}

func TestMasterLight_SetColorsIsNoop(t *testing.T) {
	h := newHarness(t, true)
	master := h.reg.get(t, mac).(entity.Light)

	require.NoError(t, master.SetColors(context.Background(), entity.ColorsRequest{ColorPrimary: []int{1, 2, 3}}))
	assert.Empty(t, h.srv.Posts())

	require.NoError(t, master.TurnOn(context.Background(), entity.TurnOnOptions{Brightness: u8(42)}))
	_, bri := h.srv.Master()
	assert.Equal(t, 42, bri)
}

func TestColorSelect(t *testing.T) {
	h := newHarness(t, false, wledtest.Segment{
		ID: 0, On: true, Bri: 255, Stop: 10,
		Col: [][]int{{1, 2, 3}, {255, 0, 0}, {0, 0, 0}},
	})
	primary := h.reg.get(t, mac+"_primary_color_0").(entity.Select)
	secondary := h.reg.get(t, mac+"_secondary_color_0").(entity.Select)
	tertiary := h.reg.get(t, mac+"_tertiary_color_0").(entity.Select)
	ctx := context.Background()

	assert.Equal(t, color.Custom, primary.CurrentOption())
	assert.Equal(t, "red", secondary.CurrentOption())

	opts := primary.Options()
	assert.Equal(t, color.Custom, opts[len(opts)-1])
	assert.Len(t, opts, len(color.Names())+1)

	assert.ErrorIs(t, primary.SelectOption(ctx, color.Custom), entity.ErrInvalidOption)
	err := primary.SelectOption(ctx, "notacolor")
	assert.ErrorIs(t, err, entity.ErrInvalidOption)
	assert.ErrorIs(t, err, color.ErrUnknownColorName)
	assert.Empty(t, h.srv.Posts())

	require.NoError(t, tertiary.SelectOption(ctx, "navy"))
	h.refresh(t)
	assert.Equal(t, "navy", tertiary.CurrentOption())
	assert.Equal(t, color.Custom, primary.CurrentOption(), "other slots untouched")
}

func TestPaletteSelect(t *testing.T) {
	h := newHarness(t, false)
	palette := h.reg.get(t, mac+"_palette_0").(entity.Select)

	assert.Equal(t, []string{"Default", "Party"}, palette.Options())
	assert.Equal(t, "Default", palette.CurrentOption())
	assert.ErrorIs(t, palette.SelectOption(context.Background(), "Nope"), entity.ErrInvalidOption)

	require.NoError(t, palette.SelectOption(context.Background(), "Party"))
	h.refresh(t)
	assert.Equal(t, "Party", palette.CurrentOption())
}

func TestPresetAndPlaylistSelects(t *testing.T) {
	h := newHarness(t, false)
	preset := h.reg.get(t, mac+"_preset").(entity.Select)
	playlist := h.reg.get(t, mac+"_playlist").(entity.Select)
	ctx := context.Background()

	assert.True(t, preset.Available())
	assert.Equal(t, []string{"Morning", "Evening"}, preset.Options())
	assert.Equal(t, "", preset.CurrentOption())
	assert.ErrorIs(t, preset.SelectOption(ctx, "Cycle"), entity.ErrInvalidOption)

	require.NoError(t, preset.SelectOption(ctx, "Evening"))
	require.NoError(t, playlist.SelectOption(ctx, "Cycle"))
	h.refresh(t)
	assert.Equal(t, "Evening", preset.CurrentOption())
	assert.Equal(t, "Cycle", playlist.CurrentOption())

	h.srv.SetPresets(nil)
	h.refresh(t)
	assert.False(t, preset.Available())
	assert.False(t, playlist.Available())
}

func TestLiveOverrideSelect(t *testing.T) {
	h := newHarness(t, false)
	live := h.reg.get(t, mac+"_live_override").(entity.Select)

	assert.Equal(t, []string{"0", "1", "2"}, live.Options())
	assert.Equal(t, "0", live.CurrentOption())
	assert.ErrorIs(t, live.SelectOption(context.Background(), "7"), entity.ErrInvalidOption)

	require.NoError(t, live.SelectOption(context.Background(), "2"))
	assert.Equal(t, 2, h.srv.Live())
}

func TestPlatform_PublishesChangesOnly(t *testing.T) {
	h := newHarness(t, false)

	assert.Equal(t, 8, h.bus.count(eventbus.EventTypeStateChanged))
	assert.Equal(t, 1, h.bus.count(eventbus.EventTypeSnapshot))
	assert.Equal(t, 1, h.bus.count(eventbus.EventTypeAvailability))

	h.bus.reset()
	h.refresh(t)
	assert.Equal(t, 0, h.bus.count(eventbus.EventTypeStateChanged))
	assert.Equal(t, 1, h.bus.count(eventbus.EventTypeSnapshot))
	assert.Equal(t, 0, h.bus.count(eventbus.EventTypeAvailability))

	h.bus.reset()
	h.srv.SetMaster(true, 10)
	h.refresh(t)
	assert.Equal(t, 1, h.bus.count(eventbus.EventTypeStateChanged), "only the segment light changed")
}
