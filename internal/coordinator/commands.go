package coordinator

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/ledger"
	"github.com/dokzlo13/wledd/internal/wled"
)

type entityKey struct{}

// WithEntity tags ctx with the unique id of the entity issuing a command.
// The id is written to the command ledger.
func WithEntity(ctx context.Context, uniqueID string) context.Context {
	return context.WithValue(ctx, entityKey{}, uniqueID)
}

func entityFrom(ctx context.Context) string {
	id, _ := ctx.Value(entityKey{}).(string)
	return id
}

// SetMaster changes device-level power and brightness
func (c *Coordinator) SetMaster(ctx context.Context, req wled.MasterRequest) error {
	return c.command(ctx, "set_master", masterFields(req), func(ctx context.Context) error {
		return c.transport.Master(ctx, req)
	})
}

// SetSegment changes one segment
func (c *Coordinator) SetSegment(ctx context.Context, req wled.SegmentRequest) error {
	return c.command(ctx, "set_segment", segmentFields(req), func(ctx context.Context) error {
		return c.transport.Segment(ctx, req)
	})
}

// SetLiveOverride sets the live override mode
func (c *Coordinator) SetLiveOverride(ctx context.Context, live wled.LiveOverride) error {
	return c.command(ctx, "set_live_override", map[string]any{"live_override": int(live)}, func(ctx context.Context) error {
		return c.transport.Live(ctx, live)
	})
}

// SetPreset activates a preset by name
func (c *Coordinator) SetPreset(ctx context.Context, name string) error {
	return c.command(ctx, "set_preset", map[string]any{"preset": name}, func(ctx context.Context) error {
		return c.transport.Preset(ctx, name)
	})
}

// SetPlaylist starts a playlist by name
func (c *Coordinator) SetPlaylist(ctx context.Context, name string) error {
	return c.command(ctx, "set_playlist", map[string]any{"playlist": name}, func(ctx context.Context) error {
		return c.transport.Playlist(ctx, name)
	})
}

// command runs one write: rate limit, ledger bookkeeping, then a refresh
// request on success. Local state is never touched; the next refresh is
// the only source of truth.
func (c *Coordinator) command(ctx context.Context, name string, payload map[string]any, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	correlationID := uuid.NewString()
	entity := entityFrom(ctx)
	logger := c.Logger().With().
		Str("command", name).
		Str("correlation_id", correlationID).
		Str("entity", entity).
		Logger()

	c.record(ledger.EventCommandSent, correlationID, name, entity, payload)
	logger.Debug().Interface("payload", payload).Msg("Sending command")

	if err := fn(ctx); err != nil {
		c.record(ledger.EventCommandFailed, correlationID, name, entity, map[string]any{"error": err.Error()})
		return err
	}

	c.record(ledger.EventCommandCompleted, correlationID, name, entity, nil)
	logger.Debug().Msg("Command completed")

	if !c.isClosed() {
		c.RequestRefresh()
	}
	return nil
}

func (c *Coordinator) record(eventType ledger.EventType, correlationID, command, entity string, payload map[string]any) {
	if c.opts.Recorder == nil {
		return
	}
	if err := c.opts.Recorder.Append(eventType, correlationID, command, entity, payload); err != nil {
		log.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to record command")
	}
}

func masterFields(req wled.MasterRequest) map[string]any {
	f := make(map[string]any)
	if req.On != nil {
		f["on"] = *req.On
	}
	if req.Brightness != nil {
		f["brightness"] = int(*req.Brightness)
	}
	if req.Transition != nil {
		f["transition"] = *req.Transition
	}
	return f
}

func segmentFields(req wled.SegmentRequest) map[string]any {
	f := map[string]any{"segment": req.SegmentID}
	if req.On != nil {
		f["on"] = *req.On
	}
	if req.Brightness != nil {
		f["brightness"] = int(*req.Brightness)
	}
	if req.ColorPrimary != nil {
		f["color_primary"] = req.ColorPrimary.Slice()
	}
	if req.ColorSecondary != nil {
		f["color_secondary"] = req.ColorSecondary.Slice()
	}
	if req.ColorTertiary != nil {
		f["color_tertiary"] = req.ColorTertiary.Slice()
	}
	if req.Effect != nil {
		f["effect"] = *req.Effect
	}
	if req.Palette != nil {
		f["palette"] = *req.Palette
	}
	if req.Transition != nil {
		f["transition"] = *req.Transition
	}
	return f
}
