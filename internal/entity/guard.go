package entity

import (
	"context"
	"errors"

	"github.com/dokzlo13/wledd/internal/coordinator"
	"github.com/dokzlo13/wledd/internal/wled"
)

// guard serializes writes of one entity and handles device errors.
// Communication failures mark the coordinator unavailable, rejected
// requests are logged; neither reaches the caller. Anything else is an
// input error and is returned.
func (e *DeviceEntity) guard(ctx context.Context, command string, fn func(ctx context.Context) error) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	err := fn(coordinator.WithEntity(ctx, e.uniqueID))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wled.ErrConnection):
		e.coordinator.Logger().Error().
			Err(err).
			Str("entity", e.uniqueID).
			Str("command", command).
			Msg("Error communicating with device")
		e.coordinator.MarkUnavailable(err)
		return nil
	case errors.Is(err, wled.ErrResponse):
		e.coordinator.Logger().Error().
			Err(err).
			Str("entity", e.uniqueID).
			Str("command", command).
			Msg("Invalid response from device")
		return nil
	default:
		return err
	}
}
