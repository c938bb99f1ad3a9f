package entity

import "math"

// EffectiveOn is the power a segment reports when no master light exists:
// it is never on while the device itself is off.
func EffectiveOn(deviceOn, segmentOn bool) bool {
	return deviceOn && segmentOn
}

// EffectiveBrightness is the brightness a segment reports when no master
// light exists: floor(segment * device / 255).
func EffectiveBrightness(segment, device uint8) uint8 {
	return uint8(int(segment) * int(device) / 255)
}

// TransitionUnits converts seconds to device units of 100ms, rounding to
// the nearest unit (halves away from zero).
func TransitionUnits(seconds float64) int {
	return int(math.Round(seconds * 10))
}

// MaxTransitionUnits is the largest transition the device accepts (16 bit).
const MaxTransitionUnits = 65535

func transition(seconds *float64) (*int, error) {
	if seconds == nil {
		return nil, nil
	}
	if math.IsNaN(*seconds) || *seconds < 0 || *seconds > MaxTransitionUnits/10.0 {
		return nil, ErrInvalidTransition
	}
	units := TransitionUnits(*seconds)
	return &units, nil
}

func ptr[T any](v T) *T { return &v }
