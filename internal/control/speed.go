package control

// Default response curve parameters.
const (
	DefaultReferenceRPM  = 20.0
	DefaultDampingFactor = 0.25
)

// SpeedCurve maps crank RPM to a playback speed factor. Deviations from the
// reference speed are scaled by the damping factor, so speed is 1 at the
// reference and changes by Damping per unit of ratio on either side.
type SpeedCurve struct {
	ReferenceRPM float64
	Damping      float64
}

// DefaultSpeedCurve returns the curve with the default parameters.
func DefaultSpeedCurve() SpeedCurve {
	return SpeedCurve{ReferenceRPM: DefaultReferenceRPM, Damping: DefaultDampingFactor}
}

// Speed returns the playback speed for rpm. A stopped crank gives 0.
func (c SpeedCurve) Speed(rpm float64) float64 {
	ratio := rpm / c.ReferenceRPM
	switch {
	case ratio == 0:
		return 0
	case ratio > 1:
		return 1 + (ratio-1)*c.Damping
	default:
		return 1 - (1-ratio)*c.Damping
	}
}
