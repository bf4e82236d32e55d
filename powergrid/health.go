package powergrid

// Health is the coarse operating band derived from the worst bus voltage.
type Health string

const (
	HealthBlackout Health = "BLACKOUT"
	HealthCritical Health = "CRITICAL"
	HealthUnstable Health = "UNSTABLE"
	HealthHealthy  Health = "HEALTHY"
)

// HealthBands holds the voltage thresholds separating the operating bands.
// They come from process configuration and are fixed for the process life.
type HealthBands struct {
	// CriticalBelowPu is the voltage below which the grid is in brownout.
	CriticalBelowPu float64
	// UnstableBelowPu is the voltage below which the grid is degraded.
	UnstableBelowPu float64
}

// DefaultHealthBands returns the conventional 0.90 / 0.95 pu thresholds.
func DefaultHealthBands() HealthBands {
	return HealthBands{CriticalBelowPu: 0.90, UnstableBelowPu: 0.95}
}

// Classify maps a snapshot onto a health band. A diverged solve is a
// blackout regardless of thresholds.
func (b HealthBands) Classify(s Snapshot) Health {
	if !s.Converged {
		return HealthBlackout
	}
	switch {
	case s.MinVoltagePu < b.CriticalBelowPu:
		return HealthCritical
	case s.MinVoltagePu < b.UnstableBelowPu:
		return HealthUnstable
	default:
		return HealthHealthy
	}
}
