package chaos

import "github.com/gridsentry/gridchaos/powergrid"

// TripLine takes the identified line out of service. An unknown line ID is a
// no-op, not an error: tripping a breaker that does not exist changes
// nothing.
func TripLine(g *powergrid.Grid, lineID int) error {
	if br := g.BranchByID(lineID); br != nil {
		br.InService = false
	}
	return nil
}

// LoadSpike multiplies every load's active power, the manual cyber-attack
// style load surge. It carries no single-application guard; repeated spikes
// compound deliberately.
func LoadSpike(g *powergrid.Grid, multiplier float64) error {
	g.ScaleLoads(multiplier)
	return nil
}
