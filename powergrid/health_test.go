package powergrid

import "testing"

func TestHealthBandsClassify(t *testing.T) {
	bands := DefaultHealthBands()

	cases := []struct {
		name string
		snap Snapshot
		want Health
	}{
		{"diverged", Snapshot{Converged: false}, HealthBlackout},
		{"deep brownout", Snapshot{Converged: true, MinVoltagePu: 0.82}, HealthCritical},
		{"just below critical", Snapshot{Converged: true, MinVoltagePu: 0.8999}, HealthCritical},
		{"unstable", Snapshot{Converged: true, MinVoltagePu: 0.93}, HealthUnstable},
		{"boundary healthy", Snapshot{Converged: true, MinVoltagePu: 0.95}, HealthHealthy},
		{"nominal", Snapshot{Converged: true, MinVoltagePu: 1.01}, HealthHealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := bands.Classify(tc.snap); got != tc.want {
				t.Fatalf("Classify(%+v) = %s, want %s", tc.snap, got, tc.want)
			}
		})
	}
}
