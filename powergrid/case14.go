package powergrid

// NewIEEE14 builds the IEEE 14-bus test system, the baseline network every
// experiment starts from. Bus, branch, load, and generator data follow the
// standard published case: one external interconnection at bus 1, a 40 MW
// unit at bus 2, synchronous condensers at buses 3, 6, and 8, and 259 MW of
// total demand.
func NewIEEE14() *Grid {
	g := &Grid{
		BaseMVA: 100,
		Buses: []Bus{
			{Number: 1, Name: "Bus 1 HV"},
			{Number: 2, Name: "Bus 2 HV"},
			{Number: 3, Name: "Bus 3 HV"},
			{Number: 4, Name: "Bus 4 HV"},
			{Number: 5, Name: "Bus 5 HV"},
			{Number: 6, Name: "Bus 6 LV"},
			{Number: 7, Name: "Bus 7 ZV"},
			{Number: 8, Name: "Bus 8 TV"},
			{Number: 9, Name: "Bus 9 LV"},
			{Number: 10, Name: "Bus 10 LV"},
			{Number: 11, Name: "Bus 11 LV"},
			{Number: 12, Name: "Bus 12 LV"},
			{Number: 13, Name: "Bus 13 LV"},
			{Number: 14, Name: "Bus 14 LV"},
		},
		Branches: []Branch{
			{ID: 0, FromBus: 1, ToBus: 2, R: 0.01938, X: 0.05917, B: 0.0528, InService: true},
			{ID: 1, FromBus: 1, ToBus: 5, R: 0.05403, X: 0.22304, B: 0.0492, InService: true},
			{ID: 2, FromBus: 2, ToBus: 3, R: 0.04699, X: 0.19797, B: 0.0438, InService: true},
			{ID: 3, FromBus: 2, ToBus: 4, R: 0.05811, X: 0.17632, B: 0.0340, InService: true},
			{ID: 4, FromBus: 2, ToBus: 5, R: 0.05695, X: 0.17388, B: 0.0346, InService: true},
			{ID: 5, FromBus: 3, ToBus: 4, R: 0.06701, X: 0.17103, B: 0.0128, InService: true},
			{ID: 6, FromBus: 4, ToBus: 5, R: 0.01335, X: 0.04211, B: 0, InService: true},
			{ID: 7, FromBus: 4, ToBus: 7, R: 0, X: 0.20912, B: 0, Tap: 0.978, InService: true},
			{ID: 8, FromBus: 4, ToBus: 9, R: 0, X: 0.55618, B: 0, Tap: 0.969, InService: true},
			{ID: 9, FromBus: 5, ToBus: 6, R: 0, X: 0.25202, B: 0, Tap: 0.932, InService: true},
			{ID: 10, FromBus: 6, ToBus: 11, R: 0.09498, X: 0.19890, B: 0, InService: true},
			{ID: 11, FromBus: 6, ToBus: 12, R: 0.12291, X: 0.25581, B: 0, InService: true},
			{ID: 12, FromBus: 6, ToBus: 13, R: 0.06615, X: 0.13027, B: 0, InService: true},
			{ID: 13, FromBus: 7, ToBus: 8, R: 0, X: 0.17615, B: 0, InService: true},
			{ID: 14, FromBus: 7, ToBus: 9, R: 0, X: 0.11001, B: 0, InService: true},
			{ID: 15, FromBus: 9, ToBus: 10, R: 0.03181, X: 0.08450, B: 0, InService: true},
			{ID: 16, FromBus: 9, ToBus: 14, R: 0.12711, X: 0.27038, B: 0, InService: true},
			{ID: 17, FromBus: 10, ToBus: 11, R: 0.08205, X: 0.19207, B: 0, InService: true},
			{ID: 18, FromBus: 12, ToBus: 13, R: 0.22092, X: 0.19988, B: 0, InService: true},
			{ID: 19, FromBus: 13, ToBus: 14, R: 0.17093, X: 0.34802, B: 0, InService: true},
		},
		Loads: []Load{
			{ID: 0, Bus: 2, PMw: 21.7, QMvar: 12.7, InService: true},
			{ID: 1, Bus: 3, PMw: 94.2, QMvar: 19.0, InService: true},
			{ID: 2, Bus: 4, PMw: 47.8, QMvar: -3.9, InService: true},
			{ID: 3, Bus: 5, PMw: 7.6, QMvar: 1.6, InService: true},
			{ID: 4, Bus: 6, PMw: 11.2, QMvar: 7.5, InService: true},
			{ID: 5, Bus: 9, PMw: 29.5, QMvar: 16.6, InService: true},
			{ID: 6, Bus: 10, PMw: 9.0, QMvar: 5.8, InService: true},
			{ID: 7, Bus: 11, PMw: 3.5, QMvar: 1.8, InService: true},
			{ID: 8, Bus: 12, PMw: 6.1, QMvar: 1.6, InService: true},
			{ID: 9, Bus: 13, PMw: 13.5, QMvar: 5.8, InService: true},
			{ID: 10, Bus: 14, PMw: 14.9, QMvar: 5.0, InService: true},
		},
		Generators: []Generator{
			{ID: 0, Bus: 2, PMw: 40, VmPu: 1.045, MinQMvar: -40, MaxQMvar: 50, InService: true},
			{ID: 1, Bus: 3, PMw: 0, VmPu: 1.010, MinQMvar: 0, MaxQMvar: 40, InService: true},
			{ID: 2, Bus: 6, PMw: 0, VmPu: 1.070, MinQMvar: -6, MaxQMvar: 24, InService: true},
			{ID: 3, Bus: 8, PMw: 0, VmPu: 1.090, MinQMvar: -6, MaxQMvar: 24, InService: true},
		},
		ExtGrids: []ExtGrid{
			{Bus: 1, VmPu: 1.060, InService: true},
		},
	}
	return g
}
