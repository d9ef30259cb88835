package leaf

// VenationPreset names the venation mode a leaf preset ships with, paired
// with a default vein density when venation is enabled.
type VenationPreset struct {
	Open    bool
	Density float64
	Enabled bool
}

// Preset bundles a named superformula/margin configuration with the
// venation setting associated with it, matching the authoritative preset
// table.
type Preset struct {
	Name     string
	Params   Params
	Venation VenationPreset
}

// Presets is the fixed set of named leaf shapes: Oak, Maple, Birch,
// Willow, and Pine.
var Presets = []Preset{
	{
		Name: "Oak",
		Params: Params{
			M: 7, A: 1, B: 1, N1: 2, N2: 4, N3: 4, AspectRatio: 0.7,
			ContourResolution: 64, Margin: Lobed, ToothCount: 7, ToothDepth: 0.3, ToothSharpness: 0.5,
		},
		Venation: VenationPreset{Open: true, Density: 800, Enabled: true},
	},
	{
		Name: "Maple",
		Params: Params{
			M: 5, A: 1, B: 1, N1: 1.5, N2: 3, N3: 3, AspectRatio: 0.95,
			ContourResolution: 64, Margin: Lobed, ToothCount: 5, ToothDepth: 0.5, ToothSharpness: 0.5,
		},
		Venation: VenationPreset{Open: true, Density: 1000, Enabled: true},
	},
	{
		Name: "Birch",
		Params: Params{
			M: 2, A: 1, B: 0.6, N1: 2.5, N2: 8, N3: 8, AspectRatio: 0.6,
			ContourResolution: 64, Margin: Serrate, ToothCount: 24, ToothDepth: 0.05, ToothSharpness: 0.5,
		},
		Venation: VenationPreset{Open: true, Density: 600, Enabled: true},
	},
	{
		Name: "Willow",
		Params: Params{
			M: 2, A: 1, B: 0.3, N1: 3, N2: 10, N3: 10, AspectRatio: 0.2,
			ContourResolution: 64, Margin: Entire, ToothSharpness: 0.5,
		},
		Venation: VenationPreset{Open: true, Density: 400, Enabled: true},
	},
	{
		Name: "Pine",
		Params: Params{
			M: 2, A: 1, B: 0.05, N1: 4, N2: 20, N3: 20, AspectRatio: 0.05,
			ContourResolution: 64, Margin: Entire, ToothSharpness: 0.5,
		},
		Venation: VenationPreset{Enabled: false},
	},
}

// ByName looks up a preset by its display name.
func ByName(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
