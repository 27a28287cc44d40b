package layer

import (
	"fmt"
	"strings"
)

// Technique is the transparency technique of a layer's core compositor
type Technique int

const (
	TechniqueDefault Technique = iota
	DepthPeeling
	DualDepthPeeling
	WeightedBlended
	HybridTransparency
	CelShadingDepthPeeling
)

var techniqueNames = map[Technique]string{
	TechniqueDefault:       "Default",
	DepthPeeling:           "DepthPeeling",
	DualDepthPeeling:       "DualDepthPeeling",
	WeightedBlended:        "WeightedBlended",
	HybridTransparency:     "HybridTransparency",
	CelShadingDepthPeeling: "CelShadingDepthPeeling",
}

func (t Technique) String() string {
	if name, ok := techniqueNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Technique(%d)", int(t))
}

// ParseTechnique maps a technique name to its value. The empty string and
// "none" select the default technique, anything else unknown is an error.
func ParseTechnique(s string) (Technique, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return TechniqueDefault, nil
	}
	for t, name := range techniqueNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return TechniqueDefault, fmt.Errorf("unknown transparency technique %q", s)
}

// UsesPeels reports whether the peel count changes the number of passes
func (t Technique) UsesPeels() bool {
	switch t {
	case DepthPeeling, DualDepthPeeling, HybridTransparency, CelShadingDepthPeeling:
		return true
	}
	return false
}

// Passes returns the number of render passes the technique needs
func (t Technique) Passes(peels int) int {
	switch t {
	case DepthPeeling:
		return peels + 1
	case DualDepthPeeling:
		// front and back layers are peeled in the same pass
		return (peels+1)/2 + 1
	case WeightedBlended:
		return 2
	case HybridTransparency:
		return peels + 2
	case CelShadingDepthPeeling:
		return peels + 2
	}
	return 1
}

// StereoMode selects the stereo composition of a layer
type StereoMode int

const (
	StereoNone StereoMode = iota
	Stereo
	AutoStereo5
	AutoStereo8
)

func (s StereoMode) String() string {
	switch s {
	case StereoNone:
		return ""
	case Stereo:
		return "Stereo"
	case AutoStereo5:
		return "AutoStereo5"
	case AutoStereo8:
		return "AutoStereo8"
	}
	return fmt.Sprintf("StereoMode(%d)", int(s))
}

// ParseStereoMode accepts "", "false", "Stereo", "AutoStereo5" and "AutoStereo8"
func ParseStereoMode(s string) (StereoMode, error) {
	switch strings.TrimSpace(s) {
	case "", "false":
		return StereoNone, nil
	case "Stereo":
		return Stereo, nil
	case "AutoStereo5":
		return AutoStereo5, nil
	case "AutoStereo8":
		return AutoStereo8, nil
	}
	return StereoNone, fmt.Errorf("unknown stereo mode %q", s)
}

// Views returns how many eye views the mode renders
func (s StereoMode) Views() int {
	switch s {
	case Stereo:
		return 2
	case AutoStereo5:
		return 5
	case AutoStereo8:
		return 8
	}
	return 1
}

// DefaultPeels is the peel count used when none is configured
const DefaultPeels = 4

// Compositor describes the mandatory pass producing a layer's final color
type Compositor struct {
	Transparency Technique
	Peels        int
	Stereo       StereoMode
}

// DefaultCompositor has no peeling and no stereo
func DefaultCompositor() Compositor {
	return Compositor{Transparency: TechniqueDefault, Peels: DefaultPeels, Stereo: StereoNone}
}

// Passes is the total pass count across every stereo view
func (c Compositor) Passes() int {
	return c.Transparency.Passes(c.Peels) * c.Stereo.Views()
}
