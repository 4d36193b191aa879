package states

import "fmt"

// SessionState is the SessionState variable.
type SessionState int32

const (
	SessionInvalid SessionState = iota
	SessionGetInCar
	SessionWarmup
	SessionParadeLaps
	SessionRacing
	SessionCheckered
	SessionCoolDown
)

var sessionStateNames = [...]string{"invalid", "getInCar", "warmup", "paradeLaps", "racing", "checkered", "coolDown"}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(sessionStateNames) {
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
	return sessionStateNames[s]
}

// TrackLocation is where a car is relative to the track
// (PlayerTrackSurface, CarIdxTrackSurface).
type TrackLocation int32

const (
	NotInWorld TrackLocation = iota - 1
	OffTrack
	InPitStall
	ApproachingPits
	OnTrack
)

func (l TrackLocation) String() string {
	switch l {
	case NotInWorld:
		return "notInWorld"
	case OffTrack:
		return "offTrack"
	case InPitStall:
		return "inPitStall"
	case ApproachingPits:
		return "approachingPits"
	case OnTrack:
		return "onTrack"
	}
	return fmt.Sprintf("TrackLocation(%d)", int32(l))
}

// Units is the DisplayUnits variable.
type Units int32

const (
	Imperial Units = 0
	Metric   Units = 1
)

// UnitsOf maps the raw value: any positive value means metric.
func UnitsOf(v int32) Units {
	if v > 0 {
		return Metric
	}
	return Imperial
}

func (u Units) String() string {
	if u == Metric {
		return "metric"
	}
	return "imperial"
}

// ResetAction is the EnterExitReset variable: what the reset button does.
type ResetAction int32

const (
	ResetEnter ResetAction = iota
	ResetExit
	ResetReset
)

func (r ResetAction) String() string {
	switch r {
	case ResetEnter:
		return "enter"
	case ResetExit:
		return "exit"
	case ResetReset:
		return "reset"
	}
	return fmt.Sprintf("ResetAction(%d)", int32(r))
}

// SurfaceKind is the material class of a track surface.
type SurfaceKind int

const (
	SurfaceUnknown SurfaceKind = iota
	SurfaceNotInWorld
	SurfaceUndefined
	SurfaceAsphalt
	SurfaceConcrete
	SurfaceRacingDirt
	SurfacePaint
	SurfaceRumble
	SurfaceGrass
	SurfaceDirt
	SurfaceSand
	SurfaceGravel
	SurfaceGrasscrete
	SurfaceAstroturf
)

var surfaceNames = [...]string{
	"unknown", "notInWorld", "undefined", "asphalt", "concrete", "racingDirt", "paint",
	"rumble", "grass", "dirt", "sand", "gravel", "grasscrete", "astroturf",
}

func (k SurfaceKind) String() string {
	if k < 0 || int(k) >= len(surfaceNames) {
		return fmt.Sprintf("SurfaceKind(%d)", int(k))
	}
	return surfaceNames[k]
}

// TrackSurface is a decoded surface material value (PlayerTrackSurfaceMaterial,
// CarIdxTrackSurfaceMaterial). Grade numbers the variants of a kind from 1;
// kinds without variants have grade 0.
type TrackSurface struct {
	Kind  SurfaceKind
	Grade int
	Raw   int32
}

// TrackSurfaceOf classifies a raw surface material value.
func TrackSurfaceOf(v int32) TrackSurface {
	s := TrackSurface{Raw: v}
	switch {
	case v == -1:
		s.Kind = SurfaceNotInWorld
	case v == 0:
		s.Kind = SurfaceUndefined
	case v >= 1 && v <= 4:
		s.Kind, s.Grade = SurfaceAsphalt, int(v)
	case v == 6 || v == 7:
		s.Kind, s.Grade = SurfaceConcrete, int(v-5)
	case v == 8 || v == 9:
		s.Kind, s.Grade = SurfaceRacingDirt, int(v-7)
	case v == 10 || v == 11:
		s.Kind, s.Grade = SurfacePaint, int(v-9)
	case v >= 12 && v <= 15:
		s.Kind, s.Grade = SurfaceRumble, int(v-11)
	case v >= 16 && v <= 19:
		s.Kind, s.Grade = SurfaceGrass, int(v-15)
	case v >= 20 && v <= 23:
		s.Kind, s.Grade = SurfaceDirt, int(v-19)
	case v == 24:
		s.Kind = SurfaceSand
	case v >= 25 && v <= 28:
		s.Kind, s.Grade = SurfaceGravel, int(v-24)
	case v == 29:
		s.Kind = SurfaceGrasscrete
	case v == 30:
		s.Kind = SurfaceAstroturf
	default:
		s.Kind = SurfaceUnknown
	}
	return s
}

func (s TrackSurface) String() string {
	if s.Grade > 0 {
		return fmt.Sprintf("%s%d", s.Kind, s.Grade)
	}
	if s.Kind == SurfaceUnknown {
		return fmt.Sprintf("unknown(%d)", s.Raw)
	}
	return s.Kind.String()
}
