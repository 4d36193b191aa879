// Package states names the enumerations and bitfields the simulator
// publishes through integer and bitfield variables. Telemetry decoding
// leaves values raw; these types are for callers that want names.
package states

import (
	"fmt"
	"strings"
)

type flagName struct {
	bit  uint32
	name string
}

func formatBits(v uint32, names []flagName) string {
	if v == 0 {
		return "0"
	}
	var parts []string
	for _, f := range names {
		if v&f.bit != 0 {
			parts = append(parts, f.name)
			v &^= f.bit
		}
	}
	if v != 0 {
		parts = append(parts, fmt.Sprintf("%#x", v))
	}
	return strings.Join(parts, "|")
}

// Flags is the session flag bitfield (SessionFlags).
type Flags uint32

const (
	FlagCheckered Flags = 1 << iota
	FlagWhite
	FlagGreen
	FlagYellow
	FlagRed
	FlagBlue
	FlagDebris
	FlagCrossed
	FlagYellowWaving
	FlagOneLapToGreen
	FlagGreenHeld
	FlagTenToGo
	FlagFiveToGo
	FlagRandomWaving
	FlagCaution
	FlagCautionWaving
	FlagBlack
	FlagDisqualify
	FlagServicible
	FlagFurled
	FlagRepair
	FlagStartHidden
	FlagStartReady
	FlagStartSet
	FlagStartGo
)

var flagNames = []flagName{
	{uint32(FlagCheckered), "checkered"},
	{uint32(FlagWhite), "white"},
	{uint32(FlagGreen), "green"},
	{uint32(FlagYellow), "yellow"},
	{uint32(FlagRed), "red"},
	{uint32(FlagBlue), "blue"},
	{uint32(FlagDebris), "debris"},
	{uint32(FlagCrossed), "crossed"},
	{uint32(FlagYellowWaving), "yellowWaving"},
	{uint32(FlagOneLapToGreen), "oneLapToGreen"},
	{uint32(FlagGreenHeld), "greenHeld"},
	{uint32(FlagTenToGo), "tenToGo"},
	{uint32(FlagFiveToGo), "fiveToGo"},
	{uint32(FlagRandomWaving), "randomWaving"},
	{uint32(FlagCaution), "caution"},
	{uint32(FlagCautionWaving), "cautionWaving"},
	{uint32(FlagBlack), "black"},
	{uint32(FlagDisqualify), "disqualify"},
	{uint32(FlagServicible), "servicible"},
	{uint32(FlagFurled), "furled"},
	{uint32(FlagRepair), "repair"},
	{uint32(FlagStartHidden), "startHidden"},
	{uint32(FlagStartReady), "startReady"},
	{uint32(FlagStartSet), "startSet"},
	{uint32(FlagStartGo), "startGo"},
}

func (f Flags) Has(x Flags) bool { return f&x == x }
func (f Flags) String() string   { return formatBits(uint32(f), flagNames) }

// EngineWarnings is the EngineWarnings bitfield.
type EngineWarnings uint32

const (
	WarnWaterTemp EngineWarnings = 1 << iota
	WarnFuelPressure
	WarnOilPressure
	WarnEngineStalled
	WarnPitSpeedLimiter
	WarnRevLimiterActive
)

var warningNames = []flagName{
	{uint32(WarnWaterTemp), "waterTemp"},
	{uint32(WarnFuelPressure), "fuelPressure"},
	{uint32(WarnOilPressure), "oilPressure"},
	{uint32(WarnEngineStalled), "engineStalled"},
	{uint32(WarnPitSpeedLimiter), "pitSpeedLimiter"},
	{uint32(WarnRevLimiterActive), "revLimiterActive"},
}

func (w EngineWarnings) Has(x EngineWarnings) bool { return w&x == x }
func (w EngineWarnings) String() string            { return formatBits(uint32(w), warningNames) }

// CameraState is the CamCameraState bitfield.
type CameraState uint32

const (
	CamIsSessionScreen CameraState = 1 << iota
	CamIsScenicActive
	CamToolActive
	CamUIHidden
	CamUseAutoShotSelection
	CamUseTemporaryEdits
	CamUseKeyAcceleration
	CamUseKey10xAcceleration
	CamUseMouseAimMode
)

var cameraNames = []flagName{
	{uint32(CamIsSessionScreen), "sessionScreen"},
	{uint32(CamIsScenicActive), "scenicActive"},
	{uint32(CamToolActive), "camToolActive"},
	{uint32(CamUIHidden), "uiHidden"},
	{uint32(CamUseAutoShotSelection), "autoShotSelection"},
	{uint32(CamUseTemporaryEdits), "temporaryEdits"},
	{uint32(CamUseKeyAcceleration), "keyAcceleration"},
	{uint32(CamUseKey10xAcceleration), "key10xAcceleration"},
	{uint32(CamUseMouseAimMode), "mouseAimMode"},
}

func (c CameraState) Has(x CameraState) bool { return c&x == x }
func (c CameraState) String() string         { return formatBits(uint32(c), cameraNames) }

// PitServices is the PitSvFlags bitfield of requested pit services.
type PitServices uint32

const (
	PitChangeLeftFront PitServices = 1 << iota
	PitChangeRightFront
	PitChangeLeftRear
	PitChangeRightRear
	PitRefuel
	PitWindshieldTearoff
	PitFastRepair
)

var pitNames = []flagName{
	{uint32(PitChangeLeftFront), "lf"},
	{uint32(PitChangeRightFront), "rf"},
	{uint32(PitChangeLeftRear), "lr"},
	{uint32(PitChangeRightRear), "rr"},
	{uint32(PitRefuel), "fuel"},
	{uint32(PitWindshieldTearoff), "tearoff"},
	{uint32(PitFastRepair), "fastRepair"},
}

func (p PitServices) Has(x PitServices) bool { return p&x == x }
func (p PitServices) String() string         { return formatBits(uint32(p), pitNames) }
