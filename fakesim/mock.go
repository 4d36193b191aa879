package fakesim

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/AlephTX/simtelem/telemetry"
)

// CarCount is the size of the per-car array variables of DefaultVars.
const CarCount = 64

// DefaultVars is a representative subset of the simulator's variables.
var DefaultVars = []Var{
	{Name: "SessionTime", Type: telemetry.TypeDouble, Desc: "Seconds since session start", Unit: "s"},
	{Name: "SessionTick", Type: telemetry.TypeInt, Desc: "Current update number"},
	{Name: "SessionState", Type: telemetry.TypeInt, Desc: "Session state", Unit: "irsdk_SessionState"},
	{Name: "SessionFlags", Type: telemetry.TypeBitfield, Desc: "Session flags", Unit: "irsdk_Flags"},
	{Name: "IsOnTrack", Type: telemetry.TypeBool, Desc: "1=Car on track physics running with player in car"},
	{Name: "Speed", Type: telemetry.TypeFloat, Desc: "GPS vehicle speed", Unit: "m/s"},
	{Name: "RPM", Type: telemetry.TypeFloat, Desc: "Engine rpm", Unit: "revs/min"},
	{Name: "Gear", Type: telemetry.TypeInt, Desc: "-1=reverse  0=neutral  1..n=current gear"},
	{Name: "Throttle", Type: telemetry.TypeFloat, Desc: "0=off throttle to 1=full throttle", Unit: "%"},
	{Name: "Brake", Type: telemetry.TypeFloat, Desc: "0=brake released to 1=max pedal force", Unit: "%"},
	{Name: "Lap", Type: telemetry.TypeInt, Desc: "Laps started count"},
	{Name: "LapDistPct", Type: telemetry.TypeFloat, Desc: "Percentage distance around lap", Unit: "%"},
	{Name: "FuelLevel", Type: telemetry.TypeFloat, Desc: "Liters of fuel remaining", Unit: "l"},
	{Name: "EngineWarnings", Type: telemetry.TypeBitfield, Desc: "Bitfield for warning lights", Unit: "irsdk_EngineWarnings"},
	{Name: "PlayerTrackSurface", Type: telemetry.TypeInt, Desc: "Players car track surface type", Unit: "irsdk_TrkLoc"},
	{Name: "CarIdxLapDistPct", Type: telemetry.TypeFloat, Count: CarCount, Desc: "Percentage distance around lap by car index", Unit: "%"},
}

// DefaultSessionInfo is the session document the mock publishes.
const DefaultSessionInfo = `---
WeekendInfo:
 TrackName: mockring
 TrackID: 1
 TrackLength: 4.20 km
 TrackDisplayName: Mock Ring
 TrackCity: Nowhere
 TrackCountry: Nowhere
 TrackNumTurns: 12
 EventType: Test
 Category: Road
 SimMode: full
SessionInfo:
 Sessions:
 - SessionNum: 0
   SessionLaps: unlimited
   SessionTime: unlimited
   SessionType: Offline Testing
   SessionName: TESTING
DriverInfo:
 DriverCarIdx: 0
 DriverUserID: 1
 Drivers:
 - CarIdx: 0
   UserName: Mock Driver
   UserID: 1
   CarNumber: "1"
`

// Mock drives a Producer laid out with DefaultVars with a random walk.
type Mock struct {
	p   *Producer
	rng *rand.Rand

	elapsed  float64
	speed    float64
	rpm      float64
	throttle float64
	gear     int32
	lap      int32
	lapPct   float64
	fuel     float64
}

// NewMock writes the default session document and returns a mock ready to
// step. p must be laid out with DefaultVars.
func NewMock(p *Producer, seed int64) (*Mock, error) {
	if err := p.SetSessionInfo(DefaultSessionInfo); err != nil {
		return nil, err
	}
	return &Mock{
		p:     p,
		rng:   rand.New(rand.NewSource(seed)),
		speed: 30,
		rpm:   4000,
		gear:  3,
		lap:   1,
		fuel:  60,
	}, nil
}

// Step advances the simulation by one tick and publishes it.
func (m *Mock) Step(dt time.Duration) (int32, error) {
	sec := dt.Seconds()
	m.elapsed += sec

	// Random walk on throttle; speed and rpm follow it.
	m.throttle = math.Min(1, math.Max(0, m.throttle+(m.rng.Float64()-0.45)*0.2))
	brake := 0.0
	if m.throttle < 0.1 {
		brake = m.rng.Float64()
	}
	m.speed = math.Max(0, m.speed+(m.throttle*8-brake*12-1)*sec)
	m.gear = int32(min(6, 1+int(m.speed/12)))
	m.rpm = 1500 + math.Mod(m.speed*300, 5000)

	m.lapPct += m.speed * sec / 4200
	if m.lapPct >= 1 {
		m.lapPct -= 1
		m.lap++
	}
	m.fuel = math.Max(0, m.fuel-m.throttle*0.002)

	var warnings uint32
	if m.fuel < 5 {
		warnings |= 0x02
	}

	carPct := make([]float32, CarCount)
	for i := range carPct {
		carPct[i] = -1
	}
	carPct[0] = float32(m.lapPct)

	return m.p.Publish(func(f *Frame) {
		f.SetFloat64("SessionTime", m.elapsed)
		f.SetInt("SessionTick", m.p.tick+1)
		f.SetInt("SessionState", 4)
		f.SetBits("SessionFlags", 0x04)
		f.SetBool("IsOnTrack", true)
		f.SetFloat32("Speed", float32(m.speed))
		f.SetFloat32("RPM", float32(m.rpm))
		f.SetInt("Gear", m.gear)
		f.SetFloat32("Throttle", float32(m.throttle))
		f.SetFloat32("Brake", float32(brake))
		f.SetInt("Lap", m.lap)
		f.SetFloat32("LapDistPct", float32(m.lapPct))
		f.SetFloat32("FuelLevel", float32(m.fuel))
		f.SetBits("EngineWarnings", warnings)
		f.SetInt("PlayerTrackSurface", 3)
		f.SetFloat32("CarIdxLapDistPct", carPct...)
	})
}

// Run steps the mock at the layout's tick rate until ctx is done.
func (m *Mock) Run(ctx context.Context) error {
	period := time.Second / time.Duration(m.p.layout.tickRate())
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.p.SetStatus(0)
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Step(period); err != nil {
				return err
			}
		}
	}
}
