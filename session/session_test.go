package session

import (
	"errors"
	"math"
	"testing"
)

const sample = `---
WeekendInfo:
 TrackName: lagunaseca
 TrackID: 47
 TrackLength: 3.60 km
 TrackDisplayName: WeatherTech Raceway at Laguna Seca
 TrackCity: Salinas
 TrackCountry: USA
 TrackNumTurns: 11
 TrackAirTemp: 25.56 C
 SeriesID: 0
 SubSessionID: 12345
 EventType: Test
 Category: Road
 SimMode: full
 DCRuleSet: None
SessionInfo:
 Sessions:
 - SessionNum: 0
   SessionLaps: unlimited
   SessionTime: unlimited
   SessionType: Offline Testing
   ResultsPositions:
   - Position: 1
     CarIdx: 0
     FastestTime: 83.1250
DriverInfo:
 DriverCarIdx: 0
 DriverUserID: 99
 Drivers:
 - CarIdx: 0
   UserName: Test Driver
   UserID: 99
   CarNumber: "7"
 - CarIdx: 1
   UserName: Pace Car
   CarIsPaceCar: 1
`

func TestParse(t *testing.T) {
	info, err := Parse(sample)
	if err != nil {
		t.Fatal(err)
	}
	w := info.WeekendInfo
	if w.TrackName != "lagunaseca" || w.TrackID != 47 || w.TrackNumTurns != 11 {
		t.Fatalf("weekend info = %+v", w)
	}
	if got, err := w.TrackLengthKm(); err != nil || math.Abs(got-3.6) > 1e-9 {
		t.Fatalf("TrackLengthKm = %v, %v", got, err)
	}
	if len(info.SessionInfo.Sessions) != 1 || info.SessionInfo.Sessions[0].SessionType != "Offline Testing" {
		t.Fatalf("sessions = %+v", info.SessionInfo.Sessions)
	}
	if res := info.SessionInfo.Sessions[0].ResultPositions; len(res) != 1 || res[0].FastestTime != 83.125 {
		t.Fatalf("results = %+v", res)
	}
	d, ok := info.Driver()
	if !ok || d.UserName != "Test Driver" || d.CarNumber != "7" {
		t.Fatalf("Driver() = %+v, %v", d, ok)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse("  \n"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("WeekendInfo: [unterminated"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		in   string
		v    float64
		unit string
		ok   bool
	}{
		{"3.70 km", 3.70, "km", true},
		{"-11.2 m", -11.2, "m", true},
		{"42", 42, "", true},
		{"unlimited", 0, "", false},
	}
	for _, tt := range tests {
		v, unit, err := Quantity(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("Quantity(%q) err = %v", tt.in, err)
		}
		if tt.ok && (v != tt.v || unit != tt.unit) {
			t.Fatalf("Quantity(%q) = %v %q", tt.in, v, unit)
		}
	}
}

func TestTrackLengthMiles(t *testing.T) {
	w := WeekendInfo{TrackLength: "2.00 mi"}
	got, err := w.TrackLengthKm()
	if err != nil || math.Abs(got-3.218688) > 1e-9 {
		t.Fatalf("TrackLengthKm = %v, %v", got, err)
	}
}
