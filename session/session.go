// Package session parses the session description the simulator publishes
// alongside its telemetry as a YAML document.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

var ErrEmpty = errors.New("session: empty session info")

// Info is the subset of the session document this package knows about.
type Info struct {
	WeekendInfo WeekendInfo `yaml:"WeekendInfo"`
	SessionInfo struct {
		Sessions []Session `yaml:"Sessions"`
	} `yaml:"SessionInfo"`
	DriverInfo DriverInfo `yaml:"DriverInfo"`
}

// WeekendInfo describes the track, conditions and event.
//
// Physical quantities are published with their unit ("3.70 km",
// "25.3 C"); use Quantity to split them.
type WeekendInfo struct {
	TrackName             string `yaml:"TrackName"`
	TrackID               int    `yaml:"TrackID"`
	TrackLength           string `yaml:"TrackLength"`
	TrackDisplayName      string `yaml:"TrackDisplayName"`
	TrackDisplayShortName string `yaml:"TrackDisplayShortName"`
	TrackConfigName       string `yaml:"TrackConfigName"`
	TrackCity             string `yaml:"TrackCity"`
	TrackCountry          string `yaml:"TrackCountry"`
	TrackAltitude         string `yaml:"TrackAltitude"`
	TrackLatitude         string `yaml:"TrackLatitude"`
	TrackLongitude        string `yaml:"TrackLongitude"`
	TrackNorthOffset      string `yaml:"TrackNorthOffset"`
	TrackNumTurns         int    `yaml:"TrackNumTurns"`
	TrackPitSpeedLimit    string `yaml:"TrackPitSpeedLimit"`
	TrackType             string `yaml:"TrackType"`
	TrackWeatherType      string `yaml:"TrackWeatherType"`
	TrackSkies            string `yaml:"TrackSkies"`
	TrackSurfaceTemp      string `yaml:"TrackSurfaceTemp"`
	TrackAirTemp          string `yaml:"TrackAirTemp"`
	TrackAirPressure      string `yaml:"TrackAirPressure"`
	TrackWindVel          string `yaml:"TrackWindVel"`
	TrackWindDir          string `yaml:"TrackWindDir"`
	TrackFogLevel         string `yaml:"TrackFogLevel"`
	TrackCleanup          int    `yaml:"TrackCleanup"`
	TrackDynamicTrack     int    `yaml:"TrackDynamicTrack"`

	SeriesID     int    `yaml:"SeriesID"`
	SeasonID     int    `yaml:"SeasonID"`
	SessionID    int    `yaml:"SessionID"`
	SubSessionID int    `yaml:"SubSessionID"`
	LeagueID     int    `yaml:"LeagueID"`
	Official     int    `yaml:"Official"`
	RaceWeek     int    `yaml:"RaceWeek"`
	EventType    string `yaml:"EventType"`
	Category     string `yaml:"Category"`
	SimMode      string `yaml:"SimMode"`
	TeamRacing   int    `yaml:"TeamRacing"`
	MinDrivers   int    `yaml:"MinDrivers"`
	MaxDrivers   int    `yaml:"MaxDrivers"`
	DCRuleSet    string `yaml:"DCRuleSet"`
}

// Session is one session (practice, qualify, race...) of the event.
type Session struct {
	SessionNum      int              `yaml:"SessionNum"`
	SessionLaps     string           `yaml:"SessionLaps"`
	SessionTime     string           `yaml:"SessionTime"`
	SessionType     string           `yaml:"SessionType"`
	SessionName     string           `yaml:"SessionName"`
	ResultPositions []ResultPosition `yaml:"ResultsPositions"`
}

type ResultPosition struct {
	Position     int     `yaml:"Position"`
	ClassPos     int     `yaml:"ClassPosition"`
	CarIdx       int     `yaml:"CarIdx"`
	Lap          int     `yaml:"Lap"`
	Time         float64 `yaml:"Time"`
	FastestLap   int     `yaml:"FastestLap"`
	FastestTime  float64 `yaml:"FastestTime"`
	LastTime     float64 `yaml:"LastTime"`
	LapsLed      int     `yaml:"LapsLed"`
	LapsComplete int     `yaml:"LapsComplete"`
	Incidents    int     `yaml:"Incidents"`
	ReasonOutStr string  `yaml:"ReasonOutStr"`
}

// DriverInfo lists the cars in the session.
type DriverInfo struct {
	DriverCarIdx int      `yaml:"DriverCarIdx"`
	DriverUserID int      `yaml:"DriverUserID"`
	Drivers      []Driver `yaml:"Drivers"`
}

type Driver struct {
	CarIdx        int    `yaml:"CarIdx"`
	UserName      string `yaml:"UserName"`
	UserID        int    `yaml:"UserID"`
	TeamName      string `yaml:"TeamName"`
	CarNumber     string `yaml:"CarNumber"`
	CarScreenName string `yaml:"CarScreenName"`
	CarClassID    int    `yaml:"CarClassID"`
	IRating       int    `yaml:"IRating"`
	LicString     string `yaml:"LicString"`
	IsSpectator   int    `yaml:"IsSpectator"`
	CarIsPaceCar  int    `yaml:"CarIsPaceCar"`
}

// Parse decodes a session document. Unknown keys are ignored.
func Parse(text string) (*Info, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}
	var info Info
	if err := yaml.Unmarshal([]byte(text), &info); err != nil {
		return nil, fmt.Errorf("session: parse: %w", err)
	}
	return &info, nil
}

// Driver returns the entry of the car the local user drives.
func (i *Info) Driver() (Driver, bool) {
	for _, d := range i.DriverInfo.Drivers {
		if d.CarIdx == i.DriverInfo.DriverCarIdx {
			return d, true
		}
	}
	return Driver{}, false
}

// Quantity splits a value such as "3.70 km" into its number and unit.
func Quantity(s string) (float64, string, error) {
	s = strings.TrimSpace(s)
	num, unit, _ := strings.Cut(s, " ")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, "", fmt.Errorf("session: quantity %q: %w", s, err)
	}
	return v, strings.TrimSpace(unit), nil
}

// TrackLengthKm returns the track length in kilometres.
func (w WeekendInfo) TrackLengthKm() (float64, error) {
	v, unit, err := Quantity(w.TrackLength)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "km", "":
		return v, nil
	case "mi":
		return v * 1.609344, nil
	}
	return 0, fmt.Errorf("session: track length unit %q", unit)
}
