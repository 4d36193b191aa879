package main

import (
	"bytes"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/AlephTX/simtelem/config"
	"github.com/AlephTX/simtelem/fakesim"
	"github.com/AlephTX/simtelem/telemetry"
)

func mockRegion(t *testing.T) *fakesim.Producer {
	t.Helper()
	p, err := fakesim.NewInMemory(fakesim.Layout{Vars: fakesim.DefaultVars})
	if err != nil {
		t.Fatal(err)
	}
	m, err := fakesim.NewMock(p, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Step(time.Second / 60); err != nil {
		t.Fatal(err)
	}
	return p
}

func snapshot(t *testing.T, mem telemetry.Memory) (*telemetry.Conn, *telemetry.Snapshot) {
	t.Helper()
	c, err := telemetry.OpenRegion(mem, telemetry.Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	snap, err := c.Latest()
	if err != nil {
		t.Fatal(err)
	}
	return c, snap
}

func TestDump(t *testing.T) {
	_, snap := snapshot(t, mockRegion(t).Region())
	var buf bytes.Buffer
	if err := dump(&buf, snap); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Tick   int32                  `yaml:"tick"`
		Values map[string]interface{} `yaml:"values"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Tick != 1 || len(out.Values) != len(fakesim.DefaultVars) {
		t.Fatalf("tick %d, %d values", out.Tick, len(out.Values))
	}
	if _, ok := out.Values["CarIdxLapDistPct"].([]interface{}); !ok {
		t.Fatalf("CarIdxLapDistPct = %T", out.Values["CarIdxLapDistPct"])
	}
}

func TestListVars(t *testing.T) {
	c, _ := snapshot(t, mockRegion(t).Region())
	vars, _ := c.Vars()
	var buf bytes.Buffer
	if err := listVars(&buf, vars); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(fakesim.DefaultVars)+1 {
		t.Fatalf("%d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "SessionTime") || !strings.Contains(lines[1], "double") {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestFormatValue(t *testing.T) {
	_, snap := snapshot(t, mockRegion(t).Region())
	tests := map[string]string{
		"SessionFlags":       "green",
		"SessionState":       "racing",
		"PlayerTrackSurface": "onTrack",
		"IsOnTrack":          "true",
	}
	for name, want := range tests {
		v, err := snap.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		if got := formatValue(name, v); got != want {
			t.Errorf("formatValue(%s) = %q, want %q", name, got, want)
		}
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	p := mockRegion(t)
	path := filepath.Join(t.TempDir(), "capture.bin")
	if err := capture(p.Region(), path); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Region.File = path
	c, err := open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	snap, err := c.Latest()
	if err != nil {
		t.Fatal(err)
	}
	_, live := snapshot(t, p.Region())
	if !bytes.Equal(snap.Data, live.Data) || snap.Tick != live.Tick {
		t.Fatal("captured sample differs from the live region")
	}
	info, err := c.Session()
	if err != nil {
		t.Fatal(err)
	}
	if info.WeekendInfo.TrackName != "mockring" {
		t.Fatalf("track = %q", info.WeekendInfo.TrackName)
	}
}

func TestOpenMissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Region.File = filepath.Join(t.TempDir(), "absent.bin")
	if _, err := open(cfg); err == nil {
		t.Fatal("open of a missing capture succeeded")
	}
}
