package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/AlephTX/simtelem/config"
	"github.com/AlephTX/simtelem/fakesim"
	"github.com/AlephTX/simtelem/relay"
	"github.com/AlephTX/simtelem/shm"
	"github.com/AlephTX/simtelem/states"
	"github.com/AlephTX/simtelem/telemetry"
)

// regionFlags lets every reading command override the configured region.
func regionFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Region.Name, "region", cfg.Region.Name, "shared memory region name")
	fs.StringVar(&cfg.Region.File, "file", cfg.Region.File, "read a captured region file instead")
}

func open(cfg *config.Config) (*telemetry.Conn, error) {
	opts := cfg.Options()
	if cfg.Region.File == "" {
		return telemetry.Open(cfg.Region.Name, opts)
	}
	r, err := shm.OpenFile(cfg.Region.File)
	if err != nil {
		return nil, err
	}
	c, err := telemetry.OpenRegion(r, opts)
	if err != nil {
		r.Close()
		return nil, err
	}
	return c, nil
}

// openWait retries open while the simulator is not running.
func openWait(ctx context.Context, cfg *config.Config) (*telemetry.Conn, error) {
	logged := false
	for {
		c, err := open(cfg)
		if err == nil || !errors.Is(err, telemetry.ErrNotFound) || cfg.Region.File != "" {
			return c, err
		}
		if !logged {
			log.Printf("telemetry: region %q not found, waiting for the simulator...", cfg.Region.Name)
			logged = true
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// latest waits for the first sample of a freshly opened connection.
func latest(ctx context.Context, cfg *config.Config, c *telemetry.Conn) (*telemetry.Snapshot, error) {
	return c.WaitNextContext(ctx, cfg.WaitTimeout())
}

func runWatch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	regionFlags(fs, cfg)
	vars := fs.String("vars", "SessionTime,Speed,RPM,Gear,SessionFlags,EngineWarnings", "comma-separated variables")
	fs.Parse(args)
	names := strings.Split(*vars, ",")

	c, err := openWait(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	for {
		snap, err := c.WaitNextContext(ctx, cfg.WaitTimeout())
		switch {
		case err == nil:
		case errors.Is(err, telemetry.ErrTimeout):
			if h, herr := c.Header(); herr == nil && !h.Active() {
				log.Printf("telemetry: simulator inactive")
			}
			continue
		default:
			return err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "tick=%d", snap.Tick)
		for _, name := range names {
			v, err := snap.Get(name)
			if err != nil {
				fmt.Fprintf(&b, " %s=?", name)
				continue
			}
			fmt.Fprintf(&b, " %s=%s", name, formatValue(name, v))
		}
		fmt.Println(b.String())
	}
}

// formatValue names well-known bitfields and enums.
func formatValue(name string, v telemetry.Value) string {
	switch name {
	case "SessionFlags":
		if bits, err := v.Bits(); err == nil {
			return states.Flags(bits).String()
		}
	case "EngineWarnings":
		if bits, err := v.Bits(); err == nil {
			return states.EngineWarnings(bits).String()
		}
	case "CamCameraState":
		if bits, err := v.Bits(); err == nil {
			return states.CameraState(bits).String()
		}
	case "PitSvFlags":
		if bits, err := v.Bits(); err == nil {
			return states.PitServices(bits).String()
		}
	case "SessionState":
		if n, err := v.Int(); err == nil {
			return states.SessionState(n).String()
		}
	case "PlayerTrackSurface":
		if n, err := v.Int(); err == nil {
			return states.TrackLocation(n).String()
		}
	case "PlayerTrackSurfaceMaterial":
		if n, err := v.Int(); err == nil {
			return states.TrackSurfaceOf(n).String()
		}
	case "DisplayUnits":
		if n, err := v.Int(); err == nil {
			return states.UnitsOf(n).String()
		}
	case "EnterExitReset":
		if n, err := v.Int(); err == nil {
			return states.ResetAction(n).String()
		}
	}
	return fmt.Sprint(v.Interface())
}

func runDump(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	regionFlags(fs, cfg)
	fs.Parse(args)

	c, err := openWait(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	snap, err := latest(ctx, cfg, c)
	if err != nil {
		return err
	}
	return dump(os.Stdout, snap)
}

func dump(w io.Writer, snap *telemetry.Snapshot) error {
	values := make(map[string]any)
	for name, v := range snap.All() {
		values[name] = v.Interface()
	}
	out, err := yaml.Marshal(struct {
		Tick   int32          `yaml:"tick"`
		Buffer int            `yaml:"buffer"`
		Values map[string]any `yaml:"values"`
	}{snap.Tick, snap.Buffer, values})
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func runVars(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("vars", flag.ExitOnError)
	regionFlags(fs, cfg)
	sorted := fs.Bool("sort", false, "sort by name")
	fs.Parse(args)

	c, err := openWait(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	vars, err := c.Vars()
	if err != nil {
		return err
	}
	if *sorted {
		sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	}
	return listVars(os.Stdout, vars)
}

func listVars(w io.Writer, vars []*telemetry.VarDesc) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tCOUNT\tOFFSET\tUNIT\tDESCRIPTION")
	for _, d := range vars {
		desc := d.Desc
		if d.Err != nil {
			desc = d.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", d.Name, d.Type, d.Count, d.Offset, d.Unit, desc)
	}
	return tw.Flush()
}

func runSession(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	regionFlags(fs, cfg)
	raw := fs.Bool("raw", false, "print the raw YAML document")
	fs.Parse(args)

	c, err := openWait(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if *raw {
		text, err := c.SessionInfo()
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	}
	info, err := c.Session()
	if err != nil {
		return err
	}
	wk := info.WeekendInfo
	fmt.Printf("track:    %s (%s, %s)\n", wk.TrackDisplayName, wk.TrackCity, wk.TrackCountry)
	if km, err := wk.TrackLengthKm(); err == nil {
		fmt.Printf("length:   %.2f km\n", km)
	}
	fmt.Printf("session:  %d (subsession %d)\n", wk.SessionID, wk.SubSessionID)
	for _, s := range info.SessionInfo.Sessions {
		fmt.Printf("  #%d %s laps=%s time=%s\n", s.SessionNum, s.SessionType, s.SessionLaps, s.SessionTime)
	}
	if d, ok := info.Driver(); ok {
		fmt.Printf("driver:   %s #%s\n", d.UserName, d.CarNumber)
	}
	fmt.Printf("drivers:  %d\n", len(info.DriverInfo.Drivers))
	return nil
}

func runRelay(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	regionFlags(fs, cfg)
	fs.StringVar(&cfg.Relay.UnixSocket, "socket", cfg.Relay.UnixSocket, "Unix socket to stream JSON lines to")
	fs.StringVar(&cfg.Relay.WSURL, "ws", cfg.Relay.WSURL, "websocket server to push messages to")
	fs.Parse(args)

	pump := &relay.Pump{
		Open:    func() (*telemetry.Conn, error) { return open(cfg) },
		Vars:    cfg.Relay.Vars,
		Timeout: cfg.WaitTimeout(),
	}
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Relay.UnixSocket != "" {
		up := relay.NewUnixPublisher(cfg.Relay.UnixSocket)
		defer up.Close()
		pump.Pubs = append(pump.Pubs, up)
	}
	if cfg.Relay.WSURL != "" {
		ws := relay.NewWSPublisher(cfg.Relay.WSURL, cfg.Relay.Queue)
		pump.Pubs = append(pump.Pubs, ws)
		g.Go(func() error { return ws.Run(ctx) })
	}
	if len(pump.Pubs) == 0 {
		return errors.New("no relay target: set relay.unix_socket or relay.ws_url")
	}
	g.Go(func() error { return pump.Run(ctx) })
	return g.Wait()
}

func runMock(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mock", flag.ExitOnError)
	fs.StringVar(&cfg.Region.Name, "region", cfg.Region.Name, "shared memory region name")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	fs.Parse(args)

	layout := fakesim.Layout{Vars: fakesim.DefaultVars, Buffers: cfg.Mock.Buffers, TickRate: cfg.Mock.TickRate}
	size, err := layout.Size()
	if err != nil {
		return err
	}
	region, err := shm.Create(cfg.Region.Name, size)
	if err != nil {
		return err
	}
	defer shm.Remove(cfg.Region.Name)
	defer region.Close()

	p, err := fakesim.New(region, layout)
	if err != nil {
		return err
	}
	m, err := fakesim.NewMock(p, *seed)
	if err != nil {
		return err
	}
	log.Printf("fakesim: publishing %q at %d Hz (%d bytes)", cfg.Region.Name, cfg.Mock.TickRate, size)
	return m.Run(ctx)
}

func runCapture(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	fs.StringVar(&cfg.Region.Name, "region", cfg.Region.Name, "shared memory region name")
	out := fs.String("o", "capture.bin", "output file")
	fs.Parse(args)

	r, err := shm.Open(cfg.Region.Name)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := capture(r, *out); err != nil {
		return err
	}
	log.Printf("shm: captured %d bytes of %q to %s", r.Len(), cfg.Region.Name, *out)
	return nil
}

// capture copies the region to path. The copy is not synchronized with the
// producer; a reader of the file applies the same tick validation.
func capture(r *shm.Region, path string) error {
	b := make([]byte, r.Len())
	if _, err := r.ReadAt(b, 0); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
