// Command simtelem reads live simulator telemetry from shared memory.
//
//	simtelem [-config simtelem.toml] <command> [flags]
//
// Commands: watch, dump, vars, session, relay, mock, capture.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AlephTX/simtelem/config"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, cfg *config.Config, args []string) error
}

var commands = []command{
	{"watch", "print selected variables on every new sample", runWatch},
	{"dump", "print one sample of every variable as YAML", runDump},
	{"vars", "list the variable catalog", runVars},
	{"session", "print the session description", runSession},
	{"relay", "forward samples to a Unix socket and/or websocket", runRelay},
	{"mock", "publish a random-walk region for testing consumers", runMock},
	{"capture", "copy the current region to a file", runCapture},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: simtelem [-config file] <command> [flags]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
	}
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", os.Getenv("SIMTELEM_CONFIG"), "TOML config file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("config: .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.FromEnv(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	setupLogging(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, cfg, args); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("%s: %v", name, err)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "simtelem: unknown command %q\n", name)
	usage()
	os.Exit(2)
}

// setupLogging routes the standard logger into a rotated file when one is
// configured. Command output stays on stdout.
func setupLogging(c config.LogConfig) {
	if c.File == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
	})
}
