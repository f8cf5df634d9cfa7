// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command tetracli inspects, generates, packs and renders tetra assets
// without a window.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/tetra/core"
)

// env is what every subcommand gets to work with.
type env struct {
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger
	cfg    core.Configuration
}

type command struct {
	usage string
	run   func(e *env, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"inspect": {"inspect FILE.glb|FILE.dae", inspect},
		"gen":     {"gen [-shape quad|cube] -o FILE.glb", gen},
		"render":  {"render -model FILE [-vert FILE -frag FILE] [-texture FILE] [-archive FILE.kar] -o FILE.png", render},
		"pack":    {"pack [-author NAME] -o FILE.kar FILE...", pack},
		"ls":      {"ls FILE.kar", list},
		"devices": {"devices", devices},
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tetracli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "load environment variables from `file`")
	verbose := fs.Bool("v", false, "log debug messages")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "tetracli: unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(stderr, "tetracli: %v\n", err)
			return 1
		}
		envy.Reload()
	}
	cfg, err := core.ConfigurationFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "tetracli: %v\n", err)
		return 1
	}

	logger := log.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	if entry, ok := cfg.Log.(*log.Entry); ok {
		logger.SetLevel(entry.Logger.GetLevel())
	}
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	cfg.Log = logger.WithField("component", "engine")

	e := &env{stdout: stdout, stderr: stderr, log: logger, cfg: cfg}
	if err := cmd.run(e, fs.Args()[1:]); err != nil {
		if err == flag.ErrHelp {
			return 2
		}
		logger.WithField("command", fs.Arg(0)).Error(err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: tetracli [-env FILE] [-v] COMMAND [ARGS]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "flags:")
	fs.PrintDefaults()
}

// flags returns a flag set for a subcommand that reports to e.stderr.
func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("tetracli "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "usage: tetracli %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}
