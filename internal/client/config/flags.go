package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

// Flags is the set of flags parseFlags consumes, each followed by a value.
// The CLI uses it to find the subcommand among os.Args.
var Flags = []string{"-a", "-s", "-w", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with the subcommand.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.StateFile, "s", cfg.StateFile, "token state file")
	timeout := fs.Int("w", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
