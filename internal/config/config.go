// Package config parses the miner's positional CLI surface: no
// flag-parsing framework, just os.Args, matching the teacher's own
// plain-constants style of configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the fully parsed command line.
type Config struct {
	Benchmark bool

	StratumAddr string // host:port, scheme stripped
	Worker      string
	Password    string

	P2PAddr string // host:port; empty disables the P2P listener
}

// ErrUsage is returned for any malformed invocation; the caller should
// print usage and exit 1 (spec §6 exit codes).
var ErrUsage = errors.New("config: invalid arguments")

const stratumScheme = "stratum+tcp://"

// Parse parses os.Args[1:].
func Parse(args []string) (Config, error) {
	if len(args) > 0 && args[0] == "--benchmark" {
		return Config{Benchmark: true}, nil
	}

	if len(args) != 3 && len(args) != 4 {
		return Config{}, fmt.Errorf("%w: want <stratum_url> <worker> <password> [p2p_host:port]", ErrUsage)
	}

	stratumURL := args[0]
	if !strings.HasPrefix(stratumURL, stratumScheme) {
		return Config{}, fmt.Errorf("%w: stratum_url must start with %s", ErrUsage, stratumScheme)
	}

	cfg := Config{
		StratumAddr: strings.TrimPrefix(stratumURL, stratumScheme),
		Worker:      args[1],
		Password:    args[2],
	}

	if len(args) == 4 {
		cfg.P2PAddr = args[3]
	}

	return cfg, nil
}
