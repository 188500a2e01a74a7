// Package config parses the agent's command-line arguments into an
// immutable AgentConfig. It deliberately does not use the standard
// library's flag package: the CLI accepts "-p 4242 -n red -h localhost"
// style pairs with a bespoke exit-code contract (84 on any malformed
// input, 0 for "-help"), the same shape original_source/ai/main.py hand-
// parses sys.argv with. flag.Parse would also rearrange "-help" handling
// and report its own usage text and exit code, which spec.md's CLI
// section pins down explicitly — so, like the original, we walk the
// argument list ourselves.
package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Usage is the message carried by the "-help" result, matching
// original_source's single usage string. Argument errors carry their own,
// shorter messages instead.
const Usage = "USAGE: zappy_ai -p <port> -n <team> -h <host>"

// AgentConfig is the agent's immutable startup configuration (spec.md §3).
type AgentConfig struct {
	Port     int
	TeamName string
	Host     string
	UniqueID string
}

// ArgError is returned by Parse for both the help shortcut (Code 0) and
// malformed arguments (Code 84), so main can exit with the right status
// without Parse itself calling os.Exit.
type ArgError struct {
	Code    int
	Message string
}

func (e *ArgError) Error() string { return e.Message }

var errHelp = &ArgError{Code: 0, Message: Usage}

// Parse parses args (os.Args[1:]) into an AgentConfig. newID generates the
// agent's unique_id; pass ids.New in production and a deterministic stub
// in tests.
func Parse(args []string, newID func() string) (*AgentConfig, error) {
	if len(args) == 1 && args[0] == "-help" {
		return nil, errHelp
	}

	if len(args) < 6 {
		return nil, argError("invalid args number, type -help")
	}

	var (
		port    int
		portSet bool
		team    string
		teamSet bool
		host    string
		hostSet bool
	)

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return nil, argError("invalid args number, type -help")
		}

		flag, value := args[i], args[i+1]
		switch flag {
		case "-p":
			p, err := strconv.Atoi(value)
			if err != nil {
				return nil, argError("could not convert port to an integer")
			}
			port, portSet = p, true
		case "-n":
			team, teamSet = value, true
		case "-h":
			host, hostSet = value, true
		default:
			return nil, argError(fmt.Sprintf("unknown argument: %s", flag))
		}
	}

	if !portSet || !teamSet || !hostSet || port == 0 || team == "" || host == "" {
		return nil, argError("invalid args number, type -help")
	}

	return &AgentConfig{
		Port:     port,
		TeamName: team,
		Host:     host,
		UniqueID: newID(),
	}, nil
}

func argError(msg string) *ArgError {
	return &ArgError{Code: 84, Message: msg}
}

// IsHelp reports whether err is the "-help" shortcut rather than a real
// argument error.
func IsHelp(err error) bool {
	var ae *ArgError
	if errors.As(err, &ae) {
		return ae.Code == 0
	}
	return false
}
