package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chenyanchen/modrun"
)

const usage = `Usage: modrun [options]

Options:
  -d <dir> [match]    scan dir for module files
  -r <dir> [match]    scan dir and its subdirectories for module files
                      match is a regular expression for the full path (default %s)
  -p <key>=<value>    set a container property; later values win
  -v                  raise verbosity, repeat up to three times
  -w <seconds>        poll module files for changes every seconds; 0 disables polling
  -h                  show this help
`

func printUsage(w io.Writer) {
	fmt.Fprintf(w, usage, modrun.DefaultPattern)
}

type options struct {
	roots     []modrun.Root
	props     modrun.Properties
	verbosity int
	interval  time.Duration
	help      bool
	// ignored holds arguments that are not options.
	ignored []string
}

// maxIntervalSeconds is the largest -w value a time.Duration can hold.
const maxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func usageErrorf(format string, args ...any) error {
	return exitError{code: 2, err: fmt.Errorf(format, args...)}
}

// parseArgs evaluates args left to right.
func parseArgs(args []string) (options, error) {
	opts := options{props: modrun.Properties{}}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-d", "-r":
			if i+1 >= len(args) {
				return opts, usageErrorf("option %s requires a directory", arg)
			}
			i++
			root := modrun.Root{Dir: args[i], Recursive: arg == "-r"}
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				root.Pattern = args[i]
			}
			opts.roots = append(opts.roots, root)
		case "-p":
			if i+1 >= len(args) {
				return opts, usageErrorf("option -p requires key=value")
			}
			i++
			key, value, _ := strings.Cut(args[i], "=")
			opts.props[strings.TrimSpace(key)] = strings.TrimSpace(value)
		case "-v":
			opts.verbosity++
		case "-w":
			if i+1 >= len(args) {
				return opts, usageErrorf("option -w requires seconds")
			}
			i++
			seconds, err := strconv.Atoi(args[i])
			if err != nil || seconds < 0 || int64(seconds) > maxIntervalSeconds {
				return opts, usageErrorf("option -w: invalid seconds %q", args[i])
			}
			opts.interval = time.Duration(seconds) * time.Second
		case "-h", "-help", "--help":
			opts.help = true
		default:
			opts.ignored = append(opts.ignored, arg)
		}
	}
	return opts, nil
}
