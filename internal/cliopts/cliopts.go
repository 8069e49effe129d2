// Package cliopts implements the "command-line option parser" ancillary
// component named in spec.md §1's scope, for cmd/bundlesh.
package cliopts

import (
	"github.com/spf13/pflag"
)

// Options are the flags cmd/bundlesh accepts.
type Options struct {
	LogLevel   string
	ConfigPath string
	Listen     string
}

// Parse parses args (normally os.Args[1:]) into Options.
func Parse(args []string) (Options, error) {
	fs := pflag.NewFlagSet("bundlesh", pflag.ContinueOnError)

	logLevel := fs.String("log-level", "0", "numeric log verbosity")
	configPath := fs.String("config", "", "path to a bundle descriptor (TOML or YAML)")
	listen := fs.String("listen", "127.0.0.1:8642", "address for the admin HTTP server")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	return Options{
		LogLevel:   *logLevel,
		ConfigPath: *configPath,
		Listen:     *listen,
	}, nil
}
