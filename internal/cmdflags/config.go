package cmdflags

import (
	"github.com/urfave/cli/v2"
)

// ConfigFile is the optional YAML config path.  Environment variables
// override whatever the file sets.
func ConfigFile(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to a YAML config file",
		EnvVars:     []string{"CREDAUTH_CONFIG"},
		Destination: out,
		Value:       *out,
	}
}

func Identifier(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "identifier",
		Aliases:     []string{"u", "email"},
		Usage:       "Account identifier (usually an email address)",
		Destination: out,
		Required:    true,
	}
}
