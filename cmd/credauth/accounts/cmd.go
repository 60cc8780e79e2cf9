package accounts

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/panyam/credauth/config"
	"github.com/panyam/credauth/internal/bootstrap"
	"github.com/panyam/credauth/internal/cmdflags"
)

func Cmd() *cli.Command {
	var configFile string
	var rt *bootstrap.Runtime
	return &cli.Command{
		Name:  "accounts",
		Usage: "Operate on the configured account store",
		Flags: []cli.Flag{
			cmdflags.ConfigFile(&configFile),
		},
		Before: func(cctx *cli.Context) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			ctx, opened, err := bootstrap.Open(cctx.Context, cfg)
			if err != nil {
				return err
			}
			cctx.Context = ctx
			rt = opened
			return nil
		},
		After: func(*cli.Context) error {
			if rt == nil {
				return nil
			}
			return rt.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&rt),
			checkCmd(&rt),
			listCmd(&rt),
		},
	}
}

func registerCmd(rt **bootstrap.Runtime) *cli.Command {
	var identifier string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a local account (password is read from stdin)",
		Flags: []cli.Flag{cmdflags.Identifier(&identifier)},
		Action: func(cctx *cli.Context) error {
			password, err := readPassword(cctx.App.Reader)
			if err != nil {
				return err
			}
			account, err := (*rt).Verifier.Register(cctx.Context, identifier, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cctx.App.Writer, account.ID)
			return nil
		},
	}
}

func checkCmd(rt **bootstrap.Runtime) *cli.Command {
	var identifier string
	return &cli.Command{
		Name:  "check",
		Usage: "Verify a password (read from stdin) without keeping a session",
		Flags: []cli.Flag{cmdflags.Identifier(&identifier)},
		Action: func(cctx *cli.Context) error {
			password, err := readPassword(cctx.App.Reader)
			if err != nil {
				return err
			}
			verifier := (*rt).Verifier
			auth, err := verifier.Login(cctx.Context, identifier, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cctx.App.Writer, "ok", auth.Account.ID)
			return verifier.Logout(cctx.Context, auth.SessionToken)
		},
	}
}

func listCmd(rt **bootstrap.Runtime) *cli.Command {
	var provider string
	return &cli.Command{
		Name:  "list",
		Usage: "List accounts created through a provider",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "provider",
				Aliases:     []string{"p"},
				Usage:       "local, google or github",
				Value:       "local",
				Destination: &provider,
			},
		},
		Action: func(cctx *cli.Context) error {
			lister, err := (*rt).Lister()
			if err != nil {
				return err
			}
			accounts, err := lister.ListByProvider(cctx.Context, provider)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tIDENTIFIER\tSTRATEGY\tCREATED")
			for _, a := range accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Identifier, a.Strategy, a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return tw.Flush()
		},
	}
}

func readPassword(in io.Reader) (string, error) {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("missing password from stdin")
	}
	password := strings.TrimSpace(sc.Text())
	if len(password) == 0 {
		return "", errors.New("missing password from stdin")
	}
	return password, nil
}
