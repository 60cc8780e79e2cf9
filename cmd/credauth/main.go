package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/panyam/credauth/cmd/credauth/accounts"
	"github.com/panyam/credauth/cmd/credauth/serve"
)

func main() {
	app := &cli.App{
		Name:  "credauth",
		Usage: "Account registration, login and sessions over HTTP and gRPC",
		Commands: []*cli.Command{
			serve.Cmd(),
			accounts.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
