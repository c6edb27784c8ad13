package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tutoragent/cmd/tutoragent/commands"
	ferrors "git.home.luguber.info/inful/tutoragent/internal/foundation/errors"
	"git.home.luguber.info/inful/tutoragent/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cli commands.CLI
	kctx := kong.Parse(&cli,
		kong.Name("tutoragent"),
		kong.Description("Programming tutor backend: lesson content, progress tracking and settings"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := kctx.Run(&commands.Global{Ctx: ctx, Out: os.Stdout}, &cli)
	if err != nil {
		stop()
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
