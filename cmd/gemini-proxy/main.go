package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/fx"

	"gemini-proxy-go/internal/app"
	"gemini-proxy-go/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// .env must be loaded before Kong resolves env-backed flags.
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("gemini-proxy"),
		kong.Description("Key-injecting proxy for the Gemini generateContent API."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		app.Module(&cli, version),
		app.Server,
	).Run()
}
