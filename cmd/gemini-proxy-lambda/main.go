// Command gemini-proxy-lambda runs the proxy as an AWS Lambda / Netlify function.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"gemini-proxy-go/internal/app"
	"gemini-proxy-go/internal/config"
	"gemini-proxy-go/internal/serverless"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Flags are not passed to Lambda functions; every setting comes from env.
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("gemini-proxy-lambda"),
		kong.Description("Gemini API key-injecting proxy (Lambda entrypoint)."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	var e *echo.Echo
	fxApp := fx.New(app.Module(&cli, version), fx.Populate(&e))
	if err := fxApp.Err(); err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}

	lambda.Start(serverless.NewHandler(e))
}
