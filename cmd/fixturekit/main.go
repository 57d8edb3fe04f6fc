package main

import (
	"context"
	"os"

	"github.com/roach88/fixturekit/internal/cli"
)

// version is set at build time by using -ldflags "-X main.version=x.x.x"
var version string

func main() {
	if version != "" {
		cli.Version = version
	}
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
