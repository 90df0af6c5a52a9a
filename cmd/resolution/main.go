package main

import (
	"os"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	return cli.ExitCode(cli.Execute())
}
