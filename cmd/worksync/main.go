package main

import (
	"os"

	"github.com/felixgeelhaar/worksync/internal/infrastructure/cli"
)

func main() {
	if code := cli.Execute(); code != 0 {
		os.Exit(code)
	}
}
