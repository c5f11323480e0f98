package main

import (
	"os"

	"github.com/upstreamlabs/fieldsync/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
