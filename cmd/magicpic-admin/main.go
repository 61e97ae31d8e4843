package main

import (
	"os"

	"magicpic_admin/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
