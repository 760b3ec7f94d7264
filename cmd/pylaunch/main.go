package main

import (
	"os"

	"pyfreeze/internal/launcher"
)

func main() {
	os.Exit(launcher.Main(os.Args[1:]))
}
