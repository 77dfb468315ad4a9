package main

import (
	"os"

	"github.com/gszz/gszz/cmd"
)

func main() {
	os.Exit(cmd.Run(os.Args[1:]))
}
