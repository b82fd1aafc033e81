package main

import (
	"os"

	"github.com/jfryman/vestaboard-mqtt/internal/boardctl"
)

func main() {
	os.Exit(boardctl.Run(os.Args[1:]))
}
