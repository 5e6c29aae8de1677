package main

import (
	"log"
	"os"

	"github.com/samscarrow/lmstudio-bridge/bridge"
)

func main() {
	if err := bridge.Run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
