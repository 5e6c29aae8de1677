package main

import (
	"log"
	"os"

	"github.com/samscarrow/lmstudio-bridge/installer"
)

func main() {
	if err := installer.Run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
