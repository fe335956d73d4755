package main

import (
	"log"

	"github.com/operatornet/fedgate/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ fedgate failed to start: %v", err)
	}
}
