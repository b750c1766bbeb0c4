package main

import (
	"log"

	"github.com/MrSnakeDoc/noor/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ noor failed to start: %v", err)
	}
}
