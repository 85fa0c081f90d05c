package main

import (
	"log"

	"fractureapi/internal/app"
)

func main() {
	application := app.NewApp()

	if err := application.Run(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
