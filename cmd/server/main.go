package main

import (
	"flag"
	"log"

	approuters "github.com/sahilt56/messaging-app/internal/app_routers"
	"github.com/sahilt56/messaging-app/internal/configuration"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the server config file")
	flag.Parse()

	container, err := configuration.BuildContainer(*configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}
