package main

import (
	"flag"
	"log"

	"github.com/w200024212/pebbleos-sub017/internal/app"
	"github.com/w200024212/pebbleos-sub017/internal/config"
)

func main() {
	configPath := flag.String("config", "tracker.conf", "path to configuration file")
	flag.Parse()

	log.Println("starting tracker web server")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
