// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


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

	log.Println("starting tracker console (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
