// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/w200024212/pebbleos-sub017/internal/app"
	"github.com/w200024212/pebbleos-sub017/internal/config"
	"github.com/w200024212/pebbleos-sub017/internal/sensors"
)

func main() {
	configPath := flag.String("config", "tracker.conf", "path to configuration file")
	flag.Parse()

	log.Println("starting tracker daemon")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	if cfg.AccelSPIDevice == "" {
		log.Fatal("ACCEL_SPI_DEVICE is required for the tracker daemon")
	}

	source, err := sensors.NewMPU9250Source(cfg.AccelSPIDevice, nil)
	if err != nil {
		log.Fatalf("accelerometer init failed: %v", err)
	}
	defer source.Close()

	if err := app.RunTrackerd(source); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
