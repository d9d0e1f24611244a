package main

import (
	"flag"
	"log"

	"github.com/w200024212/pebbleos-sub017/internal/app"
)

func main() {
	startUTC := flag.Uint("start", 1700000000, "UTC timestamp of the first sample")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: replay [-start utc] <samples.csv>")
	}

	if err := app.RunReplay(flag.Arg(0), uint32(*startUTC)); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}
