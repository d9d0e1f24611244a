package app

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/w200024212/pebbleos-sub017/internal/accel"
	"github.com/w200024212/pebbleos-sub017/internal/health"
	"github.com/w200024212/pebbleos-sub017/internal/kalg"
	"github.com/w200024212/pebbleos-sub017/internal/minutelog"
	"github.com/w200024212/pebbleos-sub017/internal/sensors"
	"github.com/w200024212/pebbleos-sub017/internal/store"
)

// RunReplay feeds a recorded accelerometer log through the engine at
// full speed and prints every session it recognizes. Useful for tuning
// against captured walks and nights of sleep.
func RunReplay(path string, startUTC uint32) error {
	src, err := sensors.NewReplaySource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	st := store.NewMemoryStore(1 << 16)
	buf := minutelog.NewBuffer(st, nil, 0, zap.NewNop())
	tracker := health.NewTracker(health.Profile{}, nil)
	env := &health.StaticEnvironment{}
	hr := health.NewStaticHeartRate(60)

	eng := kalg.New(zap.NewNop(), env, tracker, hr, buf)
	eng.Init()
	eng.EnableTracking(true)

	var (
		samplesFed  int
		minutes     uint32
		totalSteps  uint64
		sessions    int
	)
	for {
		batch, err := src.NextBatch()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		eng.HandleAccelSamples(batch.Samples, batch.FirstTimestampMS)
		samplesFed += len(batch.Samples)

		// One simulated minute per 60s of samples.
		for samplesFed >= int(minutes+1)*60*accel.SampleRateHz {
			minutes++
			utc := startUTC + minutes*60
			sample, events := eng.MinuteTick(utc)
			tracker.AdvanceMinute(uint32(sample.Steps))
			totalSteps += uint64(sample.Steps)
			for _, ev := range events {
				sessions++
				fmt.Printf("[%6dm] %s\n", minutes, ev)
			}
		}
	}

	for _, ev := range eng.EarlyDeinit() {
		sessions++
		fmt.Printf("[%6dm] %s\n", minutes, ev)
	}
	eng.Deinit()

	fmt.Printf("replayed %d minutes: %d steps, %d session events\n", minutes, totalSteps, sessions)
	return nil
}
