// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/w200024212/pebbleos-sub017/internal/accel"
	"github.com/w200024212/pebbleos-sub017/internal/config"
	"github.com/w200024212/pebbleos-sub017/internal/health"
	"github.com/w200024212/pebbleos-sub017/internal/kalg"
	"github.com/w200024212/pebbleos-sub017/internal/logger"
	"github.com/w200024212/pebbleos-sub017/internal/minutelog"
	"github.com/w200024212/pebbleos-sub017/internal/store"
	"github.com/w200024212/pebbleos-sub017/internal/telemetry"
)

// sessionPayload is the wire form of a session event on the sessions
// topic, with readable enum values.
type sessionPayload struct {
	Kind    string               `json:"kind"`
	Type    string               `json:"type"`
	Session kalg.ActivitySession `json:"session"`
}

// RunTrackerd drives the recognition engine from an accelerometer
// source and publishes its outputs until interrupted.
func RunTrackerd(source accel.Source) error {
	cfg := config.Get()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "trackerd")
	if err != nil {
		return err
	}
	defer log.Sync()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDTracker).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	st, err := store.OpenSQLite(cfg.StorePath, int64(cfg.StoreMaxRecords))
	if err != nil {
		return fmt.Errorf("open minute store: %w", err)
	}
	defer st.Close()

	transport := telemetry.NewMQTTTransport(client, cfg.TelemetryPrefix, log)
	buf := minutelog.NewBuffer(st, transport, cfg.LocalOffset15Min(), log)

	var distance health.DistanceSource
	if cfg.GPSSerialPort != "" {
		gps, err := health.OpenGPS(cfg.GPSSerialPort, uint(cfg.GPSBaudRate), log)
		if err != nil {
			// stride-based distance still works without a fix
			log.Warn("gps unavailable, falling back to stride distance", zap.Error(err))
		} else {
			defer gps.Close()
			distance = gps
		}
	}
	tracker := health.NewTracker(health.Profile{
		WeightKG:  cfg.ProfileWeightKG,
		HeightCM:  cfg.ProfileHeightCM,
		AgeYears:  cfg.ProfileAgeYears,
		MaleBased: cfg.ProfileMale,
	}, distance)

	env := &health.StaticEnvironment{}
	hr := health.NewStaticHeartRate(cfg.HeartRateBPM)

	eng := kalg.New(log, env, tracker, hr, buf)
	rate := eng.Init()
	eng.EnableTracking(true)
	log.Info("engine initialized", zap.Int("sample_rate_hz", rate))

	// Accelerometer feed. Per-batch step counts go out immediately so a
	// watch face can stay live between minute ticks.
	accelErr := make(chan error, 1)
	go func() {
		for {
			batch, err := source.NextBatch()
			if err != nil {
				accelErr <- err
				return
			}
			steps := eng.HandleAccelSamples(batch.Samples, batch.FirstTimestampMS)
			if steps > 0 {
				payload, _ := json.Marshal(map[string]any{
					"utc":   time.Now().Unix(),
					"steps": steps,
				})
				client.Publish(cfg.TopicSteps, 0, false, payload)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	minuteTick := time.NewTicker(time.Minute)
	defer minuteTick.Stop()

	for {
		select {
		case <-minuteTick.C:
			sample, events := eng.MinuteTick(uint32(time.Now().Unix()))
			tracker.AdvanceMinute(uint32(sample.Steps))
			publishMinute(client, cfg.TopicMinute, sample, log)
			publishEvents(client, cfg.TopicSessions, events, log)

		case err := <-accelErr:
			log.Error("accelerometer source failed", zap.Error(err))
			events := eng.EarlyDeinit()
			publishEvents(client, cfg.TopicSessions, events, log)
			eng.Deinit()
			return err

		case s := <-sig:
			log.Info("shutting down", zap.String("signal", s.String()))
			events := eng.EarlyDeinit()
			publishEvents(client, cfg.TopicSessions, events, log)
			eng.Deinit()
			return nil
		}
	}
}

func publishMinute(client mqtt.Client, topic string, sample kalg.MinuteSample, log *zap.Logger) {
	payload, err := json.Marshal(sample)
	if err != nil {
		log.Error("minute marshal failed", zap.Error(err))
		return
	}
	// retained so late subscribers see the latest minute right away
	token := client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		log.Warn("minute publish failed", zap.Error(token.Error()))
	}
}

func publishEvents(client mqtt.Client, topic string, events []kalg.SessionEvent, log *zap.Logger) {
	for _, ev := range events {
		payload, err := json.Marshal(sessionPayload{
			Kind:    ev.Kind.String(),
			Type:    ev.Session.Type.String(),
			Session: ev.Session,
		})
		if err != nil {
			log.Error("session marshal failed", zap.Error(err))
			continue
		}
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Warn("session publish failed", zap.Stringer("event", ev), zap.Error(token.Error()))
		}
	}
}
